package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaStore produces audit events to a Kafka topic, keyed by the cluster's
// primary id so a cluster's history lands in one partition in order. It is
// write-only; ListByPrimary is served by whatever consumes the topic, not by
// this process.
type KafkaStore struct {
	client *kgo.Client
	topic  string
}

// NewKafkaStore constructs a Kafka-backed audit sink.
func NewKafkaStore(client *kgo.Client, topic string) *KafkaStore {
	return &KafkaStore{client: client, topic: topic}
}

// EnsureTopic creates the audit topic if it does not exist yet.
func EnsureTopic(ctx context.Context, client *kgo.Client, topic string, partitions int32) error {
	adm := kadm.NewClient(client)
	_, err := adm.CreateTopic(ctx, partitions, 1, nil, topic)
	if err != nil {
		// CreateTopic surfaces TOPIC_ALREADY_EXISTS as an error; treat a
		// pre-existing topic as success.
		topics, listErr := adm.ListTopics(ctx, topic)
		if listErr == nil && topics.Has(topic) {
			return nil
		}
		return fmt.Errorf("create audit topic %q: %w", topic, err)
	}
	return nil
}

func (s *KafkaStore) Append(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(strconv.FormatInt(event.PrimaryID, 10)),
		Value: payload,
	}
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}

// ListByPrimary is not supported on the Kafka sink.
func (s *KafkaStore) ListByPrimary(context.Context, int64) ([]Event, error) {
	return nil, fmt.Errorf("kafka audit sink does not support reads")
}

// Close flushes buffered records and releases the client.
func (s *KafkaStore) Close() {
	s.client.Close()
}
