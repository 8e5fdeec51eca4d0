package audit

import (
	"context"
	"sync"
)

// Store is an append-only sink for audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByPrimary(ctx context.Context, primaryID int64) ([]Event, error)
}

// InMemoryStore keeps events in memory. Tests and single-instance dev
// deployments use it; production deployments layer the Kafka producer on
// top.
type InMemoryStore struct {
	mu     sync.RWMutex
	events []Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *InMemoryStore) ListByPrimary(_ context.Context, primaryID int64) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Event
	for _, e := range s.events {
		if e.PrimaryID == primaryID {
			out = append(out, e)
		}
	}
	return out, nil
}
