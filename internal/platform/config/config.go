package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process-level configuration.
type Server struct {
	Addr            string
	DatabaseURL     string
	Redis           RedisConfig
	Kafka           KafkaConfig
	JWTSigningKey   string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// RedisConfig captures the optional Redis connection used for identity
// locking. An empty URL means Redis is not configured and locking stays
// process-local.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig captures the optional Kafka audit sink. Empty brokers mean
// audit events stay in memory.
type KafkaConfig struct {
	Brokers    []string
	AuditTopic string
}

// FromEnv builds a Server config from environment variables so main stays
// lean.
func FromEnv() Server {
	addr := os.Getenv("WELD_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	auditTopic := os.Getenv("WELD_AUDIT_TOPIC")
	if auditTopic == "" {
		auditTopic = "weld.contact.audit"
	}

	var brokers []string
	if v := os.Getenv("WELD_KAFKA_BROKERS"); v != "" {
		brokers = splitCommas(v)
	}

	return Server{
		Addr:        addr,
		DatabaseURL: os.Getenv("WELD_DATABASE_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("WELD_REDIS_URL"),
			PoolSize:     envInt("WELD_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("WELD_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers:    brokers,
			AuditTopic: auditTopic,
		},
		JWTSigningKey:   os.Getenv("WELD_JWT_SIGNING_KEY"),
		LogFormat:       os.Getenv("WELD_LOG_FORMAT"),
		ShutdownTimeout: 10 * time.Second,
	}
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func splitCommas(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
