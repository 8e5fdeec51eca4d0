package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/sync/errgroup"

	"weld/internal/audit"
	contacthandler "weld/internal/contact/handler"
	"weld/internal/contact/locker"
	contactmetrics "weld/internal/contact/metrics"
	"weld/internal/contact/service"
	"weld/internal/contact/store"
	"weld/internal/jwtauth"
	"weld/internal/platform/config"
	"weld/internal/platform/httpserver"
	"weld/internal/platform/logger"
	"weld/internal/platform/middleware"
	platformredis "weld/internal/platform/redis"
	httptransport "weld/internal/transport/http"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps
// the server lifecycle small. Business logic lives in internal services
// packages.
func main() {
	// Matches the reference deployment habit of reading a local .env.
	_ = godotenv.Load()

	cfg := config.FromEnv()
	log := logger.New(cfg.LogFormat)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err.Error())
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checks := make(map[string]httptransport.HealthChecker)

	contactStore, pool, err := buildStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	if pool != nil {
		defer pool.Close()
		checks["postgres"] = poolHealth{pool: pool}
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return err
	}
	var locks locker.Locker = locker.NewMemory()
	if redisClient != nil {
		defer redisClient.Close()
		checks["redis"] = redisClient
		locks = locker.NewRedis(redisClient.Client)
	}

	auditPub, closeAudit, err := buildAudit(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeAudit()

	var validator middleware.JWTValidator
	if cfg.JWTSigningKey != "" {
		validator = jwtauth.NewService(cfg.JWTSigningKey, "weld", "weld-admin")
	} else {
		log.Warn("no JWT signing key configured; admin endpoints disabled")
	}

	svc := service.New(contactStore, locks, log, contactmetrics.New(), auditPub)
	h := contacthandler.New(svc, log, validator)
	router := httptransport.NewRouter(h, log, checks)

	srv := httpserver.New(cfg.Addr, router)
	log.Info("starting weld", "addr", cfg.Addr)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// buildStore selects postgres when configured and falls back to the
// in-memory store for local development.
func buildStore(ctx context.Context, cfg config.Server, log *slog.Logger) (store.Store, *pgxpool.Pool, error) {
	if cfg.DatabaseURL == "" {
		log.Warn("no database configured; using in-memory contact store")
		return store.NewMemory(), nil, nil
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	pg := store.NewPostgres(pool)
	if err := pg.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return pg, pool, nil
}

// buildAudit wires the Kafka audit sink when brokers are configured and
// keeps events in memory otherwise.
func buildAudit(ctx context.Context, cfg config.Server, log *slog.Logger) (*audit.Publisher, func(), error) {
	if len(cfg.Kafka.Brokers) == 0 {
		pub := audit.NewPublisher(audit.NewInMemoryStore(), audit.WithAsyncBuffer(256))
		return pub, pub.Close, nil
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Kafka.Brokers...),
		kgo.DefaultProduceTopic(cfg.Kafka.AuditTopic),
	)
	if err != nil {
		return nil, nil, err
	}
	if err := audit.EnsureTopic(ctx, client, cfg.Kafka.AuditTopic, 3); err != nil {
		client.Close()
		return nil, nil, err
	}
	log.Info("audit events publishing to kafka", "topic", cfg.Kafka.AuditTopic)
	sink := audit.NewKafkaStore(client, cfg.Kafka.AuditTopic)
	pub := audit.NewPublisher(sink, audit.WithAsyncBuffer(256))
	return pub, func() {
		pub.Close()
		sink.Close()
	}, nil
}

type poolHealth struct {
	pool *pgxpool.Pool
}

func (p poolHealth) Health(ctx context.Context) error {
	return p.pool.Ping(ctx)
}
