package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/eventlake-systems/eventlake/common/config"
	"github.com/eventlake-systems/eventlake/common/dlq"
	"github.com/eventlake-systems/eventlake/common/logging"
	"github.com/eventlake-systems/eventlake/common/messaging"
	"github.com/eventlake-systems/eventlake/common/metadata"
	"github.com/eventlake-systems/eventlake/common/storage/objectstore"
	"github.com/eventlake-systems/eventlake/transform/internal/enrich"
	"github.com/eventlake-systems/eventlake/transform/internal/idempotency"
	"github.com/eventlake-systems/eventlake/transform/internal/indexer"
	"github.com/eventlake-systems/eventlake/transform/internal/listener"
	"github.com/eventlake-systems/eventlake/transform/internal/processor"

	natsclient "github.com/eventlake-systems/eventlake/common/messaging/nats"
)

func main() {
	// Load configuration
	cfg, err := config.Load("transform")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize structured logging
	logger := logging.New(
		logging.ParseLevel(cfg.Logging.Level),
		cfg.Logging.Format,
	).With(logging.Service("transform"))
	logging.SetDefault(logger)

	slog.Info("Starting transform service",
		slog.String("nats_url", cfg.NATS.URL),
		slog.String("bucket", cfg.Storage.Bucket),
		slog.String("raw_prefix", cfg.Transform.RawPrefix),
	)

	// Connect to NATS with JetStream
	jsClient, err := natsclient.NewJetStreamClient(natsclient.Config{
		URL:           cfg.NATS.URL,
		Name:          "eventlake-transform",
		MaxReconnects: cfg.NATS.MaxReconnects,
		ReconnectWait: cfg.NATS.ReconnectWait,
	})
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer jsClient.Close()

	// Run database migrations
	connString := cfg.Database.Postgres.ConnString()
	slog.Info("Running database migrations")
	m, err := migrate.New("file://common/metadata/migrations", connString)
	if err != nil {
		log.Fatalf("Failed to initialize migrations: %v", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Initialize metadata repository
	repo, err := metadata.NewPostgresRepository(context.Background(), connString)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer repo.Close()

	setupCtx, setupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer setupCancel()

	// Object store: the transform side reads raw objects and writes
	// processed ones, no notifications of its own.
	store, err := objectstore.New(setupCtx, jsClient.JetStream(), cfg.Storage.Bucket)
	if err != nil {
		log.Fatalf("Failed to open object store bucket: %v", err)
	}

	// Idempotency guard
	var guard idempotency.Guard = idempotency.NoOp{}
	if cfg.Redis.Enabled {
		redisGuard, err := idempotency.NewRedisGuard(setupCtx, cfg.Redis.URL, cfg.Redis.KeyTTL)
		if err != nil {
			slog.Warn("Redis unavailable, continuing without dedupe guard",
				slog.String("error", err.Error()))
		} else {
			guard = redisGuard
			slog.Info("Redis dedupe guard enabled", slog.String("url", cfg.Redis.URL))
		}
	}
	defer guard.Close()

	// Dead letter queue
	var deadLetter dlq.Writer
	if cfg.DLQ.Enabled {
		jsDLQ, err := dlq.NewJetStreamQueue(setupCtx, jsClient, logger)
		if err != nil {
			log.Fatalf("Failed to initialize JetStream DLQ: %v", err)
		}
		deadLetter = jsDLQ
	} else {
		slog.Warn("Dead letter queue disabled; exhausted objects will keep redelivering")
		deadLetter = noopDLQ{}
	}

	// Optional analytics indexer
	var analytics processor.Indexer
	if cfg.OpenSearch.Enabled {
		osIndexer, err := indexer.New(indexer.Config{
			URL:           cfg.OpenSearch.URL,
			Username:      cfg.OpenSearch.Username,
			Password:      cfg.OpenSearch.Password,
			TLSSkipVerify: cfg.OpenSearch.TLSSkipVerify,
			IndexPrefix:   cfg.OpenSearch.IndexPrefix,
			FlushInterval: cfg.OpenSearch.BulkFlushInterval,
		}, logger)
		if err != nil {
			slog.Warn("OpenSearch unavailable, continuing without analytics indexing",
				slog.String("error", err.Error()))
		} else {
			analytics = osIndexer
			slog.Info("Analytics indexer enabled", slog.String("url", cfg.OpenSearch.URL))
		}
	}

	// Assemble the transformation pipeline
	engine := enrich.New(enrich.Thresholds{
		AmountSmall:       cfg.Transform.Enrichment.AmountSmall,
		AmountMedium:      cfg.Transform.Enrichment.AmountMedium,
		AmountLarge:       cfg.Transform.Enrichment.AmountLarge,
		HighValueOver:     cfg.Transform.Enrichment.HighValueOver,
		SessionMedium:     cfg.Transform.Enrichment.SessionMedium,
		SessionLong:       cfg.Transform.Enrichment.SessionLong,
		ValueLow:          cfg.Transform.Enrichment.ValueLow,
		ValueNormal:       cfg.Transform.Enrichment.ValueNormal,
		AnomalyLowerBound: cfg.Transform.Enrichment.AnomalyLowerBound,
		AnomalyUpperBound: cfg.Transform.Enrichment.AnomalyUpperBound,
	})

	proc := processor.New(engine, store, repo, analytics, logger)

	lst, err := listener.New(setupCtx, jsClient, proc, guard, deadLetter, logger, listener.Options{
		RawPrefix:    cfg.Transform.RawPrefix,
		ObjectSuffix: cfg.Transform.ObjectSuffix,
	})
	if err != nil {
		log.Fatalf("Failed to set up notification listener: %v", err)
	}

	// Metrics and health endpoints
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		status := messaging.CheckClientHealth(r.Context(), jsClient)
		if !status.Connected {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		fmt.Fprintf(w, `{"connected":%t}`, status.Connected)
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Transform.MetricsPort),
		Handler: mux,
	}
	go func() {
		slog.Info("Metrics server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Metrics server error: %v", err)
		}
	}()

	// Run the listener loop until signaled
	runCtx, runCancel := context.WithCancel(context.Background())
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		slog.Info("Shutting down")
		runCancel()
	}()

	if err := lst.Run(runCtx); err != nil {
		log.Fatalf("Listener error: %v", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Metrics server forced to shutdown: %v", err)
	}

	slog.Info("Transform service stopped")
}

// noopDLQ drops entries when the dead-letter queue is disabled.
type noopDLQ struct{}

func (noopDLQ) Write(ctx context.Context, entry dlq.Entry) error { return nil }
