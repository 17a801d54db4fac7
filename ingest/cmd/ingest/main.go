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
	"github.com/eventlake-systems/eventlake/common/storage"
	"github.com/eventlake-systems/eventlake/common/storage/objectstore"
	"github.com/eventlake-systems/eventlake/ingest/internal/codec"
	"github.com/eventlake-systems/eventlake/ingest/internal/consumer"
	"github.com/eventlake-systems/eventlake/ingest/internal/processor"

	natsclient "github.com/eventlake-systems/eventlake/common/messaging/nats"
)

func main() {
	// Load configuration
	cfg, err := config.Load("ingest")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize structured logging
	logger := logging.New(
		logging.ParseLevel(cfg.Logging.Level),
		cfg.Logging.Format,
	).With(logging.Service("ingest"))
	logging.SetDefault(logger)

	slog.Info("Starting ingest service",
		slog.String("nats_url", cfg.NATS.URL),
		slog.String("bucket", cfg.Storage.Bucket),
		slog.Int("batch_size", cfg.Ingest.BatchSize),
		slog.Bool("validation_enabled", cfg.Ingest.ValidationEnabled),
	)

	// Connect to NATS with JetStream
	jsClient, err := natsclient.NewJetStreamClient(natsclient.Config{
		URL:           cfg.NATS.URL,
		Name:          "eventlake-ingest",
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

	// Initialize object store with raw-object notifications. The object
	// events stream must exist before the first notification publish.
	setupCtx, setupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer setupCancel()

	if _, err := jsClient.CreateOrUpdateStream(setupCtx, natsclient.ObjectEventsStream); err != nil {
		log.Fatalf("Failed to create object events stream: %v", err)
	}

	bucket, err := objectstore.New(setupCtx, jsClient.JetStream(), cfg.Storage.Bucket)
	if err != nil {
		log.Fatalf("Failed to open object store bucket: %v", err)
	}
	notifier := storage.PublisherFunc(func(ctx context.Context, subject string, data []byte) error {
		_, err := jsClient.PublishSync(ctx, subject, data)
		return err
	})
	store := storage.WithNotifications(bucket, cfg.Storage.Bucket, notifier)

	// Initialize Dead Letter Queue
	var deadLetter dlq.Writer
	if cfg.DLQ.Enabled {
		jsDLQ, err := dlq.NewJetStreamQueue(setupCtx, jsClient, logger)
		if err != nil {
			log.Fatalf("Failed to initialize JetStream DLQ: %v", err)
		}
		deadLetter = jsDLQ
	} else {
		slog.Warn("Dead letter queue disabled; exhausted batches will keep redelivering")
		deadLetter = noopDLQ{}
	}

	// Assemble the ingestion pipeline
	proc := processor.New(
		codec.New(cfg.Ingest.ValidationEnabled),
		store,
		repo,
		logger,
	)

	cons, err := consumer.New(setupCtx, jsClient, proc, deadLetter, logger, consumer.Options{
		Shard:     cfg.Ingest.Shard,
		BatchSize: cfg.Ingest.BatchSize,
		BatchWait: cfg.Ingest.BatchWait,
	})
	if err != nil {
		log.Fatalf("Failed to set up stream consumer: %v", err)
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
		Addr:    fmt.Sprintf(":%d", cfg.Ingest.MetricsPort),
		Handler: mux,
	}
	go func() {
		slog.Info("Metrics server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Metrics server error: %v", err)
		}
	}()

	// Run the consumption loop until signaled
	runCtx, runCancel := context.WithCancel(context.Background())
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		slog.Info("Shutting down")
		runCancel()
	}()

	if err := cons.Run(runCtx); err != nil {
		log.Fatalf("Consumer error: %v", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Metrics server forced to shutdown: %v", err)
	}

	slog.Info("Ingest service stopped")
}

// noopDLQ drops entries when the dead-letter queue is disabled.
type noopDLQ struct{}

func (noopDLQ) Write(ctx context.Context, entry dlq.Entry) error { return nil }
