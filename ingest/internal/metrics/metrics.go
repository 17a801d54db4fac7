package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Record metrics
	RecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventlake_ingest_records_total",
			Help: "Total number of stream records processed",
		},
		[]string{"status"},
	)

	BatchesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eventlake_ingest_batches_total",
			Help: "Total number of batches processed",
		},
	)

	// Object store metrics
	ObjectsWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eventlake_ingest_raw_objects_written_total",
			Help: "Total number of raw objects written",
		},
	)

	WriteErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eventlake_ingest_write_errors_total",
			Help: "Total number of object or metadata store write errors",
		},
	)

	WriteDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "eventlake_ingest_write_duration_seconds",
			Help:    "Duration of raw object writes in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Delivery metrics
	BatchRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eventlake_ingest_batch_retries_total",
			Help: "Total number of batch redeliveries",
		},
	)

	DeadLettered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eventlake_ingest_dead_lettered_total",
			Help: "Total number of batches redirected to the dead-letter stream",
		},
	)
)
