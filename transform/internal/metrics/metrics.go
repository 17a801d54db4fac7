package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Object metrics
	ObjectsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventlake_transform_objects_total",
			Help: "Total number of raw objects processed",
		},
		[]string{"status"},
	)

	ObjectsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventlake_transform_objects_skipped_total",
			Help: "Total number of notifications skipped",
		},
		[]string{"reason"},
	)

	// Record metrics
	RecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventlake_transform_records_total",
			Help: "Total number of raw object lines processed",
		},
		[]string{"status"},
	)

	AnomaliesFlagged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eventlake_transform_anomalies_flagged_total",
			Help: "Total number of records flagged anomalous",
		},
	)

	TransformDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "eventlake_transform_duration_seconds",
			Help:    "Duration of one raw object transformation in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Failure metrics
	ReadErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eventlake_transform_read_errors_total",
			Help: "Total number of raw object fetch failures",
		},
	)

	WriteErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eventlake_transform_write_errors_total",
			Help: "Total number of processed object write failures",
		},
	)

	DeadLettered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eventlake_transform_dead_lettered_total",
			Help: "Total number of objects redirected to the dead-letter stream",
		},
	)

	// Indexer metrics
	IndexedRecords = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eventlake_transform_indexed_records_total",
			Help: "Total number of enriched records indexed for analytics",
		},
	)

	IndexErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eventlake_transform_index_errors_total",
			Help: "Total number of analytics indexing failures",
		},
	)
)
