// Package messaging defines standard subject names for the EventLake message bus.
package messaging

// Subject constants for the EventLake message bus.
// Follow the pattern: {domain}.{action}.{resource}
const (
	// Ingest subjects - raw stream records published by producers.
	// Producers append the shard name: events.ingest.<shard>.
	SubjectEventsIngest = "events.ingest"

	// Object lifecycle subjects - emitted when the ingestion service
	// lands a raw object, consumed by the transformation service.
	SubjectObjectsRawCreated = "objects.raw.created"

	// Dead-letter subjects - terminal failures, kept for inspection.
	// The stage and reason are appended: dlq.<stage>.<reason>.
	SubjectDLQ = "dlq"
)

// Queue group names for load-balanced consumers.
// Workers in the same queue group share messages (each message processed once).
const (
	QueueIngestWorkers    = "ingest-workers"    // Pool of stream ingestion processors
	QueueTransformWorkers = "transform-workers" // Pool of object transformation processors
)

// IngestShardSubject returns the ingest subject for a specific shard.
// Example: events.ingest.shard-0
func IngestShardSubject(shard string) string {
	return SubjectEventsIngest + "." + shard
}

// DLQSubject returns the dead-letter subject for a stage and reason.
// Example: dlq.ingest.max_deliveries
func DLQSubject(stage, reason string) string {
	return SubjectDLQ + "." + stage + "." + reason
}
