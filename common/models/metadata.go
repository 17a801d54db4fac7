package models

import "time"

// MetadataTTL is how long a batch metadata row stays readable before the
// store is allowed to reap it.
const MetadataTTL = 30 * 24 * time.Hour

// BatchStats accumulates per-invocation outcome counts. Each invocation
// owns its own value; nothing here is shared across concurrent batches.
type BatchStats struct {
	Total      int
	Success    int
	Failed     int
	Partitions int
}

// BatchMetadata is one append-only audit row describing a processing
// invocation. Rows are never updated; an at-least-once retry appends a
// duplicate row rather than mutating the first.
type BatchMetadata struct {
	BatchID         string    `json:"batch_id"`
	ProcessedAt     time.Time `json:"processed_at"`
	ShardID         string    `json:"shard_id"`
	TotalRecords    int       `json:"total_records"`
	SuccessRecords  int       `json:"success_records"`
	FailedRecords   int       `json:"failed_records"`
	PartitionsCount int       `json:"partitions_count"`
	TTL             time.Time `json:"ttl"`
}

// NewBatchMetadata builds the audit row for one invocation.
func NewBatchMetadata(batchID, shardID string, stats BatchStats, now time.Time) BatchMetadata {
	return BatchMetadata{
		BatchID:         batchID,
		ProcessedAt:     now.UTC(),
		ShardID:         shardID,
		TotalRecords:    stats.Total,
		SuccessRecords:  stats.Success,
		FailedRecords:   stats.Failed,
		PartitionsCount: stats.Partitions,
		TTL:             now.UTC().Add(MetadataTTL),
	}
}
