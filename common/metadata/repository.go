// Package metadata persists per-batch processing metadata so operators can
// audit what each pipeline invocation did.
package metadata

import (
	"context"
	"errors"

	"github.com/eventlake-systems/eventlake/common/models"
)

// ErrNotFound is returned when no metadata row exists for a batch ID.
var ErrNotFound = errors.New("batch metadata not found")

// Repository stores and retrieves batch metadata records.
type Repository interface {
	// Append inserts one batch metadata record. Batch IDs are unique per
	// invocation, so Append never updates an existing row.
	Append(ctx context.Context, meta *models.BatchMetadata) error

	// GetByBatchID retrieves a single record; when a retried batch left
	// several rows under one ID, the most recently processed row is
	// returned. Returns ErrNotFound if absent.
	GetByBatchID(ctx context.Context, batchID string) (*models.BatchMetadata, error)

	// ListByShard retrieves the most recent records for a shard, newest
	// first, capped at limit.
	ListByShard(ctx context.Context, shardID string, limit int) ([]*models.BatchMetadata, error)

	// Close releases underlying resources.
	Close()
}
