package metadata

import (
	"context"
	"sort"
	"sync"

	"github.com/eventlake-systems/eventlake/common/models"
)

// Memory is an in-memory Repository for tests and local development.
type Memory struct {
	mu   sync.RWMutex
	rows []models.BatchMetadata
}

var _ Repository = (*Memory)(nil)

// NewMemory creates an empty in-memory repository.
func NewMemory() *Memory {
	return &Memory{}
}

// Append stores a copy of the record.
func (m *Memory) Append(ctx context.Context, meta *models.BatchMetadata) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, *meta)
	return nil
}

// GetByBatchID returns the record with the given batch ID. When a retried
// batch appended more than one row, the most recently processed row wins.
func (m *Memory) GetByBatchID(ctx context.Context, batchID string) (*models.BatchMetadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var latest *models.BatchMetadata
	for i := range m.rows {
		if m.rows[i].BatchID != batchID {
			continue
		}
		if latest == nil || m.rows[i].ProcessedAt.After(latest.ProcessedAt) {
			latest = &m.rows[i]
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	row := *latest
	return &row, nil
}

// ListByShard returns records for a shard, newest first, capped at limit.
func (m *Memory) ListByShard(ctx context.Context, shardID string, limit int) ([]*models.BatchMetadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = 50
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var results []*models.BatchMetadata
	for i := range m.rows {
		if m.rows[i].ShardID == shardID {
			row := m.rows[i]
			results = append(results, &row)
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].ProcessedAt.After(results[j].ProcessedAt)
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Len reports the number of stored records.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rows)
}

// Close is a no-op.
func (m *Memory) Close() {}
