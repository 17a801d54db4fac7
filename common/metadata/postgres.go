package metadata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eventlake-systems/eventlake/common/database"
	"github.com/eventlake-systems/eventlake/common/models"
)

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

var _ Repository = (*PostgresRepository)(nil)

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(ctx context.Context, connString string) (*PostgresRepository, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 5
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

// Append inserts one batch metadata record
func (r *PostgresRepository) Append(ctx context.Context, meta *models.BatchMetadata) error {
	ctx, cancel := database.WriteContext(ctx)
	defer cancel()

	query := `
		INSERT INTO batch_metadata (
			batch_id, processed_at, shard_id,
			total_records, success_records, failed_records,
			partitions_count, ttl
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.pool.Exec(ctx, query,
		meta.BatchID, meta.ProcessedAt, meta.ShardID,
		meta.TotalRecords, meta.SuccessRecords, meta.FailedRecords,
		meta.PartitionsCount, meta.TTL,
	)
	if err != nil {
		return fmt.Errorf("failed to append batch metadata: %w", err)
	}

	return nil
}

// GetByBatchID retrieves a record by batch ID. A retried batch appends a
// second row under the same ID; the most recently processed row wins.
func (r *PostgresRepository) GetByBatchID(ctx context.Context, batchID string) (*models.BatchMetadata, error) {
	ctx, cancel := database.QueryContext(ctx)
	defer cancel()

	query := `
		SELECT batch_id, processed_at, shard_id,
		       total_records, success_records, failed_records,
		       partitions_count, ttl
		FROM batch_metadata
		WHERE batch_id = $1
		ORDER BY processed_at DESC
		LIMIT 1
	`

	meta := &models.BatchMetadata{}
	err := r.pool.QueryRow(ctx, query, batchID).Scan(
		&meta.BatchID, &meta.ProcessedAt, &meta.ShardID,
		&meta.TotalRecords, &meta.SuccessRecords, &meta.FailedRecords,
		&meta.PartitionsCount, &meta.TTL,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get batch metadata: %w", err)
	}

	return meta, nil
}

// ListByShard retrieves the most recent records for a shard, newest first
func (r *PostgresRepository) ListByShard(ctx context.Context, shardID string, limit int) ([]*models.BatchMetadata, error) {
	ctx, cancel := database.QueryContext(ctx)
	defer cancel()

	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT batch_id, processed_at, shard_id,
		       total_records, success_records, failed_records,
		       partitions_count, ttl
		FROM batch_metadata
		WHERE shard_id = $1
		ORDER BY processed_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, shardID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list batch metadata: %w", err)
	}
	defer rows.Close()

	var results []*models.BatchMetadata
	for rows.Next() {
		meta := &models.BatchMetadata{}
		if err := rows.Scan(
			&meta.BatchID, &meta.ProcessedAt, &meta.ShardID,
			&meta.TotalRecords, &meta.SuccessRecords, &meta.FailedRecords,
			&meta.PartitionsCount, &meta.TTL,
		); err != nil {
			return nil, fmt.Errorf("failed to scan batch metadata: %w", err)
		}
		results = append(results, meta)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate batch metadata: %w", err)
	}

	return results, nil
}

// Close closes the connection pool
func (r *PostgresRepository) Close() {
	r.pool.Close()
}
