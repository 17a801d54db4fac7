// Package idempotency deduplicates raw-object notifications. The broker
// delivers at least once; a completion marker per object key lets
// redeliveries of an already-transformed object be skipped instead of
// re-run.
package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Guard tracks which raw objects have been transformed to completion.
//
// The marker is written only after the processed object and audit row have
// landed. An invocation that dies mid-transformation leaves no marker, so
// its redelivery is processed rather than skipped; two instances racing
// the same key may both transform it, which is safe because writes are
// idempotent by key.
type Guard interface {
	// Seen reports whether the key carries a completion marker.
	Seen(ctx context.Context, key string) (bool, error)

	// Mark records the key as transformed to completion.
	Mark(ctx context.Context, key string) error

	// Close releases underlying resources.
	Close() error
}

// RedisGuard implements Guard with a marker per object key, shared across
// transform instances.
type RedisGuard struct {
	client *redis.Client
	ttl    time.Duration
}

var _ Guard = (*RedisGuard)(nil)

// NewRedisGuard connects to Redis and verifies the connection.
func NewRedisGuard(ctx context.Context, url string, ttl time.Duration) (*RedisGuard, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return &RedisGuard{client: client, ttl: ttl}, nil
}

func markerKey(key string) string {
	return "eventlake:transform:done:" + key
}

// Seen reports whether the object key has a completion marker.
func (g *RedisGuard) Seen(ctx context.Context, key string) (bool, error) {
	n, err := g.client.Exists(ctx, markerKey(key)).Result()
	if err != nil {
		return false, fmt.Errorf("check %s: %w", key, err)
	}
	return n > 0, nil
}

// Mark writes the completion marker. The marker expires after the TTL so
// the guard never grows unbounded; objects are not renotified that late.
func (g *RedisGuard) Mark(ctx context.Context, key string) error {
	stamp := time.Now().UTC().Format(time.RFC3339)
	if err := g.client.Set(ctx, markerKey(key), stamp, g.ttl).Err(); err != nil {
		return fmt.Errorf("mark %s: %w", key, err)
	}
	return nil
}

// Close closes the Redis connection.
func (g *RedisGuard) Close() error {
	return g.client.Close()
}

// NoOp is the fallback guard when Redis is disabled: every notification is
// processed. Safe because writes are idempotent by key.
type NoOp struct{}

var _ Guard = NoOp{}

func (NoOp) Seen(ctx context.Context, key string) (bool, error) { return false, nil }
func (NoOp) Mark(ctx context.Context, key string) error         { return nil }
func (NoOp) Close() error                                       { return nil }
