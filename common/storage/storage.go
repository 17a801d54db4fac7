// Package storage defines the object-store boundary used by both pipeline
// stages: raw objects written by ingestion, processed objects written by
// transformation.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no object exists at the key.
var ErrNotFound = errors.New("object not found")

// Store is the object-store boundary. Keys are hierarchical paths
// ("raw/event_type=.../data_1.json"); values are opaque bytes.
//
// Writes must be idempotent: the pipeline derives keys deterministically,
// so a retried invocation overwrites an existing object with identical
// content. Implementations must be safe for concurrent use.
type Store interface {
	// Put stores data at key, overwriting any existing object.
	Put(ctx context.Context, key string, data []byte) error

	// Get retrieves the object at key. Returns ErrNotFound if absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// List returns all keys with the given prefix in lexicographic order.
	List(ctx context.Context, prefix string) ([]string, error)
}

// ObjectCreated is the notification emitted after a raw object lands,
// mirroring the shape of an object-store creation event.
type ObjectCreated struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}
