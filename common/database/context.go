// Package database bounds how long the metadata repository may hold a
// connection for any single operation.
package database

import (
	"context"
	"time"
)

const (
	// QueryTimeout bounds metadata lookups (batch by ID, shard listings).
	QueryTimeout = 5 * time.Second

	// WriteTimeout bounds audit-row appends. Writes get more headroom than
	// reads because an abandoned append forces a whole-batch retry.
	WriteTimeout = 10 * time.Second
)

// QueryContext derives a context bounded by QueryTimeout.
func QueryContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, QueryTimeout)
}

// WriteContext derives a context bounded by WriteTimeout.
func WriteContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, WriteTimeout)
}
