// Package objectstore implements the storage.Store boundary on a NATS
// JetStream object store bucket.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/eventlake-systems/eventlake/common/storage"
)

// Store is a storage.Store backed by one JetStream object store bucket.
// JetStream object stores are safe for concurrent use.
type Store struct {
	bucket string
	os     jetstream.ObjectStore
}

var _ storage.Store = (*Store)(nil)

// New creates or opens the named bucket.
func New(ctx context.Context, js jetstream.JetStream, bucket string) (*Store, error) {
	os, err := js.CreateOrUpdateObjectStore(ctx, jetstream.ObjectStoreConfig{
		Bucket:  bucket,
		Storage: jetstream.FileStorage,
	})
	if err != nil {
		return nil, fmt.Errorf("create/open object store bucket %s: %w", bucket, err)
	}
	return &Store{bucket: bucket, os: os}, nil
}

// NewWithObjectStore wraps an already-opened bucket.
func NewWithObjectStore(bucket string, os jetstream.ObjectStore) *Store {
	return &Store{bucket: bucket, os: os}
}

// Bucket returns the bucket name.
func (s *Store) Bucket() string {
	return s.bucket
}

// Put stores data at key. An existing object at the same key is replaced;
// retried invocations overwrite rather than duplicate.
func (s *Store) Put(ctx context.Context, key string, data []byte) error {
	if _, err := s.os.PutBytes(ctx, key, data); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// Get retrieves the object at key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.os.GetBytes(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrObjectNotFound) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return data, nil
}

// List returns all keys with the given prefix, sorted. JetStream has no
// server-side prefix listing, so the bucket listing is filtered here.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	infos, err := s.os.List(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoObjectsFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("list bucket %s: %w", s.bucket, err)
	}

	keys := make([]string, 0, len(infos))
	for _, info := range infos {
		if info.Deleted {
			continue
		}
		if strings.HasPrefix(info.Name, prefix) {
			keys = append(keys, info.Name)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
