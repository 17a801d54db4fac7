package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/eventlake-systems/eventlake/common/messaging"
	"github.com/eventlake-systems/eventlake/common/partition"
)

// NotifyPublisher publishes object-created notifications.
type NotifyPublisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// PublisherFunc adapts a function to the NotifyPublisher interface.
type PublisherFunc func(ctx context.Context, subject string, data []byte) error

// Publish calls f.
func (f PublisherFunc) Publish(ctx context.Context, subject string, data []byte) error {
	return f(ctx, subject, data)
}

// Notifying decorates a Store so that every successful write into the raw
// area emits an ObjectCreated notification, playing the role of the object
// store's own event notifications.
type Notifying struct {
	Store
	bucket    string
	publisher NotifyPublisher
}

// WithNotifications wraps store so raw-area writes publish to
// messaging.SubjectObjectsRawCreated.
func WithNotifications(store Store, bucket string, publisher NotifyPublisher) *Notifying {
	return &Notifying{Store: store, bucket: bucket, publisher: publisher}
}

// Put stores the object and, for raw-area keys, publishes the creation
// notification. A notification publish failure is returned to the caller:
// an unannounced raw object would never be transformed.
func (n *Notifying) Put(ctx context.Context, key string, data []byte) error {
	if err := n.Store.Put(ctx, key, data); err != nil {
		return err
	}

	if !strings.HasPrefix(key, partition.RawPrefix) {
		return nil
	}

	event := ObjectCreated{Bucket: n.bucket, Key: key}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal object notification: %w", err)
	}

	if err := n.publisher.Publish(ctx, messaging.SubjectObjectsRawCreated, payload); err != nil {
		return fmt.Errorf("publish object notification for %s: %w", key, err)
	}
	return nil
}
