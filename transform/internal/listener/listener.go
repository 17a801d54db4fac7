// Package listener consumes raw-object-created notifications and drives
// the transformation processor, one object per delivery.
package listener

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/eventlake-systems/eventlake/common/dlq"
	"github.com/eventlake-systems/eventlake/common/logging"
	"github.com/eventlake-systems/eventlake/common/messaging"
	"github.com/eventlake-systems/eventlake/common/messaging/nats"
	"github.com/eventlake-systems/eventlake/common/partition"
	"github.com/eventlake-systems/eventlake/common/storage"
	"github.com/eventlake-systems/eventlake/transform/internal/idempotency"
	"github.com/eventlake-systems/eventlake/transform/internal/metrics"
	"github.com/eventlake-systems/eventlake/transform/internal/processor"
)

// Options configures the notification filter.
type Options struct {
	// RawPrefix and ObjectSuffix filter which created objects are
	// eligible for transformation.
	RawPrefix    string
	ObjectSuffix string

	// FetchBatch is how many notifications one fetch pulls.
	FetchBatch int

	// FetchWait bounds how long a fetch waits.
	FetchWait time.Duration
}

// Listener drives the transformation processor from the OBJECT_EVENTS
// stream.
type Listener struct {
	consumer   jetstream.Consumer
	processor  *processor.Processor
	guard      idempotency.Guard
	deadLetter dlq.Writer
	logger     *logging.Logger
	opts       Options
	maxDeliver int
}

// New sets up the OBJECT_EVENTS stream and the durable worker consumer.
func New(ctx context.Context, js *nats.JetStreamClient, proc *processor.Processor, guard idempotency.Guard, deadLetter dlq.Writer, logger *logging.Logger, opts Options) (*Listener, error) {
	if opts.RawPrefix == "" {
		opts.RawPrefix = "raw/"
	}
	if opts.ObjectSuffix == "" {
		opts.ObjectSuffix = ".json"
	}
	if opts.FetchBatch <= 0 {
		opts.FetchBatch = 10
	}
	if opts.FetchWait <= 0 {
		opts.FetchWait = 5 * time.Second
	}

	if _, err := js.CreateOrUpdateStream(ctx, nats.ObjectEventsStream); err != nil {
		return nil, fmt.Errorf("create object events stream: %w", err)
	}

	cfg := nats.DefaultConsumerConfig(messaging.QueueTransformWorkers, messaging.SubjectObjectsRawCreated)
	consumer, err := js.CreateOrUpdateConsumer(ctx, nats.ObjectEventsStream.Name, cfg)
	if err != nil {
		return nil, fmt.Errorf("create transform consumer: %w", err)
	}

	return &Listener{
		consumer:   consumer,
		processor:  proc,
		guard:      guard,
		deadLetter: deadLetter,
		logger:     logger,
		opts:       opts,
		maxDeliver: cfg.MaxDeliver,
	}, nil
}

// Run pulls and handles notifications until ctx is canceled.
func (l *Listener) Run(ctx context.Context) error {
	l.logger.Info("transform listener started",
		"raw_prefix", l.opts.RawPrefix,
		"object_suffix", l.opts.ObjectSuffix)

	for {
		if err := ctx.Err(); err != nil {
			l.logger.Info("transform listener stopping")
			return nil
		}

		batch, err := l.consumer.Fetch(l.opts.FetchBatch, jetstream.FetchMaxWait(l.opts.FetchWait))
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			l.logger.Error("fetch failed", logging.Error(err))
			continue
		}

		for msg := range batch.Messages() {
			l.handle(ctx, msg)
		}
		if batch.Error() != nil && !errors.Is(batch.Error(), jetstream.ErrNoMessages) {
			l.logger.Warn("fetch completed with error", logging.Error(batch.Error()))
		}
	}
}

// handle processes one notification delivery.
func (l *Listener) handle(ctx context.Context, msg jetstream.Msg) {
	var created storage.ObjectCreated
	if err := json.Unmarshal(msg.Data(), &created); err != nil {
		// A malformed notification never becomes parseable; drop it
		// into the DLQ for inspection.
		l.deadLetterMsg(ctx, msg, "", dlq.ReasonDecodeFailed, err)
		return
	}

	if !l.eligible(created.Key) {
		metrics.ObjectsSkipped.WithLabelValues("filtered").Inc()
		l.ack(ctx, msg)
		return
	}

	seen, err := l.guard.Seen(ctx, created.Key)
	if err != nil {
		// Guard unavailable: proceed rather than stall the stream;
		// writes are idempotent by key.
		l.logger.WarnContext(ctx, "idempotency guard unavailable",
			logging.ObjectKey(created.Key), logging.Error(err))
	} else if seen {
		metrics.ObjectsSkipped.WithLabelValues("duplicate").Inc()
		l.logger.InfoContext(ctx, "duplicate notification skipped",
			logging.ObjectKey(created.Key))
		l.ack(ctx, msg)
		return
	}

	if _, err := l.processor.ProcessObject(ctx, created.Key); err != nil {
		metrics.ObjectsTotal.WithLabelValues("failed").Inc()
		l.logger.ErrorContext(ctx, "object transformation failed",
			logging.ObjectKey(created.Key), logging.Error(err))

		if l.exhausted(msg) {
			l.deadLetterMsg(ctx, msg, created.Key, dlq.ReasonReadFailed, err)
			return
		}
		l.nak(ctx, msg)
		return
	}

	// Mark only after the processed object has landed. A failed run leaves
	// no marker, so its redelivery is processed rather than skipped.
	if err := l.guard.Mark(ctx, created.Key); err != nil {
		l.logger.WarnContext(ctx, "guard mark failed",
			logging.ObjectKey(created.Key), logging.Error(err))
	}

	l.ack(ctx, msg)
}

// eligible applies the prefix/suffix notification filter.
func (l *Listener) eligible(key string) bool {
	return key != "" && partition.IsRawObjectKey(key, l.opts.RawPrefix, l.opts.ObjectSuffix)
}

// exhausted reports whether this delivery reached the retry bound.
func (l *Listener) exhausted(msg jetstream.Msg) bool {
	meta, err := msg.Metadata()
	if err != nil {
		return false
	}
	return int(meta.NumDelivered) >= l.maxDeliver
}

// deadLetterMsg writes a DLQ entry and acks the message off the stream.
func (l *Listener) deadLetterMsg(ctx context.Context, msg jetstream.Msg, key, reason string, cause error) {
	entry := dlq.Entry{
		Stage:     dlq.StageTransform,
		Reference: key,
		Reason:    reason,
		Error:     cause.Error(),
		Payload:   msg.Data(),
		Attempts:  l.maxDeliver,
	}
	if err := l.deadLetter.Write(ctx, entry); err != nil {
		l.logger.ErrorContext(ctx, "dead-letter write failed", logging.Error(err))
		l.nak(ctx, msg)
		return
	}
	metrics.DeadLettered.Inc()
	l.ack(ctx, msg)
}

func (l *Listener) ack(ctx context.Context, msg jetstream.Msg) {
	if err := msg.Ack(); err != nil {
		l.logger.WarnContext(ctx, "ack failed", logging.Error(err))
	}
}

func (l *Listener) nak(ctx context.Context, msg jetstream.Msg) {
	if err := msg.Nak(); err != nil {
		l.logger.WarnContext(ctx, "nak failed", logging.Error(err))
	}
}
