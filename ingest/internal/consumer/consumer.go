// Package consumer runs the stream-consumption loop: it pulls bounded
// batches from the EVENTS stream, hands them to the ingestion processor,
// and maps per-record outcomes to ack/nak/dead-letter decisions.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/eventlake-systems/eventlake/common/dlq"
	"github.com/eventlake-systems/eventlake/common/logging"
	"github.com/eventlake-systems/eventlake/common/messaging"
	"github.com/eventlake-systems/eventlake/common/messaging/nats"
	"github.com/eventlake-systems/eventlake/common/models"
	"github.com/eventlake-systems/eventlake/ingest/internal/metrics"
	"github.com/eventlake-systems/eventlake/ingest/internal/processor"
)

// Options configures the consumption loop.
type Options struct {
	// Shard restricts consumption to one stream shard. Empty means all.
	Shard string

	// BatchSize is the maximum records pulled per invocation.
	BatchSize int

	// BatchWait bounds how long a fetch waits to fill a batch.
	BatchWait time.Duration
}

// Consumer drives the ingestion processor from a JetStream pull consumer.
type Consumer struct {
	js         *nats.JetStreamClient
	consumer   jetstream.Consumer
	processor  *processor.Processor
	deadLetter dlq.Writer
	logger     *logging.Logger
	opts       Options
	maxDeliver int
}

// New sets up the EVENTS stream and the durable worker consumer.
func New(ctx context.Context, js *nats.JetStreamClient, proc *processor.Processor, deadLetter dlq.Writer, logger *logging.Logger, opts Options) (*Consumer, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.BatchWait <= 0 {
		opts.BatchWait = 5 * time.Second
	}

	if _, err := js.CreateOrUpdateStream(ctx, nats.EventsStream); err != nil {
		return nil, fmt.Errorf("create events stream: %w", err)
	}

	filter := messaging.SubjectEventsIngest + ".>"
	if opts.Shard != "" {
		filter = messaging.IngestShardSubject(opts.Shard)
	}

	cfg := nats.DefaultConsumerConfig(messaging.QueueIngestWorkers, filter)
	consumer, err := js.CreateOrUpdateConsumer(ctx, nats.EventsStream.Name, cfg)
	if err != nil {
		return nil, fmt.Errorf("create ingest consumer: %w", err)
	}

	return &Consumer{
		js:         js,
		consumer:   consumer,
		processor:  proc,
		deadLetter: deadLetter,
		logger:     logger,
		opts:       opts,
		maxDeliver: cfg.MaxDeliver,
	}, nil
}

// Run pulls and processes batches until ctx is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("ingest consumer started",
		"batch_size", c.opts.BatchSize,
		"shard", c.opts.Shard)

	for {
		if err := ctx.Err(); err != nil {
			c.logger.Info("ingest consumer stopping")
			return nil
		}

		batch, err := c.consumer.Fetch(c.opts.BatchSize, jetstream.FetchMaxWait(c.opts.BatchWait))
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			c.logger.Error("fetch failed", logging.Error(err))
			continue
		}

		var msgs []jetstream.Msg
		for msg := range batch.Messages() {
			msgs = append(msgs, msg)
		}
		if batch.Error() != nil && !errors.Is(batch.Error(), jetstream.ErrNoMessages) {
			c.logger.Warn("fetch completed with error", logging.Error(batch.Error()))
		}
		if len(msgs) == 0 {
			continue
		}

		c.processDelivery(ctx, msgs)
	}
}

// processDelivery handles one fetched batch of stream messages.
func (c *Consumer) processDelivery(ctx context.Context, msgs []jetstream.Msg) {
	batchID := uuid.New().String()
	ctx = logging.WithBatchID(ctx, batchID)

	records := make([]models.StreamRecord, len(msgs))
	exhausted := make([]bool, len(msgs))
	for i, msg := range msgs {
		records[i] = toStreamRecord(msg)
		if meta, err := msg.Metadata(); err == nil {
			if meta.NumDelivered > 1 {
				metrics.BatchRetries.Inc()
			}
			exhausted[i] = int(meta.NumDelivered) >= c.maxDeliver
		}
	}
	shardID := shardFromSubject(msgs[0].Subject())

	result, err := c.processor.ProcessBatch(ctx, batchID, shardID, records)
	if err == nil {
		c.ackOutcomes(ctx, msgs, result.Outcomes)
		return
	}

	c.logger.ErrorContext(ctx, "batch processing failed",
		logging.ShardID(shardID), logging.Error(err))

	// The retry bound is per message: a refetch regroups messages, so one
	// message's delivery count says nothing about its batch-mates'. Only
	// messages at the bound are dead-lettered; the rest are redelivered.
	for i, msg := range msgs {
		if !exhausted[i] {
			c.nak(ctx, msg)
			continue
		}

		entry := dlq.Entry{
			Stage:     dlq.StageIngest,
			Reference: records[i].SequenceNumber,
			Reason:    dlq.ReasonExhausted,
			Error:     err.Error(),
			Payload:   msg.Data(),
			Attempts:  c.maxDeliver,
		}
		if dlqErr := c.deadLetter.Write(ctx, entry); dlqErr != nil {
			// Keep the message for redelivery rather than dropping it.
			c.logger.ErrorContext(ctx, "dead-letter write failed",
				logging.Error(dlqErr))
			c.nak(ctx, msg)
			continue
		}
		metrics.DeadLettered.Inc()
		c.ack(ctx, msg)
	}
}

// ackOutcomes applies the per-record routing policy: validated-or-landed
// records leave the stream, write failures are redelivered.
func (c *Consumer) ackOutcomes(ctx context.Context, msgs []jetstream.Msg, outcomes []processor.Outcome) {
	for i, outcome := range outcomes {
		switch outcome.Status {
		case processor.OutcomeWriteFailed:
			c.nak(ctx, msgs[i])
		default:
			// Success and validation failures are both terminal:
			// invalid records are counted, not retried.
			c.ack(ctx, msgs[i])
		}
	}
}

func (c *Consumer) ack(ctx context.Context, msg jetstream.Msg) {
	if err := msg.Ack(); err != nil {
		c.logger.WarnContext(ctx, "ack failed", logging.Error(err))
	}
}

func (c *Consumer) nak(ctx context.Context, msg jetstream.Msg) {
	if err := msg.Nak(); err != nil {
		c.logger.WarnContext(ctx, "nak failed", logging.Error(err))
	}
}

// toStreamRecord maps a stream message to the processor's record boundary.
// The stream sequence number is the record's provenance identity.
func toStreamRecord(msg jetstream.Msg) models.StreamRecord {
	seq := ""
	if meta, err := msg.Metadata(); err == nil {
		seq = strconv.FormatUint(meta.Sequence.Stream, 10)
	}
	return models.StreamRecord{
		EncodedPayload:   msg.Data(),
		SequenceNumber:   seq,
		PartitionKeyHint: shardFromSubject(msg.Subject()),
	}
}

// shardFromSubject extracts the shard token from events.ingest.<shard>.
func shardFromSubject(subject string) string {
	parts := strings.Split(subject, ".")
	return parts[len(parts)-1]
}
