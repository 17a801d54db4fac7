// Package processor implements the stream ingestion pipeline: decode a
// batch of stream records, group the valid events by partition key, land
// one raw object per partition, and append the batch audit row.
package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/eventlake-systems/eventlake/common/logging"
	"github.com/eventlake-systems/eventlake/common/metadata"
	"github.com/eventlake-systems/eventlake/common/models"
	"github.com/eventlake-systems/eventlake/common/partition"
	"github.com/eventlake-systems/eventlake/common/storage"
	"github.com/eventlake-systems/eventlake/ingest/internal/codec"
	"github.com/eventlake-systems/eventlake/ingest/internal/metrics"
)

// OutcomeStatus classifies what happened to one stream record.
type OutcomeStatus string

const (
	OutcomeSuccess          OutcomeStatus = "success"
	OutcomeValidationFailed OutcomeStatus = "validation_failed"
	OutcomeWriteFailed      OutcomeStatus = "write_failed"
)

// Outcome is the per-record result returned to the consumption layer so it
// can decide ack/retry/DLQ routing.
type Outcome struct {
	SequenceNumber string
	Status         OutcomeStatus
	Err            error
}

// Result summarizes one batch invocation.
type Result struct {
	Outcomes []Outcome
	Stats    models.BatchStats
}

// Processor is stateless between invocations; each call owns its batch
// exclusively. Retry on whole-batch failure belongs to the caller.
type Processor struct {
	codec  *codec.Codec
	store  storage.Store
	meta   metadata.Repository
	logger *logging.Logger
	now    func() time.Time
}

// New creates an ingestion processor over the injected collaborators.
func New(c *codec.Codec, store storage.Store, meta metadata.Repository, logger *logging.Logger) *Processor {
	return &Processor{
		codec:  c,
		store:  store,
		meta:   meta,
		logger: logger,
		now:    time.Now,
	}
}

// partitionGroup accumulates one partition's events in arrival order.
type partitionGroup struct {
	firstSequence string
	events        []models.Event
}

// ProcessBatch runs one batch through decode, partitioning, and raw-object
// writes, then appends the batch metadata row. A write failure for one
// partition does not block the others; only producing no output at all is
// a whole-batch failure.
func (p *Processor) ProcessBatch(ctx context.Context, batchID, shardID string, records []models.StreamRecord) (*Result, error) {
	ctx = logging.WithBatchID(ctx, batchID)
	stats := models.BatchStats{Total: len(records)}

	outcomes := make([]Outcome, 0, len(records))
	groups := make(map[string]*partitionGroup)
	var order []string

	for _, record := range records {
		event, err := p.codec.Decode(record)
		if err != nil {
			stats.Failed++
			outcomes = append(outcomes, Outcome{
				SequenceNumber: record.SequenceNumber,
				Status:         OutcomeValidationFailed,
				Err:            err,
			})
			metrics.RecordsTotal.WithLabelValues("invalid").Inc()
			p.logger.WarnContext(ctx, "record rejected",
				"sequence_number", record.SequenceNumber,
				logging.Error(err))
			continue
		}

		key, err := partition.Key(event.Type, event.Timestamp)
		if err != nil {
			// Only reachable with validation disabled.
			stats.Failed++
			outcomes = append(outcomes, Outcome{
				SequenceNumber: record.SequenceNumber,
				Status:         OutcomeValidationFailed,
				Err:            &models.ValidationError{Field: "timestamp", Reason: err.Error()},
			})
			metrics.RecordsTotal.WithLabelValues("invalid").Inc()
			continue
		}

		group, ok := groups[key]
		if !ok {
			group = &partitionGroup{firstSequence: event.SequenceNumber}
			groups[key] = group
			order = append(order, key)
		}
		group.events = append(group.events, event)
		outcomes = append(outcomes, Outcome{
			SequenceNumber: record.SequenceNumber,
			Status:         OutcomeSuccess,
		})
	}

	// One raw object per partition, written in first-seen order. Events
	// inside a partition keep batch arrival order.
	written := 0
	for _, key := range order {
		group := groups[key]
		objectKey := partition.RawObjectKey(key, group.firstSequence)

		body, err := marshalNDJSON(group.events)
		if err != nil {
			p.failGroup(outcomes, group, objectKey, err, &stats)
			continue
		}

		start := p.now()
		if err := p.store.Put(ctx, objectKey, body); err != nil {
			metrics.WriteErrors.Inc()
			p.failGroup(outcomes, group, objectKey, err, &stats)
			p.logger.ErrorContext(ctx, "raw object write failed",
				logging.ObjectKey(objectKey), logging.Error(err))
			continue
		}
		metrics.WriteDuration.Observe(p.now().Sub(start).Seconds())
		metrics.ObjectsWritten.Inc()

		written++
		stats.Success += len(group.events)
		metrics.RecordsTotal.WithLabelValues("success").Add(float64(len(group.events)))
		p.logger.InfoContext(ctx, "raw object written",
			logging.ObjectKey(objectKey),
			logging.Partition(key),
			logging.Records(len(group.events)))
	}
	stats.Partitions = written

	// All writes failing while there was something to write means no
	// output was produced: surface a whole-batch failure for retry.
	if written == 0 && len(order) > 0 {
		return &Result{Outcomes: outcomes, Stats: stats},
			fmt.Errorf("batch %s: all %d partition writes failed", batchID, len(order))
	}

	meta := models.NewBatchMetadata(batchID, shardID, stats, p.now())
	if err := p.meta.Append(ctx, &meta); err != nil {
		metrics.WriteErrors.Inc()
		return &Result{Outcomes: outcomes, Stats: stats},
			&models.WriteError{Key: batchID, Cause: err}
	}

	metrics.BatchesTotal.Inc()
	p.logger.InfoContext(ctx, "batch processed",
		logging.ShardID(shardID),
		logging.Records(stats.Total),
		logging.Failed(stats.Failed),
		"partitions", stats.Partitions)

	return &Result{Outcomes: outcomes, Stats: stats}, nil
}

// failGroup marks every record of a partition group write-failed.
func (p *Processor) failGroup(outcomes []Outcome, group *partitionGroup, objectKey string, err error, stats *models.BatchStats) {
	writeErr := &models.WriteError{Key: objectKey, Cause: err}
	for _, event := range group.events {
		for i := range outcomes {
			if outcomes[i].SequenceNumber == event.SequenceNumber &&
				outcomes[i].Status == OutcomeSuccess {
				outcomes[i].Status = OutcomeWriteFailed
				outcomes[i].Err = writeErr
				break
			}
		}
	}
	stats.Failed += len(group.events)
}

// marshalNDJSON serializes events as newline-delimited JSON.
func marshalNDJSON(events []models.Event) ([]byte, error) {
	var buf bytes.Buffer
	for _, event := range events {
		line, err := json.Marshal(event)
		if err != nil {
			return nil, err
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}
