// Package processor implements the object transformation pipeline: fetch a
// raw object, enrich its events line by line, write the mirrored processed
// object, and append the audit row.
package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/eventlake-systems/eventlake/common/logging"
	"github.com/eventlake-systems/eventlake/common/metadata"
	"github.com/eventlake-systems/eventlake/common/models"
	"github.com/eventlake-systems/eventlake/common/partition"
	"github.com/eventlake-systems/eventlake/common/storage"
	"github.com/eventlake-systems/eventlake/transform/internal/enrich"
	"github.com/eventlake-systems/eventlake/transform/internal/metrics"
)

// Indexer receives enriched records for analytics. Implementations must
// never fail the transformation; errors stay internal to the indexer.
type Indexer interface {
	Index(ctx context.Context, records []models.EnrichedRecord)
}

// Result summarizes one object transformation.
type Result struct {
	ProcessedKey string
	Stats        models.BatchStats
}

// Processor transforms one raw object per invocation. Stateless between
// invocations; safe for concurrent instances over distinct objects.
type Processor struct {
	engine  *enrich.Engine
	store   storage.Store
	meta    metadata.Repository
	indexer Indexer
	logger  *logging.Logger
	now     func() time.Time
}

// New creates a transformation processor. indexer may be nil.
func New(engine *enrich.Engine, store storage.Store, meta metadata.Repository, indexer Indexer, logger *logging.Logger) *Processor {
	return &Processor{
		engine:  engine,
		store:   store,
		meta:    meta,
		indexer: indexer,
		logger:  logger,
		now:     time.Now,
	}
}

// ProcessObject transforms the raw object at rawKey. A fetch failure is a
// hard failure: no processed object and no metadata row. Per-line parse
// failures are counted and skipped.
func (p *Processor) ProcessObject(ctx context.Context, rawKey string) (*Result, error) {
	// The object key doubles as the batch identity: retries of the same
	// notification produce rows tied to the same batch.
	ctx = logging.WithBatchID(ctx, rawKey)
	start := p.now()

	body, err := p.store.Get(ctx, rawKey)
	if err != nil {
		metrics.ReadErrors.Inc()
		return nil, &models.ReadError{Key: rawKey, Cause: err}
	}

	lines := strings.Split(strings.TrimRight(string(body), "\n"), "\n")
	stats := models.BatchStats{}
	records := make([]models.EnrichedRecord, 0, len(lines))
	processedAt := p.now().UTC()

	for _, line := range lines {
		if line == "" {
			continue
		}
		stats.Total++

		// Raw objects are trusted: JSON parsing only, no re-validation.
		var event models.Event
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			stats.Failed++
			metrics.RecordsTotal.WithLabelValues("parse_failed").Inc()
			p.logger.WarnContext(ctx, "unparseable raw object line",
				logging.ObjectKey(rawKey), logging.Error(err))
			continue
		}

		recordID, err := event.RecordID()
		if err != nil {
			stats.Failed++
			metrics.RecordsTotal.WithLabelValues("parse_failed").Inc()
			continue
		}

		fields := p.engine.Enrich(event)
		if flagged, ok := fields["anomaly_flag"].(bool); ok && flagged {
			metrics.AnomaliesFlagged.Inc()
		}

		records = append(records, models.EnrichedRecord{
			Original:           event,
			EnrichedFields:     fields,
			RecordID:           recordID,
			ProcessedTimestamp: processedAt,
			Metadata: models.RecordMetadata{
				Source:  models.RecordSource,
				Stage:   models.StageTransformed,
				Version: models.TransformVersion,
			},
		})
		stats.Success++
		metrics.RecordsTotal.WithLabelValues("success").Inc()
	}

	result := &Result{Stats: stats}

	// An object whose every line failed to parse still gets its audit row,
	// but there is nothing to write.
	if len(records) > 0 {
		processedKey := partition.ProcessedObjectKey(rawKey)
		body, err := marshalNDJSON(records)
		if err != nil {
			metrics.WriteErrors.Inc()
			return nil, &models.WriteError{Key: processedKey, Cause: err}
		}
		if err := p.store.Put(ctx, processedKey, body); err != nil {
			metrics.WriteErrors.Inc()
			return nil, &models.WriteError{Key: processedKey, Cause: err}
		}
		stats.Partitions = 1
		result.ProcessedKey = processedKey
		result.Stats = stats
	}

	meta := models.NewBatchMetadata(rawKey, shardFromKey(rawKey), stats, p.now())
	if err := p.meta.Append(ctx, &meta); err != nil {
		metrics.WriteErrors.Inc()
		return nil, &models.WriteError{Key: rawKey, Cause: err}
	}

	if p.indexer != nil && len(records) > 0 {
		p.indexer.Index(ctx, records)
	}

	metrics.ObjectsTotal.WithLabelValues("success").Inc()
	metrics.TransformDuration.Observe(p.now().Sub(start).Seconds())
	p.logger.InfoContext(ctx, "object transformed",
		logging.ObjectKey(rawKey),
		logging.Records(stats.Total),
		logging.Failed(stats.Failed))

	return result, nil
}

// shardFromKey derives the audit shard identity from the object key's
// first partition segment (the event_type area).
func shardFromKey(key string) string {
	key = strings.TrimPrefix(key, partition.RawPrefix)
	if i := strings.IndexByte(key, '/'); i > 0 {
		return key[:i]
	}
	return key
}

// marshalNDJSON serializes enriched records as newline-delimited JSON.
func marshalNDJSON(records []models.EnrichedRecord) ([]byte, error) {
	var buf bytes.Buffer
	for _, record := range records {
		line, err := json.Marshal(record)
		if err != nil {
			return nil, err
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}
