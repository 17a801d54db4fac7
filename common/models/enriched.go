package models

import "time"

// Envelope constants stamped on every enriched record.
const (
	RecordSource     = "event-stream"
	StageTransformed = "transformed"
	TransformVersion = "1.0"
)

// RecordMetadata describes where an enriched record came from and which
// transformation produced it.
type RecordMetadata struct {
	Source  string `json:"source"`
	Stage   string `json:"stage"`
	Version string `json:"version"`
}

// EnrichedRecord wraps one original event with its derived fields. The
// original event is carried verbatim; RecordID is re-derivable from it, so
// transforming the same raw object twice produces identical records apart
// from ProcessedTimestamp.
type EnrichedRecord struct {
	Original           Event          `json:"original"`
	EnrichedFields     map[string]any `json:"enriched_fields"`
	RecordID           string         `json:"record_id"`
	ProcessedTimestamp time.Time      `json:"processed_timestamp"`
	Metadata           RecordMetadata `json:"metadata"`
}
