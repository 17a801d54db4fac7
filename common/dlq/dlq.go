// Package dlq dead-letters work that failed past the pipeline's retry
// bound so it can be inspected and replayed by operators.
package dlq

import (
	"context"
	"time"
)

// Pipeline stages that dead-letter work.
const (
	StageIngest    = "ingest"
	StageTransform = "transform"
)

// Failure reasons used in DLQ subjects.
const (
	ReasonWriteFailed  = "write_failed"
	ReasonReadFailed   = "read_failed"
	ReasonDecodeFailed = "decode_failed"
	ReasonExhausted    = "exhausted"
)

// Entry is one dead-lettered unit of work. Reference identifies the work:
// a stream sequence number for ingestion, an object key for transformation.
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	Stage     string    `json:"stage"`
	Reference string    `json:"reference"`
	Reason    string    `json:"reason"`
	Error     string    `json:"error"`
	Payload   []byte    `json:"payload,omitempty"`
	Attempts  int       `json:"attempts"`
}

// Writer records dead-lettered work.
type Writer interface {
	Write(ctx context.Context, entry Entry) error
}
