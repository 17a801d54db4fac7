package logging

import "log/slog"

// Common field names for consistent logging across services.
const (
	FieldService   = "service"
	FieldBatchID   = "batch_id"
	FieldShardID   = "shard_id"
	FieldObjectKey = "object_key"
	FieldPartition = "partition"
	FieldRecords   = "records"
	FieldFailed    = "failed"
	FieldError     = "error"
	FieldSubject   = "subject"
	FieldReason    = "reason"
)

// Service returns a slog attribute for the service name.
func Service(name string) slog.Attr {
	return slog.String(FieldService, name)
}

// BatchID returns a slog attribute for the batch ID.
func BatchID(id string) slog.Attr {
	return slog.String(FieldBatchID, id)
}

// ShardID returns a slog attribute for the shard ID.
func ShardID(id string) slog.Attr {
	return slog.String(FieldShardID, id)
}

// ObjectKey returns a slog attribute for an object-store key.
func ObjectKey(key string) slog.Attr {
	return slog.String(FieldObjectKey, key)
}

// Partition returns a slog attribute for a partition key.
func Partition(key string) slog.Attr {
	return slog.String(FieldPartition, key)
}

// Records returns a slog attribute for a record count.
func Records(n int) slog.Attr {
	return slog.Int(FieldRecords, n)
}

// Failed returns a slog attribute for a failed-record count.
func Failed(n int) slog.Attr {
	return slog.Int(FieldFailed, n)
}

// Error returns a slog attribute for an error.
func Error(err error) slog.Attr {
	return slog.String(FieldError, err.Error())
}

// Subject returns a slog attribute for a message subject.
func Subject(subject string) slog.Attr {
	return slog.String(FieldSubject, subject)
}

// Reason returns a slog attribute for a failure reason.
func Reason(reason string) slog.Attr {
	return slog.String(FieldReason, reason)
}
