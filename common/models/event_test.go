package models

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("parse time %q: %v", s, err)
	}
	return ts
}

func TestEvent_UnmarshalSplitsPayload(t *testing.T) {
	raw := `{"timestamp":"2024-01-15T10:30:00Z","event_type":"transaction","amount":1500,"currency":"USD"}`

	var ev Event
	require.NoError(t, json.Unmarshal([]byte(raw), &ev))

	assert.Equal(t, "2024-01-15T10:30:00Z", ev.Timestamp)
	assert.Equal(t, EventTypeTransaction, ev.Type)
	assert.Equal(t, map[string]any{"amount": float64(1500), "currency": "USD"}, ev.Payload)
	assert.Empty(t, ev.SequenceNumber)
	assert.Empty(t, ev.PartitionKey)
}

func TestEvent_RoundTripPreservesUnknownFields(t *testing.T) {
	raw := `{"timestamp":"2024-01-15T10:30:00Z","event_type":"metric","value":250,"host":"node-7","tags":["a","b"]}`

	var ev Event
	require.NoError(t, json.Unmarshal([]byte(raw), &ev))
	ev.SequenceNumber = "42"
	ev.PartitionKey = "shard-1"

	data, err := json.Marshal(ev)
	require.NoError(t, err)

	var again Event
	require.NoError(t, json.Unmarshal(data, &again))

	assert.Equal(t, ev.Timestamp, again.Timestamp)
	assert.Equal(t, ev.Type, again.Type)
	assert.Equal(t, ev.Payload, again.Payload)
	assert.Equal(t, "42", again.SequenceNumber)
	assert.Equal(t, "shard-1", again.PartitionKey)
}

func TestEvent_Float(t *testing.T) {
	ev := Event{Payload: map[string]any{"amount": float64(12.5), "note": "text"}}

	f, ok := ev.Float("amount")
	assert.True(t, ok)
	assert.Equal(t, 12.5, f)

	_, ok = ev.Float("note")
	assert.False(t, ok)

	_, ok = ev.Float("missing")
	assert.False(t, ok)
}

func TestEvent_RecordIDDeterministic(t *testing.T) {
	raw := `{"timestamp":"2024-01-15T10:30:00Z","event_type":"transaction","amount":1500}`

	var a, b Event
	require.NoError(t, json.Unmarshal([]byte(raw), &a))
	require.NoError(t, json.Unmarshal([]byte(raw), &b))

	idA, err := a.RecordID()
	require.NoError(t, err)
	idB, err := b.RecordID()
	require.NoError(t, err)

	assert.Equal(t, idA, idB)
	assert.Len(t, idA, 16)

	// Different content yields a different ID.
	b.Payload["amount"] = float64(1501)
	idC, err := b.RecordID()
	require.NoError(t, err)
	assert.NotEqual(t, idA, idC)
}

func TestParseEventType(t *testing.T) {
	for _, known := range EventTypes {
		got, err := ParseEventType(string(known))
		require.NoError(t, err)
		assert.Equal(t, known, got)
	}

	_, err := ParseEventType("clickstream")
	assert.Error(t, err)
}

func TestErrorTaxonomy(t *testing.T) {
	cause := errors.New("boom")

	var decodeErr error = &DecodeError{Cause: cause}
	var de *DecodeError
	assert.True(t, errors.As(decodeErr, &de))
	assert.ErrorIs(t, decodeErr, cause)

	var validationErr error = &ValidationError{Field: "event_type", Reason: "missing"}
	var ve *ValidationError
	require.True(t, errors.As(validationErr, &ve))
	assert.Equal(t, "event_type", ve.Field)
	assert.Contains(t, validationErr.Error(), "event_type")

	var writeErr error = &WriteError{Key: "raw/x.json", Cause: cause}
	var we *WriteError
	assert.True(t, errors.As(writeErr, &we))
	assert.ErrorIs(t, writeErr, cause)

	var readErr error = &ReadError{Key: "raw/x.json", Cause: cause}
	var re *ReadError
	assert.True(t, errors.As(readErr, &re))
	assert.ErrorIs(t, readErr, cause)
}

func TestNewBatchMetadata_CountsAndTTL(t *testing.T) {
	stats := BatchStats{Total: 10, Success: 7, Failed: 3, Partitions: 2}
	md := NewBatchMetadata("batch-1", "shard-0", stats, mustTime(t, "2024-01-15T10:30:00Z"))

	assert.Equal(t, md.TotalRecords, md.SuccessRecords+md.FailedRecords)
	assert.Equal(t, 2, md.PartitionsCount)
	assert.Equal(t, md.ProcessedAt.Add(MetadataTTL), md.TTL)
}
