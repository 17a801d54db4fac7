// Package models defines the core data types shared by the ingestion and
// transformation services: stream records, validated events, enriched
// records, batch metadata, and the pipeline error taxonomy.
package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// EventType is the closed set of event categories the pipeline accepts.
// The codec rejects anything outside this set, so downstream stages may
// dispatch on it exhaustively.
type EventType string

const (
	EventTypeUserAction  EventType = "user_action"
	EventTypeTransaction EventType = "transaction"
	EventTypeMetric      EventType = "metric"
	EventTypeSystemEvent EventType = "system_event"
)

// EventTypes lists all valid event types.
var EventTypes = []EventType{
	EventTypeUserAction,
	EventTypeTransaction,
	EventTypeMetric,
	EventTypeSystemEvent,
}

// ParseEventType converts a raw string into an EventType.
func ParseEventType(s string) (EventType, error) {
	t := EventType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown event_type: %q", s)
	}
	return t, nil
}

// Valid reports whether t is one of the known event types.
func (t EventType) Valid() bool {
	switch t {
	case EventTypeUserAction, EventTypeTransaction, EventTypeMetric, EventTypeSystemEvent:
		return true
	}
	return false
}

// StreamRecord is one opaque record as delivered by the stream boundary.
// EncodedPayload is the transport-encoded (base64) event body; the other
// fields are stream-assigned provenance.
type StreamRecord struct {
	EncodedPayload   []byte `json:"encoded_payload"`
	SequenceNumber   string `json:"sequence_number"`
	PartitionKeyHint string `json:"partition_key_hint"`
}

// Event is one validated event. It is immutable once it leaves the codec:
// downstream stages only wrap it, never mutate it.
//
// The JSON form is flat: timestamp and event_type alongside the
// type-specific payload fields, plus the stream provenance stamped by the
// codec. Unknown payload fields survive a marshal/unmarshal round trip.
type Event struct {
	Timestamp string
	Type      EventType
	Payload   map[string]any

	// Provenance assigned by the codec from the stream record.
	SequenceNumber string
	PartitionKey   string
}

// reserved field names that live outside Payload.
const (
	fieldTimestamp      = "timestamp"
	fieldEventType      = "event_type"
	fieldSequenceNumber = "sequence_number"
	fieldPartitionKey   = "partition_key"
)

// MarshalJSON flattens the event back into its wire form. Map marshaling
// sorts keys, so the output doubles as the canonical serialization.
func (e Event) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(e.Payload)+4)
	for k, v := range e.Payload {
		m[k] = v
	}
	m[fieldTimestamp] = e.Timestamp
	m[fieldEventType] = string(e.Type)
	if e.SequenceNumber != "" {
		m[fieldSequenceNumber] = e.SequenceNumber
	}
	if e.PartitionKey != "" {
		m[fieldPartitionKey] = e.PartitionKey
	}
	return json.Marshal(m)
}

// UnmarshalJSON splits the flat wire form into known fields and payload.
// It performs no schema validation; that is the codec's job.
func (e *Event) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}

	if v, ok := m[fieldTimestamp].(string); ok {
		e.Timestamp = v
	}
	if v, ok := m[fieldEventType].(string); ok {
		e.Type = EventType(v)
	}
	if v, ok := m[fieldSequenceNumber].(string); ok {
		e.SequenceNumber = v
	}
	if v, ok := m[fieldPartitionKey].(string); ok {
		e.PartitionKey = v
	}

	delete(m, fieldTimestamp)
	delete(m, fieldEventType)
	delete(m, fieldSequenceNumber)
	delete(m, fieldPartitionKey)
	e.Payload = m

	return nil
}

// Float returns the named payload field as a float64. JSON numbers decode
// to float64, so a false return means the field is absent or not numeric.
func (e Event) Float(field string) (float64, bool) {
	v, ok := e.Payload[field]
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	return f, ok
}

// HasField reports whether the payload carries the named field.
func (e Event) HasField(field string) bool {
	_, ok := e.Payload[field]
	return ok
}

// RecordID derives the content-addressed identifier for this event:
// sha256 over the canonical JSON serialization, truncated to 16 hex
// characters. Identical event content always yields the same ID, which is
// what makes re-transformation idempotent.
func (e Event) RecordID() (string, error) {
	canonical, err := e.MarshalJSON()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])[:16], nil
}
