// Package codec decodes transport-encoded stream records into validated
// events. Decoding and validation are pure: invalid records are classified
// and returned, never written anywhere.
package codec

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/eventlake-systems/eventlake/common/models"
	"github.com/eventlake-systems/eventlake/common/partition"
)

// Numeric payload fields checked per event type. Presence is optional;
// a present field of the wrong type fails validation.
var numericFields = map[models.EventType]string{
	models.EventTypeTransaction: "amount",
	models.EventTypeUserAction:  "session_duration",
	models.EventTypeMetric:      "value",
}

// Codec turns raw stream records into validated events.
type Codec struct {
	validationEnabled bool
}

// New creates a codec. With validation disabled, records are still decoded
// and stamped with provenance but schema checks are skipped.
func New(validationEnabled bool) *Codec {
	return &Codec{validationEnabled: validationEnabled}
}

// Decode produces a validated Event from one stream record, or a classified
// failure: *models.DecodeError for malformed transport payloads,
// *models.ValidationError for schema violations.
func (c *Codec) Decode(record models.StreamRecord) (models.Event, error) {
	raw, err := base64.StdEncoding.DecodeString(string(record.EncodedPayload))
	if err != nil {
		return models.Event{}, &models.DecodeError{Cause: fmt.Errorf("base64: %w", err)}
	}

	var event models.Event
	if err := json.Unmarshal(raw, &event); err != nil {
		return models.Event{}, &models.DecodeError{Cause: fmt.Errorf("json: %w", err)}
	}

	if c.validationEnabled {
		if err := validate(event); err != nil {
			return models.Event{}, err
		}
	}

	// Stamp stream provenance. The incoming payload never carries these;
	// the wire fields are reserved for the codec.
	event.SequenceNumber = record.SequenceNumber
	event.PartitionKey = record.PartitionKeyHint

	return event, nil
}

// validate checks the event schema: required fields, known type, and
// numeric payload fields when present.
func validate(event models.Event) error {
	if event.Timestamp == "" {
		return &models.ValidationError{Field: "timestamp", Reason: "required"}
	}
	if _, err := partition.ParseTimestamp(event.Timestamp); err != nil {
		return &models.ValidationError{Field: "timestamp", Reason: "not ISO-8601"}
	}
	if event.Type == "" {
		return &models.ValidationError{Field: "event_type", Reason: "required"}
	}
	if !event.Type.Valid() {
		return &models.ValidationError{
			Field:  "event_type",
			Reason: fmt.Sprintf("unknown value %q", event.Type),
		}
	}

	if field, ok := numericFields[event.Type]; ok && event.HasField(field) {
		if _, ok := event.Float(field); !ok {
			return &models.ValidationError{Field: field, Reason: "must be numeric"}
		}
	}

	return nil
}
