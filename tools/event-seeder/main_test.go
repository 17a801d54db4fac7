package main

import (
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/eventlake-systems/eventlake/common/models"
)

func TestGenerateEventHasRequiredFields(t *testing.T) {
	for _, eventType := range models.EventTypes {
		for i := 0; i < 100; i++ {
			event := generateEvent(eventType, 0, 0)

			if event["event_type"] != string(eventType) {
				t.Errorf("Expected event_type %q, got %v", eventType, event["event_type"])
			}
			ts, ok := event["timestamp"].(string)
			if !ok {
				t.Fatalf("%s: timestamp missing or wrong type", eventType)
			}
			if _, err := time.Parse(time.RFC3339, ts); err != nil {
				t.Errorf("%s: timestamp not RFC3339: %v", eventType, err)
			}

			switch eventType {
			case models.EventTypeTransaction:
				if _, ok := event["amount"].(float64); !ok {
					t.Error("transaction missing numeric amount")
				}
			case models.EventTypeUserAction:
				if _, ok := event["session_duration"].(float64); !ok {
					t.Error("user_action missing numeric session_duration")
				}
			case models.EventTypeMetric:
				if _, ok := event["value"].(float64); !ok {
					t.Error("metric missing numeric value")
				}
			case models.EventTypeSystemEvent:
				if event["component"] == nil {
					t.Error("system_event missing component")
				}
			}
		}
	}
}

func TestGenerateEventBadRatio(t *testing.T) {
	missing := 0
	for i := 0; i < 1000; i++ {
		event := generateEvent(models.EventTypeMetric, 0, 0.5)
		if _, ok := event["timestamp"]; !ok {
			missing++
		}
	}
	// With ratio 0.5 over 1000 samples, anything near half is fine.
	if missing < 350 || missing > 650 {
		t.Errorf("Expected roughly half the events without timestamps, got %d/1000", missing)
	}
}

func TestEncodeEventRoundTrips(t *testing.T) {
	event := generateEvent(models.EventTypeTransaction, 0, 0)

	payload, err := encodeEvent(event)
	if err != nil {
		t.Fatalf("encodeEvent: %v", err)
	}

	decoded, err := base64.StdEncoding.DecodeString(string(payload))
	if err != nil {
		t.Fatalf("payload is not valid base64: %v", err)
	}

	var got map[string]interface{}
	if err := json.Unmarshal(decoded, &got); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}
	if got["event_type"] != "transaction" {
		t.Errorf("Expected event_type transaction, got %v", got["event_type"])
	}
}

func TestParseEventTypesSkipsUnknown(t *testing.T) {
	types := parseEventTypes("transaction,clickstream,metric")
	if len(types) != 2 {
		t.Fatalf("Expected 2 valid types, got %v", types)
	}
	if types[0] != models.EventTypeTransaction || types[1] != models.EventTypeMetric {
		t.Errorf("Unexpected types: %v", types)
	}
}
