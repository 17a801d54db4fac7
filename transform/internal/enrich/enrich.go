// Package enrich implements the per-event-type transformation rules:
// categorization, anomaly flags, and derived date fields.
package enrich

import (
	"github.com/eventlake-systems/eventlake/common/models"
	"github.com/eventlake-systems/eventlake/common/partition"
)

// Thresholds holds the classification breakpoints. All bounds are
// externally supplied configuration, never derived.
type Thresholds struct {
	// amount_category breakpoints: micro < Small <= small < Medium <=
	// medium < Large <= large.
	AmountSmall  float64
	AmountMedium float64
	AmountLarge  float64

	// high_value_flag is set when amount exceeds this.
	HighValueOver float64

	// session_category breakpoints (seconds).
	SessionMedium float64
	SessionLong   float64

	// value_range breakpoints. Negative values are always "negative".
	ValueLow    float64
	ValueNormal float64

	// anomaly_flag is set when value falls outside [Lower, Upper].
	AnomalyLowerBound float64
	AnomalyUpperBound float64
}

// DefaultThresholds returns the standard classification bands.
func DefaultThresholds() Thresholds {
	return Thresholds{
		AmountSmall:       10,
		AmountMedium:      100,
		AmountLarge:       1000,
		HighValueOver:     1000,
		SessionMedium:     60,
		SessionLong:       300,
		ValueLow:          10,
		ValueNormal:       100,
		AnomalyLowerBound: 0,
		AnomalyUpperBound: 100,
	}
}

// Engine applies the transformation rules. Enrich is pure: the same event
// always yields the same enrichment map.
type Engine struct {
	thresholds Thresholds
}

// New creates an engine with the given thresholds.
func New(thresholds Thresholds) *Engine {
	return &Engine{thresholds: thresholds}
}

// Enrich derives the enrichment fields for one event. Dispatch over the
// event type is exhaustive: the codec guarantees the closed set, so there
// is no default branch. Missing numeric fields classify as zero.
func (e *Engine) Enrich(event models.Event) map[string]any {
	switch event.Type {
	case models.EventTypeTransaction:
		return e.enrichTransaction(event)
	case models.EventTypeUserAction:
		return e.enrichUserAction(event)
	case models.EventTypeMetric:
		return e.enrichMetric(event)
	case models.EventTypeSystemEvent:
		return e.enrichSystemEvent(event)
	}
	// Unreachable for codec-produced events.
	return map[string]any{}
}

func (e *Engine) enrichTransaction(event models.Event) map[string]any {
	amount, _ := event.Float("amount")

	var category string
	switch {
	case amount < e.thresholds.AmountSmall:
		category = "micro"
	case amount < e.thresholds.AmountMedium:
		category = "small"
	case amount < e.thresholds.AmountLarge:
		category = "medium"
	default:
		category = "large"
	}

	return map[string]any{
		"transaction_date": datePart(event.Timestamp),
		"amount_category":  category,
		"high_value_flag":  amount > e.thresholds.HighValueOver,
	}
}

func (e *Engine) enrichUserAction(event models.Event) map[string]any {
	duration, _ := event.Float("session_duration")

	var category string
	switch {
	case duration < e.thresholds.SessionMedium:
		category = "short"
	case duration < e.thresholds.SessionLong:
		category = "medium"
	default:
		category = "long"
	}

	return map[string]any{
		"action_date":      datePart(event.Timestamp),
		"session_category": category,
	}
}

func (e *Engine) enrichMetric(event models.Event) map[string]any {
	value, _ := event.Float("value")

	var valueRange string
	switch {
	case value < 0:
		valueRange = "negative"
	case value < e.thresholds.ValueLow:
		valueRange = "low"
	case value < e.thresholds.ValueNormal:
		valueRange = "normal"
	default:
		valueRange = "high"
	}

	return map[string]any{
		"metric_date":  datePart(event.Timestamp),
		"value_range":  valueRange,
		"anomaly_flag": value < e.thresholds.AnomalyLowerBound || value > e.thresholds.AnomalyUpperBound,
	}
}

func (e *Engine) enrichSystemEvent(event models.Event) map[string]any {
	// Pass-through enrichment: date derivation only.
	return map[string]any{
		"event_date": datePart(event.Timestamp),
	}
}

// datePart extracts the date from the event's own timestamp, not from the
// processing clock, so re-transformation yields identical fields.
func datePart(timestamp string) string {
	t, err := partition.ParseTimestamp(timestamp)
	if err != nil {
		return ""
	}
	return t.Format("2006-01-02")
}
