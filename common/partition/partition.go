// Package partition derives deterministic storage keys for raw and
// processed objects from an event's type and timestamp.
package partition

import (
	"fmt"
	"strings"
	"time"

	"github.com/eventlake-systems/eventlake/common/models"
)

// Key areas inside the object store bucket.
const (
	RawPrefix       = "raw/"
	ProcessedPrefix = "processed/"

	ObjectSuffix        = ".json"
	transformedSuffix   = "_transformed.json"
	rawObjectNamePrefix = "data_"
)

// timestamp layouts accepted in event payloads. The first is canonical;
// the second covers zone-less ISO-8601, interpreted as UTC.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
}

// ParseTimestamp parses an event timestamp into UTC.
func ParseTimestamp(ts string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, ts); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp: %q", ts)
}

// Key derives the partition path segment for an event type and timestamp:
//
//	event_type=<t>/year=<Y>/month=<M>/day=<D>/hour=<H>
//
// Same inputs always yield the same key.
func Key(eventType models.EventType, timestamp string) (string, error) {
	t, err := ParseTimestamp(timestamp)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("event_type=%s/year=%04d/month=%02d/day=%02d/hour=%02d",
		eventType, t.Year(), int(t.Month()), t.Day(), t.Hour()), nil
}

// RawObjectKey builds the full raw-area key for one partition's object.
// The object name is derived from the first sequence number in the
// partition group, not from wall-clock time, so retrying the same batch
// rewrites the same key with identical content.
func RawObjectKey(partitionKey, firstSequenceNumber string) string {
	name := strings.ReplaceAll(firstSequenceNumber, "/", "-")
	return RawPrefix + partitionKey + "/" + rawObjectNamePrefix + name + ObjectSuffix
}

// ProcessedObjectKey mirrors a raw object key into the processed area.
// The mapping is deterministic: re-transforming the same raw object always
// targets the same processed key.
func ProcessedObjectKey(rawKey string) string {
	key := strings.TrimPrefix(rawKey, RawPrefix)
	key = strings.TrimSuffix(key, ObjectSuffix)
	return ProcessedPrefix + key + transformedSuffix
}

// IsRawObjectKey reports whether key matches the prefix/suffix filter for
// raw objects eligible for transformation.
func IsRawObjectKey(key, prefix, suffix string) bool {
	return strings.HasPrefix(key, prefix) && strings.HasSuffix(key, suffix)
}
