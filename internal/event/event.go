package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// ErrInvalidEvent is returned when an event fails ingestion validation.
var ErrInvalidEvent = errors.New("invalid event")

// UngroupedKey is the reserved group key for aggregations without a groupBy
// clause. CompositeKey always serializes with surrounding brackets, so the
// two can never collide.
const UngroupedKey = "*"

// StreamEvent is the canonical record flowing through every stage.
// Timestamp is milliseconds since epoch; ordering within a sequence is by
// Timestamp, not arrival order. Events are treated as immutable once
// created — transforms produce new events rather than mutating in place.
type StreamEvent struct {
	Key       string                 `json:"key"`
	Value     map[string]interface{} `json:"value"`
	Timestamp int64                  `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Validate rejects malformed events at ingestion. A missing timestamp is an
// error here, never silently defaulted — assigning "now" is a connector
// concern.
func (e *StreamEvent) Validate() error {
	if e == nil {
		return fmt.Errorf("%w: nil event", ErrInvalidEvent)
	}
	if e.Timestamp <= 0 {
		return fmt.Errorf("%w: missing or non-positive timestamp", ErrInvalidEvent)
	}
	return nil
}

// Type returns the pattern type tag from Metadata["type"], or "" when unset.
func (e *StreamEvent) Type() string {
	if e.Metadata == nil {
		return ""
	}
	if t, ok := e.Metadata["type"].(string); ok {
		return t
	}
	return ""
}

// Field resolves a named field from Value first, then Metadata.
func (e *StreamEvent) Field(name string) (interface{}, bool) {
	if e.Value != nil {
		if v, ok := e.Value[name]; ok {
			return v, true
		}
	}
	if e.Metadata != nil {
		if v, ok := e.Metadata[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// NumericField resolves a field and coerces it to float64. Non-numeric and
// missing values return false; aggregations exclude them rather than
// coercing to zero.
func (e *StreamEvent) NumericField(name string) (float64, bool) {
	v, ok := e.Field(name)
	if !ok {
		return 0, false
	}
	return ToFloat64(v)
}

// ToFloat64 coerces any Go numeric value to float64.
func ToFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// CompositeKey builds the canonical group key for an ordered set of fields:
// the JSON encoding of the array of field values, in caller order. Two
// events with identical field values always produce the same key regardless
// of map identity. The second return is false when any field is absent.
func CompositeKey(e *StreamEvent, fields []string) (string, bool) {
	if len(fields) == 0 {
		return UngroupedKey, true
	}
	values := make([]interface{}, 0, len(fields))
	for _, f := range fields {
		v, ok := e.Field(f)
		if !ok {
			return "", false
		}
		values = append(values, v)
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", false
	}
	return string(data), true
}

// SortByTimestamp stable-sorts events in place by ascending timestamp.
func SortByTimestamp(events []*StreamEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp < events[j].Timestamp
	})
}

// SortedCopy returns a timestamp-sorted copy, leaving the input untouched.
func SortedCopy(events []*StreamEvent) []*StreamEvent {
	out := make([]*StreamEvent, len(events))
	copy(out, events)
	SortByTimestamp(out)
	return out
}
