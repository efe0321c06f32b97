package transform

import (
	"errors"
	"fmt"

	"github.com/gyaneshwarpardhi/fluxstream/internal/event"
)

// ErrUnknownType is returned for an unsupported transform type.
var ErrUnknownType = errors.New("unknown transform type")

// Type discriminates the stateless per-event transforms.
type Type string

const (
	TypeMap     Type = "map"
	TypeFilter  Type = "filter"
	TypeFlatMap Type = "flatMap"
)

// MapFunc produces exactly one output event per input event.
type MapFunc func(*event.StreamEvent) *event.StreamEvent

// Predicate decides whether an event passes a filter.
type Predicate func(*event.StreamEvent) bool

// FlatMapFunc produces zero or more output events per input event.
type FlatMapFunc func(*event.StreamEvent) []*event.StreamEvent

// Config pairs a transform type with its function. Exactly the function
// matching Type must be set.
type Config struct {
	Type    Type
	Map     MapFunc
	Filter  Predicate
	FlatMap FlatMapFunc
}

// Apply runs a pure, stateless, order-preserving transform over the batch.
// map is 1:1, filter 0:1, flatMap 1:N with per-event output lists
// concatenated in input order.
func Apply(events []*event.StreamEvent, cfg Config) ([]*event.StreamEvent, error) {
	switch cfg.Type {
	case TypeMap:
		if cfg.Map == nil {
			return nil, fmt.Errorf("transform map: function is required")
		}
		out := make([]*event.StreamEvent, len(events))
		for i, ev := range events {
			out[i] = cfg.Map(ev)
		}
		return out, nil
	case TypeFilter:
		if cfg.Filter == nil {
			return nil, fmt.Errorf("transform filter: predicate is required")
		}
		out := make([]*event.StreamEvent, 0, len(events))
		for _, ev := range events {
			if cfg.Filter(ev) {
				out = append(out, ev)
			}
		}
		return out, nil
	case TypeFlatMap:
		if cfg.FlatMap == nil {
			return nil, fmt.Errorf("transform flatMap: function is required")
		}
		var out []*event.StreamEvent
		for _, ev := range events {
			out = append(out, cfg.FlatMap(ev)...)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, cfg.Type)
	}
}

// Map applies fn to every event, preserving order.
func Map(events []*event.StreamEvent, fn MapFunc) []*event.StreamEvent {
	out, _ := Apply(events, Config{Type: TypeMap, Map: fn})
	return out
}

// Filter keeps events satisfying the predicate, preserving order.
func Filter(events []*event.StreamEvent, fn Predicate) []*event.StreamEvent {
	out, _ := Apply(events, Config{Type: TypeFilter, Filter: fn})
	return out
}

// FlatMap expands each event into zero or more events.
func FlatMap(events []*event.StreamEvent, fn FlatMapFunc) []*event.StreamEvent {
	out, _ := Apply(events, Config{Type: TypeFlatMap, FlatMap: fn})
	return out
}
