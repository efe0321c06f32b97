package aggregate

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/gyaneshwarpardhi/fluxstream/internal/event"
	"github.com/gyaneshwarpardhi/fluxstream/internal/window"
)

// ErrUnknownType is returned for an unsupported aggregation type.
var ErrUnknownType = errors.New("unknown aggregation type")

// Type discriminates the supported reductions.
type Type string

const (
	TypeCount      Type = "count"
	TypeSum        Type = "sum"
	TypeAvg        Type = "avg"
	TypePercentile Type = "percentile"
)

// Config parameterizes one aggregation pass. Field is the event value field
// reduced by sum/avg/percentile; Percentile is in [0,1]; GroupBy partitions
// each window by the canonical composite key of the named fields.
type Config struct {
	Type       Type
	Field      string
	Percentile float64
	GroupBy    []string
}

// Result holds one window's aggregation output. Groups maps group key to
// the numeric result; the ungrouped case uses event.UngroupedKey. Counts
// carries the number of numeric samples behind each group — an avg of an
// empty numeric set reports 0 with Counts[group] == 0 as the zero-count
// flag.
type Result struct {
	WindowKey string             `json:"window_key"`
	Groups    map[string]float64 `json:"groups"`
	Counts    map[string]int     `json:"counts"`
}

// Apply reduces every window to a Result, iterating windows in start order
// so output is deterministic. Non-numeric and missing field values are
// excluded from sum/avg/percentile, never coerced to zero.
func Apply(windows map[string]*window.Window, cfg Config) ([]Result, error) {
	if err := validate(cfg); err != nil {
		return nil, err
	}
	results := make([]Result, 0, len(windows))
	for _, key := range window.Keys(windows) {
		w := windows[key]
		res := Result{
			WindowKey: key,
			Groups:    make(map[string]float64),
			Counts:    make(map[string]int),
		}
		for groupKey, group := range partition(w.Events, cfg.GroupBy) {
			value, n := reduce(group, cfg)
			res.Groups[groupKey] = value
			res.Counts[groupKey] = n
		}
		results = append(results, res)
	}
	return results, nil
}

func validate(cfg Config) error {
	switch cfg.Type {
	case TypeCount:
		return nil
	case TypeSum, TypeAvg:
		if cfg.Field == "" {
			return fmt.Errorf("aggregation %s: field is required", cfg.Type)
		}
		return nil
	case TypePercentile:
		if cfg.Field == "" {
			return fmt.Errorf("aggregation percentile: field is required")
		}
		if cfg.Percentile < 0 || cfg.Percentile > 1 {
			return fmt.Errorf("aggregation percentile: value must be in [0,1], got %g", cfg.Percentile)
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownType, cfg.Type)
	}
}

// partition splits a window's events by composite group key. Events missing
// any groupBy field are skipped; with no groupBy everything lands under the
// ungrouped key.
func partition(events []*event.StreamEvent, groupBy []string) map[string][]*event.StreamEvent {
	groups := make(map[string][]*event.StreamEvent)
	if len(groupBy) == 0 {
		groups[event.UngroupedKey] = events
		return groups
	}
	for _, ev := range events {
		key, ok := event.CompositeKey(ev, groupBy)
		if !ok {
			continue
		}
		groups[key] = append(groups[key], ev)
	}
	return groups
}

// reduce computes the configured reduction and returns it alongside the
// sample count that produced it.
func reduce(events []*event.StreamEvent, cfg Config) (float64, int) {
	if cfg.Type == TypeCount {
		return float64(len(events)), len(events)
	}
	values := numericValues(events, cfg.Field)
	switch cfg.Type {
	case TypeSum:
		return sum(values), len(values)
	case TypeAvg:
		if len(values) == 0 {
			return 0, 0
		}
		return sum(values) / float64(len(values)), len(values)
	case TypePercentile:
		return percentile(values, cfg.Percentile), len(values)
	}
	return 0, 0
}

func numericValues(events []*event.StreamEvent, field string) []float64 {
	values := make([]float64, 0, len(events))
	for _, ev := range events {
		if v, ok := ev.NumericField(field); ok {
			values = append(values, v)
		}
	}
	return values
}

func sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}

// percentile uses the nearest-rank method: values sorted ascending, index
// floor(p*(n-1)). With n=100 values 0..99 and p=0.95 the result is 94.
func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	idx := int(math.Floor(p * float64(len(sorted)-1)))
	return sorted[idx]
}
