package window

import (
	"errors"
	"fmt"
	"sort"

	"github.com/gyaneshwarpardhi/fluxstream/internal/event"
)

// ErrUnknownType is returned for an unsupported window type. The engine
// never falls back to a default algorithm.
var ErrUnknownType = errors.New("unknown window type")

// Type discriminates the windowing strategies.
type Type string

const (
	TypeTumbling Type = "tumbling"
	TypeSliding  Type = "sliding"
	TypeSession  Type = "session"
	TypeCustom   Type = "custom"
)

// Assigner is the custom-window strategy: it receives the full event list
// and returns event groups. The manager wraps each group as a Window with
// start/end derived from the group's min/max timestamps.
type Assigner interface {
	Assign(events []*event.StreamEvent) [][]*event.StreamEvent
}

// AssignerFunc adapts a function to the Assigner interface.
type AssignerFunc func(events []*event.StreamEvent) [][]*event.StreamEvent

// Assign calls f.
func (f AssignerFunc) Assign(events []*event.StreamEvent) [][]*event.StreamEvent {
	return f(events)
}

// Config selects and parameterizes a windowing strategy. All durations are
// milliseconds.
type Config struct {
	Type     Type
	Size     int64 // tumbling/sliding window length
	Slide    int64 // sliding advance; slide == size degenerates to tumbling
	Gap      int64 // session inactivity gap
	Assigner Assigner
}

// Window is a time-bounded event group. End is exclusive: events satisfy
// start <= t < end for tumbling/sliding windows. Immutable once the
// partitioning pass returns.
type Window struct {
	Start  int64                `json:"start"`
	End    int64                `json:"end"`
	Events []*event.StreamEvent `json:"events"`
}

// Key returns the window's map key, "<start>-<end>".
func (w *Window) Key() string {
	return fmt.Sprintf("%d-%d", w.Start, w.End)
}

// Partition groups a batch of events into windows. The result maps window
// key to Window. Empty input yields an empty map. Input order is
// irrelevant for tumbling and sliding placement (timestamp decides, not
// arrival order); session windowing sorts internally.
func Partition(events []*event.StreamEvent, cfg Config) (map[string]*Window, error) {
	switch cfg.Type {
	case TypeTumbling:
		if cfg.Size <= 0 {
			return nil, fmt.Errorf("tumbling window: size must be positive, got %d", cfg.Size)
		}
		return tumbling(events, cfg.Size), nil
	case TypeSliding:
		if cfg.Size <= 0 || cfg.Slide <= 0 {
			return nil, fmt.Errorf("sliding window: size and slide must be positive, got size=%d slide=%d", cfg.Size, cfg.Slide)
		}
		return sliding(events, cfg.Size, cfg.Slide), nil
	case TypeSession:
		if cfg.Gap <= 0 {
			return nil, fmt.Errorf("session window: gap must be positive, got %d", cfg.Gap)
		}
		return session(events, cfg.Gap), nil
	case TypeCustom:
		if cfg.Assigner == nil {
			return nil, fmt.Errorf("custom window: assigner is required")
		}
		return custom(events, cfg.Assigner), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, cfg.Type)
	}
}

// tumbling anchors each event at floor(t/size)*size. Every event lands in
// exactly one window; a timestamp equal to a boundary belongs to the next
// window (half-open interval).
func tumbling(events []*event.StreamEvent, size int64) map[string]*Window {
	out := make(map[string]*Window)
	for _, ev := range events {
		start := floorDiv(ev.Timestamp, size) * size
		addTo(out, start, start+size, ev)
	}
	return out
}

// sliding places an event in every slide-aligned window whose
// [start, start+size) contains its timestamp — up to ceil(size/slide)
// windows per event.
func sliding(events []*event.StreamEvent, size, slide int64) map[string]*Window {
	out := make(map[string]*Window)
	for _, ev := range events {
		t := ev.Timestamp
		// Latest aligned start that still contains t, walking back until
		// start+size no longer covers it.
		for start := floorDiv(t, slide) * slide; start+size > t; start -= slide {
			addTo(out, start, start+size, ev)
		}
	}
	return out
}

// session splits timestamp-sorted events wherever the gap to the previous
// event reaches the configured gap. Input need not be pre-sorted.
func session(events []*event.StreamEvent, gap int64) map[string]*Window {
	out := make(map[string]*Window)
	if len(events) == 0 {
		return out
	}
	sorted := event.SortedCopy(events)

	current := []*event.StreamEvent{sorted[0]}
	for _, ev := range sorted[1:] {
		prev := current[len(current)-1]
		if ev.Timestamp-prev.Timestamp >= gap {
			emitSession(out, current)
			current = nil
		}
		current = append(current, ev)
	}
	emitSession(out, current)
	return out
}

func emitSession(out map[string]*Window, group []*event.StreamEvent) {
	if len(group) == 0 {
		return
	}
	w := &Window{
		Start:  group[0].Timestamp,
		End:    group[len(group)-1].Timestamp + 1, // end is exclusive
		Events: group,
	}
	out[w.Key()] = w
}

func custom(events []*event.StreamEvent, assigner Assigner) map[string]*Window {
	out := make(map[string]*Window)
	for _, group := range assigner.Assign(events) {
		if len(group) == 0 {
			continue
		}
		minT, maxT := group[0].Timestamp, group[0].Timestamp
		for _, ev := range group[1:] {
			if ev.Timestamp < minT {
				minT = ev.Timestamp
			}
			if ev.Timestamp > maxT {
				maxT = ev.Timestamp
			}
		}
		w := &Window{Start: minT, End: maxT + 1, Events: group}
		out[w.Key()] = w
	}
	return out
}

func addTo(out map[string]*Window, start, end int64, ev *event.StreamEvent) {
	key := fmt.Sprintf("%d-%d", start, end)
	w, ok := out[key]
	if !ok {
		w = &Window{Start: start, End: end}
		out[key] = w
	}
	w.Events = append(w.Events, ev)
}

// floorDiv divides rounding toward negative infinity, so pre-epoch
// timestamps still anchor correctly.
func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

// Keys returns window keys ordered by window start (then end), giving
// callers a deterministic iteration order over the window map.
func Keys(windows map[string]*Window) []string {
	keys := make([]string, 0, len(windows))
	for k := range windows {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		wi, wj := windows[keys[i]], windows[keys[j]]
		if wi.Start != wj.Start {
			return wi.Start < wj.Start
		}
		return wi.End < wj.End
	})
	return keys
}
