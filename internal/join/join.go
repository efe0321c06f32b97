package join

import (
	"errors"
	"fmt"

	"github.com/gyaneshwarpardhi/fluxstream/internal/event"
	"github.com/gyaneshwarpardhi/fluxstream/internal/window"
)

// ErrUnknownType is returned for an unsupported join type.
var ErrUnknownType = errors.New("unknown join type")

// Type discriminates the four join semantics.
type Type string

const (
	TypeInner Type = "inner"
	TypeLeft  Type = "left"
	TypeRight Type = "right"
	TypeFull  Type = "full"
)

// Config parameterizes a stream join: the key fields on each side and the
// shared window both sides are partitioned with before pairing.
type Config struct {
	Type     Type
	LeftKey  string
	RightKey string
	Window   window.Config
}

// Record pairs one left event with one right event on a shared key.
// Exactly one side may be nil under left/right/full semantics.
type Record struct {
	JoinKey string             `json:"join_key"`
	Left    *event.StreamEvent `json:"left,omitempty"`
	Right   *event.StreamEvent `json:"right,omitempty"`
}

// Streams joins two event sequences within shared time windows. Both sides
// are partitioned with cfg.Window; within each window the right side is
// indexed by RightKey and probed with each left event's LeftKey. Key
// equality is on the string representation of the field value, so numeric
// and string keys from mismatched producers still pair up. An event
// missing its key field is a non-match: it pairs with nothing but is still
// emitted with an absent partner under left/right/full semantics.
func Streams(left, right []*event.StreamEvent, cfg Config) ([]Record, error) {
	switch cfg.Type {
	case TypeInner, TypeLeft, TypeRight, TypeFull:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, cfg.Type)
	}
	leftWindows, err := window.Partition(left, cfg.Window)
	if err != nil {
		return nil, fmt.Errorf("join: partition left: %w", err)
	}
	rightWindows, err := window.Partition(right, cfg.Window)
	if err != nil {
		return nil, fmt.Errorf("join: partition right: %w", err)
	}

	var records []Record
	for _, key := range unionKeys(leftWindows, rightWindows) {
		var lw, rw []*event.StreamEvent
		if w, ok := leftWindows[key]; ok {
			lw = w.Events
		}
		if w, ok := rightWindows[key]; ok {
			rw = w.Events
		}
		records = append(records, joinWindow(lw, rw, cfg)...)
	}
	return records, nil
}

// joinWindow pairs one window pane's two sides. Right events are indexed
// per key in window order and consumed as they match, so each right event
// pairs at most once: an inner join never emits more records than either
// side holds, and a left join still emits every left event (unmatched
// lefts go out one-sided).
func joinWindow(left, right []*event.StreamEvent, cfg Config) []Record {
	index := make(map[string][]*event.StreamEvent)
	for _, ev := range right {
		if k, ok := keyString(ev, cfg.RightKey); ok {
			index[k] = append(index[k], ev)
		}
	}

	var records []Record
	matchedRight := make(map[*event.StreamEvent]bool)
	for _, lev := range left {
		k, ok := keyString(lev, cfg.LeftKey)
		if ok {
			if queue := index[k]; len(queue) > 0 {
				rev := queue[0]
				index[k] = queue[1:]
				matchedRight[rev] = true
				records = append(records, Record{JoinKey: k, Left: lev, Right: rev})
				continue
			}
		}
		if cfg.Type == TypeLeft || cfg.Type == TypeFull {
			records = append(records, Record{JoinKey: k, Left: lev})
		}
	}
	if cfg.Type == TypeRight || cfg.Type == TypeFull {
		for _, rev := range right {
			if matchedRight[rev] {
				continue
			}
			k, _ := keyString(rev, cfg.RightKey)
			records = append(records, Record{JoinKey: k, Right: rev})
		}
	}
	return records
}

// Enrich joins a live sequence against a static lookup table: always left
// semantics, no windowing, since the table is immediately available. Table
// rows are matched on the string representation of tableKey against each
// event's sourceField; matched rows are wrapped as synthetic right-side
// events carrying the row as their value.
func Enrich(events []*event.StreamEvent, table []map[string]interface{}, sourceField, tableKey string) []Record {
	index := make(map[string]map[string]interface{}, len(table))
	for _, row := range table {
		if v, ok := row[tableKey]; ok {
			index[fmt.Sprintf("%v", v)] = row
		}
	}

	records := make([]Record, 0, len(events))
	for _, ev := range events {
		k, ok := keyString(ev, sourceField)
		if !ok {
			records = append(records, Record{Left: ev})
			continue
		}
		rec := Record{JoinKey: k, Left: ev}
		if row, found := index[k]; found {
			rec.Right = &event.StreamEvent{
				Key:       k,
				Value:     row,
				Timestamp: ev.Timestamp,
			}
		}
		records = append(records, rec)
	}
	return records
}

func keyString(ev *event.StreamEvent, field string) (string, bool) {
	v, ok := ev.Field(field)
	if !ok {
		return "", false
	}
	return fmt.Sprintf("%v", v), true
}

func unionKeys(a, b map[string]*window.Window) []string {
	merged := make(map[string]*window.Window, len(a)+len(b))
	for k, w := range a {
		merged[k] = w
	}
	for k, w := range b {
		if _, ok := merged[k]; !ok {
			merged[k] = w
		}
	}
	return window.Keys(merged)
}
