package cep

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gyaneshwarpardhi/fluxstream/internal/event"
)

// ErrUnknownPatternType is returned when a pattern carries an unsupported
// type string.
var ErrUnknownPatternType = errors.New("unknown pattern type")

// PatternType discriminates the two matching semantics.
type PatternType string

const (
	// PatternSequence requires stages satisfied in timestamp order.
	PatternSequence PatternType = "sequence"
	// PatternConjunction requires all stage types within the window, order
	// irrelevant.
	PatternConjunction PatternType = "conjunction"
)

// Pattern describes a multi-event temporal pattern. Stages name the event
// types (taken from Metadata["type"]) that must occur; Within bounds the
// whole match in milliseconds from the first contributing event and must
// be positive.
type Pattern struct {
	ID     string      `json:"id"`
	Type   PatternType `json:"type"`
	Stages []string    `json:"stages"`
	Within int64       `json:"within"`
}

// Match records one completed pattern occurrence. MatchedAt is the
// timestamp of the last contributing event.
type Match struct {
	PatternID string               `json:"pattern_id"`
	Events    []*event.StreamEvent `json:"events"`
	MatchedAt int64                `json:"matched_at"`
}

// Engine matches registered patterns against event batches. Registration
// is the only cross-call state; each ProcessEvents call is a self-contained
// scan over its input.
type Engine struct {
	mu       sync.RWMutex
	patterns map[string]*Pattern
}

// NewEngine creates an empty CEP engine.
func NewEngine() *Engine {
	return &Engine{patterns: make(map[string]*Pattern)}
}

// RegisterPattern stores a pattern by ID, replacing any previous pattern
// with the same ID.
func (e *Engine) RegisterPattern(p *Pattern) error {
	if p.ID == "" {
		return fmt.Errorf("pattern id is required")
	}
	if len(p.Stages) == 0 {
		return fmt.Errorf("pattern %s: at least one stage is required", p.ID)
	}
	switch p.Type {
	case PatternSequence, PatternConjunction:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownPatternType, p.Type)
	}
	if p.Within <= 0 {
		return fmt.Errorf("pattern %s: within must be positive, got %d", p.ID, p.Within)
	}
	e.mu.Lock()
	e.patterns[p.ID] = p
	e.mu.Unlock()
	return nil
}

// UnregisterPattern removes a pattern.
func (e *Engine) UnregisterPattern(id string) {
	e.mu.Lock()
	delete(e.patterns, id)
	e.mu.Unlock()
}

// Patterns returns the registered pattern IDs.
func (e *Engine) Patterns() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ids := make([]string, 0, len(e.patterns))
	for id := range e.patterns {
		ids = append(ids, id)
	}
	return ids
}

// ProcessEvents scans a batch against every registered pattern and returns
// all matches. The input is sorted by timestamp internally; events are
// never consumed, so overlapping partial matches may reuse them.
func (e *Engine) ProcessEvents(events []*event.StreamEvent) []Match {
	e.mu.RLock()
	patterns := make([]*Pattern, 0, len(e.patterns))
	for _, p := range e.patterns {
		patterns = append(patterns, p)
	}
	e.mu.RUnlock()

	if len(patterns) == 0 || len(events) == 0 {
		return nil
	}
	sorted := event.SortedCopy(events)

	var matches []Match
	for _, p := range patterns {
		switch p.Type {
		case PatternSequence:
			matches = append(matches, matchSequence(p, sorted)...)
		case PatternConjunction:
			matches = append(matches, matchConjunction(p, sorted)...)
		}
	}
	return matches
}

// matchSequence attempts a match starting at every event satisfying the
// first stage, then advances greedily through later events for the
// remaining stages. The whole chain must complete within p.Within ms of
// the first contributing event.
func matchSequence(p *Pattern, sorted []*event.StreamEvent) []Match {
	var matches []Match
	for i, first := range sorted {
		if first.Type() != p.Stages[0] {
			continue
		}
		contrib := []*event.StreamEvent{first}
		stage := 1
		deadline := first.Timestamp + p.Within
		for j := i + 1; j < len(sorted) && stage < len(p.Stages); j++ {
			ev := sorted[j]
			if ev.Timestamp > deadline {
				break
			}
			if ev.Type() == p.Stages[stage] {
				contrib = append(contrib, ev)
				stage++
			}
		}
		if stage == len(p.Stages) {
			matches = append(matches, Match{
				PatternID: p.ID,
				Events:    contrib,
				MatchedAt: contrib[len(contrib)-1].Timestamp,
			})
		}
	}
	return matches
}

// matchConjunction slides over the sorted batch looking for a span of at
// most p.Within ms containing every stage type at least once. After a
// match the scan resumes past the event that completed it, so distinct
// matches never share contributing events.
func matchConjunction(p *Pattern, sorted []*event.StreamEvent) []Match {
	required := make(map[string]struct{}, len(p.Stages))
	for _, s := range p.Stages {
		required[s] = struct{}{}
	}

	for i := 0; i < len(sorted); i++ {
		first := sorted[i]
		if _, ok := required[first.Type()]; !ok {
			continue
		}
		seen := map[string]*event.StreamEvent{first.Type(): first}
		deadline := first.Timestamp + p.Within
		for j := i + 1; j < len(sorted); j++ {
			ev := sorted[j]
			if ev.Timestamp > deadline {
				break
			}
			t := ev.Type()
			if _, need := required[t]; !need {
				continue
			}
			if _, have := seen[t]; !have {
				seen[t] = ev
			}
			if len(seen) == len(required) {
				contrib := make([]*event.StreamEvent, 0, len(seen))
				for _, s := range p.Stages {
					contrib = append(contrib, seen[s])
				}
				event.SortByTimestamp(contrib)
				m := Match{
					PatternID: p.ID,
					Events:    contrib,
					MatchedAt: contrib[len(contrib)-1].Timestamp,
				}
				rest := matchConjunctionFrom(p, sorted, j+1)
				return append([]Match{m}, rest...)
			}
		}
	}
	return nil
}

func matchConjunctionFrom(p *Pattern, sorted []*event.StreamEvent, from int) []Match {
	if from >= len(sorted) {
		return nil
	}
	return matchConjunction(p, sorted[from:])
}

// Correlate groups events sharing identical values for every named field
// (resolved from Value, then Metadata). The map key is the canonical
// JSON-encoded tuple of those field values; events missing any field are
// skipped.
func Correlate(events []*event.StreamEvent, fields []string) map[string][]*event.StreamEvent {
	groups := make(map[string][]*event.StreamEvent)
	for _, ev := range events {
		key, ok := event.CompositeKey(ev, fields)
		if !ok {
			continue
		}
		groups[key] = append(groups[key], ev)
	}
	return groups
}
