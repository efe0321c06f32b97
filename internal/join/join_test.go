package join

import (
	"errors"
	"testing"

	"github.com/gyaneshwarpardhi/fluxstream/internal/event"
	"github.com/gyaneshwarpardhi/fluxstream/internal/window"
)

func ev(ts int64, kv ...interface{}) *event.StreamEvent {
	value := make(map[string]interface{})
	for i := 0; i < len(kv)-1; i += 2 {
		value[kv[i].(string)] = kv[i+1]
	}
	return &event.StreamEvent{Value: value, Timestamp: ts}
}

func tumbling(size int64) window.Config {
	return window.Config{Type: window.TypeTumbling, Size: size}
}

func TestInnerJoin(t *testing.T) {
	left := []*event.StreamEvent{
		ev(100, "order_id", "A"),
		ev(200, "order_id", "B"),
		ev(300, "order_id", "C"),
	}
	right := []*event.StreamEvent{
		ev(150, "order_id", "A"),
		ev(250, "order_id", "B"),
	}
	records, err := Streams(left, right, Config{
		Type: TypeInner, LeftKey: "order_id", RightKey: "order_id", Window: tumbling(1000),
	})
	if err != nil {
		t.Fatalf("Streams: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	for _, r := range records {
		if r.Left == nil || r.Right == nil {
			t.Errorf("inner join produced a one-sided record: %+v", r)
		}
	}
}

func TestLeftJoinLengthEqualsLeft(t *testing.T) {
	left := []*event.StreamEvent{
		ev(100, "order_id", "A"),
		ev(200, "order_id", "B"),
		ev(300, "order_id", "C"),
		ev(400), // missing key, still emitted
	}
	right := []*event.StreamEvent{
		ev(150, "order_id", "A"),
	}
	records, err := Streams(left, right, Config{
		Type: TypeLeft, LeftKey: "order_id", RightKey: "order_id", Window: tumbling(1000),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != len(left) {
		t.Fatalf("left join produced %d records, want %d", len(records), len(left))
	}
	matched := 0
	for _, r := range records {
		if r.Left == nil {
			t.Errorf("left join record without a left side: %+v", r)
		}
		if r.Right != nil {
			matched++
		}
	}
	if matched != 1 {
		t.Errorf("got %d matched records, want 1", matched)
	}
}

func TestInnerJoinDuplicateKeysBound(t *testing.T) {
	// Three left events share a key with a single right event: the right
	// event pairs once, never three times.
	left := []*event.StreamEvent{
		ev(100, "order_id", "A"),
		ev(200, "order_id", "A"),
		ev(300, "order_id", "A"),
	}
	right := []*event.StreamEvent{ev(150, "order_id", "A")}
	cfg := Config{Type: TypeInner, LeftKey: "order_id", RightKey: "order_id", Window: tumbling(1000)}

	records, err := Streams(left, right, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) > len(right) {
		t.Fatalf("inner join produced %d records from %d right events", len(records), len(right))
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}

	// Symmetric case: duplicate right keys against one left event.
	records, err = Streams(right, left, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records probing duplicate rights, want 1", len(records))
	}
}

func TestLeftJoinDuplicateKeys(t *testing.T) {
	// Matched rights are consumed in window order; the leftover lefts are
	// still emitted one-sided, keeping output length equal to input length.
	left := []*event.StreamEvent{
		ev(100, "order_id", "A"),
		ev(200, "order_id", "A"),
		ev(300, "order_id", "A"),
	}
	right := []*event.StreamEvent{
		ev(150, "order_id", "A"),
		ev(250, "order_id", "A"),
	}
	records, err := Streams(left, right, Config{
		Type: TypeLeft, LeftKey: "order_id", RightKey: "order_id", Window: tumbling(1000),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != len(left) {
		t.Fatalf("left join produced %d records, want %d", len(records), len(left))
	}
	matched := 0
	for _, r := range records {
		if r.Right != nil {
			matched++
		}
	}
	if matched != 2 {
		t.Errorf("got %d matched records, want 2", matched)
	}
}

func TestRightJoin(t *testing.T) {
	left := []*event.StreamEvent{ev(100, "order_id", "A")}
	right := []*event.StreamEvent{
		ev(150, "order_id", "A"),
		ev(250, "order_id", "B"),
	}
	records, err := Streams(left, right, Config{
		Type: TypeRight, LeftKey: "order_id", RightKey: "order_id", Window: tumbling(1000),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	unmatched := 0
	for _, r := range records {
		if r.Right == nil {
			t.Errorf("right join record without a right side: %+v", r)
		}
		if r.Left == nil {
			unmatched++
		}
	}
	if unmatched != 1 {
		t.Errorf("got %d unmatched right records, want 1", unmatched)
	}
}

func TestFullJoin(t *testing.T) {
	left := []*event.StreamEvent{
		ev(100, "order_id", "A"),
		ev(200, "order_id", "X"),
	}
	right := []*event.StreamEvent{
		ev(150, "order_id", "A"),
		ev(250, "order_id", "Y"),
	}
	records, err := Streams(left, right, Config{
		Type: TypeFull, LeftKey: "order_id", RightKey: "order_id", Window: tumbling(1000),
	})
	if err != nil {
		t.Fatal(err)
	}
	// One matched pair plus one left-only and one right-only record.
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
}

func TestJoinRespectsWindows(t *testing.T) {
	// Same key, different windows: no pair.
	left := []*event.StreamEvent{ev(100, "order_id", "A")}
	right := []*event.StreamEvent{ev(5100, "order_id", "A")}
	records, err := Streams(left, right, Config{
		Type: TypeInner, LeftKey: "order_id", RightKey: "order_id", Window: tumbling(1000),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 0 {
		t.Fatalf("got %d records across window boundaries, want 0", len(records))
	}
}

func TestJoinKeyStringEquality(t *testing.T) {
	// Numeric 42 on one side, string-formatted on probe: both render "42".
	left := []*event.StreamEvent{ev(100, "id", 42)}
	right := []*event.StreamEvent{ev(150, "id", int64(42))}
	records, err := Streams(left, right, Config{
		Type: TypeInner, LeftKey: "id", RightKey: "id", Window: tumbling(1000),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1 (string-representation key equality)", len(records))
	}
	if records[0].JoinKey != "42" {
		t.Errorf("join key = %q, want 42", records[0].JoinKey)
	}
}

func TestStreamsErrors(t *testing.T) {
	_, err := Streams(nil, nil, Config{Type: "cross", Window: tumbling(1000)})
	if !errors.Is(err, ErrUnknownType) {
		t.Fatalf("got %v, want ErrUnknownType", err)
	}
	_, err = Streams(nil, nil, Config{Type: TypeInner, Window: window.Config{Type: window.TypeTumbling}})
	if err == nil {
		t.Fatal("expected window config error, got nil")
	}
}

func TestEnrich(t *testing.T) {
	table := []map[string]interface{}{
		{"user_id": "u1", "plan": "pro"},
		{"user_id": "u2", "plan": "free"},
	}
	events := []*event.StreamEvent{
		ev(100, "user_id", "u1"),
		ev(200, "user_id", "u3"),
		ev(300),
	}
	records := Enrich(events, table, "user_id", "user_id")
	if len(records) != len(events) {
		t.Fatalf("got %d records, want %d", len(records), len(events))
	}
	if records[0].Right == nil || records[0].Right.Value["plan"] != "pro" {
		t.Errorf("u1 not enriched: %+v", records[0])
	}
	if records[1].Right != nil {
		t.Errorf("unknown user enriched: %+v", records[1])
	}
	if records[2].Right != nil || records[2].JoinKey != "" {
		t.Errorf("keyless event enriched: %+v", records[2])
	}
}
