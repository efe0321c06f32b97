package condition

import (
	"testing"

	"github.com/gyaneshwarpardhi/fluxstream/internal/event"
)

func ev(kv ...interface{}) *event.StreamEvent {
	value := make(map[string]interface{})
	for i := 0; i < len(kv)-1; i += 2 {
		value[kv[i].(string)] = kv[i+1]
	}
	return &event.StreamEvent{Key: "sensor-1", Value: value, Timestamp: 1700000000000}
}

type evalCase struct {
	name    string
	expr    string
	ev      *event.StreamEvent
	want    bool
	wantErr bool
}

func TestEvaluate(t *testing.T) {
	cases := []evalCase{
		// Numeric comparisons
		{
			name: "gt true",
			expr: "amount > 1000",
			ev:   ev("amount", float64(1500)),
			want: true,
		},
		{
			name: "gt false",
			expr: "amount > 1000",
			ev:   ev("amount", float64(500)),
			want: false,
		},
		{
			name: "gte equal",
			expr: "amount >= 1000",
			ev:   ev("amount", float64(1000)),
			want: true,
		},
		{
			name: "lt true",
			expr: "amount < 100",
			ev:   ev("amount", float64(50)),
			want: true,
		},
		// String equality
		{
			name: "eq string true",
			expr: `category == "food"`,
			ev:   ev("category", "food"),
			want: true,
		},
		{
			name: "eq string false",
			expr: `category == "food"`,
			ev:   ev("category", "electronics"),
			want: false,
		},
		{
			name: "neq",
			expr: `category != "food"`,
			ev:   ev("category", "electronics"),
			want: true,
		},
		// Explicit paths
		{
			name: "value path",
			expr: "value.amount > 10",
			ev:   ev("amount", float64(20)),
			want: true,
		},
		{
			name: "key path",
			expr: `key == "sensor-1"`,
			ev:   ev(),
			want: true,
		},
		{
			name: "timestamp path",
			expr: "timestamp > 0",
			ev:   ev(),
			want: true,
		},
		{
			name: "metadata path",
			expr: `meta.source == "api"`,
			ev: &event.StreamEvent{
				Key:       "k",
				Timestamp: 1,
				Metadata:  map[string]interface{}{"source": "api"},
			},
			want: true,
		},
		// Boolean combinators
		{
			name: "and both true",
			expr: `amount > 10 AND category == "food"`,
			ev:   ev("amount", float64(20), "category", "food"),
			want: true,
		},
		{
			name: "and one false",
			expr: `amount > 10 AND category == "food"`,
			ev:   ev("amount", float64(5), "category", "food"),
			want: false,
		},
		{
			name: "or",
			expr: `amount > 1000 OR category == "food"`,
			ev:   ev("amount", float64(5), "category", "food"),
			want: true,
		},
		{
			name: "not",
			expr: `NOT category == "food"`,
			ev:   ev("category", "electronics"),
			want: true,
		},
		{
			name: "parentheses",
			expr: `(amount > 1000 OR amount < 10) AND category == "food"`,
			ev:   ev("amount", float64(5), "category", "food"),
			want: true,
		},
		// String operators
		{
			name: "contains",
			expr: `message contains "error"`,
			ev:   ev("message", "disk error on /dev/sda"),
			want: true,
		},
		{
			name: "matches",
			expr: `host matches "^web-[0-9]+$"`,
			ev:   ev("host", "web-42"),
			want: true,
		},
		// Boolean literals
		{
			name: "bool literal",
			expr: "active == true",
			ev:   ev("active", true),
			want: true,
		},
		// Errors
		{
			name:    "missing field",
			expr:    "missing > 10",
			ev:      ev("amount", float64(5)),
			wantErr: true,
		},
		{
			name:    "non-numeric comparison",
			expr:    "category > 10",
			ev:      ev("category", "food"),
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ast, err := Parse(tc.expr)
			if err != nil {
				t.Fatalf("Parse(%q): %v", tc.expr, err)
			}
			got, err := Evaluate(ast, tc.ev)
			if (err != nil) != tc.wantErr {
				t.Fatalf("Evaluate() error = %v, wantErr %v", err, tc.wantErr)
			}
			if err == nil && got != tc.want {
				t.Errorf("Evaluate(%q) = %v, want %v", tc.expr, got, tc.want)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		name string
		expr string
	}{
		{"empty", ""},
		{"dangling operator", "amount >"},
		{"unterminated string", `category == "food`},
		{"unbalanced paren", "(amount > 10"},
		{"trailing garbage", "amount > 10 banana"},
		{"missing operator", "amount 10"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Parse(tc.expr); err == nil {
				t.Fatalf("Parse(%q) succeeded, want error", tc.expr)
			}
		})
	}
}

func TestCompile(t *testing.T) {
	pred, err := Compile(`amount > 100 AND region == "eu"`)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !pred(ev("amount", float64(200), "region", "eu")) {
		t.Error("matching event rejected")
	}
	if pred(ev("amount", float64(50), "region", "eu")) {
		t.Error("non-matching event accepted")
	}
	// Unresolvable fields make the predicate false, not panic.
	if pred(ev()) {
		t.Error("event without fields accepted")
	}

	if _, err := Compile("amount >"); err == nil {
		t.Error("Compile accepted a malformed expression")
	}
}
