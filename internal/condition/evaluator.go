package condition

import (
	"fmt"

	"github.com/gyaneshwarpardhi/fluxstream/internal/event"
)

// Evaluate walks the AST against a single event and returns true/false or
// an error. Field paths resolve against the event:
//
//	key                  the event key
//	timestamp            the event timestamp (ms)
//	value.<field>...     nested lookup into Value
//	meta.<field>...      nested lookup into Metadata
func Evaluate(expr Expr, ev *event.StreamEvent) (bool, error) {
	switch e := expr.(type) {
	case *BinaryExpr:
		return evalBinary(e, ev)
	case *NotExpr:
		v, err := Evaluate(e.Expr, ev)
		if err != nil {
			return false, err
		}
		return !v, nil
	case *ComparisonExpr:
		left, err := resolveOperand(e.Left, ev)
		if err != nil {
			return false, err
		}
		right, err := resolveOperand(e.Right, ev)
		if err != nil {
			return false, err
		}
		return compare(e.Op, left, right)
	default:
		return false, fmt.Errorf("unknown expr type %T", expr)
	}
}

func evalBinary(e *BinaryExpr, ev *event.StreamEvent) (bool, error) {
	left, err := Evaluate(e.Left, ev)
	if err != nil {
		return false, err
	}
	switch e.Op {
	case "AND":
		if !left {
			return false, nil // short-circuit
		}
		return Evaluate(e.Right, ev)
	case "OR":
		if left {
			return true, nil // short-circuit
		}
		return Evaluate(e.Right, ev)
	default:
		return false, fmt.Errorf("unknown binary op %q", e.Op)
	}
}

func resolveOperand(op Operand, ev *event.StreamEvent) (interface{}, error) {
	switch o := op.(type) {
	case *LiteralOperand:
		return o.Value, nil
	case *FieldOperand:
		val, ok := resolvePath(ev, o.Path)
		if !ok {
			return nil, fmt.Errorf("field %q not found", pathString(o.Path))
		}
		return val, nil
	default:
		return nil, fmt.Errorf("unknown operand type %T", op)
	}
}

func resolvePath(ev *event.StreamEvent, path []string) (interface{}, bool) {
	if len(path) == 0 {
		return nil, false
	}
	switch path[0] {
	case "key":
		return ev.Key, len(path) == 1
	case "timestamp":
		return ev.Timestamp, len(path) == 1
	case "value":
		return resolveMap(ev.Value, path[1:])
	case "meta", "metadata":
		return resolveMap(ev.Metadata, path[1:])
	}
	// Bare field name: Value first, then Metadata.
	if len(path) == 1 {
		return ev.Field(path[0])
	}
	if v, ok := resolveMap(ev.Value, path); ok {
		return v, true
	}
	return resolveMap(ev.Metadata, path)
}

func resolveMap(m map[string]interface{}, path []string) (interface{}, bool) {
	if m == nil || len(path) == 0 {
		return nil, false
	}
	val, ok := m[path[0]]
	if !ok {
		return nil, false
	}
	if len(path) == 1 {
		return val, true
	}
	sub, ok := val.(map[string]interface{})
	if !ok {
		return nil, false
	}
	return resolveMap(sub, path[1:])
}

func pathString(path []string) string {
	out := path[0]
	for _, p := range path[1:] {
		out += "." + p
	}
	return out
}

// Compile parses an expression once and returns a predicate over events.
// Evaluation errors (unresolved fields, type mismatches) make the predicate
// return false for that event rather than aborting the batch.
func Compile(expr string) (func(*event.StreamEvent) bool, error) {
	ast, err := Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", expr, err)
	}
	return func(ev *event.StreamEvent) bool {
		ok, err := Evaluate(ast, ev)
		return err == nil && ok
	}, nil
}
