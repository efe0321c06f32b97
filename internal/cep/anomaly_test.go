package cep

import (
	"errors"
	"testing"

	"github.com/gyaneshwarpardhi/fluxstream/internal/event"
)

func metric(ts int64, v float64) *event.StreamEvent {
	return &event.StreamEvent{
		Key:       "host-1",
		Timestamp: ts,
		Value:     map[string]interface{}{"cpu": v},
	}
}

func TestZScoreFlagsOutlier(t *testing.T) {
	events := []*event.StreamEvent{
		metric(1000, 20), metric(2000, 21), metric(3000, 22),
		metric(4000, 20), metric(5000, 21), metric(6000, 22),
		metric(7000, 100),
	}
	anomalies, err := DetectAnomalies(events, AnomalyConfig{
		Method:      MethodZScore,
		Field:       "cpu",
		WindowSize:  10,
		Sensitivity: 3,
	})
	if err != nil {
		t.Fatalf("DetectAnomalies: %v", err)
	}
	if len(anomalies) != 1 {
		t.Fatalf("got %d anomalies, want 1", len(anomalies))
	}
	a := anomalies[0]
	if a.Event.Timestamp != 7000 {
		t.Errorf("flagged event at %d, want 7000", a.Event.Timestamp)
	}
	if a.Deviation <= 3 {
		t.Errorf("deviation = %g, want > 3", a.Deviation)
	}
	if a.Severity != "high" {
		t.Errorf("severity = %q, want high", a.Severity)
	}
}

func TestZScoreNoFalsePositives(t *testing.T) {
	events := []*event.StreamEvent{
		metric(1000, 20), metric(2000, 22), metric(3000, 19),
		metric(4000, 21), metric(5000, 20), metric(6000, 23),
	}
	anomalies, err := DetectAnomalies(events, AnomalyConfig{
		Method: MethodZScore, Field: "cpu", WindowSize: 10, Sensitivity: 3,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(anomalies) != 0 {
		t.Fatalf("flagged %d events in a stable series, want 0", len(anomalies))
	}
}

func TestDetectionIsPure(t *testing.T) {
	events := []*event.StreamEvent{
		metric(1000, 20), metric(2000, 21), metric(3000, 22), metric(4000, 100),
	}
	cfg := AnomalyConfig{Method: MethodZScore, Field: "cpu", WindowSize: 10, Sensitivity: 3}

	first, err := DetectAnomalies(events, cfg)
	if err != nil {
		t.Fatal(err)
	}
	second, err := DetectAnomalies(events, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != len(second) {
		t.Fatalf("repeat run produced %d anomalies, first run %d", len(second), len(first))
	}
	for i := range first {
		if first[i].Event != second[i].Event || first[i].Deviation != second[i].Deviation {
			t.Errorf("anomaly %d differs across identical runs", i)
		}
	}
}

func TestInsufficientReference(t *testing.T) {
	// A single prior sample can never flag anything.
	anomalies, err := DetectAnomalies([]*event.StreamEvent{
		metric(1000, 20), metric(2000, 1000),
	}, AnomalyConfig{Method: MethodZScore, Field: "cpu", WindowSize: 10, Sensitivity: 3})
	if err != nil {
		t.Fatal(err)
	}
	if len(anomalies) != 0 {
		t.Fatalf("got %d anomalies with one reference sample, want 0", len(anomalies))
	}
}

func TestIQRFlagsOutlier(t *testing.T) {
	events := []*event.StreamEvent{
		metric(1000, 10), metric(2000, 12), metric(3000, 11),
		metric(4000, 13), metric(5000, 12), metric(6000, 11),
		metric(7000, 90),
	}
	anomalies, err := DetectAnomalies(events, AnomalyConfig{
		Method:      MethodIQR,
		Field:       "cpu",
		WindowSize:  10,
		Sensitivity: 3, // fence multiplier 1.5
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(anomalies) != 1 {
		t.Fatalf("got %d anomalies, want 1", len(anomalies))
	}
	if anomalies[0].Event.Timestamp != 7000 {
		t.Errorf("flagged event at %d, want 7000", anomalies[0].Event.Timestamp)
	}
}

func TestNonNumericValuesSkipped(t *testing.T) {
	events := []*event.StreamEvent{
		metric(1000, 20), metric(2000, 21),
		{Timestamp: 2500, Value: map[string]interface{}{"cpu": "n/a"}},
		metric(3000, 22), metric(4000, 100),
	}
	anomalies, err := DetectAnomalies(events, AnomalyConfig{
		Method: MethodZScore, Field: "cpu", WindowSize: 10, Sensitivity: 3,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(anomalies) != 1 {
		t.Fatalf("got %d anomalies, want 1", len(anomalies))
	}
}

func TestAnomalyConfigErrors(t *testing.T) {
	cases := []struct {
		name string
		cfg  AnomalyConfig
	}{
		{"unknown method", AnomalyConfig{Method: "mad", Field: "cpu", WindowSize: 5}},
		{"missing field", AnomalyConfig{Method: MethodZScore, WindowSize: 5}},
		{"zero window", AnomalyConfig{Method: MethodZScore, Field: "cpu"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := DetectAnomalies(nil, tc.cfg); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}

	_, err := DetectAnomalies(nil, AnomalyConfig{Method: "mad", Field: "cpu", WindowSize: 5})
	if !errors.Is(err, ErrUnknownMethod) {
		t.Errorf("got %v, want ErrUnknownMethod", err)
	}
}
