package cep

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/gyaneshwarpardhi/fluxstream/internal/event"
)

// ErrUnknownMethod is returned for an unsupported anomaly detection method.
var ErrUnknownMethod = errors.New("unknown anomaly detection method")

// Method discriminates the statistical outlier detectors.
type Method string

const (
	MethodZScore Method = "zscore"
	MethodIQR    Method = "iqr"
)

// minReferenceSamples is the smallest reference window that can flag
// anything; below it detection returns no anomalies, not an error.
const minReferenceSamples = 2

// AnomalyConfig parameterizes one detection pass. WindowSize is the number
// of prior samples forming the rolling reference; Sensitivity is the
// z-score threshold for zscore and maps to the fence multiplier
// k = Sensitivity/2 for iqr (the conventional threshold 3 gives k = 1.5).
type AnomalyConfig struct {
	Method      Method
	Field       string
	WindowSize  int
	Sensitivity float64
}

// Anomaly flags one outlying event. Expected is the reference-window mean;
// Deviation is the method-specific distance (z-score, or distance beyond
// the IQR fence in fence units).
type Anomaly struct {
	Event     *event.StreamEvent `json:"event"`
	Expected  float64            `json:"expected"`
	Deviation float64            `json:"deviation"`
	Severity  string             `json:"severity"`
}

// DetectAnomalies scans the batch in timestamp order, comparing each
// event's field value against a trailing reference window of up to
// WindowSize prior samples (the current value is excluded from its own
// reference). A reference smaller than WindowSize is used as-is; fewer
// than two samples flags nothing. Detection is pure: identical input
// yields the identical anomaly set.
func DetectAnomalies(events []*event.StreamEvent, cfg AnomalyConfig) ([]Anomaly, error) {
	switch cfg.Method {
	case MethodZScore, MethodIQR:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, cfg.Method)
	}
	if cfg.Field == "" {
		return nil, fmt.Errorf("anomaly detection: field is required")
	}
	if cfg.WindowSize <= 0 {
		return nil, fmt.Errorf("anomaly detection: window size must be positive, got %d", cfg.WindowSize)
	}
	threshold := cfg.Sensitivity
	if threshold <= 0 {
		threshold = 3.0
	}

	sorted := event.SortedCopy(events)

	var anomalies []Anomaly
	reference := make([]float64, 0, cfg.WindowSize)
	for _, ev := range sorted {
		value, ok := ev.NumericField(cfg.Field)
		if !ok {
			continue
		}
		if len(reference) >= minReferenceSamples {
			var a *Anomaly
			switch cfg.Method {
			case MethodZScore:
				a = zscoreCheck(ev, value, reference, threshold)
			case MethodIQR:
				a = iqrCheck(ev, value, reference, threshold/2)
			}
			if a != nil {
				anomalies = append(anomalies, *a)
			}
		}
		reference = append(reference, value)
		if len(reference) > cfg.WindowSize {
			reference = reference[1:]
		}
	}
	return anomalies, nil
}

func zscoreCheck(ev *event.StreamEvent, value float64, reference []float64, threshold float64) *Anomaly {
	mean, stddev := meanStddev(reference)
	if stddev == 0 {
		// A flat reference makes any different value infinitely deviant.
		if value == mean {
			return nil
		}
		return &Anomaly{Event: ev, Expected: mean, Deviation: math.Inf(1), Severity: "high"}
	}
	z := math.Abs(value-mean) / stddev
	if z <= threshold {
		return nil
	}
	return &Anomaly{Event: ev, Expected: mean, Deviation: z, Severity: severity(z / threshold)}
}

func iqrCheck(ev *event.StreamEvent, value float64, reference []float64, k float64) *Anomaly {
	q1, q3 := quartiles(reference)
	iqr := q3 - q1
	if iqr == 0 {
		return nil
	}
	lower := q1 - k*iqr
	upper := q3 + k*iqr
	if value >= lower && value <= upper {
		return nil
	}
	var dist float64
	if value < lower {
		dist = (lower - value) / iqr
	} else {
		dist = (value - upper) / iqr
	}
	mean, _ := meanStddev(reference)
	return &Anomaly{Event: ev, Expected: mean, Deviation: dist, Severity: severity(1 + dist)}
}

// severity buckets how far past the threshold a deviation landed.
func severity(ratio float64) string {
	switch {
	case ratio >= 2:
		return "high"
	case ratio >= 1.5:
		return "medium"
	default:
		return "low"
	}
}

func meanStddev(values []float64) (mean, stddev float64) {
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	var variance float64
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values))
	return mean, math.Sqrt(variance)
}

// quartiles returns Q1 and Q3 by linear interpolation over the sorted
// reference values.
func quartiles(values []float64) (q1, q3 float64) {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return quantile(sorted, 0.25), quantile(sorted, 0.75)
}

func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
