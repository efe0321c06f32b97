package config

import (
	"fmt"
	"strings"
)

var (
	windowTypes       = set("tumbling", "sliding", "session")
	aggregationTypes  = set("count", "sum", "avg", "percentile")
	patternTypes      = set("sequence", "conjunction")
	anomalyMethods    = set("zscore", "iqr")
	shedderStrategies = set("drop", "sample", "buffer")
)

// Validate checks the config for:
//   - Duplicate pipeline and pattern IDs
//   - Unknown window/aggregation/pattern/anomaly/backpressure type strings
//     (the engine fails fast rather than falling back to a default)
//   - Required fields and parameter ranges
func Validate(cfg *StreamConfig) error {
	if cfg.Version == "" {
		return fmt.Errorf("config: version is required")
	}
	ids := make(map[string]string) // id → location
	var errs []string

	for i, p := range cfg.Pipelines {
		if p.ID == "" {
			errs = append(errs, fmt.Sprintf("pipelines[%d]: id is required", i))
			continue
		}
		loc := fmt.Sprintf("pipeline %s", p.ID)
		if prev, ok := ids[p.ID]; ok {
			errs = append(errs, fmt.Sprintf("duplicate id %q (first seen at %s, again at %s)", p.ID, prev, loc))
		} else {
			ids[p.ID] = loc
		}
		validatePipeline(p, loc, ids, &errs)
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func validatePipeline(p PipelineConf, loc string, ids map[string]string, errs *[]string) {
	if w := p.Window; w != nil {
		if _, ok := windowTypes[w.Type]; !ok {
			*errs = append(*errs, fmt.Sprintf("%s: unknown window type %q", loc, w.Type))
		}
		switch w.Type {
		case "tumbling":
			if w.SizeMs <= 0 {
				*errs = append(*errs, fmt.Sprintf("%s: tumbling window needs size_ms > 0", loc))
			}
		case "sliding":
			if w.SizeMs <= 0 || w.SlideMs <= 0 {
				*errs = append(*errs, fmt.Sprintf("%s: sliding window needs size_ms and slide_ms > 0", loc))
			}
		case "session":
			if w.GapMs <= 0 {
				*errs = append(*errs, fmt.Sprintf("%s: session window needs gap_ms > 0", loc))
			}
		}
	}
	if a := p.Aggregation; a != nil {
		if _, ok := aggregationTypes[a.Type]; !ok {
			*errs = append(*errs, fmt.Sprintf("%s: unknown aggregation type %q", loc, a.Type))
		}
		if a.Type != "count" && a.Field == "" {
			*errs = append(*errs, fmt.Sprintf("%s: aggregation %s needs a field", loc, a.Type))
		}
		if a.Type == "percentile" && (a.Percentile < 0 || a.Percentile > 1) {
			*errs = append(*errs, fmt.Sprintf("%s: percentile must be in [0,1], got %g", loc, a.Percentile))
		}
		if p.Window == nil {
			*errs = append(*errs, fmt.Sprintf("%s: aggregation requires a window", loc))
		}
	}
	for _, pat := range p.Patterns {
		if pat.ID == "" {
			*errs = append(*errs, fmt.Sprintf("%s: pattern id is required", loc))
			continue
		}
		patLoc := fmt.Sprintf("pattern %s", pat.ID)
		if prev, ok := ids[pat.ID]; ok {
			*errs = append(*errs, fmt.Sprintf("duplicate id %q (first seen at %s, again at %s)", pat.ID, prev, patLoc))
		} else {
			ids[pat.ID] = patLoc
		}
		if _, ok := patternTypes[pat.Type]; !ok {
			*errs = append(*errs, fmt.Sprintf("%s: unknown pattern type %q", patLoc, pat.Type))
		}
		if len(pat.Stages) == 0 {
			*errs = append(*errs, fmt.Sprintf("%s: stages must not be empty", patLoc))
		}
		if pat.WithinMs <= 0 {
			*errs = append(*errs, fmt.Sprintf("%s: within_ms must be positive", patLoc))
		}
	}
	if a := p.Anomaly; a != nil {
		if _, ok := anomalyMethods[a.Method]; !ok {
			*errs = append(*errs, fmt.Sprintf("%s: unknown anomaly method %q", loc, a.Method))
		}
		if a.Field == "" {
			*errs = append(*errs, fmt.Sprintf("%s: anomaly detection needs a field", loc))
		}
		if a.WindowSize <= 0 {
			*errs = append(*errs, fmt.Sprintf("%s: anomaly window_size must be positive", loc))
		}
	}
	if b := p.Backpressure; b != nil {
		if _, ok := shedderStrategies[b.Strategy]; !ok {
			*errs = append(*errs, fmt.Sprintf("%s: unknown backpressure strategy %q", loc, b.Strategy))
		}
		if (b.Strategy == "drop" || b.Strategy == "buffer") && b.BufferSize <= 0 {
			*errs = append(*errs, fmt.Sprintf("%s: backpressure %s needs buffer_size > 0", loc, b.Strategy))
		}
		if b.Strategy == "sample" && (b.SamplingRate < 0 || b.SamplingRate > 1) {
			*errs = append(*errs, fmt.Sprintf("%s: sampling_rate must be in [0,1], got %g", loc, b.SamplingRate))
		}
		if s := b.AutoScaling; s != nil && s.MinInstances > s.MaxInstances {
			*errs = append(*errs, fmt.Sprintf("%s: auto_scaling min_instances %d exceeds max_instances %d", loc, s.MinInstances, s.MaxInstances))
		}
	}
}

func set(keys ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		m[k] = struct{}{}
	}
	return m
}
