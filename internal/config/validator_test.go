package config

import (
	"strings"
	"testing"
)

func valid() *StreamConfig {
	return &StreamConfig{
		Version: "1",
		Pipelines: []PipelineConf{
			{
				ID:      "latency",
				Enabled: true,
				Filter:  `value.latency_ms > 0`,
				Window:  &WindowConf{Type: "tumbling", SizeMs: 60000},
				Aggregation: &AggregationConf{
					Type: "percentile", Field: "latency_ms", Percentile: 0.95,
				},
				Patterns: []PatternConf{
					{ID: "slow-burst", Type: "sequence", Stages: []string{"slow", "slow"}, WithinMs: 10000},
				},
				Anomaly: &AnomalyConf{Method: "zscore", Field: "latency_ms", WindowSize: 50, Sensitivity: 3},
				Backpressure: &BackpressureConf{
					Strategy: "drop", BufferSize: 1000,
					AutoScaling: &AutoScalingConf{MinInstances: 1, MaxInstances: 4},
				},
			},
		},
	}
}

func TestValidateOK(t *testing.T) {
	if err := Validate(valid()); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestValidateErrors(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*StreamConfig)
		wantSub string
	}{
		{
			name:    "missing version",
			mutate:  func(c *StreamConfig) { c.Version = "" },
			wantSub: "version is required",
		},
		{
			name: "duplicate pipeline id",
			mutate: func(c *StreamConfig) {
				c.Pipelines = append(c.Pipelines, PipelineConf{ID: "latency"})
			},
			wantSub: "duplicate id",
		},
		{
			name: "pattern id collides with pipeline id",
			mutate: func(c *StreamConfig) {
				c.Pipelines[0].Patterns[0].ID = "latency"
			},
			wantSub: "duplicate id",
		},
		{
			name:    "unknown window type",
			mutate:  func(c *StreamConfig) { c.Pipelines[0].Window.Type = "hopping" },
			wantSub: "unknown window type",
		},
		{
			name:    "tumbling without size",
			mutate:  func(c *StreamConfig) { c.Pipelines[0].Window.SizeMs = 0 },
			wantSub: "size_ms",
		},
		{
			name: "sliding without slide",
			mutate: func(c *StreamConfig) {
				c.Pipelines[0].Window = &WindowConf{Type: "sliding", SizeMs: 1000}
			},
			wantSub: "slide_ms",
		},
		{
			name: "session without gap",
			mutate: func(c *StreamConfig) {
				c.Pipelines[0].Window = &WindowConf{Type: "session"}
			},
			wantSub: "gap_ms",
		},
		{
			name:    "unknown aggregation type",
			mutate:  func(c *StreamConfig) { c.Pipelines[0].Aggregation.Type = "median" },
			wantSub: "unknown aggregation type",
		},
		{
			name: "aggregation without window",
			mutate: func(c *StreamConfig) {
				c.Pipelines[0].Window = nil
			},
			wantSub: "requires a window",
		},
		{
			name:    "percentile out of range",
			mutate:  func(c *StreamConfig) { c.Pipelines[0].Aggregation.Percentile = 95 },
			wantSub: "percentile must be in [0,1]",
		},
		{
			name:    "unknown pattern type",
			mutate:  func(c *StreamConfig) { c.Pipelines[0].Patterns[0].Type = "negation" },
			wantSub: "unknown pattern type",
		},
		{
			name:    "pattern without stages",
			mutate:  func(c *StreamConfig) { c.Pipelines[0].Patterns[0].Stages = nil },
			wantSub: "stages must not be empty",
		},
		{
			name:    "unknown anomaly method",
			mutate:  func(c *StreamConfig) { c.Pipelines[0].Anomaly.Method = "mad" },
			wantSub: "unknown anomaly method",
		},
		{
			name:    "unknown backpressure strategy",
			mutate:  func(c *StreamConfig) { c.Pipelines[0].Backpressure.Strategy = "throttle" },
			wantSub: "unknown backpressure strategy",
		},
		{
			name: "sampling rate out of range",
			mutate: func(c *StreamConfig) {
				c.Pipelines[0].Backpressure = &BackpressureConf{Strategy: "sample", SamplingRate: 1.5}
			},
			wantSub: "sampling_rate",
		},
		{
			name: "scaling min above max",
			mutate: func(c *StreamConfig) {
				c.Pipelines[0].Backpressure.AutoScaling = &AutoScalingConf{MinInstances: 5, MaxInstances: 2}
			},
			wantSub: "min_instances",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(cfg)
			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tc.wantSub) {
				t.Errorf("error %q does not mention %q", err, tc.wantSub)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &StreamConfig{Version: "1"}
	ApplyDefaults(cfg)
	if cfg.Engine.Workers != 8 {
		t.Errorf("workers = %d, want 8", cfg.Engine.Workers)
	}
	if cfg.Engine.QueueDepth != 1024 {
		t.Errorf("queue depth = %d, want 1024", cfg.Engine.QueueDepth)
	}
	if cfg.Engine.BatchTimeoutMs != 5000 {
		t.Errorf("batch timeout = %d, want 5000", cfg.Engine.BatchTimeoutMs)
	}

	// Explicit settings survive.
	cfg = &StreamConfig{Version: "1", Engine: EngineConf{Workers: 2, QueueDepth: 16, BatchTimeoutMs: 100}}
	ApplyDefaults(cfg)
	if cfg.Engine.Workers != 2 || cfg.Engine.QueueDepth != 16 || cfg.Engine.BatchTimeoutMs != 100 {
		t.Errorf("defaults overwrote explicit settings: %+v", cfg.Engine)
	}
}
