package config

// StreamConfig is the top-level YAML structure.
type StreamConfig struct {
	Version   string         `yaml:"version"`
	Engine    EngineConf     `yaml:"engine"`
	Pipelines []PipelineConf `yaml:"pipelines"`
}

// EngineConf holds tunable concurrency settings.
type EngineConf struct {
	Workers        int `yaml:"workers"`
	QueueDepth     int `yaml:"queue_depth"`
	BatchTimeoutMs int `yaml:"batch_timeout_ms"`
}

// PipelineConf declares one processing pipeline: optional filter and
// backpressure in front, windowed aggregation, and any number of CEP
// patterns and one anomaly detector over the raw sequence.
type PipelineConf struct {
	ID           string            `yaml:"id"`
	Description  string            `yaml:"description"`
	Enabled      bool              `yaml:"enabled"`
	Filter       string            `yaml:"filter"` // condition expression, empty = pass all
	Window       *WindowConf       `yaml:"window,omitempty"`
	Aggregation  *AggregationConf  `yaml:"aggregation,omitempty"`
	Patterns     []PatternConf     `yaml:"patterns,omitempty"`
	Anomaly      *AnomalyConf      `yaml:"anomaly,omitempty"`
	Backpressure *BackpressureConf `yaml:"backpressure,omitempty"`
}

// WindowConf selects a windowing strategy. Durations are milliseconds.
// Custom windows are code-level only (they carry a function value) and
// cannot be declared in YAML.
type WindowConf struct {
	Type    string `yaml:"type"` // tumbling | sliding | session
	SizeMs  int64  `yaml:"size_ms"`
	SlideMs int64  `yaml:"slide_ms"`
	GapMs   int64  `yaml:"gap_ms"`
}

// AggregationConf selects the per-window reduction.
type AggregationConf struct {
	Type       string   `yaml:"type"` // count | sum | avg | percentile
	Field      string   `yaml:"field"`
	Percentile float64  `yaml:"percentile"`
	GroupBy    []string `yaml:"group_by"`
}

// PatternConf declares a CEP pattern.
type PatternConf struct {
	ID       string   `yaml:"id"`
	Type     string   `yaml:"type"` // sequence | conjunction
	Stages   []string `yaml:"stages"`
	WithinMs int64    `yaml:"within_ms"`
}

// AnomalyConf declares a statistical outlier detector.
type AnomalyConf struct {
	Method      string  `yaml:"method"` // zscore | iqr
	Field       string  `yaml:"field"`
	WindowSize  int     `yaml:"window_size"`
	Sensitivity float64 `yaml:"sensitivity"`
}

// BackpressureConf declares the load-shedding strategy in front of a
// pipeline.
type BackpressureConf struct {
	Strategy     string           `yaml:"strategy"` // drop | sample | buffer
	BufferSize   int              `yaml:"buffer_size"`
	SamplingRate float64          `yaml:"sampling_rate"`
	AutoScaling  *AutoScalingConf `yaml:"auto_scaling,omitempty"`
}

// AutoScalingConf is the advisory scaling policy.
type AutoScalingConf struct {
	MinInstances       int     `yaml:"min_instances"`
	MaxInstances       int     `yaml:"max_instances"`
	TargetLag          int     `yaml:"target_lag"`
	ScaleUpThreshold   float64 `yaml:"scale_up_threshold"`
	ScaleDownThreshold float64 `yaml:"scale_down_threshold"`
	CooldownPeriodMs   int64   `yaml:"cooldown_period_ms"`
}
