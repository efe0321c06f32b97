package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoaderReadsYAML(t *testing.T) {
	l, err := NewLoader(filepath.Join("testdata", "pipelines.yaml"))
	if err != nil {
		t.Fatalf("NewLoader: %v", err)
	}
	cfg := l.Config()
	if cfg.Version != "1" {
		t.Errorf("version = %q, want 1", cfg.Version)
	}
	if cfg.Engine.Workers != 4 || cfg.Engine.QueueDepth != 256 {
		t.Errorf("engine conf = %+v", cfg.Engine)
	}
	if len(cfg.Pipelines) != 2 {
		t.Fatalf("got %d pipelines, want 2", len(cfg.Pipelines))
	}

	p := cfg.Pipelines[0]
	if p.ID != "checkout-latency" || !p.Enabled {
		t.Errorf("pipeline[0] = %+v", p)
	}
	if p.Window == nil || p.Window.Type != "tumbling" || p.Window.SizeMs != 60000 {
		t.Errorf("window = %+v", p.Window)
	}
	if p.Aggregation == nil || p.Aggregation.Percentile != 0.95 || len(p.Aggregation.GroupBy) != 1 {
		t.Errorf("aggregation = %+v", p.Aggregation)
	}
	if p.Backpressure == nil || p.Backpressure.Strategy != "drop" {
		t.Errorf("backpressure = %+v", p.Backpressure)
	}

	f := cfg.Pipelines[1]
	if len(f.Patterns) != 2 || f.Patterns[0].Type != "sequence" || len(f.Patterns[0].Stages) != 3 {
		t.Errorf("patterns = %+v", f.Patterns)
	}
	if f.Anomaly == nil || f.Anomaly.Method != "zscore" || f.Anomaly.WindowSize != 100 {
		t.Errorf("anomaly = %+v", f.Anomaly)
	}

	if err := Validate(cfg); err != nil {
		t.Errorf("fixture failed validation: %v", err)
	}
}

func TestLoaderDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "min.yaml")
	if err := os.WriteFile(path, []byte("version: \"1\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	l, err := NewLoader(path)
	if err != nil {
		t.Fatal(err)
	}
	cfg := l.Config()
	if cfg.Engine.Workers != 8 || cfg.Engine.QueueDepth != 1024 || cfg.Engine.BatchTimeoutMs != 5000 {
		t.Errorf("defaults not applied: %+v", cfg.Engine)
	}
}

func TestLoaderErrors(t *testing.T) {
	if _, err := NewLoader(filepath.Join("testdata", "nope.yaml")); err == nil {
		t.Error("missing file accepted")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("version: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewLoader(path); err == nil {
		t.Error("malformed YAML accepted")
	}
}

func TestReloadNotifiesCallbacks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	if err := os.WriteFile(path, []byte("version: \"1\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	l, err := NewLoader(path)
	if err != nil {
		t.Fatal(err)
	}

	var seen *StreamConfig
	l.OnChange(func(cfg *StreamConfig) { seen = cfg })

	if err := os.WriteFile(path, []byte("version: \"2\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := l.Reload()
	if err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if cfg.Version != "2" {
		t.Errorf("reloaded version = %q, want 2", cfg.Version)
	}
	if seen != cfg {
		t.Error("OnChange callback did not receive the reloaded config")
	}
	if l.Config() != cfg {
		t.Error("Config() does not return the reloaded config")
	}
}
