package engine

import (
	"fmt"

	"github.com/gyaneshwarpardhi/fluxstream/internal/aggregate"
	"github.com/gyaneshwarpardhi/fluxstream/internal/backpressure"
	"github.com/gyaneshwarpardhi/fluxstream/internal/cep"
	"github.com/gyaneshwarpardhi/fluxstream/internal/condition"
	"github.com/gyaneshwarpardhi/fluxstream/internal/config"
	"github.com/gyaneshwarpardhi/fluxstream/internal/event"
	"github.com/gyaneshwarpardhi/fluxstream/internal/window"
)

// pipeline is one compiled processing lane: optional backpressure and
// filter in front, windowed aggregation, CEP patterns and an anomaly
// detector over the raw accepted sequence.
type pipeline struct {
	id      string
	filter  func(*event.StreamEvent) bool
	window  *window.Config
	agg     *aggregate.Config
	cep     *cep.Engine
	anomaly *cep.AnomalyConfig
	shedder *backpressure.Controller
}

// pipelineSet is the immutable compiled form of a config; hot-reload
// builds a new set and swaps it atomically.
type pipelineSet struct {
	pipelines []*pipeline
}

// buildPipelines compiles a validated config. Filter expressions are
// parsed here, once; zero parsing happens per batch. Backpressure
// controllers are constructed fresh, which is also what resets their
// counters on reload.
func buildPipelines(cfg *config.StreamConfig) (*pipelineSet, error) {
	set := &pipelineSet{}
	for _, pc := range cfg.Pipelines {
		if !pc.Enabled {
			continue
		}
		p, err := buildPipeline(pc)
		if err != nil {
			return nil, fmt.Errorf("pipeline %s: %w", pc.ID, err)
		}
		set.pipelines = append(set.pipelines, p)
	}
	return set, nil
}

func buildPipeline(pc config.PipelineConf) (*pipeline, error) {
	p := &pipeline{id: pc.ID}

	if pc.Filter != "" {
		pred, err := condition.Compile(pc.Filter)
		if err != nil {
			return nil, err
		}
		p.filter = pred
	}
	if w := pc.Window; w != nil {
		p.window = &window.Config{
			Type:  window.Type(w.Type),
			Size:  w.SizeMs,
			Slide: w.SlideMs,
			Gap:   w.GapMs,
		}
	}
	if a := pc.Aggregation; a != nil {
		p.agg = &aggregate.Config{
			Type:       aggregate.Type(a.Type),
			Field:      a.Field,
			Percentile: a.Percentile,
			GroupBy:    a.GroupBy,
		}
	}
	if len(pc.Patterns) > 0 {
		p.cep = cep.NewEngine()
		for _, pat := range pc.Patterns {
			err := p.cep.RegisterPattern(&cep.Pattern{
				ID:     pat.ID,
				Type:   cep.PatternType(pat.Type),
				Stages: pat.Stages,
				Within: pat.WithinMs,
			})
			if err != nil {
				return nil, err
			}
		}
	}
	if a := pc.Anomaly; a != nil {
		p.anomaly = &cep.AnomalyConfig{
			Method:      cep.Method(a.Method),
			Field:       a.Field,
			WindowSize:  a.WindowSize,
			Sensitivity: a.Sensitivity,
		}
	}
	if b := pc.Backpressure; b != nil {
		bpCfg := backpressure.Config{
			Name:         pc.ID,
			Strategy:     backpressure.Strategy(b.Strategy),
			BufferSize:   b.BufferSize,
			SamplingRate: b.SamplingRate,
		}
		if s := b.AutoScaling; s != nil {
			bpCfg.AutoScaling = &backpressure.ScalingPolicy{
				MinInstances:       s.MinInstances,
				MaxInstances:       s.MaxInstances,
				TargetLag:          s.TargetLag,
				ScaleUpThreshold:   s.ScaleUpThreshold,
				ScaleDownThreshold: s.ScaleDownThreshold,
				CooldownPeriodMs:   s.CooldownPeriodMs,
			}
		}
		shedder, err := backpressure.NewController(bpCfg)
		if err != nil {
			return nil, err
		}
		p.shedder = shedder
	}
	return p, nil
}
