package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gyaneshwarpardhi/fluxstream/internal/aggregate"
	"github.com/gyaneshwarpardhi/fluxstream/internal/backpressure"
	"github.com/gyaneshwarpardhi/fluxstream/internal/cep"
	"github.com/gyaneshwarpardhi/fluxstream/internal/config"
	"github.com/gyaneshwarpardhi/fluxstream/internal/event"
	"github.com/gyaneshwarpardhi/fluxstream/internal/metrics"
	"github.com/gyaneshwarpardhi/fluxstream/internal/stream"
	"github.com/gyaneshwarpardhi/fluxstream/internal/window"
)

var (
	// ErrQueueFull is returned when the batch queue has no capacity left.
	ErrQueueFull = errors.New("batch queue full")
	// ErrTimeout is returned when a synchronous batch misses its deadline.
	ErrTimeout = errors.New("batch processing timeout")
)

// PipelineResult is one pipeline's output for a batch.
type PipelineResult struct {
	PipelineID   string                `json:"pipeline_id"`
	Accepted     int                   `json:"accepted"`
	Aggregations []aggregate.Result    `json:"aggregations,omitempty"`
	Matches      []cep.Match           `json:"matches,omitempty"`
	Anomalies    []cep.Anomaly         `json:"anomalies,omitempty"`
	Backpressure *backpressure.Metrics `json:"backpressure,omitempty"`
	Error        string                `json:"error,omitempty"`
}

// BatchResult is the outcome of processing a single batch.
type BatchResult struct {
	DurationMs int64            `json:"duration_ms"`
	Events     int              `json:"events"`
	Results    []PipelineResult `json:"results"`
}

// Engine routes event batches through every enabled pipeline. Pipelines
// are independent, so a batch fans out across them concurrently; the
// result order is fixed by config order, not completion order.
type Engine struct {
	set  atomic.Pointer[pipelineSet]
	pool *workerPool[*batchWork, *BatchResult]
	hub  *stream.Hub
	conf *config.EngineConf
}

type batchWork struct {
	events  []*event.StreamEvent
	resultC chan *BatchResult
}

// New compiles the config and starts the batch worker pool. The hub may
// be nil when no live subscribers are served.
func New(ctx context.Context, cfg *config.StreamConfig, hub *stream.Hub) (*Engine, error) {
	set, err := buildPipelines(cfg)
	if err != nil {
		return nil, err
	}
	conf := cfg.Engine
	e := &Engine{hub: hub, conf: &conf}
	e.set.Store(set)

	e.pool = newWorkerPool[*batchWork, *BatchResult](
		ctx,
		conf.Workers,
		conf.QueueDepth,
		func(ctx context.Context, w *batchWork) (*BatchResult, error) {
			res := e.processBatch(ctx, w.events)
			if w.resultC != nil {
				w.resultC <- res
			}
			return res, nil
		},
	)
	return e, nil
}

// SwapConfig atomically replaces the compiled pipelines (used on
// hot-reload). Backpressure counters restart with the new controllers.
func (e *Engine) SwapConfig(cfg *config.StreamConfig) error {
	set, err := buildPipelines(cfg)
	if err != nil {
		return err
	}
	e.set.Store(set)
	return nil
}

// PipelineIDs lists the currently compiled pipelines.
func (e *Engine) PipelineIDs() []string {
	set := e.set.Load()
	ids := make([]string, 0, len(set.pipelines))
	for _, p := range set.pipelines {
		ids = append(ids, p.id)
	}
	return ids
}

// ProcessSync processes a batch synchronously and returns the result.
// Returns an error when the queue is full or the batch times out.
func (e *Engine) ProcessSync(ctx context.Context, events []*event.StreamEvent) (*BatchResult, error) {
	if err := validateBatch(events); err != nil {
		return nil, err
	}
	resultC := make(chan *BatchResult, 1)
	if !e.pool.Submit(&batchWork{events: events, resultC: resultC}) {
		metrics.BatchesRejected.Inc()
		return nil, fmt.Errorf("%w (capacity %d)", ErrQueueFull, e.conf.QueueDepth)
	}

	timeout := time.Duration(e.conf.BatchTimeoutMs) * time.Millisecond
	select {
	case res := <-resultC:
		return res, nil
	case <-time.After(timeout):
		return nil, fmt.Errorf("%w after %v", ErrTimeout, timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ProcessAsync enqueues a batch for background processing. Returns false
// when the queue is full.
func (e *Engine) ProcessAsync(events []*event.StreamEvent) (bool, error) {
	if err := validateBatch(events); err != nil {
		return false, err
	}
	if !e.pool.Submit(&batchWork{events: events}) {
		metrics.BatchesRejected.Inc()
		return false, nil
	}
	return true, nil
}

// QueueUtilization returns queue used / capacity (0–1).
func (e *Engine) QueueUtilization() float64 {
	if e.pool.QueueCap() == 0 {
		return 0
	}
	return float64(e.pool.QueueLen()) / float64(e.pool.QueueCap())
}

// Shutdown drains the pool gracefully.
func (e *Engine) Shutdown() {
	e.pool.Drain()
}

// validateBatch rejects malformed events before any pipeline sees them.
func validateBatch(events []*event.StreamEvent) error {
	for i, ev := range events {
		if err := ev.Validate(); err != nil {
			metrics.EventsRejected.Inc()
			return fmt.Errorf("events[%d]: %w", i, err)
		}
	}
	metrics.EventsIngested.Add(float64(len(events)))
	return nil
}

func (e *Engine) processBatch(ctx context.Context, events []*event.StreamEvent) *BatchResult {
	start := time.Now()
	set := e.set.Load()
	if ctx.Err() != nil {
		return &BatchResult{Events: len(events)}
	}

	results := make([]PipelineResult, len(set.pipelines))
	var wg sync.WaitGroup
	for i, p := range set.pipelines {
		wg.Add(1)
		go func(i int, p *pipeline) {
			defer wg.Done()
			results[i] = e.runPipeline(p, events)
		}(i, p)
	}
	wg.Wait()

	res := &BatchResult{
		DurationMs: time.Since(start).Milliseconds(),
		Events:     len(events),
		Results:    results,
	}
	metrics.BatchesProcessed.Inc()
	metrics.BatchProcessingDuration.Observe(float64(res.DurationMs))
	metrics.QueueUtilization.Set(e.QueueUtilization())
	return res
}

// runPipeline pushes one batch through a single pipeline.
func (e *Engine) runPipeline(p *pipeline, events []*event.StreamEvent) PipelineResult {
	res := PipelineResult{PipelineID: p.id}

	accepted := events
	if p.shedder != nil {
		accepted = p.shedder.HandleEvents(accepted)
		m := p.shedder.GetMetrics()
		res.Backpressure = &m
	}
	if p.filter != nil {
		filtered := make([]*event.StreamEvent, 0, len(accepted))
		for _, ev := range accepted {
			if p.filter(ev) {
				filtered = append(filtered, ev)
			}
		}
		accepted = filtered
	}
	res.Accepted = len(accepted)

	if p.window != nil && p.agg != nil {
		windows, err := window.Partition(accepted, *p.window)
		if err != nil {
			res.Error = err.Error()
			return res
		}
		aggs, err := aggregate.Apply(windows, *p.agg)
		if err != nil {
			res.Error = err.Error()
			return res
		}
		res.Aggregations = aggs
		metrics.WindowsComputed.WithLabelValues(p.id).Add(float64(len(windows)))
	}
	if p.cep != nil {
		res.Matches = p.cep.ProcessEvents(accepted)
		for _, m := range res.Matches {
			metrics.PatternMatches.WithLabelValues(m.PatternID).Inc()
		}
	}
	if p.anomaly != nil {
		anomalies, err := cep.DetectAnomalies(accepted, *p.anomaly)
		if err != nil {
			res.Error = err.Error()
			return res
		}
		res.Anomalies = anomalies
		for _, a := range anomalies {
			metrics.AnomaliesFlagged.WithLabelValues(p.id, a.Severity).Inc()
		}
	}

	if e.hub != nil {
		e.hub.Publish(p.id, res)
	}
	return res
}
