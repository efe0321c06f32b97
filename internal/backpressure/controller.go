package backpressure

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/gyaneshwarpardhi/fluxstream/internal/event"
	"github.com/gyaneshwarpardhi/fluxstream/internal/metrics"
)

// ErrUnknownStrategy is returned for an unsupported backpressure strategy.
var ErrUnknownStrategy = errors.New("unknown backpressure strategy")

// Strategy discriminates the load-shedding behaviors.
type Strategy string

const (
	// StrategyDrop discards events beyond capacity, oldest-favored.
	StrategyDrop Strategy = "drop"
	// StrategySample retains each event independently with probability
	// SamplingRate.
	StrategySample Strategy = "sample"
	// StrategyBuffer accepts up to capacity and defers the overflow,
	// surfacing it as lag rather than drops.
	StrategyBuffer Strategy = "buffer"
)

// ScalingPolicy is advisory configuration for an external control loop.
// The controller exposes these values and clamps ScaleConsumers to the
// instance bounds; deciding when to scale is the scheduler's job.
type ScalingPolicy struct {
	MinInstances       int     `json:"min_instances"`
	MaxInstances       int     `json:"max_instances"`
	TargetLag          int     `json:"target_lag"`
	ScaleUpThreshold   float64 `json:"scale_up_threshold"`
	ScaleDownThreshold float64 `json:"scale_down_threshold"`
	CooldownPeriodMs   int64   `json:"cooldown_period_ms"`
}

// Config parameterizes a Controller.
type Config struct {
	Name         string // pipeline label for metrics
	Strategy     Strategy
	BufferSize   int
	SamplingRate float64
	AutoScaling  *ScalingPolicy
}

// Metrics is a point-in-time snapshot of controller state. Buffer overflow
// is an expected, metered condition — it surfaces here, never as an error.
type Metrics struct {
	DroppedEvents     int64   `json:"dropped_events"`
	CurrentLag        int64   `json:"current_lag"`
	BufferUtilization float64 `json:"buffer_utilization"`
	Throughput        float64 `json:"throughput"`
	ConsumerInstances int     `json:"consumer_instances"`
}

// Controller enforces a buffer ceiling in front of a pipeline stage. It is
// the engine's only call-spanning stateful component: counters persist for
// the controller's lifetime and reset only by constructing a new one. All
// methods are safe for concurrent producers.
type Controller struct {
	cfg Config

	mu        sync.Mutex
	rng       *rand.Rand
	startedAt time.Time
	now       func() time.Time

	dropped   int64
	lag       int64
	accepted  int64
	utilized  float64
	instances int
}

// NewController validates the configuration and returns a ready controller.
func NewController(cfg Config) (*Controller, error) {
	switch cfg.Strategy {
	case StrategyDrop, StrategyBuffer:
		if cfg.BufferSize <= 0 {
			return nil, fmt.Errorf("backpressure %s: buffer size must be positive, got %d", cfg.Strategy, cfg.BufferSize)
		}
	case StrategySample:
		if cfg.SamplingRate < 0 || cfg.SamplingRate > 1 {
			return nil, fmt.Errorf("backpressure sample: sampling rate must be in [0,1], got %g", cfg.SamplingRate)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, cfg.Strategy)
	}

	c := &Controller{
		cfg:       cfg,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		now:       time.Now,
		startedAt: time.Now(),
	}
	if p := cfg.AutoScaling; p != nil {
		c.instances = p.MinInstances
	}
	return c, nil
}

// SetRand replaces the sampling source; tests inject a seeded one.
func (c *Controller) SetRand(rng *rand.Rand) {
	c.mu.Lock()
	c.rng = rng
	c.mu.Unlock()
}

// HandleEvents applies the configured strategy to a batch and returns the
// events accepted downstream.
func (c *Controller) HandleEvents(events []*event.StreamEvent) []*event.StreamEvent {
	c.mu.Lock()
	defer c.mu.Unlock()

	var accepted []*event.StreamEvent
	switch c.cfg.Strategy {
	case StrategyDrop:
		accepted = c.handleDrop(events)
	case StrategySample:
		accepted = c.handleSample(events)
	case StrategyBuffer:
		accepted = c.handleBuffer(events)
	}
	c.accepted += int64(len(accepted))
	c.publish()
	return accepted
}

// handleDrop admits the first BufferSize events of the batch and counts
// the rest as dropped.
func (c *Controller) handleDrop(events []*event.StreamEvent) []*event.StreamEvent {
	if len(events) <= c.cfg.BufferSize {
		c.utilized = float64(len(events)) / float64(c.cfg.BufferSize)
		return events
	}
	c.shed(int64(len(events) - c.cfg.BufferSize))
	c.utilized = 1
	return events[:c.cfg.BufferSize]
}

// handleSample keeps each event independently with probability
// SamplingRate; the rest are shed and counted as dropped.
func (c *Controller) handleSample(events []*event.StreamEvent) []*event.StreamEvent {
	accepted := make([]*event.StreamEvent, 0, len(events))
	for _, ev := range events {
		if c.rng.Float64() < c.cfg.SamplingRate {
			accepted = append(accepted, ev)
		}
	}
	c.shed(int64(len(events) - len(accepted)))
	return accepted
}

// handleBuffer admits up to capacity; overflow is deferred, not dropped,
// and accumulates as lag.
func (c *Controller) handleBuffer(events []*event.StreamEvent) []*event.StreamEvent {
	accepted := events
	if len(events) > c.cfg.BufferSize {
		accepted = events[:c.cfg.BufferSize]
		c.lag += int64(len(events) - c.cfg.BufferSize)
	}
	c.utilized = float64(len(accepted)) / float64(c.cfg.BufferSize)
	if c.utilized > 1 {
		c.utilized = 1
	}
	return accepted
}

// GetMetrics returns the current snapshot.
func (c *Controller) GetMetrics() Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	elapsed := c.now().Sub(c.startedAt).Seconds()
	var throughput float64
	if elapsed > 0 {
		throughput = float64(c.accepted) / elapsed
	}
	return Metrics{
		DroppedEvents:     c.dropped,
		CurrentLag:        c.lag,
		BufferUtilization: c.utilized,
		Throughput:        throughput,
		ConsumerInstances: c.instances,
	}
}

// Policy returns the advisory auto-scaling policy (nil when unset).
func (c *Controller) Policy() *ScalingPolicy {
	return c.cfg.AutoScaling
}

// ScaleConsumers adjusts the advisory consumer count by delta, clamped to
// the policy's [MinInstances, MaxInstances], and returns the new count.
// The controller applies the delta and enforces bounds; the decision loop
// lives outside.
func (c *Controller) ScaleConsumers(delta int) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.cfg.AutoScaling
	if p == nil {
		return c.instances
	}
	c.instances += delta
	if c.instances < p.MinInstances {
		c.instances = p.MinInstances
	}
	if c.instances > p.MaxInstances {
		c.instances = p.MaxInstances
	}
	metrics.ConsumerInstances.WithLabelValues(c.cfg.Name).Set(float64(c.instances))
	return c.instances
}

// shed records shed events in both the snapshot and prometheus. Caller
// holds the lock.
func (c *Controller) shed(n int64) {
	if n <= 0 {
		return
	}
	c.dropped += n
	if c.cfg.Name != "" {
		metrics.EventsDropped.WithLabelValues(c.cfg.Name).Add(float64(n))
	}
}

// publish mirrors the gauge portion of the snapshot into prometheus.
// Caller holds the lock.
func (c *Controller) publish() {
	if c.cfg.Name == "" {
		return
	}
	metrics.BufferUtilization.WithLabelValues(c.cfg.Name).Set(c.utilized)
}
