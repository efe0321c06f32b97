// Package connector defines the narrow boundary between the engine and the
// external systems feeding it. The underlying broker is irrelevant to the
// core: it only ever needs readiness, a metrics snapshot, and a way to
// receive events.
package connector

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gyaneshwarpardhi/fluxstream/internal/event"
)

// Metrics is the connector-side throughput snapshot.
type Metrics struct {
	EventsPerSecond float64 `json:"events_per_second"`
	BytesPerSecond  float64 `json:"bytes_per_second"`
	RecordsIn       int64   `json:"records_in"`
	RecordsOut      int64   `json:"records_out"`
}

// Connector is the capability surface the engine can rely on. Connection
// lifecycle (connect, reconnect, protocol) is connector-owned; the core
// only asks whether the connector is ready.
type Connector interface {
	Name() string
	IsConnected() bool
	Metrics() Metrics
	// Subscribe registers a per-event callback for streaming delivery and
	// returns a stop function that unregisters it.
	Subscribe(fn func(*event.StreamEvent)) (stop func(), err error)
}

// ChannelConnector is an in-memory Connector backed by a buffered channel.
// It serves embedding callers and tests; production deployments wrap broker
// clients behind the same interface.
type ChannelConnector struct {
	name string

	mu        sync.Mutex
	connected bool
	subs      map[int]func(*event.StreamEvent)
	nextSub   int

	recordsIn  int64
	recordsOut int64
	bytesIn    int64
	startedAt  time.Time
}

// NewChannelConnector creates a connected in-memory connector.
func NewChannelConnector(name string) *ChannelConnector {
	return &ChannelConnector{
		name:      name,
		connected: true,
		subs:      make(map[int]func(*event.StreamEvent)),
		startedAt: time.Now(),
	}
}

// Name returns the connector name.
func (c *ChannelConnector) Name() string { return c.name }

// IsConnected reports readiness.
func (c *ChannelConnector) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Close marks the connector disconnected; Offer calls fail afterwards.
func (c *ChannelConnector) Close() {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
}

// Offer delivers one event to every subscriber and updates throughput
// accounting.
func (c *ChannelConnector) Offer(ev *event.StreamEvent) error {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return fmt.Errorf("connector %s: not connected", c.name)
	}
	c.recordsIn++
	if data, err := json.Marshal(ev); err == nil {
		c.bytesIn += int64(len(data))
	}
	fns := make([]func(*event.StreamEvent), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
	c.mu.Lock()
	c.recordsOut++
	c.mu.Unlock()
	return nil
}

// Subscribe registers a callback; the returned stop function removes it.
func (c *ChannelConnector) Subscribe(fn func(*event.StreamEvent)) (func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return nil, fmt.Errorf("connector %s: not connected", c.name)
	}
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}, nil
}

// Metrics derives rates from cumulative counters since construction.
func (c *ChannelConnector) Metrics() Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	elapsed := time.Since(c.startedAt).Seconds()
	m := Metrics{RecordsIn: c.recordsIn, RecordsOut: c.recordsOut}
	if elapsed > 0 {
		m.EventsPerSecond = float64(c.recordsIn) / elapsed
		m.BytesPerSecond = float64(c.bytesIn) / elapsed
	}
	return m
}
