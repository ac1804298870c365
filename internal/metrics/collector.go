// Package metrics counts relay outcomes for the health endpoint.
//
// The Collector is fed from the event bus, never called from the relay path.
package metrics

import (
	"context"
	"sync"
	"time"

	"runrelay/internal/eventbus"
)

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Created   int64 `json:"created"`
	Updated   int64 `json:"updated"`
	Forgotten int64 `json:"forgotten"`
	Expired   int64 `json:"expired"`
	Failed    int64 `json:"failed"`

	// BusDropped counts events lost because this collector fell behind.
	BusDropped uint64 `json:"bus_dropped"`

	LastRelayAt   time.Time `json:"last_relay_at,omitzero"`
	LastFailureAt time.Time `json:"last_failure_at,omitzero"`
	LastError     string    `json:"last_error,omitempty"`
	StartedAt     time.Time `json:"started_at"`
}

// Collector accumulates counters. All methods are nil-receiver safe.
type Collector struct {
	mu   sync.Mutex
	snap Snapshot
	bus  eventbus.Bus

	events <-chan eventbus.Event
	unsub  func()
}

// NewCollector subscribes right away so events published before Run starts
// are still counted.
func NewCollector(bus eventbus.Bus) *Collector {
	c := &Collector{bus: bus, snap: Snapshot{StartedAt: time.Now()}}
	if bus != nil {
		c.events, c.unsub = bus.Subscribe(256)
	}
	return c
}

// Run consumes bus events until ctx is done.
func (c *Collector) Run(ctx context.Context) error {
	if c == nil || c.events == nil {
		<-ctx.Done()
		return ctx.Err()
	}
	defer c.unsub()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e, ok := <-c.events:
			if !ok {
				return nil
			}
			c.Observe(e)
		}
	}
}

// Observe applies one bus event.
func (c *Collector) Observe(e eventbus.Event) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	switch e.Type {
	case eventbus.TypeRelayCreated:
		c.snap.Created++
		c.snap.LastRelayAt = e.Time
	case eventbus.TypeRelayUpdated:
		c.snap.Updated++
		c.snap.LastRelayAt = e.Time
	case eventbus.TypeRelayForgotten:
		c.snap.Forgotten++
	case eventbus.TypeRelayExpired:
		if n, ok := countOf(e.Data); ok {
			c.snap.Expired += int64(n)
		}
	case eventbus.TypeRelayFailed:
		c.snap.Failed++
		c.snap.LastFailureAt = e.Time
		if msg, ok := errorOf(e.Data); ok {
			c.snap.LastError = msg
		}
	}
}

// Snapshot returns a copy of the counters.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	s := c.snap
	c.mu.Unlock()
	if st, ok := c.bus.(eventbus.Stats); ok {
		s.BusDropped = st.Dropped()
	}
	return s
}
