package server

import (
	"sync"

	"github.com/coder/quartz"
)

// Clock issues the millisecond timestamps carried by every outbound message.
// Timestamps are strictly monotonic within the process even when the wall
// clock stalls, so clients can order events by timestamp alone.
type Clock struct {
	quartz quartz.Clock

	mu   sync.Mutex
	last int64
}

// NewClock wraps a quartz clock; nil uses the real one.
func NewClock(q quartz.Clock) *Clock {
	if q == nil {
		q = quartz.NewReal()
	}
	return &Clock{quartz: q}
}

// NowMs returns the next event timestamp.
func (c *Clock) NowMs() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.advance(0)
}

// SnapshotMs returns a snapshot timestamp. It sits one tick ahead of any
// event stamped before it, so a client that discards live events with
// timestamp <= snapshot timestamp never applies an event the snapshot already
// reflects.
func (c *Clock) SnapshotMs() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.advance(1)
}

func (c *Clock) advance(offset int64) int64 {
	now := c.quartz.Now().UnixMilli()
	if now <= c.last {
		now = c.last + 1
	}
	now += offset
	c.last = now
	return now
}
