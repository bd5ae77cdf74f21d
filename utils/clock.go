package utils

import (
	"context"
	"sync"
	"time"
)

// Clock is the time source and scheduler used by every component that waits
// or compares against the current time
type Clock interface {
	Now() (now time.Time)
	// After delivers the time on the returned channel once d elapsed
	After(d time.Duration) (c <-chan time.Time)
}

type SystemClock struct{}

var _ Clock = SystemClock{}

func (SystemClock) Now() (now time.Time) { return time.Now() }

func (SystemClock) After(d time.Duration) (c <-chan time.Time) { return time.After(d) }

// Sleep waits d on clock or until ctx is done
func Sleep(ctx context.Context, clock Clock, d time.Duration) (err error) {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-clock.After(d):
		return nil
	}
}

// FakeClock never blocks. Every After call moves the clock forward by the
// requested delay and fires immediately, so waits are observable through Waits
type FakeClock struct {
	mu    sync.Mutex
	now   time.Time
	waits []time.Duration
}

var _ Clock = (*FakeClock)(nil)

func NewFakeClock(start time.Time) (c *FakeClock) {
	return &FakeClock{now: start}
}

func (c *FakeClock) Now() (now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) After(d time.Duration) (ch <-chan time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.waits = append(c.waits, d)
	c.now = c.now.Add(d)

	fired := make(chan time.Time, 1)
	fired <- c.now
	return fired
}

func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Waits returns a copy of every delay requested through After
func (c *FakeClock) Waits() (waits []time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.waits...)
}
