package testutil

import (
	"sync"
	"time"
)

// FakeNow is the instant tests start their clocks at.
var FakeNow = time.Date(2020, 10, 1, 0, 0, 0, 0, time.UTC)

// SteppingClock is a wall clock for tests that advances by a fixed step on
// every reading.
//
// The first call to Now() returns the start instant.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type SteppingClock struct {
	mu    sync.Mutex
	start time.Time
	next  time.Time
	step  time.Duration
}

// NewSteppingClock creates a clock reading start, then start+step, and so on.
// A zero step makes a frozen clock.
func NewSteppingClock(start time.Time, step time.Duration) *SteppingClock {
	return &SteppingClock{start: start, next: start, step: step}
}

// Now returns the current instant and advances the clock.
func (c *SteppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.next
	c.next = c.next.Add(c.step)
	return now
}

// Peek returns the instant the next call to Now() will return.
func (c *SteppingClock) Peek() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.next
}

// Reset rewinds the clock to its start instant.
func (c *SteppingClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.next = c.start
}
