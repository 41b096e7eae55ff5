package testutil

import (
	"sync"
	"time"
)

// DeterministicClock is a store clock for tests.
//
// Every call to Now returns the start time plus step times the number of
// previous calls, so stored timestamps are strictly increasing and identical
// across runs.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type DeterministicClock struct {
	mu    sync.Mutex
	start time.Time
	step  time.Duration
	calls int64
}

// DefaultClockStart is the first instant returned by NewDeterministicClock.
var DefaultClockStart = time.Date(2024, time.January, 1, 12, 0, 0, 0, time.UTC)

// NewDeterministicClock creates a clock starting at DefaultClockStart that
// advances one second per call.
func NewDeterministicClock() *DeterministicClock {
	return NewDeterministicClockAt(DefaultClockStart, time.Second)
}

// NewDeterministicClockAt creates a clock with a custom start and step.
func NewDeterministicClockAt(start time.Time, step time.Duration) *DeterministicClock {
	return &DeterministicClock{start: start.UTC(), step: step}
}

// Now returns the next instant.
func (c *DeterministicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.start.Add(time.Duration(c.calls) * c.step)
	c.calls++
	return t
}

// Calls returns how many times Now has been called.
func (c *DeterministicClock) Calls() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// Reset rewinds the clock. After Reset, the next call to Now returns the
// start time again.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = 0
}
