package testutil

import "sync/atomic"

// DeterministicClock is a logical clock counting from 1. The harness
// stamps each executed scenario step with Next, and SequentialIDGenerator
// numbers record IDs with one, so a scenario replays with the same
// step numbers and IDs every time.
type DeterministicClock struct {
	seq atomic.Int64
}

// NewDeterministicClock returns a clock whose first Next is 1.
func NewDeterministicClock() *DeterministicClock {
	return &DeterministicClock{}
}

// Next advances the clock and returns the new value. Safe for concurrent use.
func (c *DeterministicClock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last value handed out, or 0 before the first Next.
func (c *DeterministicClock) Current() int64 {
	return c.seq.Load()
}

// Reset rewinds the clock so the next Next returns 1 again.
func (c *DeterministicClock) Reset() {
	c.seq.Store(0)
}
