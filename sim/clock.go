package sim

import "sync"

// Clock is a deterministic core.TimeSource. Every Now call advances it by
// Step microseconds, so a busy-wait loop always makes progress.
type Clock struct {
	mu   sync.Mutex
	now  uint32
	step uint32
}

// NewClock returns a clock at tick 0 that advances step microseconds per
// sample. A step of 0 is treated as 1.
func NewClock(step uint32) *Clock {
	if step == 0 {
		step = 1
	}
	return &Clock{step: step}
}

func (c *Clock) Now() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += c.step
	return c.now
}

func (c *Clock) ElapsedSince(start uint32) uint32 {
	return c.Now() - start
}

// Advance moves the clock forward by us without counting as a sample.
func (c *Clock) Advance(us uint32) {
	c.mu.Lock()
	c.now += us
	c.mu.Unlock()
}

// Set places the clock at an absolute tick, for wrap-around tests.
func (c *Clock) Set(tick uint32) {
	c.mu.Lock()
	c.now = tick
	c.mu.Unlock()
}

// Peek returns the current tick without advancing.
func (c *Clock) Peek() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}
