package link

import "mmcinit/core"

// The Client satisfies core.Bus and core.TimeSource so the sequencer can
// run on the host against a live target, one round trip per access. Those
// interfaces have no error return: the first failure is kept and every
// later access is skipped. Check Err after the run.

func (c *Client) fail(err error) {
	c.mu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.mu.Unlock()
}

func (c *Client) failed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err != nil
}

// Err returns the first link error seen by a Bus or TimeSource call.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// ClearErr forgets the sticky error.
func (c *Client) ClearErr() {
	c.mu.Lock()
	c.err = nil
	c.mu.Unlock()
}

func (c *Client) read(addr uintptr, w core.Width) uint32 {
	if c.failed() {
		return 0
	}
	v, err := c.ReadMem(addr, w)
	if err != nil {
		c.fail(err)
	}
	return v
}

func (c *Client) write(addr uintptr, w core.Width, v uint32) {
	if c.failed() {
		return
	}
	if err := c.WriteMem(addr, w, v); err != nil {
		c.fail(err)
	}
}

func (c *Client) Read8(addr uintptr) uint8           { return uint8(c.read(addr, core.Width8)) }
func (c *Client) Write8(addr uintptr, value uint8)   { c.write(addr, core.Width8, uint32(value)) }
func (c *Client) Read16(addr uintptr) uint16         { return uint16(c.read(addr, core.Width16)) }
func (c *Client) Write16(addr uintptr, value uint16) { c.write(addr, core.Width16, uint32(value)) }
func (c *Client) Read32(addr uintptr) uint32         { return c.read(addr, core.Width32) }
func (c *Client) Write32(addr uintptr, value uint32) { c.write(addr, core.Width32, value) }

// Now returns the target's counter, or 0 once the link has failed.
func (c *Client) Now() uint32 {
	if c.failed() {
		return 0
	}
	v, err := c.Clock()
	if err != nil {
		c.fail(err)
		return 0
	}
	return v
}

// ElapsedSince reports the largest possible value after a link error, so
// any poll in progress runs out of budget at once.
func (c *Client) ElapsedSince(start uint32) uint32 {
	now := c.Now()
	if c.failed() {
		return ^uint32(0)
	}
	return now - start
}

var (
	_ core.Bus        = (*Client)(nil)
	_ core.TimeSource = (*Client)(nil)
)
