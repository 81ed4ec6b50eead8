package activity

// Cursor produces the sampling instants of an activity pass: 0, step,
// 2*step, ... up to last. The final instant is always exactly last,
// even when last is not a multiple of step.
type Cursor struct {
	step    int64
	last    int64
	cur     int64
	started bool
	done    bool
}

// NewCursor creates a cursor over [0, last]. A step below one is
// treated as one.
func NewCursor(step, last int64) *Cursor {
	if step < 1 {
		step = 1
	}
	if last < 0 {
		last = 0
	}
	return &Cursor{step: step, last: last}
}

// Next advances to the next instant. Returns false once the last
// instant has been produced.
func (c *Cursor) Next() bool {
	if c.done {
		return false
	}
	if c.started {
		c.cur += c.step
	}
	c.started = true
	if c.cur >= c.last {
		c.cur = c.last
		c.done = true
	}
	return true
}

// Value returns the current instant.
func (c *Cursor) Value() int64 {
	return c.cur
}

// Last reports whether the current instant is the final one.
func (c *Cursor) Last() bool {
	return c.done
}

// Seek skips the instants before t, so that the following Next
// produces the first instant at or after t, or the final instant.
// Seek never moves the cursor backwards.
func (c *Cursor) Seek(t int64) {
	if c.done || t <= 0 {
		return
	}
	g := (t - 1) / c.step * c.step
	if c.started && g <= c.cur {
		return
	}
	if g >= c.last {
		// Next clamps to last.
		g = c.last - 1
	}
	if !c.started && g <= 0 {
		return
	}
	c.cur = g
	c.started = true
}
