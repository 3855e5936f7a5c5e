package stream

import "time"

// Cursor is the delivery watermark for one channel of one connection:
// everything with a timestamp at or before it counts as delivered.
// Row ids are never consulted because pruning may restart them.
type Cursor struct {
	at  time.Time
	set bool
}

// NewCursor returns a cursor established at t.
func NewCursor(t time.Time) Cursor {
	var c Cursor
	c.Establish(t)
	return c
}

func (c *Cursor) Established() bool { return c.set }

// Establish sets the baseline. Storage keeps microseconds, so the baseline
// is truncated to match.
func (c *Cursor) Establish(t time.Time) {
	c.at = t.UTC().Truncate(time.Microsecond)
	c.set = true
}

func (c *Cursor) Value() time.Time { return c.at }

// Advance moves the cursor forward to t. Earlier values are ignored.
func (c *Cursor) Advance(t time.Time) {
	if !c.set {
		c.Establish(t)
		return
	}
	if t.After(c.at) {
		c.at = t.UTC()
	}
}

// IsNew reports whether an item stamped ts has not been delivered yet.
func (c *Cursor) IsNew(ts time.Time) bool {
	return c.set && ts.After(c.at)
}
