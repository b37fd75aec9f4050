// Package window provides a bounded, offset-aware copy primitive used to
// fill fixed-size output windows from a logically larger byte stream.
package window

// Copier copies sequential source data into one fixed destination region.
// A leading skip offset discards that many source bytes before any copy;
// once the destination is full, further writes are consumed without effect.
// It never writes past the destination capacity.
type Copier struct {
	dst     []byte
	skip    int
	written int
}

// New creates a Copier over dst that discards the first skip source bytes.
func New(dst []byte, skip int) *Copier {
	if skip < 0 {
		skip = 0
	}
	return &Copier{dst: dst, skip: skip}
}

// Write consumes p, copying whatever fits in the remaining destination space
// after the skip prefix is exhausted. The returned count is the number of
// source bytes consumed, which is always len(p): callers driving a cumulative
// skip/write protocol advance by source size, not by bytes actually copied.
func (c *Copier) Write(p []byte) (int, error) {
	consumed := len(p)
	if consumed == 0 {
		return 0, nil
	}

	// Still inside the skip prefix
	if c.skip >= consumed {
		c.skip -= consumed
		return consumed, nil
	}
	if c.skip > 0 {
		p = p[c.skip:]
		c.skip = 0
	}

	n := len(p)
	if rem := c.Remaining(); n > rem {
		n = rem
	}
	if n > 0 {
		copy(c.dst[c.written:], p[:n])
		c.written += n
	}
	return consumed, nil
}

// WriteByte consumes a single byte.
func (c *Copier) WriteByte(b byte) error {
	if c.skip > 0 {
		c.skip--
		return nil
	}
	if c.Remaining() == 0 {
		return nil
	}
	c.dst[c.written] = b
	c.written++
	return nil
}

// Written returns the number of bytes copied into the destination so far.
func (c *Copier) Written() int { return c.written }

// Remaining returns the destination capacity left.
func (c *Copier) Remaining() int { return len(c.dst) - c.written }
