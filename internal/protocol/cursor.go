package protocol

import "encoding/binary"

// cursor is a bounds-checked little-endian reader over one slice of the packet. base is the
// slice's offset inside the packet so recorded spans stay packet-relative.
// Reads never advance past the end; a failed read leaves the cursor where it was.
type cursor struct {
	buf   []byte
	off   int
	base  int
	trace *tracer
}

func newCursor(buf []byte, base int, trace *tracer) *cursor {
	return &cursor{buf: buf, base: base, trace: trace}
}

// sub returns a cursor over the unread remainder, sharing the tracer.
func (c *cursor) sub() *cursor {
	return newCursor(c.buf[c.off:], c.base+c.off, c.trace)
}

func (c *cursor) pos() int       { return c.base + c.off }
func (c *cursor) remaining() int { return len(c.buf) - c.off }

func (c *cursor) take(n int, label string) ([]byte, bool) {
	if n < 0 || c.remaining() < n {
		return nil, false
	}
	b := c.buf[c.off : c.off+n]
	c.trace.record(c.pos(), label, b)
	c.off += n
	return b, true
}

// rest consumes everything left. It records a span only when bytes remain.
func (c *cursor) rest(label string) []byte {
	if c.remaining() == 0 {
		return nil
	}
	b, _ := c.take(c.remaining(), label)
	return b
}

func (c *cursor) u8(label string) (uint8, bool) {
	b, ok := c.take(1, label)
	if !ok {
		return 0, false
	}
	return b[0], true
}

func (c *cursor) u16(label string) (uint16, bool) {
	b, ok := c.take(2, label)
	if !ok {
		return 0, false
	}
	return binary.LittleEndian.Uint16(b), true
}

func (c *cursor) u32(label string) (uint32, bool) {
	b, ok := c.take(4, label)
	if !ok {
		return 0, false
	}
	return binary.LittleEndian.Uint32(b), true
}

func (c *cursor) i32(label string) (int32, bool) {
	v, ok := c.u32(label)
	return int32(v), ok
}
