package wire

import (
	"errors"
	"io"

	"google.golang.org/protobuf/encoding/protowire"
)

// MaxVarintLen is the most bytes a 64-bit varint may occupy.
const MaxVarintLen = 10

// ReadVarint decodes one varint starting at buf[off] and returns the value and
// the offset just past it. On error the returned offset is off unchanged.
func ReadVarint(buf []byte, off int) (uint64, int, error) {
	if off < 0 || off >= len(buf) {
		return 0, off, ErrTruncatedVarint
	}
	v, n := protowire.ConsumeVarint(buf[off:])
	if n < 0 {
		return 0, off, varintError(n)
	}
	return v, off + n, nil
}

// AppendVarint appends the varint encoding of v to dst.
func AppendVarint(dst []byte, v uint64) []byte {
	return protowire.AppendVarint(dst, v)
}

// SizeVarint reports how many bytes AppendVarint writes for v.
func SizeVarint(v uint64) int {
	return protowire.SizeVarint(v)
}

// protowire reports a short buffer as io.ErrUnexpectedEOF and everything else
// (a continuation run past ten bytes, or a tenth byte carrying more than one
// bit) as overflow.
func varintError(n int) error {
	if errors.Is(protowire.ParseError(n), io.ErrUnexpectedEOF) {
		return ErrTruncatedVarint
	}
	return ErrVarintTooLong
}
