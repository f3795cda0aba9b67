package wire

import "fmt"

// WireType is the low three bits of a field tag.
type WireType uint8

const (
	WireVarint     WireType = 0
	WireFixed64    WireType = 1
	WireBytes      WireType = 2
	WireStartGroup WireType = 3
	WireEndGroup   WireType = 4
	WireFixed32    WireType = 5
)

func (t WireType) String() string {
	switch t {
	case WireVarint:
		return "varint"
	case WireFixed64:
		return "fixed64"
	case WireBytes:
		return "bytes"
	case WireStartGroup:
		return "start_group"
	case WireEndGroup:
		return "end_group"
	case WireFixed32:
		return "fixed32"
	default:
		return fmt.Sprintf("wiretype(%d)", uint8(t))
	}
}

// Tag is a decoded (field number, wire type) pair.
type Tag struct {
	Field uint64
	Type  WireType
}

// SplitTag separates a raw tag value into its field number and wire type.
func SplitTag(v uint64) Tag {
	return Tag{Field: v >> 3, Type: WireType(v & 0x7)}
}

// ReadTag decodes one varint at buf[off] and splits it into a Tag.
func ReadTag(buf []byte, off int) (Tag, int, error) {
	v, next, err := ReadVarint(buf, off)
	if err != nil {
		return Tag{}, off, err
	}
	return SplitTag(v), next, nil
}

// AppendTag appends the tag for field/type to dst.
func AppendTag(dst []byte, field uint64, t WireType) []byte {
	return AppendVarint(dst, field<<3|uint64(t&0x7))
}
