package wire

import (
	"encoding/hex"
	"fmt"
	"strings"

	"google.golang.org/protobuf/encoding/protowire"
)

// ProbedField is one field recovered by ProbeFields. Offset and Length cover
// the tag and the value.
type ProbedField struct {
	Offset   int      `json:"offset"`
	Length   int      `json:"length"`
	Field    uint64   `json:"field"`
	Type     WireType `json:"wireType"`
	TypeName string   `json:"wireTypeName"`
	Varint   *uint64  `json:"varint,omitempty"`
	ValueHex string   `json:"valueHex"`
}

// ProbeError reports where a probe stopped.
type ProbeError struct {
	Offset int
	Err    error
}

func (e ProbeError) Error() string {
	return fmt.Sprintf("wire: probe stopped at offset %d: %v", e.Offset, e.Err)
}

func (e ProbeError) Unwrap() error { return e.Err }

// ProbeFields walks buf as a sequence of raw protobuf fields. It stops at the
// first field it cannot read and returns everything decoded before that point
// together with a ProbeError. Groups are not supported.
func ProbeFields(buf []byte) ([]ProbedField, error) {
	fields := make([]ProbedField, 0, 4)
	for off := 0; off < len(buf); {
		tag, valueOff, err := ReadTag(buf, off)
		if err != nil {
			return fields, ProbeError{Offset: off, Err: err}
		}
		if tag.Field == 0 {
			return fields, ProbeError{Offset: off, Err: ErrInvalidFieldNumber}
		}

		field := ProbedField{
			Offset:   off,
			Field:    tag.Field,
			Type:     tag.Type,
			TypeName: tag.Type.String(),
		}
		rest := buf[valueOff:]
		var n int
		switch tag.Type {
		case WireVarint:
			v, next, err := ReadVarint(buf, valueOff)
			if err != nil {
				return fields, ProbeError{Offset: valueOff, Err: err}
			}
			field.Varint = &v
			n = next - valueOff
			field.ValueHex = upperHex(rest[:n])
		case WireFixed32:
			_, n = protowire.ConsumeFixed32(rest)
			if n < 0 {
				return fields, ProbeError{Offset: valueOff, Err: ErrTruncatedField}
			}
			field.ValueHex = upperHex(rest[:n])
		case WireFixed64:
			_, n = protowire.ConsumeFixed64(rest)
			if n < 0 {
				return fields, ProbeError{Offset: valueOff, Err: ErrTruncatedField}
			}
			field.ValueHex = upperHex(rest[:n])
		case WireBytes:
			var v []byte
			v, n = protowire.ConsumeBytes(rest)
			if n < 0 {
				if _, _, err := ReadVarint(buf, valueOff); err != nil {
					return fields, ProbeError{Offset: valueOff, Err: err}
				}
				return fields, ProbeError{Offset: valueOff, Err: ErrTruncatedField}
			}
			field.ValueHex = upperHex(v)
		default:
			return fields, ProbeError{Offset: off, Err: fmt.Errorf("%w: %s", ErrUnsupportedWireType, tag.Type)}
		}

		off = valueOff + n
		field.Length = off - field.Offset
		fields = append(fields, field)
	}
	return fields, nil
}

func upperHex(b []byte) string {
	return strings.ToUpper(hex.EncodeToString(b))
}
