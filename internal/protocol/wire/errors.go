package wire

import "errors"

var (
	ErrVarintTooLong       = errors.New("wire: varint too long")
	ErrTruncatedVarint     = errors.New("wire: truncated varint")
	ErrTruncatedField      = errors.New("wire: truncated field value")
	ErrInvalidFieldNumber  = errors.New("wire: invalid field number")
	ErrUnsupportedWireType = errors.New("wire: unsupported wire type")
)
