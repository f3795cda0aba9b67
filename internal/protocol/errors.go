package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrMalformedInput = errors.New("protocol: malformed input")
	ErrTruncatedField = errors.New("protocol: truncated field")
	ErrPathTruncated  = fmt.Errorf("%w: path", ErrTruncatedField)
	ErrEmptyPayload   = fmt.Errorf("%w: empty payload", ErrTruncatedField)
	ErrPacketTooLarge = fmt.Errorf("%w: packet too large", ErrMalformedInput)

	ErrInvalidFrame = errors.New("protocol: invalid frame")
)

// FieldError records where a decode stage gave up. It unwraps to the
// sentinel that describes the failure.
type FieldError struct {
	Stage  string
	Field  string
	Offset int
	Err    error
}

func (e FieldError) Error() string {
	return fmt.Sprintf("protocol: %s.%s at offset %d: %v", e.Stage, e.Field, e.Offset, e.Err)
}

func (e FieldError) Unwrap() error { return e.Err }

func (e FieldError) MarshalJSON() ([]byte, error) {
	msg := ""
	if e.Err != nil {
		msg = e.Err.Error()
	}
	return json.Marshal(struct {
		Stage  string `json:"stage"`
		Field  string `json:"field"`
		Offset int    `json:"offset"`
		Error  string `json:"error"`
	}{e.Stage, e.Field, e.Offset, msg})
}

func truncated(stage, field string, offset int) *FieldError {
	return &FieldError{Stage: stage, Field: field, Offset: offset, Err: ErrTruncatedField}
}
