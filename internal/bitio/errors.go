package bitio

import (
	"errors"
	"fmt"
)

// Sentinel errors for the three failure kinds produced by the parsing
// layers. Typed errors below wrap these so callers can classify failures
// with errors.Is without losing offset or message detail.
var (
	// ErrUnexpectedEOF means the input ended before a declared read completed.
	ErrUnexpectedEOF = errors.New("unexpected end of data")
	// ErrParse means a structurally invalid value was encountered.
	ErrParse = errors.New("parse error")
	// ErrInvalidData means a semantic violation (missing parameter set,
	// out-of-range value, resource limit exceeded).
	ErrInvalidData = errors.New("invalid data")
)

// EOFError reports insufficient bytes or bits for a declared read. Offset is
// the stream byte offset at which the read was attempted.
type EOFError struct {
	Offset int64
}

func (e *EOFError) Error() string {
	return fmt.Sprintf("unexpected end of data at offset %d", e.Offset)
}

func (e *EOFError) Unwrap() error { return ErrUnexpectedEOF }

// ParseError reports a structurally invalid value (LEB128 overflow, bad
// frame type, scan distance exceeded) at a stream byte offset.
type ParseError struct {
	Offset int64
	Msg    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at offset %d: %s", e.Offset, e.Msg)
}

func (e *ParseError) Unwrap() error { return ErrParse }

// InvalidDataError reports a semantic violation such as a missing
// parameter-set id, a QP outside the codec's range, or an exceeded
// resource limit.
type InvalidDataError struct {
	Msg string
}

func (e *InvalidDataError) Error() string {
	return "invalid data: " + e.Msg
}

func (e *InvalidDataError) Unwrap() error { return ErrInvalidData }
