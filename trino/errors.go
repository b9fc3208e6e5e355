package trino

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrMalformedURL is returned when the connection string cannot be parsed.
	ErrMalformedURL = errors.New("trino: malformed connection url")
	// ErrMissingHost is a malformed URL without a host; it matches ErrMalformedURL.
	ErrMissingHost = fmt.Errorf("%w: missing host", ErrMalformedURL)

	// ErrRemote wraps every failure reported by the Trino client or coordinator.
	ErrRemote = errors.New("trino: remote error")

	ErrUnsupportedDataOrder = errors.New("trino: unsupported data order")
	ErrEmptyQueries         = errors.New("trino: no queries set")
	ErrUnsupportedType      = errors.New("trino: unsupported type")

	// Cell conversion failures, always delivered inside a *CellError.
	ErrTypeMismatch = errors.New("type mismatch")
	ErrOverflow     = errors.New("value out of range")
	ErrParseFailure = errors.New("parse failure")

	// ErrCursorExhausted is returned by a produce call after the last cell.
	ErrCursorExhausted = errors.New("trino: cursor exhausted")
)

// UnsupportedTypeError reports a remote column type with no Kind.
type UnsupportedTypeError struct {
	RemoteType string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("trino: unsupported type %q", e.RemoteType)
}

func (e *UnsupportedTypeError) Unwrap() error {
	return ErrUnsupportedType
}

// CellError describes a value that could not be produced as the requested type.
type CellError struct {
	Row    int
	Col    int
	Value  any    // raw JSON value of the cell
	Target string // name of the requested type, e.g. "int8"
	Err    error  // ErrTypeMismatch, ErrOverflow or ErrParseFailure, possibly wrapped
}

func (e *CellError) Error() string {
	return fmt.Sprintf("trino: cannot produce %s at (%d, %d) from %s: %v",
		e.Target, e.Row, e.Col, rawValue(e.Value), e.Err)
}

func (e *CellError) Unwrap() error {
	return e.Err
}

// rawValue renders a cell the way it appeared on the wire.
func rawValue(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

func remoteError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrRemote, op, err)
}
