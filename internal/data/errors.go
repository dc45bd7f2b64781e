package data

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated is returned when an operation requires a current
	// user and none is available.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrNotFound signals a lookup miss. For conversation existence checks
	// this is an expected outcome, not a failure.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput signals a caller mistake, e.g. empty message text.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUserExists is returned when registering an email that is taken.
	ErrUserExists = errors.New("user already exists")
)

// DecodeError describes a stored message record that could not be decoded.
// History loading skips such records instead of failing, so forward
// incompatible message kinds never break existing clients.
type DecodeError struct {
	Field  string
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode message: field %q: %s", e.Field, e.Reason)
}

// WriteError wraps a failed database write. The store performs no retries;
// the caller decides whether to retry or surface the failure.
type WriteError struct {
	Op  string
	Err error
}

func (e *WriteError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *WriteError) Unwrap() error { return e.Err }

// FetchError wraps a failed database read.
type FetchError struct {
	Op  string
	Err error
}

func (e *FetchError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *FetchError) Unwrap() error { return e.Err }

// DeleteError wraps a failed database delete.
type DeleteError struct {
	Op  string
	Err error
}

func (e *DeleteError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *DeleteError) Unwrap() error { return e.Err }
