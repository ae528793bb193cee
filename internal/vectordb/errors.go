package vectordb

import (
	"errors"
	"fmt"
)

// ErrorKind tags a StatusError with the failure category callers need to
// branch on. It mirrors the status codes a caller-facing C API would return,
// generalized to a Go error type.
type ErrorKind int

const (
	// KindNone is the zero value; never set on a returned error.
	KindNone ErrorKind = iota
	// KindNullInput marks a required parameter that was missing or nil.
	KindNullInput
	// KindInvalidArgument marks a dimension mismatch, out-of-vocab token,
	// oversized document, or a zero k passed to a top-k search.
	KindInvalidArgument
	// KindNotFound marks a delete/get on an id that does not exist or is
	// already deleted.
	KindNotFound
	// KindOutOfMemory marks an allocation failure; the receiver is left
	// unmodified.
	KindOutOfMemory
	// KindIoError marks a file that could not be opened, or a short
	// read/write.
	KindIoError
	// KindCorrupt marks a bad magic, version, or an inconsistent field in
	// a loaded file.
	KindCorrupt
)

func (k ErrorKind) String() string {
	switch k {
	case KindNullInput:
		return "null_input"
	case KindInvalidArgument:
		return "invalid_argument"
	case KindNotFound:
		return "not_found"
	case KindOutOfMemory:
		return "out_of_memory"
	case KindIoError:
		return "io_error"
	case KindCorrupt:
		return "corrupt"
	default:
		return "none"
	}
}

// StatusError is the error type returned by every fallible operation in this
// package. Kind is stable and meant to be switched on; Msg/Err carry the
// human-readable detail.
type StatusError struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *StatusError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

func newErr(kind ErrorKind, msg string) error {
	return &StatusError{Kind: kind, Msg: msg}
}

func wrapErr(kind ErrorKind, msg string, err error) error {
	return &StatusError{Kind: kind, Msg: msg, Err: err}
}

// KindOf returns the ErrorKind tagged onto err, or KindNone if err is nil or
// was not produced by this package.
func KindOf(err error) ErrorKind {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindNone
}
