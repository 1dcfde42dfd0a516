// Package status defines the unified error taxonomy surfaced across the
// page storage engine: every fallible operation in objectstore, btree,
// commit, journal and pagestorage returns (or delivers via callback) an
// error that unwraps to one of these codes.
package status

import (
	"errors"
	"fmt"
)

type Code int

const (
	OK Code = iota
	NotFound
	NoSuchChild
	IllegalState
	IOError
	FormatError
	InternalError
)

func (c Code) String() string {
	switch c {
	case OK:
		return "OK"
	case NotFound:
		return "NOT_FOUND"
	case NoSuchChild:
		return "NO_SUCH_CHILD"
	case IllegalState:
		return "ILLEGAL_STATE"
	case IOError:
		return "IO_ERROR"
	case FormatError:
		return "FORMAT_ERROR"
	case InternalError:
		return "INTERNAL_ERROR"
	default:
		return "UNKNOWN"
	}
}

// Error is the concrete error type carried across the public surface.
// It always has a Code; Cause may be nil.
type Error struct {
	Code  Code
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New builds a *Error with no wrapped cause.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Msg: msg}
}

// Wrap builds a *Error around a lower-level cause.
func Wrap(code Code, msg string, cause error) *Error {
	return &Error{Code: code, Msg: msg, Cause: cause}
}

// Of returns the Code carried by err, or OK if err is nil, or InternalError
// if err is non-nil but not a *Error (an invariant violation: every error
// that crosses a package boundary in this module must be a *Error).
func Of(err error) Code {
	if err == nil {
		return OK
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return InternalError
}
