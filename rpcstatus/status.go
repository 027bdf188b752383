// Package rpcstatus defines the status codes carried by STATUS envelopes
// and the error type used to surface them to callers.
package rpcstatus

import "fmt"

// Code identifies the outcome of a call, mirrored on the wire as the
// envelope's status.code field. Numbering matches the spec's normative
// table so implementations stay interoperable.
type Code uint16

const (
	OK               Code = 0
	Cancelled        Code = 1
	Unknown          Code = 2
	InvalidArgument  Code = 3
	DeadlineExceeded Code = 4
	NotFound         Code = 5
	Unimplemented    Code = 12
	Internal         Code = 13
	Unavailable      Code = 14
)

func (c Code) String() string {
	switch c {
	case OK:
		return "OK"
	case Cancelled:
		return "CANCELLED"
	case Unknown:
		return "UNKNOWN"
	case InvalidArgument:
		return "INVALID_ARGUMENT"
	case DeadlineExceeded:
		return "DEADLINE_EXCEEDED"
	case NotFound:
		return "NOT_FOUND"
	case Unimplemented:
		return "UNIMPLEMENTED"
	case Internal:
		return "INTERNAL"
	case Unavailable:
		return "UNAVAILABLE"
	default:
		return fmt.Sprintf("CODE(%d)", uint16(c))
	}
}

// Error is the error surfaced to callers for a terminal non-OK STATUS,
// or for a local precondition failure before any envelope touches the
// wire. It implements the standard error interface and unwraps to any
// underlying cause, so callers can use errors.As/errors.Is.
type Error struct {
	Code    Code
	Message string
	Details []byte
	Cause   error
}

// New builds a status error with no wrapped cause.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds a status error that wraps an underlying cause.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error target with the same Code, so a comparison such
// as errors.Is(err, rpcstatus.Sentinel(rpcstatus.Cancelled)) checks the
// code alone and ignores the message.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == other.Code
}

// FromError classifies an arbitrary error into a status Error, used when
// a handler returns a plain error instead of constructing one explicitly.
// Handler panics are not recovered anywhere in this module, so a panic
// never reaches FromError and is never reported as Internal.
func FromError(err error) *Error {
	if err == nil {
		return &Error{Code: OK}
	}
	if se, ok := err.(*Error); ok {
		return se
	}
	return &Error{Code: Unknown, Message: err.Error(), Cause: err}
}

// Sentinel returns a bare *Error carrying only a code, suitable for
// errors.Is comparisons: errors.Is(err, rpcstatus.Sentinel(Cancelled)).
func Sentinel(code Code) *Error {
	return &Error{Code: code}
}
