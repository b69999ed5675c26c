// ABOUTME: Tagged acquisition and usage errors
// ABOUTME: Each Error carries a kind that errors.Is matches against the package sentinels
package source

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure
type ErrorKind int

const (
	TransportError ErrorKind = iota
	DecodeError
	CapabilityUnavailable
	PermissionDenied
	ResolutionError
	UsageError
)

// Sentinels matched by errors.Is against an *Error of the same kind
var (
	ErrTransport             = errors.New("transport error")
	ErrDecode                = errors.New("decode error")
	ErrCapabilityUnavailable = errors.New("capability unavailable")
	ErrPermissionDenied      = errors.New("permission denied")
	ErrResolution            = errors.New("resolution error")
	ErrUsage                 = errors.New("usage error")
)

// Detail sentinels wrapped inside an *Error
var (
	ErrNotFound        = errors.New("not found")
	ErrAlreadyAcquired = errors.New("an acquisition has already been requested for this session")
	ErrNotReady        = errors.New("source is not ready")
)

// String returns the kind name
func (k ErrorKind) String() string {
	switch k {
	case TransportError:
		return "transport"
	case DecodeError:
		return "decode"
	case CapabilityUnavailable:
		return "capability unavailable"
	case PermissionDenied:
		return "permission denied"
	case ResolutionError:
		return "resolution"
	case UsageError:
		return "usage"
	default:
		return fmt.Sprintf("error-kind(%d)", int(k))
	}
}

func (k ErrorKind) sentinel() error {
	switch k {
	case TransportError:
		return ErrTransport
	case DecodeError:
		return ErrDecode
	case CapabilityUnavailable:
		return ErrCapabilityUnavailable
	case PermissionDenied:
		return ErrPermissionDenied
	case ResolutionError:
		return ErrResolution
	case UsageError:
		return ErrUsage
	default:
		return nil
	}
}

// Error is a classified failure from acquisition or from misuse of a handle
type Error struct {
	Kind   ErrorKind
	Op     string // operation that failed, e.g. "fetch", "poll"
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Kind.String() + " error"
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's kind
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// KindOf extracts the ErrorKind from err
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

func newError(kind ErrorKind, op string, err error) *Error {
	e := &Error{Kind: kind, Op: op, Err: err}
	if err != nil {
		e.Detail = err.Error()
	}
	return e
}

// UsageErrorf reports a call-order bug
func UsageErrorf(op, format string, args ...any) *Error {
	err := fmt.Errorf(format, args...)
	return &Error{Kind: UsageError, Op: op, Detail: err.Error(), Err: err}
}

func usageError(op string, err error) *Error {
	return newError(UsageError, op, err)
}
