// Package errs defines the error taxonomy shared by the codec, transport
// and session engine. It is kinds, not types: every failure in this module
// carries one of a small fixed set of Kind values so callers can branch on
// errors.Is/errors.As without depending on package-specific error types.
package errs

import "fmt"

// Kind classifies a failure. See spec §7.
type Kind int

const (
	// InvalidArgument is a property key or value a descriptor can't
	// accept, or a buffer too small for encode/decode.
	InvalidArgument Kind = iota
	// ProtocolViolation is a failed RTP version check, an unknown
	// AppleMIDI command, or a sync echo of the local ssrc.
	ProtocolViolation
	// NoPeer is an address/ssrc lookup miss for an operation that
	// requires a peer.
	NoPeer
	// IOError is an underlying datagram send/receive failure.
	IOError
	// QueueFull is an out-queue push at capacity.
	QueueFull
	// AllocFailure is a payload allocation failure on SysEx decode.
	AllocFailure
)

func (k Kind) String() string {
	switch k {
	case InvalidArgument:
		return "invalid-argument"
	case ProtocolViolation:
		return "protocol-violation"
	case NoPeer:
		return "no-peer"
	case IOError:
		return "io-error"
	case QueueFull:
		return "queue-full"
	case AllocFailure:
		return "alloc-failure"
	default:
		return "unknown"
	}
}

// Error is the concrete error type carrying a Kind plus a message and an
// optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is an *Error with the same Kind, so callers
// can write errors.Is(err, errs.NoPeer) by wrapping the sentinel via New.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == ""
}

// New builds an *Error of the given kind.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error of the given kind around an existing error.
func Wrap(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Sentinel returns a zero-message *Error usable as an errors.Is target,
// e.g. errors.Is(err, errs.Sentinel(errs.NoPeer)).
func Sentinel(kind Kind) *Error {
	return &Error{Kind: kind}
}
