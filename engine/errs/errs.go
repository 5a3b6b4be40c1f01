// Package errs defines the error kinds of spec.md 7, shared between
// engine/transport and engine/cache so callers can type-switch on a single
// vocabulary regardless of which subsystem produced the error. Grounded on
// goworld's use of github.com/pkg/errors for wrapping/causes rather than
// defining a bespoke error-code enum; worldlink adds a Kind precisely
// because spec.md 7 requires callers to distinguish transient
// (WouldBlock), terminal (StreamClosed, Closed), and fatal (Internal)
// outcomes, which a bare wrapped error cannot express without a sentinel.
package errs

import "github.com/pkg/errors"

// Kind classifies an error per spec.md 7.
type Kind int

const (
	// Transport is an I/O error on a pipe. Fails the entire connection.
	Transport Kind = iota
	// Protocol is a framing violation or unknown control op. Fails the connection.
	Protocol
	// StreamClosed is returned by Send on a stream that is already closed.
	StreamClosed
	// WouldBlock is transient backpressure; the caller may retry.
	WouldBlock
	// NotFound is a normal cache miss through all tiers.
	NotFound
	// Cancelled means the caller withdrew interest; silent by convention.
	Cancelled
	// Internal marks an invariant violation. Panic-worthy.
	Internal
)

func (k Kind) String() string {
	switch k {
	case Transport:
		return "Transport"
	case Protocol:
		return "Protocol"
	case StreamClosed:
		return "StreamClosed"
	case WouldBlock:
		return "WouldBlock"
	case NotFound:
		return "NotFound"
	case Cancelled:
		return "Cancelled"
	case Internal:
		return "Internal"
	default:
		return "Unknown"
	}
}

// Error wraps a Kind with a causing error.
type Error struct {
	Kind  Kind
	Cause error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Cause.Error()
}

// Unwrap allows errors.Is/As to see through to the cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New builds an *Error of the given kind wrapping cause via
// github.com/pkg/errors so stack traces are attached the way the rest of
// the core does.
func New(kind Kind, cause error) *Error {
	if cause != nil {
		cause = errors.WithStack(cause)
	}
	return &Error{Kind: kind, Cause: cause}
}

// Is reports whether err is an *Error of kind k.
func Is(err error, k Kind) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == k
}

var (
	// ErrStreamClosed is a sentinel StreamClosed error for the common case
	// with no additional cause.
	ErrStreamClosed = New(StreamClosed, nil)
	// ErrWouldBlock is a sentinel WouldBlock error for the common case.
	ErrWouldBlock = New(WouldBlock, nil)
	// ErrConnectionClosed marks operations attempted after Close.
	ErrConnectionClosed = New(Transport, errors.New("connection closed"))
	// ErrNotFound is a sentinel NotFound error for a full cache miss.
	ErrNotFound = New(NotFound, nil)
	// ErrCancelled is a sentinel Cancelled error.
	ErrCancelled = New(Cancelled, nil)
)
