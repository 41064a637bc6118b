// Package fault classifies the errors raised by the publishing engine so callers can
// decide between suspending an action and aborting configuration.
package fault

import (
	"errors"
	"fmt"
)

// Kind identifies one class of engine failure
type Kind int

const (
	// KindUnknown is reported for errors not produced by this module
	KindUnknown Kind = iota
	// SocketCreateFailed means the transport could not allocate or configure a socket
	SocketCreateFailed
	// CertLoadFailed means a CURVE certificate could not be read or applied
	CertLoadFailed
	// AttachFailed means bind or connect to an endpoint failed
	AttachFailed
	// SendFailed means a frame could not be handed to the transport
	SendFailed
	// ConfigError means a directive was unknown, missing or malformed
	ConfigError
	// OutOfMemory is kept for parity with the directive contract; the Go runtime
	// aborts on allocation failure so nothing in this module returns it.
	OutOfMemory
)

// String returns the canonical upper-case name of the kind
func (k Kind) String() string {
	switch k {
	case SocketCreateFailed:
		return "SOCKET_CREATE_FAILED"
	case CertLoadFailed:
		return "CERT_LOAD_FAILED"
	case AttachFailed:
		return "ATTACH_FAILED"
	case SendFailed:
		return "SEND_FAILED"
	case ConfigError:
		return "CONFIG_ERROR"
	case OutOfMemory:
		return "OUT_OF_MEMORY"
	default:
		return "UNKNOWN"
	}
}

// Recoverable reports whether the caller should suspend and resume rather than abort
func (k Kind) Recoverable() bool {
	switch k {
	case SocketCreateFailed, AttachFailed, SendFailed:
		return true
	default:
		return false
	}
}

// Sentinels usable with errors.Is
var (
	ErrSocketCreate = &Error{Kind: SocketCreateFailed}
	ErrCertLoad     = &Error{Kind: CertLoadFailed}
	ErrAttach       = &Error{Kind: AttachFailed}
	ErrSend         = &Error{Kind: SendFailed}
	ErrConfig       = &Error{Kind: ConfigError}
	ErrOutOfMemory  = &Error{Kind: OutOfMemory}
)

// Error wraps an underlying cause with its kind and the context needed for diagnostics
type Error struct {
	Kind Kind
	// Op is the operation that failed, e.g. "publisher.ensureSocket"
	Op string
	// Subject names the endpoint, topic, path or directive involved
	Subject string
	Err     error
}

// New builds a classified error
func New(kind Kind, op, subject string, err error) *Error {
	return &Error{Kind: kind, Op: op, Subject: subject, Err: err}
}

// Config builds a CONFIG_ERROR for the given directive
func Config(op, directive string, format string, args ...interface{}) *Error {
	return New(ConfigError, op, directive, fmt.Errorf(format, args...))
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Subject != "" {
		msg += " [" + e.Subject + "]"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind when target is a bare sentinel
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Err != nil || t.Op != "" || t.Subject != "" {
		return e == t
	}
	return e.Kind == t.Kind
}

// KindOf extracts the kind from err, or KindUnknown
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

// IsRecoverable reports whether err calls for suspend-and-resume
func IsRecoverable(err error) bool {
	return err != nil && KindOf(err).Recoverable()
}

// IsFatal reports whether err must abort the activation or instance construction
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	switch KindOf(err) {
	case CertLoadFailed, ConfigError, OutOfMemory:
		return true
	default:
		return false
	}
}
