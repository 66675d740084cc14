package capture

import "github.com/pkg/errors"

// Kind classifies a CaptureError (spec §7).
type Kind uint8

const (
	// OpenFailed means the device or file could not be opened. Fatal to
	// the session.
	OpenFailed Kind = iota + 1
	// ReadFailed means a read off an open handle failed. LiveSource
	// retries a failed read once and then ends its stream; it does not
	// return an Error of this kind.
	ReadFailed
	// MalformedContainer means the PCAP header or a record header failed
	// to parse. Fatal.
	MalformedContainer
)

func (k Kind) String() string {
	switch k {
	case OpenFailed:
		return "open_failed"
	case ReadFailed:
		return "read_failed"
	case MalformedContainer:
		return "malformed_container"
	default:
		return "unknown"
	}
}

// Error is a source-level failure.
type Error struct {
	Kind  Kind
	cause error
}

func newError(kind Kind, msg string) error {
	return &Error{Kind: kind, cause: errors.New(msg)}
}

func wrapError(kind Kind, cause error) error {
	return &Error{Kind: kind, cause: errors.WithStack(cause)}
}

func (e *Error) Error() string {
	return "capture: " + e.Kind.String() + ": " + e.cause.Error()
}

func (e *Error) Unwrap() error {
	return e.cause
}
