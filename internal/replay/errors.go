package replay

import "github.com/pkg/errors"

// Kind classifies a replay-side CaptureError (spec §7); OpenFailed is the
// only kind replay reports synchronously. Mid-stream read failures during
// a generation are treated as that generation's clean end rather than a
// fault, since a PCAP file has a well-defined length unlike a live NIC.
type Kind uint8

const (
	OpenFailed Kind = iota + 1
)

func (k Kind) String() string {
	switch k {
	case OpenFailed:
		return "open_failed"
	default:
		return "unknown"
	}
}

// Error is a source-level failure.
type Error struct {
	Kind  Kind
	cause error
}

func (e *Error) Error() string {
	return "replay: " + e.Kind.String() + ": " + e.cause.Error()
}

func (e *Error) Unwrap() error {
	return e.cause
}

func wrapOpenError(cause error) error {
	return &Error{Kind: OpenFailed, cause: errors.WithStack(cause)}
}
