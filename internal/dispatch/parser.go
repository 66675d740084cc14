// Package dispatch selects the parser that can extract a (flow-id,
// sequence-number) tuple from a raw frame, and implements the three closed
// parser variants: MACsec, IPsec-ESP, and Generic-L3. Dispatch is a layered
// cascade keyed by EtherType and, for IPv4, the protocol byte — modeled
// after the teacher's parser-factory selection cascade, but operating on
// frame/IP discriminators instead of HTTP/TLS ones.
package dispatch

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/seqtrack/seqtrack/internal/flowid"
	"github.com/seqtrack/seqtrack/internal/frame"
)

// ErrorKind classifies a ParseError.
type ErrorKind uint8

const (
	PacketTooShort ErrorKind = iota + 1
	UnknownFormat
	FieldOutOfRange
)

func (k ErrorKind) String() string {
	switch k {
	case PacketTooShort:
		return "packet_too_short"
	case UnknownFormat:
		return "unknown_format"
	case FieldOutOfRange:
		return "field_out_of_range"
	default:
		return "unknown_kind"
	}
}

// ParseError reports a malformed frame. It is always non-fatal: the pipeline
// counts it and discards the packet.
type ParseError struct {
	Kind   ErrorKind
	Parser string
	cause  error
}

func (e *ParseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Parser, e.Kind, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Parser, e.Kind)
}

func (e *ParseError) Unwrap() error { return e.cause }

func newParseError(parser string, kind ErrorKind, msg string, args ...interface{}) *ParseError {
	return &ParseError{
		Parser: parser,
		Kind:   kind,
		cause:  errors.Errorf(msg, args...),
	}
}

// Parser extracts a SequenceInfo from a frame already matched by a
// Dispatcher. A nil SequenceInfo with a nil error means the frame is a
// recognized format that carries no trackable sequence (not used by any of
// the three variants today, but part of the contract for future protocols).
type Parser interface {
	Name() string
	Parse(v frame.View) (*flowid.SequenceInfo, error)
}

// Dispatcher matches a frame against one protocol's discriminator bytes and
// returns the Parser that handles it.
type Dispatcher interface {
	Match(v frame.View) (Parser, bool)
}
