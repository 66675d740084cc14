// Package pipeline implements the async source -> parse -> track loop:
// one producer task per packet source feeding a bounded channel, a single
// consumer dispatching each frame through the protocol registry and flow
// tracker, and a periodic flush to the persistence adapter. The flush runs
// inline on the consumer goroutine, retries included, so packet processing
// waits while it is in progress.
package pipeline

import (
	"time"

	"github.com/seqtrack/seqtrack/internal/frame"
)

// EventKind discriminates the three things a Source can emit.
type EventKind uint8

const (
	// EventPacket carries one captured or replayed frame.
	EventPacket EventKind = iota + 1
	// EventLoopBoundary marks the end of one replay generation when
	// looping is enabled; distinct from EventEndOfStream.
	EventLoopBoundary
	// EventEndOfStream marks permanent exhaustion of the source.
	EventEndOfStream
)

// Event is one item read off a Source's channel.
type Event struct {
	Kind   EventKind
	Packet frame.Packet

	// Release, if non-nil, returns pooled storage backing Packet.View to
	// its source (e.g. a mempool.FramePool chunk on a live capture). The
	// pipeline calls it exactly once, immediately after the packet has
	// been fully dispatched, since nothing downstream retains the view
	// past that point (spec §5 memory discipline).
	Release func()
}

// Source is the packet source contract: an iterator-like interface
// yielding events with an explicit end-of-stream terminator and an
// optional loop-boundary marker distinct from EOF. Implementations
// (capture, replay) own their producer goroutine and the channel's
// backpressure policy; the pipeline only drains it.
type Source interface {
	// Events returns the channel the pipeline drains until it is closed
	// by the source. The source closes the channel after sending a final
	// EventEndOfStream, or without one when its context is canceled; a
	// DropWithMetric source may also drop that EventEndOfStream when the
	// channel is full. The pipeline treats a closed channel as end of
	// stream.
	Events() <-chan Event

	// Close releases the source's resources (file handle, live capture
	// handle). Safe to call after the Events channel has been drained.
	Close() error
}

// BackpressureMode selects what a Source does when its internal bounded
// channel is full. Live sources should block; high-rate synthetic sources
// may prefer to drop with a counted metric (spec §4.5).
type BackpressureMode uint8

const (
	// Block awaits channel capacity before sending the next event.
	Block BackpressureMode = iota + 1
	// DropWithMetric drops the event and increments a counter instead of
	// blocking the producer.
	DropWithMetric
)

// ShutdownReason records why Run returned.
type ShutdownReason uint8

const (
	// ExternalInterrupt means the caller's context was canceled.
	ExternalInterrupt ShutdownReason = iota + 1
	// SourceExhausted means the source sent EventEndOfStream.
	SourceExhausted
	// Fatal means a PersistenceError exceeded its retry budget.
	Fatal
)

func (r ShutdownReason) String() string {
	switch r {
	case ExternalInterrupt:
		return "external_interrupt"
	case SourceExhausted:
		return "source_exhausted"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Config tunes the pipeline's flush cadence and failure budget. Zero value
// is not valid; use DefaultConfig as a base.
type Config struct {
	// FlushInterval is the wall-clock tick; a flush also fires after
	// FlushThreshold packets, whichever comes first.
	FlushInterval time.Duration
	FlushThreshold uint64

	// MaxConsecutiveFlushFailures is N in spec §7: after this many
	// consecutive PersistenceErrors, the pipeline shuts down fatally.
	MaxConsecutiveFlushFailures int

	// HealthWindowSize and HealthWindowRatio implement the parse-error
	// health warning (spec §7): a rate at or above HealthWindowRatio
	// within a window of HealthWindowSize packets logs a warning but never
	// halts the session.
	HealthWindowSize  int
	HealthWindowRatio float64
}

// DefaultConfig matches the values named in spec.md §4.5 and §7.
func DefaultConfig() Config {
	return Config{
		FlushInterval:               5 * time.Second,
		FlushThreshold:              10000,
		MaxConsecutiveFlushFailures: 3,
		HealthWindowSize:            1000,
		HealthWindowRatio:           0.5,
	}
}

// Report summarizes one Run call, returned after a clean shutdown.
type Report struct {
	Reason               ShutdownReason
	PacketsProcessed     uint64
	UnknownProtocolCount uint64
	ParseErrorCount      uint64
	FlushCount           uint64
	LastFlushErr         error
}
