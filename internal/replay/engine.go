// Package replay drives a PCAP file through the pipeline at one of four
// timing disciplines, optionally looping the file indefinitely with a
// tracker reset at each loop boundary (spec §4.6).
package replay

import (
	"context"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"

	"github.com/seqtrack/seqtrack/internal/frame"
	"github.com/seqtrack/seqtrack/internal/mempool"
	"github.com/seqtrack/seqtrack/internal/pipeline"
)

// packetDataSource narrows *pcap.Handle to what this package depends on,
// so tests can substitute a fake without a real PCAP file.
type packetDataSource interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
	SetBPFFilter(expr string) error
	Close()
}

type openOfflineFunc func(path string) (packetDataSource, error)

func defaultOpenOffline(path string) (packetDataSource, error) {
	return pcap.OpenOffline(path)
}

// Option configures an Engine.
type Option func(*Engine)

// WithLoop enables restarting from byte 0 of the PCAP on EOF instead of
// terminating the session.
func WithLoop(loop bool) Option {
	return func(e *Engine) { e.loop = loop }
}

// WithChannelCapacity overrides the default bounded-queue size.
func WithChannelCapacity(n int) Option {
	return func(e *Engine) { e.channelCapacity = n }
}

// Engine replays one PCAP file and implements pipeline.Source.
type Engine struct {
	path   string
	bpf    string
	pacing Pacing
	loop   bool

	channelCapacity int
	clock           clockWrapper
	openOffline     openOfflineFunc
	pool            mempool.FramePool

	events chan pipeline.Event
}

// NewEngine constructs an Engine for the PCAP file at path, replayed under
// the given Pacing discipline. pool copies each frame's bytes out of
// libpcap's reused read buffer before handing it downstream, the same
// hazard capture.LiveSource guards against: pcap.OpenOffline's
// ReadPacketData reuses its backing array on every call, so a View built
// directly over it would be corrupted by the time a slow consumer reads it.
func NewEngine(path, bpfFilter string, pacing Pacing, pool mempool.FramePool, opts ...Option) *Engine {
	e := &Engine{
		path:            path,
		bpf:             bpfFilter,
		pacing:          pacing,
		channelCapacity: 10000,
		clock:           realClock{},
		openOffline:     defaultOpenOffline,
		pool:            pool,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var _ pipeline.Source = (*Engine)(nil)

// Open opens the PCAP file and starts the producer goroutine.
func (e *Engine) Open(ctx context.Context) error {
	handle, err := e.openOffline(e.path)
	if err != nil {
		return wrapOpenError(err)
	}
	if e.bpf != "" {
		if err := handle.SetBPFFilter(e.bpf); err != nil {
			handle.Close()
			return wrapOpenError(err)
		}
	}
	handle.Close()

	e.events = make(chan pipeline.Event, e.channelCapacity)
	go e.run(ctx)
	return nil
}

func (e *Engine) run(ctx context.Context) {
	defer close(e.events)

	for {
		if !e.runOneGeneration(ctx) {
			return
		}
		if !e.loop {
			e.sendEvent(ctx, pipeline.Event{Kind: pipeline.EventEndOfStream})
			return
		}
		if !e.sendEvent(ctx, pipeline.Event{Kind: pipeline.EventLoopBoundary}) {
			return
		}
	}
}

// runOneGeneration reads the whole file once, emitting EventPacket for
// each record paced per e.pacing. It returns false if ctx was canceled
// mid-generation (the caller must not continue looping).
func (e *Engine) runOneGeneration(ctx context.Context) bool {
	handle, err := e.openOffline(e.path)
	if err != nil {
		e.sendEvent(ctx, pipeline.Event{Kind: pipeline.EventEndOfStream})
		return false
	}
	defer handle.Close()

	if e.bpf != "" {
		if err := handle.SetBPFFilter(e.bpf); err != nil {
			e.sendEvent(ctx, pipeline.Event{Kind: pipeline.EventEndOfStream})
			return false
		}
	}

	var prevTs time.Time
	first := true

	for {
		select {
		case <-ctx.Done():
			return false
		default:
		}

		data, ci, err := handle.ReadPacketData()
		if err != nil {
			// PCAP exhaustion: a clean generation boundary, not a
			// CaptureError.
			return true
		}

		delay := e.pacing.Delay(prevTs, ci.Timestamp, first)
		if delay > 0 {
			e.clock.Sleep(delay)
		}

		emittedTs := ci.Timestamp
		if e.pacing.RewritesTimestamp() {
			emittedTs = e.clock.Now()
		}

		view, release := e.pool.CopyFrame(data)
		ev := pipeline.Event{
			Kind:    pipeline.EventPacket,
			Packet:  frame.Packet{View: view, Timestamp: emittedTs},
			Release: release,
		}
		if !e.sendEvent(ctx, ev) {
			return false
		}

		prevTs = ci.Timestamp
		first = false
	}
}

func (e *Engine) sendEvent(ctx context.Context, ev pipeline.Event) bool {
	select {
	case e.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// Events implements pipeline.Source.
func (e *Engine) Events() <-chan pipeline.Event { return e.events }

// Close implements pipeline.Source; the producer goroutine closes its own
// handle once ctx is canceled.
func (e *Engine) Close() error { return nil }
