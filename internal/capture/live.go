// Package capture implements the live-NIC packet source: it opens a
// device via libpcap, copies each frame out of pcap's reused read buffer
// into pooled storage, and emits pipeline.Events on a producer goroutine.
package capture

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

// defaultSnapLen matches tcpdump's default, same constant the teacher's
// reader used.
const defaultSnapLen = 262144

// packetDataSource is the slice of *pcap.Handle this package depends on,
// narrowed so a fake can stand in for tests that don't have a NIC or
// libpcap available.
type packetDataSource interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
	SetBPFFilter(expr string) error
	Close()
}

type openLiveFunc func(device string, snaplen int32, promisc bool, timeout time.Duration) (packetDataSource, error)

func defaultOpenLive(device string, snaplen int32, promisc bool, timeout time.Duration) (packetDataSource, error) {
	return pcap.OpenLive(device, snaplen, promisc, timeout)
}

// Option configures a LiveSource.
type Option func(*LiveSource)

// WithSnapLen overrides the default capture snaplen.
func WithSnapLen(n int32) Option {
	return func(s *LiveSource) { s.snapLen = n }
}

// WithPromiscuous enables promiscuous mode.
func WithPromiscuous(v bool) Option {
	return func(s *LiveSource) { s.promisc = v }
}

// WithBackpressure selects the source channel's full-buffer policy.
func WithBackpressure(mode pipeline.BackpressureMode) Option {
	return func(s *LiveSource) { s.backpressure = mode }
}

// WithChannelCapacity overrides the default bounded-queue size (spec §4.5:
// default 10,000).
func WithChannelCapacity(n int) Option {
	return func(s *LiveSource) { s.channelCapacity = n }
}

// LiveSource reads packets off a live NIC and implements pipeline.Source.
type LiveSource struct {
	device   string
	bpf      string
	snapLen  int32
	promisc  bool

	backpressure    pipeline.BackpressureMode
	channelCapacity int

	pool mempool.FramePool

	openLive openLiveFunc
	handle   packetDataSource

	events       chan pipeline.Event
	droppedCount uint64
}

// NewLiveSource constructs a LiveSource for device, optionally filtered by
// a BPF expression. pool copies frame bytes out of libpcap's reused read
// buffer before a packet is handed downstream.
func NewLiveSource(device, bpfFilter string, pool mempool.FramePool, opts ...Option) *LiveSource {
	s := &LiveSource{
		device:          device,
		bpf:             bpfFilter,
		snapLen:         defaultSnapLen,
		promisc:         true,
		backpressure:    pipeline.Block,
		channelCapacity: 10000,
		pool:            pool,
		openLive:        defaultOpenLive,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ pipeline.Source = (*LiveSource)(nil)

// Open opens the device, applies the BPF filter, and starts the producer
// goroutine. It blocks until the handle is open and the filter (if any) is
// applied, so the caller can be confident packets are being watched once
// Open returns (mirrors the teacher's DeviceReader.Capture contract).
func (s *LiveSource) Open(ctx context.Context) error {
	handle, err := s.openLive(s.device, s.snapLen, s.promisc, pcap.BlockForever)
	if err != nil {
		return wrapError(OpenFailed, err)
	}

	if s.bpf != "" {
		if err := handle.SetBPFFilter(s.bpf); err != nil {
			handle.Close()
			return wrapError(OpenFailed, err)
		}
	}

	s.handle = handle
	s.events = make(chan pipeline.Event, s.channelCapacity)

	go s.run(ctx)
	return nil
}

func (s *LiveSource) run(ctx context.Context) {
	defer s.handle.Close()
	defer close(s.events)

	retriedRead := false

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		data, ci, err := s.handle.ReadPacketData()
		if err != nil {
			if isTimeout(err) {
				continue
			}
			if !retriedRead {
				retriedRead = true
				continue
			}
			// A failed read is retried once; a second consecutive failure
			// ends the stream with EventEndOfStream, so the pipeline
			// reports SourceExhausted and no ReadFailed error is surfaced.
			s.sendEvent(ctx, pipeline.Event{Kind: pipeline.EventEndOfStream})
			return
		}
		retriedRead = false

		view, release := s.pool.CopyFrame(data)
		ev := pipeline.Event{
			Kind:    pipeline.EventPacket,
			Packet:  frame.Packet{View: view, Timestamp: ci.Timestamp},
			Release: release,
		}

		if !s.sendEvent(ctx, ev) {
			return
		}
	}
}

// sendEvent applies the configured backpressure policy. It returns false
// if ctx was canceled while trying to send.
func (s *LiveSource) sendEvent(ctx context.Context, ev pipeline.Event) bool {
	if s.backpressure == pipeline.DropWithMetric {
		select {
		case s.events <- ev:
		default:
			s.droppedCount++
			if ev.Release != nil {
				ev.Release()
			}
		}
		return true
	}

	select {
	case s.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func isTimeout(err error) bool {
	nextErr, ok := err.(pcap.NextError)
	return ok && nextErr == pcap.NextErrorTimeoutExpired
}

// Events implements pipeline.Source.
func (s *LiveSource) Events() <-chan pipeline.Event { return s.events }

// Close implements pipeline.Source. The producer goroutine closes the
// handle itself once its context is canceled; Close here is a no-op
// safety net for callers that never canceled a context.
func (s *LiveSource) Close() error { return nil }

// DroppedCount returns how many packets were dropped under
// pipeline.DropWithMetric backpressure.
func (s *LiveSource) DroppedCount() uint64 { return s.droppedCount }
