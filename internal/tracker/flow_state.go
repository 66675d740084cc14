// Package tracker implements the per-flow gap-detection and statistics state
// machine: wrap-aware sequence comparison, a bounded reorder buffer for
// out-of-order arrivals, and the rolling timing/bandwidth stats every
// tracked packet contributes to.
package tracker

import (
	"sync"
	"time"

	"github.com/seqtrack/seqtrack/internal/flowid"
	"github.com/seqtrack/seqtrack/internal/optionals"
)

// DefaultReorderWindow is W, the default bound on the reorder buffer and on
// how far behind highest_seq an arrival can be while still being accepted
// as a late-fill rather than a stale duplicate.
const DefaultReorderWindow = 32

// SequenceGap is an emitted record: a run of sequence values presumed lost
// at the time it was detected.
type SequenceGap struct {
	FlowID    flowid.FlowId
	Expected  uint32
	Received  uint32
	GapSize   uint32
	Timestamp time.Time
}

type bufferedPacket struct {
	timestamp time.Time
	length    int
}

// openGap tracks a gap's remaining unfilled span so a later in-window
// arrival can retract part or all of it. expected/received mirror the
// emitted SequenceGap's span: missing values are [expected, received).
type openGap struct {
	expected  uint32
	received  uint32
	remaining uint32
}

// covers reports whether s falls in this gap's still-missing span.
func (g *openGap) covers(s uint32) bool {
	return !seqBehind(s, g.expected) && seqBehind(s, g.received)
}

// FlowState is the tracker's per-flow record: sequence progression, the
// reorder buffer, and accumulated statistics. Every exported method
// serializes on the embedded mutex, so independent flows never contend but
// updates within one flow are strictly ordered.
type FlowState struct {
	mu sync.Mutex

	flowID    flowid.FlowId
	trackGaps bool
	window    uint32

	firstSeq   optionals.Optional[uint32]
	lastSeq    optionals.Optional[uint32]
	highestSeq optionals.Optional[uint32]
	expectedSeq uint32

	reorderBuffer map[uint32]bufferedPacket
	openGaps      []*openGap

	packetsReceived uint64
	bytesReceived   uint64
	lostPackets     uint64
	gapCount        uint64
	minGapSize      uint32
	maxGapSize      uint32
	lateDrops       uint64

	firstTimestamp    time.Time
	lastTimestamp     time.Time
	interArrivalSum   time.Duration
	interArrivalCount uint64
}

// NewFlowState constructs an empty FlowState for flowID with the default
// reorder window.
func NewFlowState(flowID flowid.FlowId, trackGaps bool) *FlowState {
	return NewFlowStateWithWindow(flowID, trackGaps, DefaultReorderWindow)
}

// NewFlowStateWithWindow is NewFlowState with an explicit reorder window,
// used by tests and by sessions configured with a non-default W.
func NewFlowStateWithWindow(flowID flowid.FlowId, trackGaps bool, window uint32) *FlowState {
	return &FlowState{
		flowID:        flowID,
		trackGaps:     trackGaps,
		window:        window,
		reorderBuffer: make(map[uint32]bufferedPacket),
	}
}

// Snapshot is an immutable copy of a flow's statistics, safe to hand to a
// persistence adapter without holding the flow's lock.
type Snapshot struct {
	FlowID            flowid.FlowId
	TrackGaps         bool
	FirstSeq          optionals.Optional[uint32]
	LastSeq           optionals.Optional[uint32]
	HighestSeq        optionals.Optional[uint32]
	ExpectedSeq       uint32
	PacketsReceived   uint64
	BytesReceived     uint64
	LostPackets       uint64
	GapCount          uint64
	MinGapSize        uint32
	MaxGapSize        uint32
	LateDrops         uint64
	FirstTimestamp    time.Time
	LastTimestamp     time.Time
	AverageInterArrival time.Duration
	BandwidthMbps     float64
}

// Snapshot returns a point-in-time copy of this flow's statistics.
func (fs *FlowState) Snapshot() Snapshot {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	return Snapshot{
		FlowID:              fs.flowID,
		TrackGaps:           fs.trackGaps,
		FirstSeq:            fs.firstSeq,
		LastSeq:             fs.lastSeq,
		HighestSeq:          fs.highestSeq,
		ExpectedSeq:         fs.expectedSeq,
		PacketsReceived:     fs.packetsReceived,
		BytesReceived:       fs.bytesReceived,
		LostPackets:         fs.lostPackets,
		GapCount:            fs.gapCount,
		MinGapSize:          fs.minGapSize,
		MaxGapSize:          fs.maxGapSize,
		LateDrops:           fs.lateDrops,
		FirstTimestamp:      fs.firstTimestamp,
		LastTimestamp:       fs.lastTimestamp,
		AverageInterArrival: fs.averageInterArrivalLocked(),
		BandwidthMbps:       fs.bandwidthMbpsLocked(),
	}
}

func (fs *FlowState) averageInterArrivalLocked() time.Duration {
	if fs.interArrivalCount == 0 {
		return 0
	}
	return fs.interArrivalSum / time.Duration(fs.interArrivalCount)
}

func (fs *FlowState) bandwidthMbpsLocked() float64 {
	span := fs.lastTimestamp.Sub(fs.firstTimestamp)
	if span <= 0 {
		return 0
	}
	return float64(fs.bytesReceived) * 8 / span.Seconds() / 1e6
}

// recordStatsLocked updates the packet/byte/timing counters shared by every
// parsed packet regardless of whether its flow tracks gaps (spec §4.4).
// Must be called with fs.mu held.
func (fs *FlowState) recordStatsLocked(payloadLength int, ts time.Time) {
	fs.packetsReceived++
	fs.bytesReceived += uint64(payloadLength)

	if fs.firstTimestamp.IsZero() {
		fs.firstTimestamp = ts
	} else if !fs.lastTimestamp.IsZero() {
		fs.interArrivalSum += ts.Sub(fs.lastTimestamp)
		fs.interArrivalCount++
	}
	fs.lastTimestamp = ts
}
