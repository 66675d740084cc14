package tracker

import (
	"time"

	"github.com/alphadose/haxmap"

	"github.com/seqtrack/seqtrack/internal/flowid"
)

// Kind classifies a TrackerError: an internal invariant violation rather
// than a malformed-input condition (those are ParseErrors, handled in
// internal/dispatch).
type Kind uint8

const (
	// ReorderBufferOverflow names a flow whose reorder buffer holds more
	// than its configured window of entries, which evictIfFullLocked's
	// check-before-insert discipline keeps from happening. No code in this
	// module checks for it.
	ReorderBufferOverflow Kind = iota + 1
)

// Error reports a tracker invariant violation. Track and Process never
// return one, and nothing in this module constructs one or resets a flow
// in response to it.
type Error struct {
	Kind   Kind
	FlowID flowid.FlowId
}

func (e *Error) Error() string {
	return "tracker: invariant violated for flow " + e.FlowID.String()
}

// FlowTracker owns the concurrent flow-state map. Flows are created lazily
// on first packet and never removed except by Reset (loop boundary). The
// underlying map is lock-free (haxmap); per-flow read-modify-write fields
// are serialized by FlowState's own mutex, so independent flows never
// contend with one another.
type FlowTracker struct {
	window uint32
	flows  *haxmap.Map[flowid.FlowKey, *FlowState]
}

// NewFlowTracker constructs an empty tracker with the default reorder
// window.
func NewFlowTracker() *FlowTracker {
	return NewFlowTrackerWithWindow(DefaultReorderWindow)
}

// NewFlowTrackerWithWindow is NewFlowTracker with an explicit W.
func NewFlowTrackerWithWindow(window uint32) *FlowTracker {
	return &FlowTracker{
		window: window,
		flows:  haxmap.New[flowid.FlowKey, *FlowState](),
	}
}

// Track processes one parsed packet, creating the flow's state lazily on
// first arrival. It returns the SequenceGap emitted by Case C, if any.
func (t *FlowTracker) Track(info flowid.SequenceInfo, ts time.Time) *SequenceGap {
	key := info.FlowID.Key()

	state, ok := t.flows.Get(key)
	if !ok {
		// Packets of a single flow arrive from one producer in the reference
		// design (spec §4.4), so a lost race here can only happen across
		// distinct producers sharing a flow key on the very first packet; the
		// loser's state is discarded rather than merged, matching the
		// single-producer-per-flow assumption the rest of the tracker relies on.
		state = NewFlowStateWithWindow(info.FlowID, info.TrackGaps, t.window)
		t.flows.Set(key, state)
	}

	return state.Process(info.SequenceNumber, info.PayloadLength, ts)
}

// Snapshot returns a point-in-time copy of every tracked flow's statistics.
func (t *FlowTracker) Snapshot() []Snapshot {
	snapshots := make([]Snapshot, 0, int(t.flows.Len()))
	t.flows.ForEach(func(_ flowid.FlowKey, fs *FlowState) bool {
		snapshots = append(snapshots, fs.Snapshot())
		return true
	})
	return snapshots
}

// FlowCount returns the number of distinct flows currently tracked.
func (t *FlowTracker) FlowCount() uintptr {
	return t.flows.Len()
}

// Reset clears all flow state. Called at a replay loop boundary (spec
// §4.6): sequence numbers in a re-driven PCAP restart at whatever value the
// original capture began with, which must not be interpreted as a gap
// relative to the previous generation.
func (t *FlowTracker) Reset() {
	t.flows = haxmap.New[flowid.FlowKey, *FlowState]()
}

// ResetFlow clears a single flow's state without touching other flows,
// recreating it with gap tracking enabled. The pipeline does not call it.
func (t *FlowTracker) ResetFlow(flowID flowid.FlowId) {
	t.flows.Set(flowID.Key(), NewFlowStateWithWindow(flowID, true, t.window))
}
