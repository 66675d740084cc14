package tracker

import (
	"time"

	"github.com/seqtrack/seqtrack/internal/optionals"
)

// Process runs one packet through the five-case gap-detection state machine
// (spec §4.3) when trackGaps is true, and always updates the shared
// statistics (spec §4.4). It returns the SequenceGap emitted by Case C, if
// any.
func (fs *FlowState) Process(seq uint32, payloadLength int, ts time.Time) *SequenceGap {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.recordStatsLocked(payloadLength, ts)

	if !fs.trackGaps {
		fs.lastSeq = optionals.Some(seq)
		return nil
	}

	if fs.firstSeq.IsNone() {
		return fs.caseFirstPacketLocked(seq, ts)
	}

	expected := fs.expectedSeq
	switch {
	case seq == expected:
		fs.caseExactLocked(seq)
		return nil
	case seqAhead(seq, expected):
		return fs.caseAheadLocked(seq, ts)
	default:
		return fs.caseBehindWithLengthLocked(seq, payloadLength, ts)
	}
}

// caseFirstPacketLocked implements Case A.
func (fs *FlowState) caseFirstPacketLocked(seq uint32, ts time.Time) *SequenceGap {
	fs.firstSeq = optionals.Some(seq)
	fs.highestSeq = optionals.Some(seq)
	fs.lastSeq = optionals.Some(seq)
	fs.expectedSeq = seq + 1
	return nil
}

// caseExactLocked implements Case B: advance expected_seq, then drain the
// reorder buffer while it contains the new expected value.
func (fs *FlowState) caseExactLocked(seq uint32) {
	fs.expectedSeq = seq + 1
	fs.advanceHighestLocked(seq)
	fs.lastSeq = optionals.Some(seq)

	for {
		buffered, ok := fs.reorderBuffer[fs.expectedSeq]
		if !ok {
			break
		}
		delete(fs.reorderBuffer, fs.expectedSeq)
		fs.advanceHighestLocked(fs.expectedSeq)
		fs.expectedSeq++
		_ = buffered
	}
}

// caseAheadLocked implements Case C: the arrival is ahead of expected, so
// the intervening run is confirmed lost immediately. Gaps ahead are never
// buffered: buffering a single outlier would stall expected indefinitely on
// a moving stream.
func (fs *FlowState) caseAheadLocked(seq uint32, ts time.Time) *SequenceGap {
	expected := fs.expectedSeq
	gapSize := seqDistance(seq, expected)

	fs.lostPackets += uint64(gapSize)
	fs.gapCount++
	if fs.minGapSize == 0 || gapSize < fs.minGapSize {
		fs.minGapSize = gapSize
	}
	if gapSize > fs.maxGapSize {
		fs.maxGapSize = gapSize
	}

	fs.openGaps = append(fs.openGaps, &openGap{
		expected:  expected,
		received:  seq,
		remaining: gapSize,
	})

	fs.expectedSeq = seq + 1
	fs.advanceHighestLocked(seq)
	fs.lastSeq = optionals.Some(seq)

	return &SequenceGap{
		FlowID:    fs.flowID,
		Expected:  expected,
		Received:  seq,
		GapSize:   gapSize,
		Timestamp: ts,
	}
}

// caseBehindWithLengthLocked dispatches Case D (within the reorder window)
// or Case E (too far behind to trust).
func (fs *FlowState) caseBehindWithLengthLocked(seq uint32, length int, ts time.Time) *SequenceGap {
	fs.lastSeq = optionals.Some(seq)

	highest, _ := fs.highestSeq.Get()
	if !seqWithinWindow(highest, seq, fs.window) {
		// Case E: far behind, duplicate-or-stale.
		fs.lateDrops++
		return nil
	}

	// Case D: accept as a possible late-fill and buffer it.
	fs.retractLateFillLocked(seq)

	if _, exists := fs.reorderBuffer[seq]; !exists {
		fs.evictIfFullLocked()
		fs.reorderBuffer[seq] = bufferedPacket{timestamp: ts, length: length}
	}
	return nil
}

// retractLateFillLocked looks for an open gap whose missing span covers
// seq. If found, it counts as a partial fill: lost_packets decreases by one
// and the gap's remaining count decreases; a fully-filled gap is dropped
// from the open-gap list but its already-emitted SequenceGap record is left
// untouched, since the core contract only requires the counter to reflect
// net loss (persistence-side retraction representation is adapter-defined).
func (fs *FlowState) retractLateFillLocked(seq uint32) {
	for i, g := range fs.openGaps {
		if !g.covers(seq) {
			continue
		}
		g.remaining--
		if fs.lostPackets > 0 {
			fs.lostPackets--
		}
		if g.remaining == 0 {
			fs.openGaps = append(fs.openGaps[:i], fs.openGaps[i+1:]...)
		}
		return
	}
}

// evictIfFullLocked drops the oldest (smallest wrap-aware key, relative to
// expected_seq) buffered entry when the reorder buffer is at capacity. The
// fill/retraction bookkeeping in retractLateFillLocked already happened, if
// applicable, at insertion time, so eviction never further adjusts
// lost_packets: a buffered slot that filled a gap has already been counted,
// and one that did not was never counted to begin with.
func (fs *FlowState) evictIfFullLocked() {
	if uint32(len(fs.reorderBuffer)) < fs.window {
		return
	}

	var oldestKey uint32
	haveOldest := false
	for k := range fs.reorderBuffer {
		if !haveOldest || seqBehind(k, oldestKey) {
			oldestKey = k
			haveOldest = true
		}
	}
	if haveOldest {
		delete(fs.reorderBuffer, oldestKey)
	}
}

func (fs *FlowState) advanceHighestLocked(seq uint32) {
	current, ok := fs.highestSeq.Get()
	if !ok || seqAhead(seq, current) {
		fs.highestSeq = optionals.Some(seq)
	}
}
