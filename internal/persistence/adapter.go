// Package persistence defines the contract between the pipeline and
// whatever owns durable storage of flow statistics and gap records. The
// core never imports a concrete store; sqlitestore is the reference
// implementation of this contract.
package persistence

import (
	"context"

	"github.com/seqtrack/seqtrack/internal/tracker"
)

// Adapter is the persistence contract consumed by the pipeline. The
// pipeline calls these methods inline from its consumer loop and waits for
// each to return, so storage I/O time is time the next packet waits.
type Adapter interface {
	// SnapshotFlows accepts an immutable snapshot of per-flow statistics
	// taken at a flush boundary.
	SnapshotFlows(ctx context.Context, snapshot []tracker.Snapshot) error

	// RecordGaps accepts a batch of newly observed SequenceGap records
	// since the previous flush.
	RecordGaps(ctx context.Context, gaps []tracker.SequenceGap) error

	// OnLoopBoundary notifies the adapter that subsequent records belong
	// to a new replay generation. Called after the flush that drains the
	// generation being closed, before the tracker is reset.
	OnLoopBoundary(ctx context.Context) error

	// Close releases any resources the adapter holds (file handles,
	// connections). Called once, during pipeline shutdown, after the
	// final flush.
	Close() error
}
