package persistence

import (
	"context"
	"sync"

	"github.com/seqtrack/seqtrack/internal/tracker"
)

// MemoryAdapter is an in-process Adapter that retains the most recent
// snapshot and every recorded gap. It never fails, which makes it useful
// both as a test double and as a default for sessions that don't need
// durable storage.
type MemoryAdapter struct {
	mu            sync.Mutex
	lastSnapshot  []tracker.Snapshot
	gaps          []tracker.SequenceGap
	loopBoundarys int
	closed        bool
}

// NewMemoryAdapter constructs an empty MemoryAdapter.
func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{}
}

var _ Adapter = (*MemoryAdapter)(nil)

func (m *MemoryAdapter) SnapshotFlows(_ context.Context, snapshot []tracker.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastSnapshot = append([]tracker.Snapshot(nil), snapshot...)
	return nil
}

func (m *MemoryAdapter) RecordGaps(_ context.Context, gaps []tracker.SequenceGap) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gaps = append(m.gaps, gaps...)
	return nil
}

func (m *MemoryAdapter) OnLoopBoundary(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loopBoundarys++
	return nil
}

func (m *MemoryAdapter) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// LastSnapshot returns the most recently submitted snapshot.
func (m *MemoryAdapter) LastSnapshot() []tracker.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]tracker.Snapshot(nil), m.lastSnapshot...)
}

// Gaps returns every gap recorded so far, in submission order.
func (m *MemoryAdapter) Gaps() []tracker.SequenceGap {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]tracker.SequenceGap(nil), m.gaps...)
}

// LoopBoundaries returns how many times OnLoopBoundary was called.
func (m *MemoryAdapter) LoopBoundaries() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loopBoundarys
}

// Closed reports whether Close has been called.
func (m *MemoryAdapter) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
