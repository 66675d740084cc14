package persistence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seqtrack/seqtrack/internal/flowid"
	"github.com/seqtrack/seqtrack/internal/tracker"
)

func TestMemoryAdapterRetainsLastSnapshot(t *testing.T) {
	m := NewMemoryAdapter()
	ctx := context.Background()

	require.NoError(t, m.SnapshotFlows(ctx, []tracker.Snapshot{{}}))
	require.NoError(t, m.SnapshotFlows(ctx, []tracker.Snapshot{{}, {}}))

	assert.Len(t, m.LastSnapshot(), 2)
}

func TestMemoryAdapterAccumulatesGaps(t *testing.T) {
	m := NewMemoryAdapter()
	ctx := context.Background()
	flow := flowid.MACsec{SCI: 1}

	require.NoError(t, m.RecordGaps(ctx, []tracker.SequenceGap{{FlowID: flow, Expected: 1, Received: 3, GapSize: 2}}))
	require.NoError(t, m.RecordGaps(ctx, []tracker.SequenceGap{{FlowID: flow, Expected: 5, Received: 6, GapSize: 1}}))

	assert.Len(t, m.Gaps(), 2)
}

func TestMemoryAdapterLoopBoundaryAndClose(t *testing.T) {
	m := NewMemoryAdapter()
	ctx := context.Background()

	require.NoError(t, m.OnLoopBoundary(ctx))
	require.NoError(t, m.OnLoopBoundary(ctx))
	assert.Equal(t, 2, m.LoopBoundaries())

	assert.False(t, m.Closed())
	require.NoError(t, m.Close())
	assert.True(t, m.Closed())
}
