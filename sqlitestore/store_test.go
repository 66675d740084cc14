package sqlitestore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seqtrack/seqtrack/internal/flowid"
	"github.com/seqtrack/seqtrack/internal/tracker"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seqtrack.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenRejectsSecondSessionOnSameFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seqtrack.db")
	first, err := Open(path)
	require.NoError(t, err)
	defer first.Close()

	_, err = Open(path)
	assert.Error(t, err)
}

func TestSnapshotFlowsUpsertsByGeneration(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	flow := flowid.MACsec{SCI: 0x42}

	require.NoError(t, s.SnapshotFlows(ctx, []tracker.Snapshot{
		{FlowID: flow, PacketsReceived: 10, GapCount: 1},
	}))
	require.NoError(t, s.SnapshotFlows(ctx, []tracker.Snapshot{
		{FlowID: flow, PacketsReceived: 20, GapCount: 2},
	}))

	var count int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM flow_snapshots WHERE flow_key = ?`, flow.Key().String()).Scan(&count))
	assert.Equal(t, 1, count)

	var packets int64
	require.NoError(t, s.db.QueryRow(`SELECT packets_received FROM flow_snapshots WHERE flow_key = ?`, flow.Key().String()).Scan(&packets))
	assert.Equal(t, int64(20), packets)
}

func TestOnLoopBoundarySegmentsGenerations(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	flow := flowid.MACsec{SCI: 0x7}

	require.NoError(t, s.SnapshotFlows(ctx, []tracker.Snapshot{{FlowID: flow, PacketsReceived: 1}}))
	require.NoError(t, s.OnLoopBoundary(ctx))
	require.NoError(t, s.SnapshotFlows(ctx, []tracker.Snapshot{{FlowID: flow, PacketsReceived: 2}}))

	var count int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM flow_snapshots WHERE flow_key = ?`, flow.Key().String()).Scan(&count))
	assert.Equal(t, 2, count)
}

func TestRecordGapsAppends(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	flow := flowid.MACsec{SCI: 0x9}

	require.NoError(t, s.RecordGaps(ctx, []tracker.SequenceGap{
		{FlowID: flow, Expected: 1, Received: 4, GapSize: 3, Timestamp: time.Unix(0, 0)},
		{FlowID: flow, Expected: 10, Received: 12, GapSize: 2, Timestamp: time.Unix(1, 0)},
	}))

	var count int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM sequence_gaps WHERE flow_key = ?`, flow.Key().String()).Scan(&count))
	assert.Equal(t, 2, count)
}

func TestRecordGapsEmptyBatchIsNoOp(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.RecordGaps(context.Background(), nil))

	var count int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM sequence_gaps`).Scan(&count))
	assert.Equal(t, 0, count)
}
