package capture

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seqtrack/seqtrack/internal/mempool"
	"github.com/seqtrack/seqtrack/internal/pipeline"
)

// fakeHandle implements packetDataSource over a fixed slice of frames,
// returning io.EOF-equivalent (a plain error) once exhausted, mirroring a
// dead NIC rather than a clean end-of-file (live capture has no EOF).
type fakeHandle struct {
	frames [][]byte
	idx    int
	closed bool
}

func (f *fakeHandle) ReadPacketData() ([]byte, gopacket.CaptureInfo, error) {
	if f.idx >= len(f.frames) {
		return nil, gopacket.CaptureInfo{}, errors.New("no more frames")
	}
	data := f.frames[f.idx]
	f.idx++
	return data, gopacket.CaptureInfo{Timestamp: time.Unix(int64(f.idx), 0)}, nil
}

func (f *fakeHandle) LinkType() layers.LinkType { return layers.LinkTypeEthernet }
func (f *fakeHandle) SetBPFFilter(string) error { return nil }
func (f *fakeHandle) Close()                    { f.closed = true }

func newTestPool(t *testing.T) mempool.FramePool {
	t.Helper()
	pool, err := mempool.MakeFramePool(1<<20, 2048)
	require.NoError(t, err)
	return pool
}

func TestLiveSourceEmitsEndOfStreamAfterRetriedReadFailure(t *testing.T) {
	pool := newTestPool(t)
	handle := &fakeHandle{frames: [][]byte{{1, 2, 3}}}

	src := NewLiveSource("eth0", "", pool)
	src.openLive = func(string, int32, bool, time.Duration) (packetDataSource, error) {
		return handle, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, src.Open(ctx))

	var gotPacket, gotEOS bool
	for ev := range src.Events() {
		switch ev.Kind {
		case pipeline.EventPacket:
			gotPacket = true
			if ev.Release != nil {
				ev.Release()
			}
		case pipeline.EventEndOfStream:
			gotEOS = true
		}
	}

	assert.True(t, gotPacket)
	assert.True(t, gotEOS)
	assert.True(t, handle.closed)
}

func TestLiveSourceOpenFailurePropagatesOpenFailedKind(t *testing.T) {
	pool := newTestPool(t)
	src := NewLiveSource("eth0", "", pool)
	src.openLive = func(string, int32, bool, time.Duration) (packetDataSource, error) {
		return nil, errors.New("device busy")
	}

	err := src.Open(context.Background())
	require.Error(t, err)

	var capErr *Error
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, OpenFailed, capErr.Kind)
}

func TestLiveSourceDropsUnderMetricBackpressureWhenChannelFull(t *testing.T) {
	pool := newTestPool(t)
	frames := make([][]byte, 20)
	for i := range frames {
		frames[i] = []byte{byte(i), 2, 3}
	}
	handle := &fakeHandle{frames: frames}

	src := NewLiveSource("eth0", "", pool,
		WithBackpressure(pipeline.DropWithMetric),
		WithChannelCapacity(1))
	src.openLive = func(string, int32, bool, time.Duration) (packetDataSource, error) {
		return handle, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	require.NoError(t, src.Open(ctx))

	time.Sleep(50 * time.Millisecond)
	cancel()
	for range src.Events() {
	}

	assert.True(t, src.DroppedCount() > 0)
}
