// Package mempool provides a fixed-size byte-slice pool used by live capture
// to copy a packet's bytes out of a read buffer that the capture source
// reuses across calls (e.g. gopacket/pcap hands back the same backing array
// on every PacketData call). Without a copy, a frame.View taken from that
// buffer would alias the next captured packet's bytes as soon as the source
// reads again.
package mempool

import (
	"fmt"

	"github.com/seqtrack/seqtrack/internal/frame"
)

// A FramePool hands out fixed-size byte slices for copying captured frames
// out of a reused read buffer, and accepts them back once a frame has been
// persisted or otherwise consumed.
type FramePool interface {
	// CopyFrame copies src into a slice drawn from the pool and returns a View
	// over the copy along with a release function. The caller must call
	// release once the View (and anything derived from it, such as a
	// frame.Packet) is no longer needed. If src is larger than the pool's
	// chunk size, CopyFrame falls back to a heap allocation and release is a
	// no-op.
	CopyFrame(src []byte) (v frame.View, release func())
}

// MakeFramePool creates a new FramePool. Up to maxPoolSize_bytes of chunks
// will be pooled, each of size chunkSize_bytes; chunkSize_bytes should be at
// least the largest frame the capture source will hand back (65535 covers
// any Ethernet-framed packet including jumbo frames).
func MakeFramePool(maxPoolSize_bytes int64, chunkSize_bytes int64) (FramePool, error) {
	if chunkSize_bytes < 1 {
		return nil, fmt.Errorf("invalid chunkSize_bytes %d", chunkSize_bytes)
	}
	if maxPoolSize_bytes < chunkSize_bytes {
		return nil, fmt.Errorf("invalid maxPoolSize_bytes %d", maxPoolSize_bytes)
	}

	numChunks := maxPoolSize_bytes / chunkSize_bytes
	chunks := make(chan []byte, numChunks)
	for count := 0; count < int(numChunks); count++ {
		chunks <- make([]byte, chunkSize_bytes)
	}

	return &framePool{
		chunks:          chunks,
		chunkSize_bytes: int(chunkSize_bytes),
	}, nil
}

type framePool struct {
	chunks          chan []byte
	chunkSize_bytes int
}

var _ FramePool = (*framePool)(nil)

func (p *framePool) CopyFrame(src []byte) (frame.View, func()) {
	if len(src) > p.chunkSize_bytes {
		cp := make([]byte, len(src))
		copy(cp, src)
		return frame.New(cp), func() {}
	}

	chunk := p.getChunk()
	if chunk == nil {
		cp := make([]byte, len(src))
		copy(cp, src)
		return frame.New(cp), func() {}
	}

	n := copy(chunk, src)
	released := false
	release := func() {
		if released {
			return
		}
		released = true
		p.release(chunk)
	}
	return frame.New(chunk[:n]), release
}

// Obtains a chunk from the pool. Returns nil if the pool is empty.
func (p *framePool) getChunk() []byte {
	select {
	case result := <-p.chunks:
		return result
	default:
		return nil
	}
}

// Releases chunk back to the pool. Drops it if the pool is already full,
// which can only happen if a caller double-releases.
func (p *framePool) release(chunk []byte) {
	chunk = chunk[:cap(chunk)]
	select {
	case p.chunks <- chunk:
	default:
	}
}
