// Package frame provides a zero-copy view over a single captured packet's
// bytes. It is the borrow-only counterpart of the multi-buffer MemView used
// by stream reassemblers: a captured frame is already one contiguous slice,
// so View never needs to stitch buffers together, only to bounds-check reads
// into it.
package frame

import (
	"encoding/binary"
	"time"
)

// View borrows a packet's raw bytes. It does not copy or retain ownership;
// the caller must ensure the backing array outlives the View. Copying a
// View is cheap and safe: both copies observe the same bytes.
type View struct {
	data []byte
}

// New wraps data without copying it. The caller must not mutate data while
// the View (or any SubView derived from it) is in use.
func New(data []byte) View {
	return View{data: data}
}

// Len returns the number of bytes in the view.
func (v View) Len() int64 {
	return int64(len(v.data))
}

// Bytes returns the raw bytes backing this view. Callers must treat the
// result as read-only.
func (v View) Bytes() []byte {
	return v.data
}

// GetByte returns the byte at index, or 0 if index is out of bounds.
func (v View) GetByte(index int64) byte {
	if index < 0 || index >= v.Len() {
		return 0
	}
	return v.data[index]
}

// GetUint16 reads a big-endian uint16 at offset. Returns 0 if the read would
// go out of bounds.
func (v View) GetUint16(offset int64) uint16 {
	b := v.slice(offset, offset+2)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint16(b)
}

// GetUint32 reads a big-endian uint32 at offset. Returns 0 if the read would
// go out of bounds.
func (v View) GetUint32(offset int64) uint32 {
	b := v.slice(offset, offset+4)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}

// GetUint64 reads a big-endian uint64 at offset. Returns 0 if the read would
// go out of bounds.
func (v View) GetUint64(offset int64) uint64 {
	b := v.slice(offset, offset+8)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

func (v View) slice(start, end int64) []byte {
	if start < 0 || start > end || end > v.Len() {
		return nil
	}
	return v.data[start:end]
}

// SubView returns the byte range [start, end) as a new View sharing the same
// backing array. Returns an empty View if the range is invalid.
func (v View) SubView(start, end int64) View {
	b := v.slice(start, end)
	if b == nil {
		return View{}
	}
	return View{data: b}
}

// Equal reports whether two views observe identical bytes.
func (v View) Equal(other View) bool {
	if v.Len() != other.Len() {
		return false
	}
	for i := range v.data {
		if v.data[i] != other.data[i] {
			return false
		}
	}
	return true
}

// Packet pairs a borrowed frame with the timestamp at which it was captured.
// Packet itself does not own the backing storage of View; a source that
// reuses its read buffer between packets (e.g. a live NIC capture) must copy
// the bytes into storage it controls before handing a Packet downstream, see
// internal/mempool.
type Packet struct {
	View      View
	Timestamp time.Time
}
