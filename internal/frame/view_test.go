package frame

import "testing"

func TestGetByteOutOfBounds(t *testing.T) {
	v := New([]byte{1, 2, 3})
	if got := v.GetByte(-1); got != 0 {
		t.Errorf("GetByte(-1) = %d, want 0", got)
	}
	if got := v.GetByte(3); got != 0 {
		t.Errorf("GetByte(3) = %d, want 0", got)
	}
}

func TestGetUint16(t *testing.T) {
	v := New([]byte{0x88, 0xE5})
	if got := v.GetUint16(0); got != 0x88E5 {
		t.Errorf("GetUint16(0) = %#x, want 0x88e5", got)
	}
	if got := v.GetUint16(1); got != 0 {
		t.Errorf("GetUint16(1) out of bounds should be 0, got %#x", got)
	}
}

func TestGetUint32And64(t *testing.T) {
	v := New([]byte{0x00, 0x00, 0x00, 0x2A, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88})
	if got := v.GetUint32(0); got != 42 {
		t.Errorf("GetUint32(0) = %d, want 42", got)
	}
	if got := v.GetUint64(4); got != 0x1122334455667788 {
		t.Errorf("GetUint64(4) = %#x, want 0x1122334455667788", got)
	}
}

func TestSubView(t *testing.T) {
	v := New([]byte{1, 2, 3, 4, 5})
	sub := v.SubView(1, 4)
	if sub.Len() != 3 {
		t.Fatalf("SubView len = %d, want 3", sub.Len())
	}
	if sub.GetByte(0) != 2 || sub.GetByte(2) != 4 {
		t.Errorf("SubView bytes = %v, want [2 3 4]", sub.Bytes())
	}

	if empty := v.SubView(4, 1); empty.Len() != 0 {
		t.Errorf("invalid range should yield empty view, got len %d", empty.Len())
	}
	if empty := v.SubView(0, 10); empty.Len() != 0 {
		t.Errorf("out of bounds range should yield empty view, got len %d", empty.Len())
	}
}

func TestEqual(t *testing.T) {
	a := New([]byte{1, 2, 3})
	b := New([]byte{1, 2, 3})
	c := New([]byte{1, 2, 4})
	if !a.Equal(b) {
		t.Error("expected a == b")
	}
	if a.Equal(c) {
		t.Error("expected a != c")
	}
}
