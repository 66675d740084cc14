package tracker

// seqAhead reports whether a is ahead of b in wrap-aware 32-bit sequence
// space: (a - b) mod 2^32 is in (0, 2^31). Equivalently, the signed
// interpretation of the 32-bit difference a-b is positive. At the exact
// half-way distance 2^31 the numerically larger value counts as ahead, so
// for any a != b exactly one of the two is ahead of the other. This is the
// only comparison permitted for sequence numbers (spec §4.3); plain numeric
// comparison breaks at wraparound.
func seqAhead(a, b uint32) bool {
	d := a - b
	return int32(d) > 0 || (d == 1<<31 && a > b)
}

// seqBehind reports whether a is behind b: neither ahead nor equal.
func seqBehind(a, b uint32) bool {
	return a != b && !seqAhead(a, b)
}

// seqDistance returns the wrap-aware forward distance from b to a, i.e. the
// number of steps to advance b by to reach a. Only meaningful when a is
// ahead of or equal to b.
func seqDistance(a, b uint32) uint32 {
	return a - b
}

// seqWithinWindow reports whether a is within window steps behind b
// (wrap-aware): 0 < seqDistance(b, a) <= window.
func seqWithinWindow(b, a uint32, window uint32) bool {
	d := seqDistance(b, a)
	return d > 0 && d <= window
}
