package pipeline

// healthWindow tracks the parse-error rate over the last windowSize
// packets. It raises a warning (via the callback) at most once per window
// when the error ratio reaches the configured threshold, then resets.
type healthWindow struct {
	size    int
	ratio   float64
	total   int
	errors  int
	onWarn  func(errors, total int)
}

func newHealthWindow(size int, ratio float64, onWarn func(errors, total int)) *healthWindow {
	if size <= 0 {
		size = 1000
	}
	return &healthWindow{size: size, ratio: ratio, onWarn: onWarn}
}

// record accounts for one packet outcome. isParseError is true if the
// packet was rejected by a parser (ParseError), false for anything else
// (a successful parse, or a frame with no registered parser).
func (h *healthWindow) record(isParseError bool) {
	h.total++
	if isParseError {
		h.errors++
	}

	if h.total < h.size {
		return
	}

	if h.ratio > 0 && float64(h.errors)/float64(h.total) >= h.ratio && h.onWarn != nil {
		h.onWarn(h.errors, h.total)
	}
	h.total = 0
	h.errors = 0
}
