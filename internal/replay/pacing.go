package replay

import "time"

// Pacing is one of the four timing disciplines named in spec.md §4.6. Delay
// reports how long to wait, relative to the previous emission, before
// emitting the packet currently at curTs; isFirst suppresses any delay for
// the first packet of a generation.
type Pacing interface {
	Delay(prevTs, curTs time.Time, isFirst bool) time.Duration

	// RewritesTimestamp reports whether the engine should replace the
	// packet's PCAP timestamp with the wall-clock time of emission. Fast
	// and FixedRate ignore PCAP timing for pacing, so their output
	// timestamps are only meaningful as wall-clock; Original and
	// SpeedMultiplier reproduce PCAP deltas exactly and so keep the
	// original timestamps, giving bit-for-bit deterministic stats for a
	// given input file (spec §4.6 Determinism).
	RewritesTimestamp() bool
}

// Fast emits with no inter-packet delay.
type Fast struct{}

func (Fast) Delay(time.Time, time.Time, bool) time.Duration { return 0 }
func (Fast) RewritesTimestamp() bool                        { return true }

// Original reproduces the PCAP's inter-arrival deltas exactly.
type Original struct{}

func (Original) Delay(prevTs, curTs time.Time, isFirst bool) time.Duration {
	if isFirst {
		return 0
	}
	d := curTs.Sub(prevTs)
	if d < 0 {
		return 0
	}
	return d
}

func (Original) RewritesTimestamp() bool { return false }

// FixedRate emits at a constant rate, ignoring PCAP timestamps for pacing.
type FixedRate struct {
	PacketsPerSecond float64
}

func (p FixedRate) Delay(_, _ time.Time, isFirst bool) time.Duration {
	if isFirst || p.PacketsPerSecond <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / p.PacketsPerSecond)
}

func (p FixedRate) RewritesTimestamp() bool { return true }

// SpeedMultiplier reproduces Original's deltas divided by Multiplier.
type SpeedMultiplier struct {
	Multiplier float64
}

func (p SpeedMultiplier) Delay(prevTs, curTs time.Time, isFirst bool) time.Duration {
	if isFirst || p.Multiplier <= 0 {
		return 0
	}
	d := curTs.Sub(prevTs)
	if d < 0 {
		return 0
	}
	return time.Duration(float64(d) / p.Multiplier)
}

func (p SpeedMultiplier) RewritesTimestamp() bool { return false }
