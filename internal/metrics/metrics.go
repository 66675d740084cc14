// Package metrics holds the Prometheus collectors the pipeline and
// tracker report through, registered once per process and scraped by the
// httpapi package's /metrics endpoint.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Collectors bundles every gauge/counter/histogram this session exposes.
// Construct one with NewCollectors and register it with a prometheus
// Registerer (production code uses prometheus.DefaultRegisterer; tests use
// a throwaway prometheus.NewRegistry()).
type Collectors struct {
	GapCount        prometheus.Counter
	LostPackets     prometheus.Counter
	LateDrops       prometheus.Counter
	UnknownProtocol prometheus.Counter
	ParseErrors     prometheus.Counter
	FlushDuration   prometheus.Histogram
	FlushFailures   prometheus.Counter
	FlowCount       prometheus.Gauge
}

// NewCollectors builds an unregistered Collectors set.
func NewCollectors() *Collectors {
	return &Collectors{
		GapCount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "seqtrack",
			Name:      "gap_count_total",
			Help:      "Number of SequenceGap records emitted (Case C) across all flows.",
		}),
		LostPackets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "seqtrack",
			Name:      "lost_packets_total",
			Help:      "Sum of emitted gap sizes across all flows; late-fill retractions are not subtracted.",
		}),
		LateDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "seqtrack",
			Name:      "late_drops_total",
			Help:      "Packets rejected as too far behind the reorder window (Case E).",
		}),
		UnknownProtocol: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "seqtrack",
			Name:      "unknown_protocol_total",
			Help:      "Frames no registered dispatcher recognized.",
		}),
		ParseErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "seqtrack",
			Name:      "parse_errors_total",
			Help:      "Frames a matched parser rejected as malformed.",
		}),
		FlushDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "seqtrack",
			Name:      "flush_duration_seconds",
			Help:      "Wall-clock time spent in one persistence-adapter flush.",
			Buckets:   prometheus.DefBuckets,
		}),
		FlushFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "seqtrack",
			Name:      "flush_failures_total",
			Help:      "Persistence adapter flush attempts that returned an error.",
		}),
		FlowCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "seqtrack",
			Name:      "flows_tracked",
			Help:      "Number of distinct flows currently held by the tracker.",
		}),
	}
}

// MustRegister registers every collector with reg, panicking on a
// duplicate-registration error the way main-package init code typically
// does for metrics that are only ever constructed once per process.
func (c *Collectors) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(
		c.GapCount,
		c.LostPackets,
		c.LateDrops,
		c.UnknownProtocol,
		c.ParseErrors,
		c.FlushDuration,
		c.FlushFailures,
		c.FlowCount,
	)
}
