package pipeline

import (
	"context"
	"time"

	"github.com/avast/retry-go/v4"
	"go.uber.org/zap"

	"github.com/seqtrack/seqtrack/internal/dispatch"
	"github.com/seqtrack/seqtrack/internal/frame"
	"github.com/seqtrack/seqtrack/internal/metrics"
	"github.com/seqtrack/seqtrack/internal/persistence"
	"github.com/seqtrack/seqtrack/internal/tracker"
)

// Pipeline wires a Source to the protocol registry and flow tracker, and
// drives the periodic flush to a persistence Adapter. One Pipeline serves
// one capture or replay session.
type Pipeline struct {
	cfg      Config
	registry *dispatch.Registry
	flows    *tracker.FlowTracker
	adapter  persistence.Adapter
	logger   *zap.Logger
	metrics  *metrics.Collectors

	health *healthWindow

	packetsSinceFlush      uint64
	pendingGaps            []tracker.SequenceGap
	consecutiveFails       int
	lateDropsReportedSoFar float64

	report Report
}

// New constructs a Pipeline. logger may be nil, in which case zap.NewNop()
// is used. collectors may be nil to run without Prometheus instrumentation.
func New(registry *dispatch.Registry, flows *tracker.FlowTracker, adapter persistence.Adapter, cfg Config, logger *zap.Logger, collectors *metrics.Collectors) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pipeline{
		cfg:      cfg,
		registry: registry,
		flows:    flows,
		adapter:  adapter,
		logger:   logger,
		metrics:  collectors,
	}
	p.health = newHealthWindow(cfg.HealthWindowSize, cfg.HealthWindowRatio, func(errors, total int) {
		logger.Warn("sustained parse error rate",
			zap.Int("errors", errors), zap.Int("window", total))
	})
	return p
}

// Run drains source until ctx is canceled or the source is exhausted,
// dispatching every packet through the registry and tracker and flushing
// to the adapter on the configured cadence. It always performs one final
// flush before returning, even on the fatal-shutdown path (spec §4.5).
func (p *Pipeline) Run(ctx context.Context, source Source) Report {
	ticker := time.NewTicker(p.cfg.FlushInterval)
	defer ticker.Stop()

	events := source.Events()

	for {
		select {
		case <-ctx.Done():
			p.flush(context.Background())
			p.report.Reason = ExternalInterrupt
			return p.report

		case ev, ok := <-events:
			if !ok {
				p.flush(context.Background())
				p.report.Reason = SourceExhausted
				return p.report
			}

			switch ev.Kind {
			case EventPacket:
				p.handlePacket(ev.Packet)
				if ev.Release != nil {
					ev.Release()
				}
				p.packetsSinceFlush++
				if p.packetsSinceFlush >= p.cfg.FlushThreshold {
					p.flush(ctx)
				}

			case EventLoopBoundary:
				p.flush(ctx)
				if err := p.adapter.OnLoopBoundary(ctx); err != nil {
					p.logger.Error("loop boundary notification failed", zap.Error(err))
				}
				p.flows.Reset()
				p.lateDropsReportedSoFar = 0

			case EventEndOfStream:
				p.flush(context.Background())
				p.report.Reason = SourceExhausted
				return p.report
			}

			if p.report.Reason == Fatal {
				return p.report
			}

		case <-ticker.C:
			p.flush(ctx)
			if p.report.Reason == Fatal {
				return p.report
			}
		}
	}
}

func (p *Pipeline) handlePacket(pkt frame.Packet) {
	parser, ok := p.registry.Dispatch(pkt.View)
	if !ok {
		p.report.UnknownProtocolCount++
		p.health.record(false)
		if p.metrics != nil {
			p.metrics.UnknownProtocol.Inc()
		}
		return
	}

	info, err := parser.Parse(pkt.View)
	if err != nil {
		p.report.ParseErrorCount++
		p.health.record(true)
		if p.metrics != nil {
			p.metrics.ParseErrors.Inc()
		}
		return
	}
	p.health.record(false)

	gap := p.flows.Track(*info, pkt.Timestamp)
	if gap != nil {
		p.pendingGaps = append(p.pendingGaps, *gap)
		if p.metrics != nil {
			p.metrics.GapCount.Inc()
			p.metrics.LostPackets.Add(float64(gap.GapSize))
		}
	}
	p.report.PacketsProcessed++
}

// flush asks the adapter to persist the current flow snapshot and any
// pending gaps. It is asynchronous to packet processing only in the sense
// that the pipeline does not block waiting on storage beyond the retry
// budget below; a failing flush retains its data for the next attempt
// rather than dropping it.
func (p *Pipeline) flush(ctx context.Context) {
	p.packetsSinceFlush = 0
	snapshot := p.flows.Snapshot()
	gaps := p.pendingGaps
	start := time.Now()

	if p.metrics != nil {
		var lateDrops uint64
		for _, s := range snapshot {
			lateDrops += s.LateDrops
		}
		p.metrics.LateDrops.Add(float64(lateDrops) - p.lateDropsReportedSoFar)
		p.lateDropsReportedSoFar = float64(lateDrops)
	}

	err := retry.Do(
		func() error {
			if serr := p.adapter.SnapshotFlows(ctx, snapshot); serr != nil {
				return serr
			}
			if len(gaps) > 0 {
				if serr := p.adapter.RecordGaps(ctx, gaps); serr != nil {
					return serr
				}
			}
			return nil
		},
		retry.Attempts(2),
		retry.Delay(50*time.Millisecond),
		retry.Context(ctx),
	)

	p.report.FlushCount++
	if p.metrics != nil {
		p.metrics.FlushDuration.Observe(time.Since(start).Seconds())
		p.metrics.FlowCount.Set(float64(p.flows.FlowCount()))
	}

	if err != nil {
		p.consecutiveFails++
		p.report.LastFlushErr = err
		p.logger.Error("flush failed",
			zap.Error(err), zap.Int("consecutive_failures", p.consecutiveFails))
		if p.metrics != nil {
			p.metrics.FlushFailures.Inc()
		}

		if p.consecutiveFails >= p.cfg.MaxConsecutiveFlushFailures {
			p.logger.Error("fatal: flush failure budget exceeded",
				zap.Int("max_consecutive_failures", p.cfg.MaxConsecutiveFlushFailures))
			p.report.Reason = Fatal
		}
		return
	}

	p.consecutiveFails = 0
	p.pendingGaps = nil
}
