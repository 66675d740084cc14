// Package runctx builds and runs one pipeline session from a loaded
// config.Config, shared by the capture and replay subcommands so neither
// duplicates adapter/metrics/query-surface wiring.
package runctx

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/seqtrack/seqtrack/httpapi"
	"github.com/seqtrack/seqtrack/internal/config"
	"github.com/seqtrack/seqtrack/internal/dispatch"
	"github.com/seqtrack/seqtrack/internal/metrics"
	"github.com/seqtrack/seqtrack/internal/persistence"
	"github.com/seqtrack/seqtrack/internal/pipeline"
	"github.com/seqtrack/seqtrack/internal/tracker"
	"github.com/seqtrack/seqtrack/sqlitestore"
)

// BuildAdapter constructs the persistence.Adapter named by cfg.Persistence.
// memAdapter is non-nil only when the driver is "memory", letting the query
// surface serve gap history directly; a sqlite-backed session serves /gaps
// as an empty list (spec: the query surface reads the tracker's live state,
// not a round-trip through storage).
func BuildAdapter(cfg config.Config) (adapter persistence.Adapter, memAdapter *persistence.MemoryAdapter, err error) {
	switch cfg.Persistence.Driver {
	case "sqlite":
		store, err := sqlitestore.Open(cfg.Persistence.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	default:
		mem := persistence.NewMemoryAdapter()
		return mem, mem, nil
	}
}

// Run wires a registry, flow tracker, persistence adapter, metrics, and
// optionally the HTTP query surface around src, then drives it to
// completion. It owns the adapter's lifetime: Close is always called,
// even if the pipeline exits early.
func Run(ctx context.Context, cfg config.Config, src pipeline.Source, logger *zap.Logger) (pipeline.Report, error) {
	adapter, memAdapter, err := BuildAdapter(cfg)
	if err != nil {
		return pipeline.Report{}, err
	}
	defer adapter.Close()

	registry := dispatch.NewRegistry()
	flows := tracker.NewFlowTrackerWithWindow(cfg.Tracker.ReorderWindow)

	collectors := metrics.NewCollectors()
	collectors.MustRegister(prometheus.DefaultRegisterer)

	pipelineCfg := pipeline.DefaultConfig()
	pipelineCfg.FlushInterval = cfg.FlushInterval()
	pipelineCfg.FlushThreshold = uint64(cfg.Pipeline.FlushThreshold)
	pipelineCfg.MaxConsecutiveFlushFailures = cfg.Pipeline.MaxConsecutiveFlushFailures

	p := pipeline.New(registry, flows, adapter, pipelineCfg, logger, collectors)

	if cfg.HTTPAPI.Enabled {
		server := httpapi.NewServer(cfg.HTTPAPI.Listen, flows, memAdapter, logger)
		go func() {
			if err := server.Run(ctx); err != nil {
				logger.Warn("http query surface exited", zap.Error(err))
			}
		}()
	}

	report := p.Run(ctx, src)
	return report, nil
}
