// Package capturecmd implements "seqtrack capture", tracking sequence gaps
// from a live network interface.
package capturecmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/seqtrack/seqtrack/cmd/seqtrack/internal/runctx"
	"github.com/seqtrack/seqtrack/internal/capture"
	"github.com/seqtrack/seqtrack/internal/config"
	"github.com/seqtrack/seqtrack/internal/mempool"
	"github.com/seqtrack/seqtrack/internal/pipeline"
)

const (
	framePoolChunkBytes = 1 << 16  // 64 KiB, covers any Ethernet frame including jumbo
	framePoolSizeBytes  = 64 << 20 // 64 MiB of pooled frame storage
)

var (
	configFlag     string
	deviceFlag     string
	bpfFlag        string
	promiscFlag    bool
	dropOnFullFlag bool
)

// Cmd is the "capture" subcommand.
var Cmd = &cobra.Command{
	Use:          "capture",
	Short:        "Capture live traffic and track sequence gaps.",
	Long:         "Capture packets from a live network interface, tracking per-flow sequence gaps as they arrive.",
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	Cmd.Flags().StringVar(&configFlag, "config", "", "Path to a session YAML config. Flags below override its source section.")
	Cmd.Flags().StringVar(&deviceFlag, "device", "", "Network interface to capture from.")
	Cmd.Flags().StringVar(&bpfFlag, "bpf", "", "BPF filter expression applied at the capture handle.")
	Cmd.Flags().BoolVar(&promiscFlag, "promisc", true, "Open the interface in promiscuous mode.")
	Cmd.Flags().BoolVar(&dropOnFullFlag, "drop-on-full", false, "Drop packets instead of blocking when the internal queue is full.")
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return errors.Wrap(err, "build logger")
	}
	defer logger.Sync()

	pool, err := mempool.MakeFramePool(framePoolSizeBytes, framePoolChunkBytes)
	if err != nil {
		return errors.Wrap(err, "build frame pool")
	}

	backpressure := pipeline.Block
	if dropOnFullFlag {
		backpressure = pipeline.DropWithMetric
	}

	source := capture.NewLiveSource(cfg.Source.Device, cfg.Source.BPFFilter, pool,
		capture.WithPromiscuous(promiscFlag),
		capture.WithBackpressure(backpressure),
		capture.WithChannelCapacity(cfg.Pipeline.ChannelCapacity),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := source.Open(ctx); err != nil {
		return errors.Wrap(err, "open capture device")
	}
	defer source.Close()

	report, err := runctx.Run(ctx, cfg, source, logger)
	if err != nil {
		return err
	}

	logger.Info("capture session complete",
		zap.String("reason", report.Reason.String()),
		zap.Uint64("packets_processed", report.PacketsProcessed),
		zap.Uint64("unknown_protocol", report.UnknownProtocolCount),
		zap.Uint64("parse_errors", report.ParseErrorCount),
	)
	return nil
}

// loadConfig starts from --config (if given) and applies only the flags the
// caller explicitly set, so an unset flag's default never clobbers a value
// named in the config file.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	var cfg config.Config
	var err error
	if configFlag != "" {
		cfg, err = config.Load(configFlag)
		if err != nil {
			return cfg, err
		}
	}

	changed := cmd.Flags().Changed
	if changed("device") {
		cfg.Source.Device = deviceFlag
	}
	if cfg.Source.Device == "" {
		return cfg, errors.New("capture requires --device or a config file naming source.device")
	}
	cfg.Source.Mode = "capture"
	if changed("bpf") {
		cfg.Source.BPFFilter = bpfFlag
	}
	cfg.ApplyDefaults()

	return cfg, nil
}
