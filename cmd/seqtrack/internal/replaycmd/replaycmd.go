// Package replaycmd implements "seqtrack replay", driving a PCAP file
// through the pipeline at one of four pacing disciplines.
package replaycmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/seqtrack/seqtrack/cmd/seqtrack/internal/runctx"
	"github.com/seqtrack/seqtrack/internal/config"
	"github.com/seqtrack/seqtrack/internal/mempool"
	"github.com/seqtrack/seqtrack/internal/replay"
)

const (
	framePoolChunkBytes = 1 << 16  // 64 KiB, covers any Ethernet frame including jumbo
	framePoolSizeBytes  = 64 << 20 // 64 MiB of pooled frame storage
)

var (
	configFlag     string
	pcapFlag       string
	disciplineFlag string
	ppsFlag        float64
	multiplierFlag float64
	loopFlag       bool
	bpfFlag        string
)

// Cmd is the "replay" subcommand.
var Cmd = &cobra.Command{
	Use:          "replay",
	Short:        "Replay a PCAP file and track sequence gaps.",
	Long:         "Drive a PCAP file through the pipeline at a chosen pacing discipline, tracking per-flow sequence gaps as it goes.",
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	Cmd.Flags().StringVar(&configFlag, "config", "", "Path to a session YAML config. Flags below override its source/replay section.")
	Cmd.Flags().StringVar(&pcapFlag, "pcap", "", "Path to the PCAP file to replay.")
	Cmd.Flags().StringVar(&disciplineFlag, "discipline", "original", "Pacing discipline: fast, original, fixed_rate, speed_multiplier.")
	Cmd.Flags().Float64Var(&ppsFlag, "pps", 1000, "Packets per second for the fixed_rate discipline.")
	Cmd.Flags().Float64Var(&multiplierFlag, "multiplier", 1.0, "Speed multiplier for the speed_multiplier discipline.")
	Cmd.Flags().BoolVar(&loopFlag, "loop", false, "Restart from the beginning of the file on EOF instead of terminating.")
	Cmd.Flags().StringVar(&bpfFlag, "bpf", "", "BPF filter expression applied to the replayed file.")
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

	pacing, err := choosePacing(cfg)
	if err != nil {
		return err
	}

	pool, err := mempool.MakeFramePool(framePoolSizeBytes, framePoolChunkBytes)
	if err != nil {
		return errors.Wrap(err, "build frame pool")
	}

	engine := replay.NewEngine(cfg.Source.PCAPPath, cfg.Source.BPFFilter, pacing, pool,
		replay.WithLoop(cfg.Replay.Loop),
		replay.WithChannelCapacity(cfg.Pipeline.ChannelCapacity),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := engine.Open(ctx); err != nil {
		return errors.Wrap(err, "open replay source")
	}
	defer engine.Close()

	report, err := runctx.Run(ctx, cfg, engine, logger)
	if err != nil {
		return err
	}

	logger.Info("replay session complete",
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
	if changed("pcap") {
		cfg.Source.PCAPPath = pcapFlag
	}
	if cfg.Source.PCAPPath == "" {
		return cfg, errors.New("replay requires --pcap or a config file naming source.pcap_path")
	}
	cfg.Source.Mode = "replay"
	if changed("bpf") {
		cfg.Source.BPFFilter = bpfFlag
	}
	if changed("discipline") || cfg.Replay.Discipline == "" {
		cfg.Replay.Discipline = disciplineFlag
	}
	if changed("pps") {
		cfg.Replay.PPS = ppsFlag
	}
	if changed("multiplier") {
		cfg.Replay.Multiplier = multiplierFlag
	}
	if changed("loop") {
		cfg.Replay.Loop = loopFlag
	}
	cfg.ApplyDefaults()

	return cfg, nil
}

func choosePacing(cfg config.Config) (replay.Pacing, error) {
	switch cfg.Replay.Discipline {
	case "fast":
		return replay.Fast{}, nil
	case "original", "":
		return replay.Original{}, nil
	case "fixed_rate":
		return replay.FixedRate{PacketsPerSecond: cfg.Replay.PPS}, nil
	case "speed_multiplier":
		return replay.SpeedMultiplier{Multiplier: cfg.Replay.Multiplier}, nil
	default:
		return nil, errors.Errorf("unknown pacing discipline %q", cfg.Replay.Discipline)
	}
}
