// Package config loads a session's YAML configuration and watches it for
// changes, the way the teacher's telemetry-agent main.go loads its
// Config struct with yaml.v3 and applies a handful of zero-value defaults.
package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Source selects where the pipeline reads packets from.
type Source struct {
	// Mode is "capture" or "replay".
	Mode string `yaml:"mode"`
	// Device names a live NIC when Mode is "capture".
	Device string `yaml:"device"`
	// PCAPPath names a file when Mode is "replay".
	PCAPPath string `yaml:"pcap_path"`
	// BPFFilter is applied at the handle regardless of mode.
	BPFFilter string `yaml:"bpf_filter"`
}

// Replay configures the replay engine. Ignored when Source.Mode is
// "capture".
type Replay struct {
	// Discipline is one of "fast", "original", "fixed_rate", "speed_multiplier".
	Discipline string  `yaml:"discipline"`
	PPS        float64 `yaml:"pps"`
	Multiplier float64 `yaml:"multiplier"`
	Loop       bool    `yaml:"loop"`
}

// Tracker configures the flow tracker's reorder window.
type Tracker struct {
	ReorderWindow uint32 `yaml:"reorder_window"`
}

// Pipeline configures flush cadence and failure budget.
type Pipeline struct {
	FlushIntervalSeconds        int `yaml:"flush_interval_seconds"`
	FlushThreshold              int `yaml:"flush_threshold"`
	MaxConsecutiveFlushFailures int `yaml:"max_consecutive_flush_failures"`
	ChannelCapacity             int `yaml:"channel_capacity"`
}

// Persistence selects and configures the durable store.
type Persistence struct {
	// Driver is "memory" or "sqlite".
	Driver   string `yaml:"driver"`
	SQLitePath string `yaml:"sqlite_path"`
}

// HTTPAPI configures the read-only query surface.
type HTTPAPI struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// Config is one session's complete configuration.
type Config struct {
	Source      Source      `yaml:"source"`
	Replay      Replay      `yaml:"replay"`
	Tracker     Tracker     `yaml:"tracker"`
	Pipeline    Pipeline    `yaml:"pipeline"`
	Persistence Persistence `yaml:"persistence"`
	HTTPAPI     HTTPAPI     `yaml:"http_api"`
}

// FlushInterval returns Pipeline.FlushIntervalSeconds as a time.Duration.
func (c Config) FlushInterval() time.Duration {
	return time.Duration(c.Pipeline.FlushIntervalSeconds) * time.Second
}

// Default returns a Config with every field at its documented default,
// for callers (e.g. CLI flag parsing) that build a Config without going
// through Load.
func Default() Config {
	var cfg Config
	cfg.applyDefaults()
	return cfg
}

// ApplyDefaults fills in zero-valued fields in place. Load calls this
// automatically; callers assembling a Config directly from flags should
// call it once after overriding fields they care about.
func (c *Config) ApplyDefaults() {
	c.applyDefaults()
}

// applyDefaults fills in zero-valued fields with the defaults named across
// spec.md §4.3-§4.5 and §7, the same way the teacher's loadConfig backfills
// Performance.BufferSize and FlushInterval when the YAML omits them.
func (c *Config) applyDefaults() {
	if c.Tracker.ReorderWindow == 0 {
		c.Tracker.ReorderWindow = 32
	}
	if c.Pipeline.FlushIntervalSeconds == 0 {
		c.Pipeline.FlushIntervalSeconds = 5
	}
	if c.Pipeline.FlushThreshold == 0 {
		c.Pipeline.FlushThreshold = 10000
	}
	if c.Pipeline.MaxConsecutiveFlushFailures == 0 {
		c.Pipeline.MaxConsecutiveFlushFailures = 3
	}
	if c.Pipeline.ChannelCapacity == 0 {
		c.Pipeline.ChannelCapacity = 10000
	}
	if c.Persistence.Driver == "" {
		c.Persistence.Driver = "memory"
	}
	if c.Replay.Discipline == "" {
		c.Replay.Discipline = "original"
	}
}

// Load reads and parses the YAML file at path, applying defaults to any
// field the file leaves at its zero value.
func Load(path string) (Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "read config file")
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrap(err, "parse config file")
	}

	cfg.applyDefaults()
	return cfg, nil
}
