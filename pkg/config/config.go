// Package config provides file-based configuration for a BLELink
// registry. Values load from YAML and overlay the library defaults, so a
// config file only needs the fields it changes.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/blelink-protocol/blelink-go/pkg/connection"
	"github.com/blelink-protocol/blelink-go/pkg/heartbeat"
	"github.com/blelink-protocol/blelink-go/pkg/registry"
)

// Config holds the tunable parameters of a registry and its devices.
type Config struct {
	// Heartbeat configures the liveness monitor.
	Heartbeat HeartbeatConfig `yaml:"heartbeat"`

	// Quality configures signal quality thresholds.
	Quality QualityConfig `yaml:"quality"`

	// Reconnect configures the automatic reconnect policy.
	Reconnect ReconnectConfig `yaml:"reconnect"`

	// CommandTimeout is the default per-command response timeout.
	CommandTimeout Duration `yaml:"command_timeout"`

	// LogFile, when set, enables the CBOR protocol log at this path.
	LogFile string `yaml:"log_file"`
}

// HeartbeatConfig mirrors heartbeat.Config in file form.
type HeartbeatConfig struct {
	// Interval is the time between liveness probes.
	Interval Duration `yaml:"interval"`

	// ProbeTimeout is the per-probe response timeout.
	ProbeTimeout Duration `yaml:"probe_timeout"`

	// MaxMisses is the consecutive miss count that marks the link dead.
	MaxMisses int `yaml:"max_misses"`
}

// QualityConfig holds signal quality tuning.
type QualityConfig struct {
	// RSSISampleInterval is the period between signal strength reads.
	RSSISampleInterval Duration `yaml:"rssi_sample_interval"`
}

// ReconnectConfig holds the reconnect backoff schedule and queue policy.
type ReconnectConfig struct {
	// InitialBackoff is the first reconnect delay.
	InitialBackoff Duration `yaml:"initial_backoff"`

	// MaxBackoff caps the reconnect delay.
	MaxBackoff Duration `yaml:"max_backoff"`

	// Multiplier grows the delay between attempts.
	Multiplier float64 `yaml:"multiplier"`

	// Jitter is the random fraction applied to each delay.
	Jitter float64 `yaml:"jitter"`

	// KeepQueue preserves queued commands across a reconnect.
	KeepQueue bool `yaml:"keep_queue"`
}

// Default returns the configuration matching the library defaults.
func Default() Config {
	return Config{
		Heartbeat: HeartbeatConfig{
			Interval:     Duration(heartbeat.DefaultInterval),
			ProbeTimeout: Duration(heartbeat.DefaultProbeTimeout),
			MaxMisses:    heartbeat.DefaultMaxMisses,
		},
		Quality: QualityConfig{
			RSSISampleInterval: Duration(registry.DefaultRSSISampleInterval),
		},
		Reconnect: ReconnectConfig{
			InitialBackoff: Duration(connection.InitialBackoff),
			MaxBackoff:     Duration(connection.MaxBackoff),
			Multiplier:     connection.BackoffMultiplier,
			Jitter:         connection.JitterFactor,
		},
		CommandTimeout: Duration(5 * time.Second),
	}
}

// Load reads a YAML config file and overlays it on the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the runtime cannot use.
func (c Config) Validate() error {
	if c.Heartbeat.Interval <= 0 {
		return fmt.Errorf("heartbeat interval must be positive, got %v", c.Heartbeat.Interval)
	}
	if c.Heartbeat.ProbeTimeout <= 0 {
		return fmt.Errorf("heartbeat probe timeout must be positive, got %v", c.Heartbeat.ProbeTimeout)
	}
	if c.Heartbeat.MaxMisses < 1 {
		return fmt.Errorf("heartbeat max misses must be at least 1, got %d", c.Heartbeat.MaxMisses)
	}
	if c.Quality.RSSISampleInterval <= 0 {
		return fmt.Errorf("rssi sample interval must be positive, got %v", c.Quality.RSSISampleInterval)
	}
	if c.Reconnect.InitialBackoff <= 0 {
		return fmt.Errorf("initial backoff must be positive, got %v", c.Reconnect.InitialBackoff)
	}
	if c.Reconnect.MaxBackoff < c.Reconnect.InitialBackoff {
		return fmt.Errorf("max backoff %v is below initial backoff %v", c.Reconnect.MaxBackoff, c.Reconnect.InitialBackoff)
	}
	if c.Reconnect.Multiplier <= 1 {
		return fmt.Errorf("backoff multiplier must exceed 1, got %v", c.Reconnect.Multiplier)
	}
	if c.Reconnect.Jitter < 0 || c.Reconnect.Jitter >= 1 {
		return fmt.Errorf("backoff jitter must be in [0, 1), got %v", c.Reconnect.Jitter)
	}
	if c.CommandTimeout <= 0 {
		return fmt.Errorf("command timeout must be positive, got %v", c.CommandTimeout)
	}
	return nil
}

// RegistryOptions converts the configuration into registry options.
func (c Config) RegistryOptions() registry.Options {
	return registry.Options{
		Heartbeat: heartbeat.Config{
			Interval:     c.Heartbeat.Interval.Std(),
			ProbeTimeout: c.Heartbeat.ProbeTimeout.Std(),
			MaxMisses:    c.Heartbeat.MaxMisses,
		},
		Backoff: connection.BackoffConfig{
			Initial:    c.Reconnect.InitialBackoff.Std(),
			Max:        c.Reconnect.MaxBackoff.Std(),
			Multiplier: c.Reconnect.Multiplier,
			Jitter:     c.Reconnect.Jitter,
		},
		RSSISampleInterval:   c.Quality.RSSISampleInterval.Std(),
		KeepQueueOnReconnect: c.Reconnect.KeepQueue,
	}
}
