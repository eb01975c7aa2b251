package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blelink-protocol/blelink-go/pkg/heartbeat"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "blelink.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, heartbeat.DefaultInterval, cfg.Heartbeat.Interval.Std())
	assert.Equal(t, 5*time.Second, cfg.CommandTimeout.Std())
	assert.False(t, cfg.Reconnect.KeepQueue)
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
heartbeat:
  interval: 1s
  max_misses: 5
reconnect:
  keep_queue: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, time.Second, cfg.Heartbeat.Interval.Std())
	assert.Equal(t, 5, cfg.Heartbeat.MaxMisses)
	assert.True(t, cfg.Reconnect.KeepQueue)

	// Untouched fields keep their defaults.
	assert.Equal(t, heartbeat.DefaultProbeTimeout, cfg.Heartbeat.ProbeTimeout.Std())
	assert.Equal(t, 5*time.Second, cfg.CommandTimeout.Std())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadRejectsMalformedDuration(t *testing.T) {
	path := writeConfig(t, "heartbeat:\n  interval: soon\n")
	_, err := Load(path)
	assert.ErrorContains(t, err, "invalid duration")
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero interval", func(c *Config) { c.Heartbeat.Interval = 0 }},
		{"zero probe timeout", func(c *Config) { c.Heartbeat.ProbeTimeout = 0 }},
		{"zero misses", func(c *Config) { c.Heartbeat.MaxMisses = 0 }},
		{"zero sample interval", func(c *Config) { c.Quality.RSSISampleInterval = 0 }},
		{"max below initial", func(c *Config) { c.Reconnect.MaxBackoff = c.Reconnect.InitialBackoff / 2 }},
		{"multiplier one", func(c *Config) { c.Reconnect.Multiplier = 1 }},
		{"jitter out of range", func(c *Config) { c.Reconnect.Jitter = 1 }},
		{"zero command timeout", func(c *Config) { c.CommandTimeout = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestRegistryOptions(t *testing.T) {
	cfg := Default()
	cfg.Reconnect.KeepQueue = true
	opts := cfg.RegistryOptions()

	assert.Equal(t, cfg.Heartbeat.Interval.Std(), opts.Heartbeat.Interval)
	assert.Equal(t, cfg.Reconnect.InitialBackoff.Std(), opts.Backoff.Initial)
	assert.True(t, opts.KeepQueueOnReconnect)
}

func TestDurationRoundTrip(t *testing.T) {
	d := Duration(1500 * time.Millisecond)
	assert.Equal(t, "1.5s", d.String())

	out, err := d.MarshalYAML()
	require.NoError(t, err)
	assert.Equal(t, "1.5s", out)
}
