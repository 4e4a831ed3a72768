package regulator

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.NoError(t, cfg.Validate())

	// Ranges are ordered and non-degenerate.
	assert.Greater(t, cfg.Video.Min, uint32(0))
	assert.Greater(t, cfg.Video.Max, cfg.Video.Min)
	assert.Greater(t, cfg.Audio.Min, uint32(0))
	assert.Greater(t, cfg.Audio.Max, cfg.Audio.Min)

	// AIMD parameters stay fractional.
	assert.Greater(t, cfg.IncreaseStep, 0.0)
	assert.Less(t, cfg.IncreaseStep, 1.0)
	assert.Greater(t, cfg.DecreaseMultiplier, 0.0)
	assert.Less(t, cfg.DecreaseMultiplier, 1.0)

	// Severe thresholds sit above mild ones.
	assert.Greater(t, cfg.SevereRetransmitPercent, cfg.MildRetransmitPercent)
	assert.Greater(t, cfg.SevereRTT, cfg.MildRTT)
	assert.Greater(t, cfg.SevereBufferDepth, cfg.MildBufferDepth)

	assert.Greater(t, cfg.RecoveryBackoff, time.Duration(0))
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero video min", func(c *Config) { c.Video.Min = 0 }},
		{"video max below min", func(c *Config) { c.Video.Max = c.Video.Min }},
		{"zero audio min", func(c *Config) { c.Audio.Min = 0 }},
		{"audio max below min", func(c *Config) { c.Audio.Max = c.Audio.Min }},
		{"zero increase step", func(c *Config) { c.IncreaseStep = 0 }},
		{"increase step of one", func(c *Config) { c.IncreaseStep = 1.0 }},
		{"zero decrease multiplier", func(c *Config) { c.DecreaseMultiplier = 0 }},
		{"decrease multiplier of one", func(c *Config) { c.DecreaseMultiplier = 1.0 }},
		{"zero mild retransmit percent", func(c *Config) { c.MildRetransmitPercent = 0 }},
		{"severe retransmit below mild", func(c *Config) { c.SevereRetransmitPercent = c.MildRetransmitPercent }},
		{"zero mild RTT", func(c *Config) { c.MildRTT = 0 }},
		{"severe RTT below mild", func(c *Config) { c.SevereRTT = c.MildRTT }},
		{"zero mild buffer depth", func(c *Config) { c.MildBufferDepth = 0 }},
		{"severe buffer depth below mild", func(c *Config) { c.SevereBufferDepth = c.MildBufferDepth }},
		{"zero recovery backoff", func(c *Config) { c.RecoveryBackoff = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadProfileOverlaysDefaults(t *testing.T) {
	profile := `
video:
  min: 500000
  max: 4000000
decrease_multiplier: 0.7
severe_rtt: 800ms
recovery_backoff: 10s
`
	path := writeProfile(t, profile)

	cfg, err := LoadProfile(path)
	require.NoError(t, err)

	// Overlaid values.
	assert.Equal(t, Range{Min: 500_000, Max: 4_000_000}, cfg.Video)
	assert.Equal(t, 0.7, cfg.DecreaseMultiplier)
	assert.Equal(t, 800*time.Millisecond, cfg.SevereRTT)
	assert.Equal(t, 10*time.Second, cfg.RecoveryBackoff)

	// Absent keys keep defaults.
	defaults := DefaultConfig()
	assert.Equal(t, defaults.Audio, cfg.Audio)
	assert.Equal(t, defaults.IncreaseStep, cfg.IncreaseStep)
	assert.Equal(t, defaults.MildRTT, cfg.MildRTT)
	assert.Equal(t, defaults.MildBufferDepth, cfg.MildBufferDepth)
}

func TestLoadProfileRejectsBadDuration(t *testing.T) {
	path := writeProfile(t, "mild_rtt: banana\n")

	_, err := LoadProfile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mild_rtt")
}

func TestLoadProfileRejectsInvalidValues(t *testing.T) {
	path := writeProfile(t, "decrease_multiplier: 1.5\n")

	_, err := LoadProfile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decrease multiplier")
}

func TestLoadProfileMissingFile(t *testing.T) {
	_, err := LoadProfile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func writeProfile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}
