package regulator

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

// Range bounds a bitrate target in bits per second.
type Range struct {
	Min uint32 `yaml:"min"`
	Max uint32 `yaml:"max"`
}

// Config defines regulation policy parameters.
//
// Thresholds come in mild/severe pairs: mild congestion trims video while
// audio is preserved, severe congestion decreases both. Conservative
// defaults prioritize stream continuity over peak quality.
type Config struct {
	// Bitrate bounds
	Video Range // video target bounds (default: 250 kbps - 6 Mbps)
	Audio Range // audio target bounds (default: 32 kbps - 320 kbps)

	// AIMD parameters (Additive Increase, Multiplicative Decrease)
	IncreaseStep       float64 // fractional increase per clean window (default: 0.1)
	MinIncreaseStep    uint32  // floor on a single increase in bps (default: 8000)
	DecreaseMultiplier float64 // multiplier applied on severe congestion (default: 0.8)

	// Congestion thresholds
	MildRetransmitPercent   float64       // retransmitted/sent % for mild congestion (default: 2.0)
	SevereRetransmitPercent float64       // retransmitted/sent % for severe congestion (default: 8.0)
	MildRTT                 time.Duration // RTT for mild congestion (default: 250ms)
	SevereRTT               time.Duration // RTT for severe congestion (default: 600ms)
	MildBufferDepth         time.Duration // send buffer depth for mild congestion (default: 250ms)
	SevereBufferDepth       time.Duration // send buffer depth for severe congestion (default: 600ms)

	// Stability controls
	RecoveryBackoff time.Duration // wait after a decrease before increasing (default: 5s)
}

// DefaultConfig returns policy parameters with conservative defaults.
//
// These settings work well for live contribution feeds over the public
// internet and serve as the baseline that profile files overlay.
func DefaultConfig() Config {
	return Config{
		Video: Range{Min: 250_000, Max: 6_000_000},
		Audio: Range{Min: 32_000, Max: 320_000},

		IncreaseStep:       0.1, // 10% growth per clean window
		MinIncreaseStep:    8_000,
		DecreaseMultiplier: 0.8, // 20% cut on severe congestion

		MildRetransmitPercent:   2.0,
		SevereRetransmitPercent: 8.0,
		MildRTT:                 250 * time.Millisecond,
		SevereRTT:               600 * time.Millisecond,
		MildBufferDepth:         250 * time.Millisecond,
		SevereBufferDepth:       600 * time.Millisecond,

		RecoveryBackoff: 5 * time.Second,
	}
}

// Validate checks that policy parameters are internally consistent.
func (c Config) Validate() error {
	if c.Video.Min == 0 || c.Video.Max <= c.Video.Min {
		return fmt.Errorf("video range %d-%d: min must be > 0 and < max", c.Video.Min, c.Video.Max)
	}
	if c.Audio.Min == 0 || c.Audio.Max <= c.Audio.Min {
		return fmt.Errorf("audio range %d-%d: min must be > 0 and < max", c.Audio.Min, c.Audio.Max)
	}
	if c.IncreaseStep <= 0 || c.IncreaseStep >= 1 {
		return fmt.Errorf("increase step %g must be in (0, 1)", c.IncreaseStep)
	}
	if c.DecreaseMultiplier <= 0 || c.DecreaseMultiplier >= 1 {
		return fmt.Errorf("decrease multiplier %g must be in (0, 1)", c.DecreaseMultiplier)
	}
	if c.MildRetransmitPercent <= 0 {
		return fmt.Errorf("mild retransmit percent %g must be > 0", c.MildRetransmitPercent)
	}
	if c.SevereRetransmitPercent <= c.MildRetransmitPercent {
		return fmt.Errorf("severe retransmit percent %g must be > mild %g",
			c.SevereRetransmitPercent, c.MildRetransmitPercent)
	}
	if c.MildRTT <= 0 {
		return fmt.Errorf("mild RTT threshold %v must be > 0", c.MildRTT)
	}
	if c.SevereRTT <= c.MildRTT {
		return fmt.Errorf("severe RTT threshold %v must be > mild %v", c.SevereRTT, c.MildRTT)
	}
	if c.MildBufferDepth <= 0 {
		return fmt.Errorf("mild buffer depth %v must be > 0", c.MildBufferDepth)
	}
	if c.SevereBufferDepth <= c.MildBufferDepth {
		return fmt.Errorf("severe buffer depth %v must be > mild %v",
			c.SevereBufferDepth, c.MildBufferDepth)
	}
	if c.RecoveryBackoff <= 0 {
		return fmt.Errorf("recovery backoff %v must be > 0", c.RecoveryBackoff)
	}
	return nil
}

// UnmarshalYAML overlays profile values onto the receiver. Absent keys keep
// the receiver's current values, so profiles only need to state what they
// change. Durations are written as strings ("250ms", "5s").
func (c *Config) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw struct {
		Video                   *Range   `yaml:"video"`
		Audio                   *Range   `yaml:"audio"`
		IncreaseStep            *float64 `yaml:"increase_step"`
		MinIncreaseStep         *uint32  `yaml:"min_increase_step"`
		DecreaseMultiplier      *float64 `yaml:"decrease_multiplier"`
		MildRetransmitPercent   *float64 `yaml:"mild_retransmit_percent"`
		SevereRetransmitPercent *float64 `yaml:"severe_retransmit_percent"`
		MildRTT                 string   `yaml:"mild_rtt"`
		SevereRTT               string   `yaml:"severe_rtt"`
		MildBufferDepth         string   `yaml:"mild_buffer_depth"`
		SevereBufferDepth       string   `yaml:"severe_buffer_depth"`
		RecoveryBackoff         string   `yaml:"recovery_backoff"`
	}
	if err := unmarshal(&raw); err != nil {
		return err
	}

	if raw.Video != nil {
		c.Video = *raw.Video
	}
	if raw.Audio != nil {
		c.Audio = *raw.Audio
	}
	if raw.IncreaseStep != nil {
		c.IncreaseStep = *raw.IncreaseStep
	}
	if raw.MinIncreaseStep != nil {
		c.MinIncreaseStep = *raw.MinIncreaseStep
	}
	if raw.DecreaseMultiplier != nil {
		c.DecreaseMultiplier = *raw.DecreaseMultiplier
	}
	if raw.MildRetransmitPercent != nil {
		c.MildRetransmitPercent = *raw.MildRetransmitPercent
	}
	if raw.SevereRetransmitPercent != nil {
		c.SevereRetransmitPercent = *raw.SevereRetransmitPercent
	}

	durations := []struct {
		value string
		field string
		dst   *time.Duration
	}{
		{raw.MildRTT, "mild_rtt", &c.MildRTT},
		{raw.SevereRTT, "severe_rtt", &c.SevereRTT},
		{raw.MildBufferDepth, "mild_buffer_depth", &c.MildBufferDepth},
		{raw.SevereBufferDepth, "severe_buffer_depth", &c.SevereBufferDepth},
		{raw.RecoveryBackoff, "recovery_backoff", &c.RecoveryBackoff},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.value)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", d.field, err)
		}
		*d.dst = parsed
	}

	return nil
}

// LoadProfile reads a YAML profile file and overlays it onto DefaultConfig.
//
// Parameters:
//   - path: Filesystem path of the profile
//
// Returns:
//   - Config: The merged, validated configuration
//   - error: Read, parse, or validation failure
func LoadProfile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading regulator profile %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing regulator profile %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid regulator profile %s: %w", path, err)
	}

	logrus.WithFields(logrus.Fields{
		"function":  "LoadProfile",
		"path":      path,
		"video_min": cfg.Video.Min,
		"video_max": cfg.Video.Max,
		"audio_min": cfg.Audio.Min,
		"audio_max": cfg.Audio.Max,
	}).Info("Regulator profile loaded")

	return cfg, nil
}
