package srtcast

import (
	"fmt"
	"time"

	"github.com/srtcast/srtcast/encoder"
	"github.com/srtcast/srtcast/metrics"
	"github.com/srtcast/srtcast/regulator"
	"github.com/srtcast/srtcast/transport"
)

// Default bitrate targets applied when the configuration leaves them zero.
const (
	// DefaultVideoBitrate is the initial video target in bits per second.
	DefaultVideoBitrate uint32 = 2_500_000

	// DefaultAudioBitrate is the initial audio target in bits per second.
	DefaultAudioBitrate uint32 = 128_000

	// DefaultRegulationInterval is the cadence of the regulation loop.
	DefaultRegulationInterval = 500 * time.Millisecond
)

// Pipeline is the external media pipeline collaborator.
//
// The session starts it after the transport is connected and stops it after
// the regulation loop has been cancelled, never in the other order. Capture,
// encoding, and muxing live behind this interface; the session only
// sequences them.
type Pipeline interface {
	// Start begins capturing and sending media over the connected transport.
	Start() error

	// Stop halts media flow. Called before the transport disconnects.
	Stop() error
}

// Config configures a streaming session.
//
// Producer and Pipeline are required. RegulatorFactory and RegulatorConfig
// enable adaptive bitrate regulation and must be supplied together; a
// session built without them streams at the fixed initial targets.
type Config struct {
	// Producer is the SRT-style transport endpoint (required).
	Producer transport.Producer

	// Pipeline is the external media pipeline (required).
	Pipeline Pipeline

	// Encoders is the bitrate cell shared with the pipeline's encoders.
	// When nil, a fresh encoder.State seeded from VideoBitrate and
	// AudioBitrate is created and exposed via Session.Encoders.
	Encoders encoder.BitrateController

	// VideoBitrate is the initial video target in bits per second.
	// Zero selects DefaultVideoBitrate.
	VideoBitrate uint32

	// AudioBitrate is the initial audio target in bits per second.
	// Zero selects DefaultAudioBitrate.
	AudioBitrate uint32

	// RegulatorFactory builds the regulation policy. Must be set together
	// with RegulatorConfig or not at all.
	RegulatorFactory regulator.Factory

	// RegulatorConfig parameterizes the regulation policy. Must be set
	// together with RegulatorFactory or not at all.
	RegulatorConfig *regulator.Config

	// RegulationInterval is the tick cadence of the regulation loop.
	// Zero selects DefaultRegulationInterval.
	RegulationInterval time.Duration

	// StreamID is applied to the producer at session creation. Empty keeps
	// the producer's current stream ID.
	StreamID string

	// Metrics receives session observability updates. Nil disables metrics.
	Metrics *metrics.Collector
}

// Validate checks the configuration for structural errors.
//
// Returns:
//   - error: ErrNilProducer, ErrNilPipeline, ErrRegulatorConfig, or a
//     wrapped regulator configuration error
func (c Config) Validate() error {
	if c.Producer == nil {
		return ErrNilProducer
	}
	if c.Pipeline == nil {
		return ErrNilPipeline
	}
	if (c.RegulatorFactory == nil) != (c.RegulatorConfig == nil) {
		return ErrRegulatorConfig
	}
	if c.RegulatorConfig != nil {
		if err := c.RegulatorConfig.Validate(); err != nil {
			return fmt.Errorf("regulator config: %w", err)
		}
	}
	if c.RegulationInterval < 0 {
		return fmt.Errorf("regulation interval %v must not be negative", c.RegulationInterval)
	}
	return nil
}

// regulationEnabled reports whether the configuration carries a regulator.
// Validate has already rejected the partially-configured states.
func (c Config) regulationEnabled() bool {
	return c.RegulatorFactory != nil && c.RegulatorConfig != nil
}

// withDefaults returns a copy with zero values replaced by defaults.
func (c Config) withDefaults() Config {
	if c.VideoBitrate == 0 {
		c.VideoBitrate = DefaultVideoBitrate
	}
	if c.AudioBitrate == 0 {
		c.AudioBitrate = DefaultAudioBitrate
	}
	if c.RegulationInterval == 0 {
		c.RegulationInterval = DefaultRegulationInterval
	}
	return c
}
