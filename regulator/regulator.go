// Package regulator adapts encoder bitrate targets to observed transport
// conditions.
//
// A Regulator is invoked once per regulation tick with a fresh statistics
// snapshot and the current bitrate targets. It applies changes through
// mutation callbacks bound at construction time, which keeps policies
// decoupled from where the targets actually live.
//
// The package ships one policy, NewSRTRegulator, built for SRT-style
// reliable transports: retransmission rate, round-trip time, and send
// buffer depth drive a multiplicative-decrease / additive-increase cycle.
// Alternative policies plug in through the Factory type.
package regulator

import (
	"errors"

	"github.com/srtcast/srtcast/transport"
)

// Sentinel errors returned by Regulator implementations.
var (
	// ErrStaleStats indicates the statistics snapshot did not advance past
	// the previous one. The tick is skipped.
	ErrStaleStats = errors.New("statistics snapshot did not advance")
)

// Regulator decides bitrate adjustments from transport statistics.
//
// Update is called once per regulation tick on the scheduler goroutine with
// a fresh snapshot and the current video and audio targets in bits per
// second. Adjustments are emitted through the callbacks the policy received
// at construction; callbacks run synchronously on the tick goroutine and
// must not block. A returned error marks the tick as failed without
// stopping regulation.
type Regulator interface {
	Update(stats transport.Stats, videoBitrate, audioBitrate uint32) error
}

// Factory builds a Regulator bound to the given mutation callbacks.
//
// The session coordinator invokes the factory during construction, binding
// the callbacks to its bitrate cell. Either callback may be nil when the
// corresponding target is not under regulation.
type Factory func(cfg Config, onVideoBitrate, onAudioBitrate func(uint32)) Regulator
