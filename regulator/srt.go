package regulator

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/srtcast/srtcast/transport"
)

// videoTrimMultiplier is the gentle cut applied to video on mild congestion.
const videoTrimMultiplier = 0.95

// linkHeadroom caps growth at this fraction of the estimated link capacity
// so probing for more bandwidth does not itself induce congestion.
const linkHeadroom = 0.75

// congestionLevel represents the per-window congestion assessment.
type congestionLevel int

const (
	// congestionNone indicates a clean window eligible for growth.
	congestionNone congestionLevel = iota
	// congestionMild indicates early pressure; video is trimmed, audio kept.
	congestionMild
	// congestionSevere indicates sustained loss; both targets are cut.
	congestionSevere
)

// String returns a human-readable congestion level description.
func (cl congestionLevel) String() string {
	switch cl {
	case congestionNone:
		return "none"
	case congestionMild:
		return "mild"
	case congestionSevere:
		return "severe"
	default:
		return "unknown"
	}
}

// srtRegulator is the default regulation policy for SRT-style transports.
//
// It applies the AIMD (Additive Increase, Multiplicative Decrease) cycle
// from TCP congestion control, adapted for live contribution: react quickly
// to degradation, recover slowly, and sacrifice video before audio. Each
// window is assessed from the deltas between consecutive snapshots, so the
// policy tolerates counter resets when the underlying connection is
// re-established.
type srtRegulator struct {
	mu  sync.Mutex
	cfg Config

	// Mutation callbacks bound at construction
	onVideoBitrate func(uint32)
	onAudioBitrate func(uint32)

	// Previous snapshot for per-window deltas
	prev    transport.Stats
	hasPrev bool

	// Backoff tracking to prevent oscillation
	lastDecrease time.Time
}

// Compile-time check that the constructor satisfies the plug-in contract.
var _ Factory = NewSRTRegulator

// NewSRTRegulator creates the default SRT regulation policy.
//
// The first Update call only records a baseline snapshot; regulation
// decisions start with the second call.
//
// Parameters:
//   - cfg: Policy parameters (use DefaultConfig() as the starting point)
//   - onVideoBitrate: Invoked with the new video target when it changes
//   - onAudioBitrate: Invoked with the new audio target when it changes
//
// Returns:
//   - Regulator: The new policy instance
func NewSRTRegulator(cfg Config, onVideoBitrate, onAudioBitrate func(uint32)) Regulator {
	logrus.WithFields(logrus.Fields{
		"function":         "NewSRTRegulator",
		"video_min":        cfg.Video.Min,
		"video_max":        cfg.Video.Max,
		"audio_min":        cfg.Audio.Min,
		"audio_max":        cfg.Audio.Max,
		"increase_step":    cfg.IncreaseStep,
		"decrease_mult":    cfg.DecreaseMultiplier,
		"recovery_backoff": cfg.RecoveryBackoff,
	}).Info("Creating SRT bitrate regulator")

	return &srtRegulator{
		cfg:            cfg,
		onVideoBitrate: onVideoBitrate,
		onAudioBitrate: onAudioBitrate,
	}
}

// Update assesses the window since the previous snapshot and adjusts the
// targets through the bound callbacks.
func (r *srtRegulator) Update(stats transport.Stats, videoBitrate, audioBitrate uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.hasPrev {
		r.prev = stats
		r.hasPrev = true
		logrus.WithFields(logrus.Fields{
			"function": "Update",
			"at":       stats.At,
		}).Debug("Recorded baseline statistics snapshot")
		return nil
	}

	if !stats.At.After(r.prev.At) {
		logrus.WithFields(logrus.Fields{
			"function": "Update",
			"at":       stats.At,
			"prev_at":  r.prev.At,
		}).Warn("Statistics snapshot did not advance")
		return ErrStaleStats
	}

	if stats.PacketsSent < r.prev.PacketsSent {
		// Counters restarted, typically after a reconnect. Rebaseline.
		r.prev = stats
		r.lastDecrease = time.Time{}
		logrus.WithFields(logrus.Fields{
			"function":     "Update",
			"packets_sent": stats.PacketsSent,
		}).Debug("Transport counters reset, rebaselining")
		return nil
	}

	retransPercent := windowRetransmitPercent(r.prev, stats)
	level := r.assessCongestion(retransPercent, stats.RTT, stats.SendBufferDepth)
	r.prev = stats

	switch level {
	case congestionSevere:
		r.decreaseBitrates(videoBitrate, audioBitrate, stats.At)
	case congestionMild:
		r.trimVideoBitrate(videoBitrate, stats.At)
	case congestionNone:
		if r.canIncrease(stats.At) {
			r.increaseBitrates(videoBitrate, audioBitrate, stats.LinkBandwidth)
		}
	}

	return nil
}

// windowRetransmitPercent computes the retransmission share of the packets
// sent during the window between two snapshots.
func windowRetransmitPercent(prev, cur transport.Stats) float64 {
	deltaSent := cur.PacketsSent - prev.PacketsSent
	if deltaSent == 0 {
		return 0
	}
	deltaRetrans := cur.PacketsRetransmitted - prev.PacketsRetransmitted
	if cur.PacketsRetransmitted < prev.PacketsRetransmitted {
		deltaRetrans = 0
	}
	return float64(deltaRetrans) / float64(deltaSent) * 100.0
}

// assessCongestion grades the window from retransmissions, RTT, and send
// buffer depth, taking the worst of the three assessments.
func (r *srtRegulator) assessCongestion(retransPercent float64, rtt, bufferDepth time.Duration) congestionLevel {
	byRetrans := gradeThreshold(retransPercent >= r.cfg.MildRetransmitPercent,
		retransPercent >= r.cfg.SevereRetransmitPercent)
	byRTT := gradeThreshold(rtt >= r.cfg.MildRTT, rtt >= r.cfg.SevereRTT)
	byBuffer := gradeThreshold(bufferDepth >= r.cfg.MildBufferDepth,
		bufferDepth >= r.cfg.SevereBufferDepth)

	level := byRetrans
	if byRTT > level {
		level = byRTT
	}
	if byBuffer > level {
		level = byBuffer
	}

	logrus.WithFields(logrus.Fields{
		"function":         "assessCongestion",
		"retrans_percent":  retransPercent,
		"rtt_ms":           rtt.Milliseconds(),
		"buffer_depth_ms":  bufferDepth.Milliseconds(),
		"level_by_retrans": byRetrans.String(),
		"level_by_rtt":     byRTT.String(),
		"level_by_buffer":  byBuffer.String(),
		"level":            level.String(),
	}).Debug("Assessed window congestion")

	return level
}

// gradeThreshold maps a mild/severe threshold pair to a congestion level.
func gradeThreshold(mild, severe bool) congestionLevel {
	switch {
	case severe:
		return congestionSevere
	case mild:
		return congestionMild
	default:
		return congestionNone
	}
}

// decreaseBitrates cuts both targets multiplicatively for severe congestion.
func (r *srtRegulator) decreaseBitrates(videoBitrate, audioBitrate uint32, at time.Time) {
	r.lastDecrease = at

	newVideo := clampBitrate(scaleBitrate(videoBitrate, r.cfg.DecreaseMultiplier), r.cfg.Video)
	newAudio := clampBitrate(scaleBitrate(audioBitrate, r.cfg.DecreaseMultiplier), r.cfg.Audio)

	r.applyTarget(videoBitrate, newVideo, r.onVideoBitrate)
	r.applyTarget(audioBitrate, newAudio, r.onAudioBitrate)

	logrus.WithFields(logrus.Fields{
		"function":      "decreaseBitrates",
		"new_video":     newVideo,
		"new_audio":     newAudio,
		"decrease_mult": r.cfg.DecreaseMultiplier,
	}).Info("Decreased bitrates due to severe congestion")
}

// trimVideoBitrate gently reduces video for mild congestion while leaving
// audio untouched. Audio continuity matters more to viewers than video
// sharpness.
func (r *srtRegulator) trimVideoBitrate(videoBitrate uint32, at time.Time) {
	r.lastDecrease = at

	newVideo := clampBitrate(scaleBitrate(videoBitrate, videoTrimMultiplier), r.cfg.Video)
	r.applyTarget(videoBitrate, newVideo, r.onVideoBitrate)

	logrus.WithFields(logrus.Fields{
		"function":  "trimVideoBitrate",
		"new_video": newVideo,
	}).Info("Trimmed video bitrate due to mild congestion")
}

// increaseBitrates grows both targets additively after a clean window,
// staying under the link capacity headroom when an estimate is available.
func (r *srtRegulator) increaseBitrates(videoBitrate, audioBitrate uint32, linkBandwidth uint64) {
	newVideo := clampBitrate(grownBitrate(videoBitrate, r.cfg.IncreaseStep, r.cfg.MinIncreaseStep), r.cfg.Video)
	newAudio := clampBitrate(grownBitrate(audioBitrate, r.cfg.IncreaseStep, r.cfg.MinIncreaseStep), r.cfg.Audio)

	if linkBandwidth > 0 {
		budget := uint64(float64(linkBandwidth) * linkHeadroom)
		if uint64(newVideo)+uint64(newAudio) > budget {
			newVideo = videoUnderBudget(videoBitrate, newAudio, budget)
		}
	}

	videoChanged := r.applyTarget(videoBitrate, newVideo, r.onVideoBitrate)
	audioChanged := r.applyTarget(audioBitrate, newAudio, r.onAudioBitrate)

	if videoChanged || audioChanged {
		logrus.WithFields(logrus.Fields{
			"function":      "increaseBitrates",
			"new_video":     newVideo,
			"new_audio":     newAudio,
			"increase_step": r.cfg.IncreaseStep,
		}).Info("Increased bitrates after clean window")
	}
}

// videoUnderBudget keeps a video increase inside the link budget, holding
// the current target when no growth fits. Growth paths never reduce a
// target below its current value.
func videoUnderBudget(current, newAudio uint32, budget uint64) uint32 {
	if budget <= uint64(newAudio) {
		return current
	}
	capped := budget - uint64(newAudio)
	if capped <= uint64(current) {
		return current
	}
	return uint32(capped)
}

// canIncrease checks whether the recovery backoff since the last decrease
// has elapsed.
func (r *srtRegulator) canIncrease(at time.Time) bool {
	if r.lastDecrease.IsZero() {
		return true
	}
	return at.Sub(r.lastDecrease) >= r.cfg.RecoveryBackoff
}

// applyTarget fires the callback when the target actually changes.
func (r *srtRegulator) applyTarget(current, updated uint32, callback func(uint32)) bool {
	if updated == current || callback == nil {
		return false
	}
	callback(updated)
	return true
}

// scaleBitrate multiplies a bitrate by a factor in (0, 1).
func scaleBitrate(bitrate uint32, factor float64) uint32 {
	return uint32(float64(bitrate) * factor)
}

// grownBitrate adds the larger of the fractional step and the floor step.
func grownBitrate(bitrate uint32, step float64, minStep uint32) uint32 {
	grown := uint64(bitrate) + uint64(float64(bitrate)*step)
	if floored := uint64(bitrate) + uint64(minStep); floored > grown {
		grown = floored
	}
	if grown > uint64(^uint32(0)) {
		grown = uint64(^uint32(0))
	}
	return uint32(grown)
}

// clampBitrate bounds a bitrate to its configured range.
func clampBitrate(bitrate uint32, bounds Range) uint32 {
	if bitrate < bounds.Min {
		return bounds.Min
	}
	if bitrate > bounds.Max {
		return bounds.Max
	}
	return bitrate
}
