// Package encoder holds the bitrate targets shared between the regulation
// loop and the media pipeline.
//
// The regulation tick writes new targets while the pipeline's encoders read
// them from their own goroutines, so the values live in a dedicated
// synchronized cell rather than in unguarded session fields. Video and audio
// targets are independent values: a reader may observe a new video bitrate
// alongside the previous audio bitrate, which is harmless because encoders
// consume them independently.
package encoder

import "sync/atomic"

// BitrateController is the capability the session core uses to read and
// adjust encoder bitrate targets.
//
// Implementations must be safe for concurrent use. External pipelines can
// satisfy this interface directly to receive regulation output without an
// intermediate cell.
type BitrateController interface {
	// VideoBitrate returns the current video target in bits per second.
	VideoBitrate() uint32

	// AudioBitrate returns the current audio target in bits per second.
	AudioBitrate() uint32

	// SetVideoBitrate updates the video target in bits per second.
	SetVideoBitrate(bps uint32)

	// SetAudioBitrate updates the audio target in bits per second.
	SetAudioBitrate(bps uint32)
}

// State is the default BitrateController: a lock-free cell holding the
// current video and audio bitrate targets.
type State struct {
	video atomic.Uint32
	audio atomic.Uint32
}

// Compile-time interface check.
var _ BitrateController = (*State)(nil)

// NewState creates a bitrate cell seeded with the given initial targets.
func NewState(videoBps, audioBps uint32) *State {
	s := &State{}
	s.video.Store(videoBps)
	s.audio.Store(audioBps)
	return s
}

// VideoBitrate returns the current video target in bits per second.
func (s *State) VideoBitrate() uint32 {
	return s.video.Load()
}

// AudioBitrate returns the current audio target in bits per second.
func (s *State) AudioBitrate() uint32 {
	return s.audio.Load()
}

// SetVideoBitrate updates the video target in bits per second.
func (s *State) SetVideoBitrate(bps uint32) {
	s.video.Store(bps)
}

// SetAudioBitrate updates the audio target in bits per second.
func (s *State) SetAudioBitrate(bps uint32) {
	s.audio.Store(bps)
}
