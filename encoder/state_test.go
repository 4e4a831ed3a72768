package encoder

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewState(t *testing.T) {
	s := NewState(2_500_000, 128_000)
	require.NotNil(t, s)

	assert.Equal(t, uint32(2_500_000), s.VideoBitrate())
	assert.Equal(t, uint32(128_000), s.AudioBitrate())
}

func TestStateUpdates(t *testing.T) {
	s := NewState(1_000_000, 64_000)

	s.SetVideoBitrate(800_000)
	s.SetAudioBitrate(48_000)

	assert.Equal(t, uint32(800_000), s.VideoBitrate())
	assert.Equal(t, uint32(48_000), s.AudioBitrate())
}

func TestStateIndependentFields(t *testing.T) {
	s := NewState(1_000_000, 64_000)

	s.SetVideoBitrate(500_000)

	assert.Equal(t, uint32(500_000), s.VideoBitrate())
	assert.Equal(t, uint32(64_000), s.AudioBitrate(), "audio target must not move with video")
}

func TestStateConcurrentReadersAndWriters(t *testing.T) {
	s := NewState(1_000_000, 64_000)

	const writers = 4
	const iterations = 1000

	var wg sync.WaitGroup
	wg.Add(writers * 2)

	for w := 0; w < writers; w++ {
		go func(base uint32) {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				s.SetVideoBitrate(base + uint32(i))
			}
		}(uint32(100_000 * (w + 1)))

		go func() {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				_ = s.VideoBitrate()
				_ = s.AudioBitrate()
			}
		}()
	}

	wg.Wait()

	// The final value is whichever writer stored last; it must be one of
	// the values actually written.
	final := s.VideoBitrate()
	assert.GreaterOrEqual(t, final, uint32(100_000))
	assert.Less(t, final, uint32(100_000*writers+iterations))
	assert.Equal(t, uint32(64_000), s.AudioBitrate())
}
