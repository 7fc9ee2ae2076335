package audio

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"talkie/pkg/audioconv"
)

func TestSegmentAppend(t *testing.T) {
	seg := NewSegment(16000)
	assert.Zero(t, seg.Len())

	frame := make([]float32, 320)
	for i := 0; i < 50; i++ {
		seg.Append(frame)
	}

	assert.Equal(t, 16000, seg.Len())
	assert.Equal(t, int64(1000), seg.Duration().Milliseconds())
}

func TestSegmentWriteWAVRoundTrip(t *testing.T) {
	seg := NewSegment(16000)
	frame := make([]float32, 320)
	for i := range frame {
		frame[i] = 0.25
	}
	seg.Append(frame)

	path := filepath.Join(t.TempDir(), "input.wav")
	require.NoError(t, seg.WriteWAV(path))

	pcm, err := audioconv.DecodeFile(path)
	require.NoError(t, err)
	assert.Equal(t, 16000, pcm.Rate)
	assert.Equal(t, seg.Len(), len(pcm.Samples))
	assert.InDelta(t, 0.25, pcm.Samples[0], 1e-3)
}
