package audioconv

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sine(rate int, freq float64, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
	}
	return out
}

func TestEncodeDecodeWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seg.wav")
	f, err := os.Create(path)
	require.NoError(t, err)

	in := PCM{Samples: sine(16000, 440, 16000), Rate: 16000}
	require.NoError(t, EncodeWAV(f, in))
	require.NoError(t, f.Close())

	out, err := DecodeFile(path)
	require.NoError(t, err)
	assert.Equal(t, 16000, out.Rate)
	assert.Equal(t, len(in.Samples), len(out.Samples))

	// 16-bit quantization error only.
	for i := 0; i < len(in.Samples); i += 100 {
		assert.InDelta(t, in.Samples[i], out.Samples[i], 1e-3)
	}
}

func TestDecodeFileUnsupported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "noise.bin")
	require.NoError(t, os.WriteFile(path, []byte{0xde, 0xad, 0xbe, 0xef}, 0o644))
	_, err := DecodeFile(path)
	assert.Error(t, err)
}

func TestResample(t *testing.T) {
	in := sine(48000, 440, 4800)

	out := Resample(in, 48000, 16000)
	assert.Equal(t, 1600, len(out))

	same := Resample(in, 48000, 48000)
	assert.Equal(t, len(in), len(same))

	up := Resample(in, 16000, 48000)
	assert.Equal(t, 14400, len(up))
}

func TestDownmixInterleaved(t *testing.T) {
	stereo := []float32{1, 0, 0, 1, -1, -1}
	mono := DownmixInterleaved(stereo, 2)
	assert.Equal(t, []float32{0.5, 0.5, -1}, mono)

	passthrough := DownmixInterleaved(stereo, 1)
	assert.Equal(t, stereo, passthrough)
}

func TestFloat32ToInt16Clamps(t *testing.T) {
	out := Float32ToInt16([]float32{2.0, -2.0, 0})
	assert.Equal(t, int16(32767), out[0])
	assert.Equal(t, int16(-32767), out[1])
	assert.Equal(t, int16(0), out[2])
}

func TestPCMDuration(t *testing.T) {
	p := PCM{Samples: make([]float32, 8000), Rate: 16000}
	assert.Equal(t, int64(500), p.Duration().Milliseconds())
	assert.Zero(t, PCM{}.Duration())
}
