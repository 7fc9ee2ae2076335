package audio

import (
	"os"
	"time"

	"talkie/pkg/audioconv"
)

// Segment is the append-only buffer of one recording turn: mono float32 PCM
// at the capture rate. It is owned by the capture goroutine while recording
// and handed off whole when capture stops; it is not safe for concurrent use.
type Segment struct {
	samples []float32
	rate    int
}

func NewSegment(rate int) *Segment {
	return &Segment{
		samples: make([]float32, 0, rate*3),
		rate:    rate,
	}
}

func (s *Segment) Append(frame []float32) {
	s.samples = append(s.samples, frame...)
}

func (s *Segment) Samples() []float32 { return s.samples }

func (s *Segment) Rate() int { return s.rate }

func (s *Segment) Len() int { return len(s.samples) }

func (s *Segment) Duration() time.Duration {
	if s.rate <= 0 {
		return 0
	}
	return time.Duration(float64(len(s.samples)) / float64(s.rate) * float64(time.Second))
}

// WriteWAV dumps the segment as a 16-bit WAV scratch file, overwriting any
// previous turn's recording.
func (s *Segment) WriteWAV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := audioconv.EncodeWAV(f, audioconv.PCM{Samples: s.samples, Rate: s.rate}); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
