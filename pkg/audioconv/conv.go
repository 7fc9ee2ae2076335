// Package audioconv decodes common audio containers (wav, mp3, ogg/vorbis,
// ogg/opus) into mono float32 PCM and encodes PCM back into 16-bit WAV.
// Every audio path in the daemon goes through the PCM type so that what is
// measured, uploaded and played is always the same representation.
package audioconv

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	mp3 "github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
	popus "github.com/pekim/opus"
)

// PCM is mono float32 audio at a known sample rate.
type PCM struct {
	Samples []float32
	Rate    int
}

// Duration reports the playing time of the buffer.
func (p PCM) Duration() time.Duration {
	if p.Rate <= 0 {
		return 0
	}
	return time.Duration(float64(len(p.Samples)) / float64(p.Rate) * float64(time.Second))
}

// DecodeFile reads an audio file and returns it as mono PCM at its native
// sample rate. The container is picked by extension, with a magic-byte sniff
// as fallback.
func DecodeFile(path string) (PCM, error) {
	f, err := os.Open(path)
	if err != nil {
		return PCM{}, err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return decodeWAV(f)
	case ".mp3":
		return decodeMP3(f)
	case ".ogg", ".oga", ".opus":
		return decodeOgg(f)
	}

	br := bufio.NewReader(f)
	magic, _ := br.Peek(4)
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return PCM{}, err
	}
	switch {
	case string(magic) == "RIFF":
		return decodeWAV(f)
	case string(magic) == "OggS":
		return decodeOgg(f)
	case len(magic) >= 3 && string(magic[:3]) == "ID3":
		return decodeMP3(f)
	}
	return PCM{}, fmt.Errorf("unsupported audio format: %s", path)
}

func decodeWAV(r io.ReadSeeker) (PCM, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return PCM{}, errors.New("invalid wav file")
	}
	pb, err := dec.FullPCMBuffer()
	if err != nil {
		return PCM{}, err
	}
	if pb == nil || len(pb.Data) == 0 {
		return PCM{}, errors.New("empty wav file")
	}

	depth := int(dec.BitDepth)
	if depth == 0 {
		depth = 16
	}
	x := intsToFloat32(pb.Data, depth)

	ch, rate := 1, 44100
	if pb.Format != nil {
		if pb.Format.NumChannels > 0 {
			ch = pb.Format.NumChannels
		}
		if pb.Format.SampleRate > 0 {
			rate = pb.Format.SampleRate
		}
	}
	return PCM{Samples: DownmixInterleaved(x, ch), Rate: rate}, nil
}

func decodeMP3(r io.Reader) (PCM, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return PCM{}, err
	}
	var raw bytes.Buffer
	if _, err := io.Copy(&raw, dec); err != nil {
		return PCM{}, err
	}
	ints := make([]int16, raw.Len()/2)
	if err := binary.Read(bytes.NewReader(raw.Bytes()), binary.LittleEndian, &ints); err != nil {
		return PCM{}, err
	}
	// go-mp3 always emits interleaved 16-bit stereo.
	x := DownmixInterleaved(Int16ToFloat32(ints), 2)

	rate := dec.SampleRate()
	if rate <= 0 {
		rate = 44100
	}
	return PCM{Samples: x, Rate: rate}, nil
}

// decodeOgg tries Vorbis first, then Opus; both live in Ogg containers and
// the speech synthesizer may emit either depending on the configured format.
func decodeOgg(r io.ReadSeeker) (PCM, error) {
	if p, err := decodeOggVorbis(r); err == nil {
		return p, nil
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return PCM{}, err
	}
	p, err := decodeOggOpus(r)
	if err != nil {
		return PCM{}, fmt.Errorf("ogg container is neither vorbis nor opus: %w", err)
	}
	return p, nil
}

func decodeOggVorbis(r io.Reader) (PCM, error) {
	pcm, format, err := oggvorbis.ReadAll(r)
	if err != nil {
		return PCM{}, err
	}
	if format == nil || format.Channels <= 0 || format.SampleRate <= 0 {
		return PCM{}, errors.New("invalid ogg/vorbis stream")
	}
	return PCM{Samples: DownmixInterleaved(pcm, format.Channels), Rate: format.SampleRate}, nil
}

func decodeOggOpus(rs io.ReadSeeker) (PCM, error) {
	dec, err := popus.NewDecoder(rs)
	if err != nil {
		return PCM{}, err
	}
	defer dec.Destroy()

	ch := dec.ChannelCount()
	if ch <= 0 {
		ch = 1
	}

	// Opus always decodes at 48 kHz.
	var out []float32
	buf := make([]int16, 48000*ch/2)
	for {
		n, err := dec.Read(buf)
		if n > 0 {
			out = append(out, Int16ToFloat32(buf[:n*ch])...)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return PCM{}, err
		}
	}
	if len(out) == 0 {
		return PCM{}, errors.New("empty opus stream")
	}
	return PCM{Samples: DownmixInterleaved(out, ch), Rate: 48000}, nil
}

// EncodeWAV writes mono PCM as a 16-bit WAV stream.
func EncodeWAV(w io.WriteSeeker, p PCM) error {
	if p.Rate <= 0 {
		return errors.New("invalid sample rate")
	}
	enc := wav.NewEncoder(w, p.Rate, 16, 1, 1)
	ints := Float32ToInt16(p.Samples)
	buf := &gaudio.IntBuffer{
		Format:         &gaudio.Format{NumChannels: 1, SampleRate: p.Rate},
		Data:           make([]int, len(ints)),
		SourceBitDepth: 16,
	}
	for i, v := range ints {
		buf.Data[i] = int(v)
	}
	if err := enc.Write(buf); err != nil {
		return err
	}
	return enc.Close()
}

// Resample converts between sample rates with linear interpolation. Good
// enough for speech; callers that need fidelity should pick matching rates.
func Resample(in []float32, inRate, outRate int) []float32 {
	if inRate == outRate || len(in) == 0 {
		return in
	}
	ratio := float64(outRate) / float64(inRate)
	outN := int(math.Ceil(float64(len(in)) * ratio))
	out := make([]float32, outN)
	for i := 0; i < outN; i++ {
		src := float64(i) / ratio
		i0 := int(math.Floor(src))
		i1 := i0 + 1
		if i0 >= len(in) {
			out[i] = in[len(in)-1]
			continue
		}
		if i1 >= len(in) {
			out[i] = in[i0]
			continue
		}
		a := float32(src - float64(i0))
		out[i] = in[i0]*(1-a) + in[i1]*a
	}
	return out
}

// DownmixInterleaved averages interleaved channels into mono.
func DownmixInterleaved(in []float32, channels int) []float32 {
	if channels <= 1 {
		return in
	}
	frames := len(in) / channels
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		sum := 0.0
		base := i * channels
		for c := 0; c < channels; c++ {
			sum += float64(in[base+c])
		}
		out[i] = float32(sum / float64(channels))
	}
	return out
}

// Float32ToInt16 clamps to [-1, 1] and scales to 16-bit.
func Float32ToInt16(in []float32) []int16 {
	out := make([]int16, len(in))
	for i, v := range in {
		f := float64(v)
		if f > 1 {
			f = 1
		} else if f < -1 {
			f = -1
		}
		out[i] = int16(f * 32767)
	}
	return out
}

// Int16ToFloat32 scales 16-bit samples into [-1, 1].
func Int16ToFloat32(in []int16) []float32 {
	out := make([]float32, len(in))
	const scale = 1.0 / 32768.0
	for i, v := range in {
		out[i] = float32(float64(v) * scale)
	}
	return out
}

func intsToFloat32(data []int, bitDepth int) []float32 {
	out := make([]float32, len(data))
	scale := 1.0 / float64(int64(1)<<(bitDepth-1))
	for i, v := range data {
		f := float64(v) * scale
		if f > 1 {
			f = 1
		} else if f < -1 {
			f = -1
		}
		out[i] = float32(f)
	}
	return out
}
