package stt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"talkie/internal/audio"
)

// Whisper runs transcription against a local whisper.cpp model, for setups
// without network access or an API key. It takes the segment's float32 16 kHz
// PCM directly, no scratch file involved.
type Whisper struct {
	model    whisper.Model
	language string
	prompt   string
	threads  int
}

func NewWhisper(modelPath, language, prompt string, threads int) (*Whisper, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: empty model path")
	}
	m, err := whisper.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model: %w", err)
	}
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	return &Whisper{model: m, language: language, prompt: prompt, threads: threads}, nil
}

func (w *Whisper) Close() error {
	if w.model == nil {
		return nil
	}
	return w.model.Close()
}

func (w *Whisper) Transcribe(ctx context.Context, seg *audio.Segment) (string, error) {
	if seg == nil || seg.Len() == 0 {
		return "", errors.New("whisper: empty segment")
	}
	if seg.Rate() != whisper.SampleRate {
		return "", fmt.Errorf("whisper: segment rate %d, model wants %d", seg.Rate(), whisper.SampleRate)
	}

	wctx, err := w.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("whisper: new context: %w", err)
	}

	lang := w.language
	if lang == "" {
		lang = "auto"
	}
	if err := wctx.SetLanguage(lang); err != nil {
		return "", fmt.Errorf("whisper: set language: %w", err)
	}
	wctx.SetThreads(uint(w.threads))
	wctx.SetTemperature(0)
	if w.prompt != "" {
		wctx.SetInitialPrompt(w.prompt)
	}

	if err := wctx.Process(seg.Samples(), nil, nil, nil); err != nil {
		return "", fmt.Errorf("whisper: process: %w", err)
	}

	var parts []string
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}
		s, err := wctx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("whisper: next segment: %w", err)
		}
		parts = append(parts, s.Text)
	}
	return strings.Join(parts, " "), nil
}
