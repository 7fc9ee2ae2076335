// Package speech turns reply text into audible speech: synthesis through
// the text-to-speech service into a scratch file, decode to PCM, playback
// on the output device with other applications ducked underneath.
package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	openai "github.com/openai/openai-go/v3"

	"talkie/pkg/audioconv"
)

// Synth produces PCM for a piece of text.
type Synth interface {
	Synthesize(ctx context.Context, text string) (audioconv.PCM, error)
}

// Synthesizer calls the hosted speech endpoint with fixed voice and speed,
// writes the returned audio to a per-turn scratch file and decodes it into
// canonical PCM. The response container is configurable; every format the
// provider offers that audioconv can decode is accepted.
type Synthesizer struct {
	client     openai.Client
	model      string
	voice      string
	speed      float64
	format     string
	scratchDir string
}

func NewSynthesizer(client openai.Client, model, voice string, speed float64, format, scratchDir string) *Synthesizer {
	if format == "" {
		format = "mp3"
	}
	if speed == 0 {
		speed = 1.0
	}
	return &Synthesizer{
		client:     client,
		model:      model,
		voice:      voice,
		speed:      speed,
		format:     format,
		scratchDir: scratchDir,
	}
}

func (s *Synthesizer) Synthesize(ctx context.Context, text string) (audioconv.PCM, error) {
	if text == "" {
		return audioconv.PCM{}, errors.New("speak: empty text")
	}

	format, ext := responseFormat(s.format)
	resp, err := s.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Model:          openai.SpeechModel(s.model),
		Voice:          openai.AudioSpeechNewParamsVoice(s.voice),
		Input:          text,
		Speed:          openai.Float(s.speed),
		ResponseFormat: format,
	})
	if err != nil {
		return audioconv.PCM{}, fmt.Errorf("speak: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return audioconv.PCM{}, fmt.Errorf("speak: read audio: %w", err)
	}
	if len(raw) == 0 {
		return audioconv.PCM{}, errors.New("speak: empty audio payload")
	}

	path := filepath.Join(s.scratchDir, "reply"+ext)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return audioconv.PCM{}, fmt.Errorf("speak: write scratch file: %w", err)
	}

	pcm, err := audioconv.DecodeFile(path)
	if err != nil {
		return audioconv.PCM{}, fmt.Errorf("speak: decode reply audio: %w", err)
	}
	return pcm, nil
}

func responseFormat(name string) (openai.AudioSpeechNewParamsResponseFormat, string) {
	switch name {
	case "wav":
		return openai.AudioSpeechNewParamsResponseFormatWAV, ".wav"
	case "opus":
		return openai.AudioSpeechNewParamsResponseFormatOpus, ".opus"
	default:
		return openai.AudioSpeechNewParamsResponseFormatMP3, ".mp3"
	}
}
