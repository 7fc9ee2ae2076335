package stt

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	openai "github.com/openai/openai-go/v3"

	"talkie/internal/audio"
)

// OpenAI sends the recorded segment to the hosted transcription endpoint as
// a multipart upload: WAV file, model, target language, a domain-priming
// prompt and temperature 0 for determinism. The WAV scratch file lives in
// the scratch dir and is overwritten every turn.
type OpenAI struct {
	client     openai.Client
	model      string
	language   string
	prompt     string
	scratchDir string
}

func NewOpenAI(client openai.Client, model, language, prompt, scratchDir string) *OpenAI {
	return &OpenAI{
		client:     client,
		model:      model,
		language:   language,
		prompt:     prompt,
		scratchDir: scratchDir,
	}
}

func (o *OpenAI) Transcribe(ctx context.Context, seg *audio.Segment) (string, error) {
	if seg == nil || seg.Len() == 0 {
		return "", errors.New("transcribe: empty segment")
	}

	path := filepath.Join(o.scratchDir, "input.wav")
	if err := seg.WriteWAV(path); err != nil {
		return "", fmt.Errorf("transcribe: write scratch wav: %w", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}
	defer f.Close()

	resp, err := o.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		File:        f,
		Model:       openai.AudioModel(o.model),
		Language:    openai.String(o.language),
		Prompt:      openai.String(o.prompt),
		Temperature: openai.Float(0),
	})
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}
	return resp.Text, nil
}
