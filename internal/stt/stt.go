// Package stt turns a recorded segment into text. Two backends exist: the
// remote multipart API and a local whisper.cpp model; both consume the same
// mono float32 16 kHz PCM and run their output through the junk filter.
package stt

import (
	"context"
	"errors"

	"talkie/internal/audio"
)

// ErrNothingHeard marks a rejected transcript: too short, a known
// hallucination, or an echo of the previous turn. The turn loop treats it
// as "resume listening", not as a failure.
var ErrNothingHeard = errors.New("stt: nothing heard")

// Transcriber converts a closed segment into text.
type Transcriber interface {
	Transcribe(ctx context.Context, seg *audio.Segment) (string, error)
}

// Filtered wraps a backend with the junk filter so both backends share one
// rejection policy.
type Filtered struct {
	Inner  Transcriber
	Filter *Filter
}

func (f *Filtered) Transcribe(ctx context.Context, seg *audio.Segment) (string, error) {
	text, err := f.Inner.Transcribe(ctx, seg)
	if err != nil {
		return "", err
	}
	clean, ok := f.Filter.Clean(text)
	if !ok {
		return "", ErrNothingHeard
	}
	return clean, nil
}
