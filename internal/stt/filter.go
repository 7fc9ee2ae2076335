package stt

import (
	"strings"
	"sync"
)

// minTranscriptLen rejects one-character fragments the model produces on
// breath noise.
const minTranscriptLen = 2

// Filter rejects transcripts that are junk rather than speech: whitespace,
// near-empty fragments, and the stock phrases Whisper hallucinates on
// silence or background music. Optionally it also drops a transcript that
// exactly repeats the previous accepted one, which happens when the
// microphone picks up the assistant's own playback.
type Filter struct {
	denylist     []string
	rejectRepeat bool

	mu   sync.Mutex
	last string
}

func NewFilter(denylist []string, rejectRepeat bool) *Filter {
	lowered := make([]string, 0, len(denylist))
	for _, p := range denylist {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			lowered = append(lowered, p)
		}
	}
	return &Filter{denylist: lowered, rejectRepeat: rejectRepeat}
}

// Clean trims the raw transcript and reports whether it should be kept.
func (f *Filter) Clean(raw string) (string, bool) {
	text := strings.TrimSpace(raw)
	if len([]rune(text)) < minTranscriptLen {
		return "", false
	}

	lowered := strings.ToLower(text)
	for _, phrase := range f.denylist {
		if strings.Contains(lowered, phrase) {
			return "", false
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rejectRepeat && text == f.last {
		return "", false
	}
	f.last = text
	return text, true
}

// Reset forgets the previous transcript, e.g. after a conversation reset.
func (f *Filter) Reset() {
	f.mu.Lock()
	f.last = ""
	f.mu.Unlock()
}
