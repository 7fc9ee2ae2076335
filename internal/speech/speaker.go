package speech

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"talkie/internal/audio"
	"talkie/pkg/audioconv"
)

// Handle tracks one utterance on the output device.
type Handle interface {
	Done() <-chan struct{}
	Stop()
}

// Output plays decoded PCM. Satisfied by the portaudio player through a
// small adapter; tests substitute a fake.
type Output interface {
	Play(pcm audioconv.PCM) (Handle, error)
	Stop()
}

// Ducker lowers and restores other applications' volume around an
// utterance. audio.Ducker is the pactl implementation; NopDucker disables
// the behaviour.
type Ducker interface {
	DuckOthers(ctx context.Context, factor float64, duration time.Duration) error
	UnduckOthers(ctx context.Context, duration time.Duration) error
}

// NopDucker is used when ducking is disabled or pactl is unavailable.
type NopDucker struct{}

func (NopDucker) DuckOthers(context.Context, float64, time.Duration) error { return nil }
func (NopDucker) UnduckOthers(context.Context, time.Duration) error        { return nil }

// Speaker voices text end to end. Utterances are serialized: a filler
// acknowledgment finishes before the real reply starts, so the output
// device only ever carries one utterance.
type Speaker struct {
	synth      Synth
	out        Output
	ducker     Ducker
	duckFactor float64
	duckFade   time.Duration
	log        *slog.Logger

	sayMu sync.Mutex
}

type SpeakerConfig struct {
	DuckFactor float64
	DuckFade   time.Duration
}

func NewSpeaker(synth Synth, out Output, ducker Ducker, cfg SpeakerConfig, log *slog.Logger) *Speaker {
	if log == nil {
		log = slog.Default()
	}
	if ducker == nil {
		ducker = NopDucker{}
	}
	if cfg.DuckFactor <= 0 || cfg.DuckFactor >= 1 {
		cfg.DuckFactor = 0.3
	}
	if cfg.DuckFade <= 0 {
		cfg.DuckFade = 200 * time.Millisecond
	}
	return &Speaker{
		synth:      synth,
		out:        out,
		ducker:     ducker,
		duckFactor: cfg.DuckFactor,
		duckFade:   cfg.DuckFade,
		log:        log,
	}
}

// Say synthesizes and plays text asynchronously. done is invoked exactly
// once when playback completes, is stopped, or fails; a synthesis or
// playback failure still completes the utterance so the turn never hangs.
// Cancelling ctx stops the utterance mid-playback.
func (s *Speaker) Say(ctx context.Context, text string, done func(err error)) {
	if done == nil {
		done = func(error) {}
	}
	go func() {
		s.sayMu.Lock()
		defer s.sayMu.Unlock()
		done(s.speak(ctx, text))
	}()
}

func (s *Speaker) speak(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	pcm, err := s.synth.Synthesize(ctx, text)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.ducker.DuckOthers(ctx, s.duckFactor, s.duckFade); err != nil {
		s.log.Warn("duck failed", "err", err)
	}
	defer func() {
		unduckCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := s.ducker.UnduckOthers(unduckCtx, s.duckFade); err != nil {
			s.log.Warn("unduck failed", "err", err)
		}
	}()

	h, err := s.out.Play(pcm)
	if err != nil {
		return err
	}

	select {
	case <-h.Done():
		return nil
	case <-ctx.Done():
		h.Stop()
		<-h.Done()
		return ctx.Err()
	}
}

// Stop cuts off the active utterance, if any.
func (s *Speaker) Stop() { s.out.Stop() }

// DeviceOutput adapts the portaudio player to the Output interface.
func DeviceOutput(p *audio.Player) Output { return deviceOutput{p} }

type deviceOutput struct{ p *audio.Player }

func (d deviceOutput) Play(pcm audioconv.PCM) (Handle, error) {
	h, err := d.p.Play(pcm)
	if err != nil {
		return nil, err
	}
	return h, nil
}

func (d deviceOutput) Stop() { d.p.Stop() }
