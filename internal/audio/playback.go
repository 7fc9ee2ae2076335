package audio

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"talkie/pkg/audioconv"
)

var ErrPlaybackBusy = errors.New("audio: playback already active")

// Playback is the handle for one utterance being played. Exactly one handle
// is alive at a time; it is done when the audio has been written out plus a
// small tail so the end of speech is not clipped, or when stopped early.
type Playback struct {
	dur      time.Duration
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// Done closes after the measured playback duration plus the tail buffer, or
// immediately after Stop.
func (h *Playback) Done() <-chan struct{} { return h.done }

func (h *Playback) Duration() time.Duration { return h.dur }

func (h *Playback) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
}

// Player writes PCM to the default output device. It refuses overlapping
// playback; the Speaker serializes utterances above it.
type Player struct {
	frameSize int
	tail      time.Duration
	log       *slog.Logger

	mu  sync.Mutex
	cur *Playback
}

func NewPlayer(frameSize int, tail time.Duration, log *slog.Logger) *Player {
	if log == nil {
		log = slog.Default()
	}
	return &Player{frameSize: frameSize, tail: tail, log: log}
}

// Play starts asynchronous playback of the buffer and returns its handle.
func (p *Player) Play(pcm audioconv.PCM) (*Playback, error) {
	if len(pcm.Samples) == 0 || pcm.Rate <= 0 {
		return nil, errors.New("audio: nothing to play")
	}

	p.mu.Lock()
	if p.cur != nil {
		select {
		case <-p.cur.done:
			p.cur = nil
		default:
			p.mu.Unlock()
			return nil, ErrPlaybackBusy
		}
	}

	h := &Playback{
		dur:  pcm.Duration(),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	p.cur = h
	p.mu.Unlock()

	go p.run(h, pcm)
	return h, nil
}

func (p *Player) run(h *Playback, pcm audioconv.PCM) {
	defer close(h.done)
	defer func() {
		p.mu.Lock()
		if p.cur == h {
			p.cur = nil
		}
		p.mu.Unlock()
	}()

	if err := p.write(h, pcm); err != nil {
		// Playback failure still completes the handle so the turn loop is
		// never stuck waiting.
		p.log.Error("playback failed", "err", err)
		return
	}

	select {
	case <-h.stop:
	case <-time.After(p.tail):
	}
}

func (p *Player) write(h *Playback, pcm audioconv.PCM) error {
	buf := make([]float32, p.frameSize)
	stream, err := portaudio.OpenDefaultStream(0, 1, float64(pcm.Rate), len(buf), buf)
	if err != nil {
		return fmt.Errorf("open output stream: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("start output stream: %w", err)
	}
	defer stream.Stop()

	for off := 0; off < len(pcm.Samples); off += p.frameSize {
		select {
		case <-h.stop:
			return nil
		default:
		}
		n := copy(buf, pcm.Samples[off:])
		for i := n; i < len(buf); i++ {
			buf[i] = 0
		}
		if err := stream.Write(); err != nil {
			return fmt.Errorf("write output stream: %w", err)
		}
	}
	return nil
}

// Stop interrupts the active playback, if any.
func (p *Player) Stop() {
	p.mu.Lock()
	h := p.cur
	p.mu.Unlock()
	if h != nil {
		h.Stop()
	}
}

// Active reports whether a playback handle is alive.
func (p *Player) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cur == nil {
		return false
	}
	select {
	case <-p.cur.done:
		return false
	default:
		return true
	}
}
