// Package notify gives the user short out-of-band signals: an earcon when
// the microphone opens and desktop notifications for status text.
package notify

import (
	"log/slog"
	"math"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
)

const chimeRate beep.SampleRate = 44100

// Desktop plays the listen chime through beep and mirrors status text to
// the log and, optionally, notify-send.
type Desktop struct {
	chimePath string
	sendable  bool
	log       *slog.Logger

	once    sync.Once
	initErr error
}

// New builds a notifier. chimePath points at an mp3 to play when listening
// starts; when empty a short synthesized tone is used instead. sendable
// additionally mirrors status text to notify-send.
func New(chimePath string, sendable bool, log *slog.Logger) *Desktop {
	if log == nil {
		log = slog.Default()
	}
	return &Desktop{chimePath: chimePath, sendable: sendable, log: log}
}

// ListenChime plays the earcon without blocking the caller.
func (n *Desktop) ListenChime() {
	go n.playChime()
}

// Status logs a short user-facing message and forwards it to the desktop.
func (n *Desktop) Status(text string) {
	n.log.Info("status", "text", text)
	if !n.sendable {
		return
	}
	go func() {
		if err := exec.Command("notify-send", "talkie", text).Run(); err != nil {
			n.log.Debug("notify-send failed", "err", err)
		}
	}()
}

func (n *Desktop) playChime() {
	n.once.Do(func() {
		n.initErr = speaker.Init(chimeRate, chimeRate.N(time.Second/10))
	})
	if n.initErr != nil {
		n.log.Warn("chime speaker init failed", "err", n.initErr)
		return
	}

	streamer := n.chimeStreamer()
	done := make(chan struct{})
	speaker.Play(beep.Seq(streamer, beep.Callback(func() {
		close(done)
	})))
	<-done
}

func (n *Desktop) chimeStreamer() beep.Streamer {
	if n.chimePath != "" {
		f, err := os.Open(n.chimePath)
		if err == nil {
			streamer, format, derr := mp3.Decode(f)
			if derr == nil {
				return beep.Resample(4, format.SampleRate, chimeRate, streamer)
			}
			f.Close()
			n.log.Warn("chime decode failed", "path", n.chimePath, "err", derr)
		} else {
			n.log.Warn("chime open failed", "path", n.chimePath, "err", err)
		}
	}
	return tone(chimeRate, 880, 120*time.Millisecond)
}

// tone is the fallback earcon: a short sine with edge fades so it does not
// click.
func tone(sr beep.SampleRate, freq float64, d time.Duration) beep.Streamer {
	total := sr.N(d)
	fade := sr.N(10 * time.Millisecond)
	i := 0
	return beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		if i >= total {
			return 0, false
		}
		filled := 0
		for filled < len(samples) && i < total {
			v := 0.2 * math.Sin(2*math.Pi*freq*float64(i)/float64(sr))
			if i < fade {
				v *= float64(i) / float64(fade)
			}
			if left := total - i; left < fade {
				v *= float64(left) / float64(fade)
			}
			samples[filled][0] = v
			samples[filled][1] = v
			i++
			filled++
		}
		return filled, true
	})
}
