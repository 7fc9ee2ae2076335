// Package vad decides from frame energy whether the user is still talking.
// It is a plain RMS/dB threshold detector: cheap enough to run on every
// capture frame with no allocation, deliberately trading accuracy on wind
// noise and soft speech for bounded cost.
package vad

import (
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// dbFloor keeps a zero-energy frame from turning into -Inf when converted
// to decibels.
const dbFloor = 1e-7

// FrameDB returns the loudness of a frame as dBFS. Silence bottoms out
// around -140 dB instead of -Inf.
func FrameDB(frame []float32) float64 {
	if len(frame) == 0 {
		return 20 * math.Log10(dbFloor)
	}
	var sum float64
	for _, x := range frame {
		sum += float64(x) * float64(x)
	}
	rms := math.Sqrt(sum / float64(len(frame)))
	return 20 * math.Log10(math.Max(rms, dbFloor))
}

// Config carries the detector tunables. Observed setups differ on these, so
// they are configuration, not constants.
type Config struct {
	// SpeechThresholdDB is the frame loudness above which the frame counts
	// as speech. Around -40 dBFS for a typical desktop microphone.
	SpeechThresholdDB float64
	// Silence is how long the signal must stay below threshold after speech
	// before the turn is considered over.
	Silence time.Duration
	// Interval is the silence-check timer period.
	Interval time.Duration
}

// Detector watches the live frame tap. Process runs on the capture
// goroutine and only does the O(frame) energy math plus atomic stores; the
// silence timer runs on its own goroutine and fires the armed callback
// exactly once.
type Detector struct {
	cfg Config

	lastSpeech atomic.Int64 // unix nanos of the last frame above threshold
	heard      atomic.Bool

	onSpeech func() // edge-triggered "speech started", optional

	mu    sync.Mutex
	armed bool
	quit  chan struct{}
}

func New(cfg Config, onSpeech func()) *Detector {
	if cfg.Interval <= 0 {
		cfg.Interval = 150 * time.Millisecond
	}
	d := &Detector{cfg: cfg, onSpeech: onSpeech}
	d.lastSpeech.Store(time.Now().UnixNano())
	return d
}

// Process measures one frame. Must not block: it is called from the
// realtime capture path.
func (d *Detector) Process(frame []float32) {
	if FrameDB(frame) <= d.cfg.SpeechThresholdDB {
		return
	}
	d.lastSpeech.Store(time.Now().UnixNano())
	if !d.heard.Swap(true) && d.onSpeech != nil {
		d.onSpeech()
	}
}

// Heard reports whether any speech was detected since the last Reset.
func (d *Detector) Heard() bool { return d.heard.Load() }

// Reset clears the speech state for a new listening turn.
func (d *Detector) Reset() {
	d.heard.Store(false)
	d.lastSpeech.Store(time.Now().UnixNano())
}

// Arm starts the silence watcher. Once speech has been heard and the signal
// then stays quiet for the configured duration, onSilence fires exactly
// once and the watcher stops itself. Disarm cancels it.
func (d *Detector) Arm(onSilence func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.armed {
		return
	}
	d.armed = true
	d.quit = make(chan struct{})

	go d.watch(d.quit, onSilence)
}

func (d *Detector) watch(quit chan struct{}, onSilence func()) {
	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-quit:
			return
		case <-ticker.C:
			if !d.heard.Load() {
				continue
			}
			silence := time.Since(time.Unix(0, d.lastSpeech.Load()))
			if silence > d.cfg.Silence {
				// Fire only if Disarm has not raced us out of the slot.
				if d.release(quit) {
					onSilence()
				}
				return
			}
		}
	}
}

// release clears the armed flag if quit is still the active watcher and
// reports whether it was.
func (d *Detector) release(quit chan struct{}) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.quit != quit {
		return false
	}
	d.armed = false
	d.quit = nil
	return true
}

// Disarm cancels the silence watcher. Safe to call when not armed.
func (d *Detector) Disarm() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.armed {
		return
	}
	close(d.quit)
	d.armed = false
	d.quit = nil
}
