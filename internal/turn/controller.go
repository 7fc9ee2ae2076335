package turn

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"sync/atomic"
	"time"

	"talkie/internal/audio"
	"talkie/internal/chat"
	"talkie/internal/stt"
)

// Recorder owns the microphone. At most one segment is open at a time.
// onErr fires if capture dies mid-recording.
type Recorder interface {
	Start(tap func(frame []float32), onErr func(error)) error
	Stop() (*audio.Segment, error)
	Abort()
}

// SilenceDetector watches the live frame tap and fires the armed callback
// once speech has been heard and then stopped.
type SilenceDetector interface {
	Process(frame []float32)
	Reset()
	Arm(onSilence func())
	Disarm()
}

// Transcriber turns a closed segment into text.
type Transcriber interface {
	Transcribe(ctx context.Context, seg *audio.Segment) (string, error)
}

// Responder runs one conversation turn against the model.
type Responder interface {
	Respond(ctx context.Context, userText string) (chat.Reply, error)
	Reset()
}

// Voice speaks text asynchronously; done fires exactly once per utterance.
type Voice interface {
	Say(ctx context.Context, text string, done func(err error))
	Stop()
}

// Notifier surfaces short status to the user.
type Notifier interface {
	ListenChime()
	Status(text string)
}

type Config struct {
	Mode Mode
	// Fillers are short acknowledgments spoken right after capture stops
	// in automatic mode, masking transcription latency.
	Fillers []string
	// RelistenDelay is the pause before the microphone reopens after an
	// interrupt or a failed turn, so its own tail audio is not captured.
	RelistenDelay time.Duration
	// MaxRecord caps one listening session; hitting it counts as silence.
	MaxRecord time.Duration
}

// Controller sequences Listen, Transcribe, Respond and Speak. Every
// transition happens on one control goroutine; external completions post
// back to it and carry the generation they belong to, so anything that
// finishes after an interrupt is dropped.
type Controller struct {
	rec    Recorder
	det    SilenceDetector
	stt    Transcriber
	resp   Responder
	voice  Voice
	notify Notifier
	cfg    Config
	log    *slog.Logger

	events chan func()
	quit   chan struct{}
	done   chan struct{}

	// Owned by the control goroutine.
	state      State
	mode       Mode
	gen        uint64
	lastMusic  bool
	turnCtx    context.Context
	turnCancel context.CancelFunc
	maxTimer   *time.Timer

	stateView atomic.Int32
	modeView  atomic.Int32
}

func New(rec Recorder, det SilenceDetector, tr Transcriber, resp Responder, voice Voice, notify Notifier, cfg Config, log *slog.Logger) *Controller {
	if log == nil {
		log = slog.Default()
	}
	if cfg.RelistenDelay <= 0 {
		cfg.RelistenDelay = time.Second
	}
	if cfg.MaxRecord <= 0 {
		cfg.MaxRecord = 30 * time.Second
	}
	c := &Controller{
		rec:    rec,
		det:    det,
		stt:    tr,
		resp:   resp,
		voice:  voice,
		notify: notify,
		cfg:    cfg,
		log:    log,
		events: make(chan func(), 16),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
		state:  StateIdle,
		mode:   cfg.Mode,
	}
	c.modeView.Store(int32(cfg.Mode))
	go c.loop()
	return c
}

func (c *Controller) loop() {
	defer close(c.done)
	for {
		select {
		case fn := <-c.events:
			fn()
		case <-c.quit:
			c.teardown()
			return
		}
	}
}

// post hands fn to the control goroutine. Dropped once Close has begun.
func (c *Controller) post(fn func()) {
	select {
	case c.events <- fn:
	case <-c.quit:
	}
}

// StartListening opens the microphone if the controller is idle.
func (c *Controller) StartListening() { c.post(c.startListening) }

// StopListening ends the listening turn by hand; this is the manual-mode
// counterpart of the silence event.
func (c *Controller) StopListening() {
	c.post(func() {
		if c.state == StateListening {
			c.finishListening()
		}
	})
}

// Interrupt aborts whatever the current turn is doing. Idempotent.
func (c *Controller) Interrupt() { c.post(c.interrupt) }

// Greet speaks an opening line; in automatic mode listening starts when it
// finishes. An empty greeting just starts listening.
func (c *Controller) Greet(text string) {
	c.post(func() {
		if c.state != StateIdle {
			return
		}
		if text == "" {
			if c.mode == ModeAutomatic {
				c.startListening()
			}
			return
		}
		ctx, cancel := context.WithCancel(context.Background())
		c.turnCtx, c.turnCancel = ctx, cancel
		c.setState(StateSpeaking)
		gen := c.gen
		c.voice.Say(ctx, text, func(err error) {
			c.post(func() { c.spoken(gen, err) })
		})
	})
}

// SetMode switches between manual and automatic turn-taking. An in-flight
// turn finishes under the new mode's rules.
func (c *Controller) SetMode(m Mode) {
	c.post(func() {
		c.mode = m
		c.modeView.Store(int32(m))
		c.notify.Status("mode: " + m.String())
	})
}

// ResetConversation wipes the model's memory of the dialogue.
func (c *Controller) ResetConversation() {
	c.post(func() {
		c.resp.Reset()
		c.notify.Status("conversation cleared")
	})
}

func (c *Controller) State() State { return State(c.stateView.Load()) }
func (c *Controller) Mode() Mode   { return Mode(c.modeView.Load()) }

// Close interrupts the current turn and stops the control goroutine.
func (c *Controller) Close() {
	close(c.quit)
	<-c.done
}

func (c *Controller) setState(s State) {
	c.state = s
	c.stateView.Store(int32(s))
	c.log.Debug("state", "state", s.String())
}

// startListening runs on the control goroutine. Capture may only start from
// Idle: never over active playback or an in-flight turn.
func (c *Controller) startListening() {
	if c.state != StateIdle {
		return
	}

	gen := c.gen
	ctx, cancel := context.WithCancel(context.Background())
	err := c.rec.Start(c.det.Process, func(err error) {
		c.post(func() { c.captureFailed(gen, err) })
	})
	if err != nil {
		cancel()
		c.log.Error("capture start failed", "err", err)
		c.notify.Status("microphone unavailable")
		return
	}
	c.turnCtx, c.turnCancel = ctx, cancel

	c.det.Reset()
	c.det.Arm(func() {
		c.post(func() { c.silence(gen) })
	})
	c.maxTimer = time.AfterFunc(c.cfg.MaxRecord, func() {
		c.post(func() { c.silence(gen) })
	})

	c.setState(StateListening)
	c.notify.ListenChime()
}

// silence is the speech-ended event; the recording cap fires it too.
func (c *Controller) silence(gen uint64) {
	if gen != c.gen || c.state != StateListening {
		return
	}
	c.finishListening()
}

func (c *Controller) finishListening() {
	c.det.Disarm()
	c.stopMaxTimer()

	seg, err := c.rec.Stop()
	if err != nil {
		c.turnError(c.gen, "recording failed", err)
		return
	}
	c.setState(StateProcessing)

	if c.mode == ModeAutomatic && len(c.cfg.Fillers) > 0 {
		c.voice.Say(c.turnCtx, c.cfg.Fillers[rand.Intn(len(c.cfg.Fillers))], nil)
	}

	go c.runTurn(c.turnCtx, c.gen, seg)
}

// runTurn does the network half of a turn off the control goroutine:
// transcribe, then respond. Strictly sequential; the result posts back with
// the generation it belongs to.
func (c *Controller) runTurn(ctx context.Context, gen uint64, seg *audio.Segment) {
	text, err := c.stt.Transcribe(ctx, seg)
	if err != nil {
		if errors.Is(err, stt.ErrNothingHeard) {
			c.post(func() { c.nothingHeard(gen) })
			return
		}
		c.post(func() { c.turnError(gen, "couldn't make that out", err) })
		return
	}
	c.log.Info("transcript", "text", text)

	reply, err := c.resp.Respond(ctx, text)
	if err != nil {
		if errors.Is(err, chat.ErrNothingToSay) {
			c.post(func() { c.nothingHeard(gen) })
			return
		}
		c.post(func() { c.turnError(gen, "assistant unavailable", err) })
		return
	}
	c.post(func() { c.startSpeaking(gen, reply) })
}

func (c *Controller) startSpeaking(gen uint64, reply chat.Reply) {
	if gen != c.gen || c.state != StateProcessing {
		return
	}
	c.lastMusic = reply.Music
	c.setState(StateSpeaking)
	c.voice.Say(c.turnCtx, reply.Text, func(err error) {
		c.post(func() { c.spoken(gen, err) })
	})
}

// spoken closes the turn after playback. Automatic mode chains straight
// into the next listen, unless the turn played music: reopening the
// microphone onto the playing track would transcribe the song.
func (c *Controller) spoken(gen uint64, err error) {
	if gen != c.gen || c.state != StateSpeaking {
		return
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		c.log.Warn("speech failed", "err", err)
		c.notify.Status("voice output failed")
	}
	c.endTurn()

	music := c.lastMusic
	c.lastMusic = false
	c.setState(StateIdle)
	if c.mode == ModeAutomatic && !music {
		c.startListening()
	}
}

// nothingHeard ends a turn whose transcript was empty or junk. Not an
// error: automatic mode quietly goes back to listening.
func (c *Controller) nothingHeard(gen uint64) {
	if gen != c.gen {
		return
	}
	c.endTurn()
	c.setState(StateIdle)
	c.log.Info("nothing heard")
	if c.mode == ModeAutomatic {
		c.relistenAfter(c.cfg.RelistenDelay)
	}
}

// captureFailed handles the read loop dying mid-listen, without waiting
// for the silence event or the recording cap to notice.
func (c *Controller) captureFailed(gen uint64, err error) {
	if gen != c.gen || c.state != StateListening {
		return
	}
	c.det.Disarm()
	c.stopMaxTimer()
	c.rec.Abort()
	c.turnError(gen, "recording failed", err)
}

// turnError surfaces a failed turn and recovers. No automatic retry: the
// next utterance is the retry.
func (c *Controller) turnError(gen uint64, msg string, err error) {
	if gen != c.gen {
		return
	}
	c.log.Error(msg, "err", err)
	c.notify.Status(msg)
	c.endTurn()
	c.setState(StateIdle)
	if c.mode == ModeAutomatic {
		c.relistenAfter(c.cfg.RelistenDelay)
	}
}

// interrupt bumps the generation so every in-flight completion becomes a
// no-op, tears down capture and playback, and in automatic mode reopens the
// microphone after a delay so the interrupt's tail is not recorded.
func (c *Controller) interrupt() {
	if c.state == StateIdle || c.state == StateInterrupted {
		return
	}
	c.gen++
	c.endTurn()
	c.det.Disarm()
	c.stopMaxTimer()
	c.rec.Abort()
	c.voice.Stop()
	c.lastMusic = false
	c.notify.Status("interrupted")

	if c.mode != ModeAutomatic {
		c.setState(StateIdle)
		return
	}
	c.setState(StateInterrupted)
	gen := c.gen
	time.AfterFunc(c.cfg.RelistenDelay, func() {
		c.post(func() {
			if gen != c.gen || c.state != StateInterrupted {
				return
			}
			c.setState(StateIdle)
			c.startListening()
		})
	})
}

func (c *Controller) relistenAfter(d time.Duration) {
	gen := c.gen
	time.AfterFunc(d, func() {
		c.post(func() {
			if gen != c.gen || c.state != StateIdle {
				return
			}
			c.startListening()
		})
	})
}

func (c *Controller) endTurn() {
	if c.turnCancel != nil {
		c.turnCancel()
		c.turnCancel = nil
		c.turnCtx = nil
	}
}

func (c *Controller) stopMaxTimer() {
	if c.maxTimer != nil {
		c.maxTimer.Stop()
		c.maxTimer = nil
	}
}

func (c *Controller) teardown() {
	c.gen++
	c.endTurn()
	c.det.Disarm()
	c.stopMaxTimer()
	c.rec.Abort()
	c.voice.Stop()
	c.setState(StateIdle)
}
