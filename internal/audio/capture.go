// Package audio owns the duplexed audio device: microphone capture into a
// Segment, speech playback, and ducking of other applications' streams. The
// device is exclusive; capture is always fully torn down before playback
// starts and vice versa.
package audio

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

var (
	ErrCaptureBusy    = errors.New("audio: capture already running")
	ErrCaptureStopped = errors.New("audio: capture not running")
)

// Init and Terminate bracket all portaudio use for the process lifetime.
func Init() error { return portaudio.Initialize() }

func Terminate() { portaudio.Terminate() }

// Capture reads fixed-size PCM frames from the default input device into an
// open Segment. The per-frame tap gets the same frame that is appended to
// the segment, so level measurement and the recorded audio can never drift
// apart. The tap runs on the capture goroutine and must not block.
type Capture struct {
	rate      int
	frameSize int

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
	seg     *Segment
	err     error
}

func NewCapture(rate, frameSize int) *Capture {
	return &Capture{rate: rate, frameSize: frameSize}
}

// Start opens a new segment and begins reading frames. At most one segment
// is open at a time. onErr fires once, from the capture goroutine, if the
// read loop dies mid-recording; the caller still has to Stop or Abort to
// release the capture.
func (c *Capture) Start(tap func(frame []float32), onErr func(error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return ErrCaptureBusy
	}

	buf := make([]float32, c.frameSize)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(c.rate), len(buf), buf)
	if err != nil {
		return fmt.Errorf("open input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("start input stream: %w", err)
	}

	c.seg = NewSegment(c.rate)
	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	c.err = nil
	c.running = true

	go c.loop(stream, buf, tap, onErr)
	return nil
}

func (c *Capture) loop(stream *portaudio.Stream, buf []float32, tap func([]float32), onErr func(error)) {
	defer close(c.done)
	defer func() {
		stream.Stop()
		stream.Close()
	}()

	for {
		select {
		case <-c.stop:
			return
		default:
		}
		if err := stream.Read(); err != nil {
			c.mu.Lock()
			c.err = err
			c.mu.Unlock()
			if onErr != nil {
				onErr(err)
			}
			return
		}
		c.seg.Append(buf)
		if tap != nil {
			tap(buf)
		}
	}
}

// Stop tears the input stream down and hands the closed segment to the
// caller. The capture goroutine has fully exited by the time Stop returns.
func (c *Capture) Stop() (*Segment, error) {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil, ErrCaptureStopped
	}
	close(c.stop)
	c.mu.Unlock()

	<-c.done

	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
	seg, err := c.seg, c.err
	c.seg = nil
	if err != nil {
		return nil, fmt.Errorf("capture: %w", err)
	}
	return seg, nil
}

// Abort stops capture and discards the open segment.
func (c *Capture) Abort() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	close(c.stop)
	c.mu.Unlock()

	<-c.done

	c.mu.Lock()
	c.running = false
	c.seg = nil
	c.mu.Unlock()
}

func (c *Capture) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}
