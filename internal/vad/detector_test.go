package vad

import (
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func loudFrame(n int) []float32 {
	f := make([]float32, n)
	for i := range f {
		f[i] = 0.5
	}
	return f
}

func TestFrameDBZeroSignal(t *testing.T) {
	db := FrameDB(make([]float32, 320))
	assert.False(t, math.IsInf(db, 0), "zero frame must not be -Inf")
	assert.False(t, math.IsNaN(db))
	assert.Less(t, db, -100.0)

	db = FrameDB(nil)
	assert.False(t, math.IsInf(db, 0))
	assert.False(t, math.IsNaN(db))
}

func TestFrameDBLoudSignal(t *testing.T) {
	db := FrameDB(loudFrame(320))
	// 0.5 RMS is about -6 dBFS.
	assert.InDelta(t, -6.0, db, 0.1)
}

func TestSpeechKeepsTimerQuiet(t *testing.T) {
	d := New(Config{
		SpeechThresholdDB: -40,
		Silence:           50 * time.Millisecond,
		Interval:          5 * time.Millisecond,
	}, nil)

	var fired atomic.Int32
	d.Arm(func() { fired.Add(1) })

	// Keep feeding loud frames; the silence event must not fire.
	deadline := time.Now().Add(150 * time.Millisecond)
	for time.Now().Before(deadline) {
		d.Process(loudFrame(320))
		time.Sleep(2 * time.Millisecond)
	}
	assert.Zero(t, fired.Load())
	d.Disarm()
}

func TestSilenceFiresExactlyOnce(t *testing.T) {
	d := New(Config{
		SpeechThresholdDB: -40,
		Silence:           30 * time.Millisecond,
		Interval:          5 * time.Millisecond,
	}, nil)

	var fired atomic.Int32
	d.Arm(func() { fired.Add(1) })

	d.Process(loudFrame(320)) // speech, then nothing but silence

	assert.Eventually(t, func() bool { return fired.Load() == 1 },
		500*time.Millisecond, 5*time.Millisecond)

	// Stays at one even long past the threshold.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load())
}

func TestNoSpeechNoSilenceEvent(t *testing.T) {
	d := New(Config{
		SpeechThresholdDB: -40,
		Silence:           20 * time.Millisecond,
		Interval:          5 * time.Millisecond,
	}, nil)

	var fired atomic.Int32
	d.Arm(func() { fired.Add(1) })

	// Only silent frames: the detector never saw speech, so no event.
	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, fired.Load())
	d.Disarm()
}

func TestDisarmCancels(t *testing.T) {
	d := New(Config{
		SpeechThresholdDB: -40,
		Silence:           30 * time.Millisecond,
		Interval:          5 * time.Millisecond,
	}, nil)

	var fired atomic.Int32
	d.Arm(func() { fired.Add(1) })
	d.Process(loudFrame(320))
	d.Disarm()

	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, fired.Load())

	// Disarm again is a no-op.
	d.Disarm()
}

func TestOnSpeechEdgeTriggered(t *testing.T) {
	var started atomic.Int32
	d := New(Config{SpeechThresholdDB: -40, Silence: time.Second}, func() { started.Add(1) })

	for i := 0; i < 10; i++ {
		d.Process(loudFrame(320))
	}
	assert.Equal(t, int32(1), started.Load(), "speech-started fires on the edge only")

	d.Reset()
	d.Process(loudFrame(320))
	assert.Equal(t, int32(2), started.Load())
}
