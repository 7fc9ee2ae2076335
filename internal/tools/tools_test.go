package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePlayer struct {
	lastQuery string
	fail      bool
}

func (f *fakePlayer) Authorized() bool { return true }

func (f *fakePlayer) SearchAndPlay(_ context.Context, q string) (bool, string) {
	f.lastQuery = q
	if f.fail {
		return false, "nothing found"
	}
	return true, "Playing: " + q
}

func (f *fakePlayer) Play(context.Context) (bool, string)     { return !f.fail, "resumed" }
func (f *fakePlayer) Pause(context.Context) (bool, string)    { return !f.fail, "paused" }
func (f *fakePlayer) Next(context.Context) (bool, string)     { return !f.fail, "next track" }
func (f *fakePlayer) Previous(context.Context) (bool, string) { return !f.fail, "previous track" }

func decodeResult(t *testing.T, text string) (bool, string) {
	t.Helper()
	var p struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal([]byte(text), &p))
	return p.Success, p.Message
}

func TestRunSearchAndPlay(t *testing.T) {
	p := &fakePlayer{}
	x := NewExecutor(p, nil)

	res := x.Run(context.Background(), NameSearchAndPlay, `{"query":"Моргенштерн"}`)
	assert.True(t, res.OK)
	assert.True(t, res.Music)
	assert.Equal(t, "Моргенштерн", p.lastQuery, "query passes through untranslated")

	ok, msg := decodeResult(t, res.Text)
	assert.True(t, ok)
	assert.Contains(t, msg, "Моргенштерн")
}

func TestRunSearchAndPlayBadArgs(t *testing.T) {
	x := NewExecutor(&fakePlayer{}, nil)

	for _, args := range []string{``, `{}`, `{"query":""}`, `not json`} {
		res := x.Run(context.Background(), NameSearchAndPlay, args)
		assert.False(t, res.OK, "args=%q", args)
		assert.False(t, res.Music)
	}
}

func TestRunPauseIsNotMusic(t *testing.T) {
	x := NewExecutor(&fakePlayer{}, nil)
	res := x.Run(context.Background(), NamePause, `{}`)
	assert.True(t, res.OK)
	assert.False(t, res.Music, "pause must not suppress re-listening")
}

func TestRunSkipCommandsAreMusic(t *testing.T) {
	x := NewExecutor(&fakePlayer{}, nil)
	for _, name := range []string{NamePlay, NameNext, NamePrevious} {
		res := x.Run(context.Background(), name, `{}`)
		assert.True(t, res.OK, name)
		assert.True(t, res.Music, name)
	}
}

func TestRunFailedCallIsNotMusic(t *testing.T) {
	x := NewExecutor(&fakePlayer{fail: true}, nil)
	res := x.Run(context.Background(), NameSearchAndPlay, `{"query":"x"}`)
	assert.False(t, res.OK)
	assert.False(t, res.Music)

	ok, msg := decodeResult(t, res.Text)
	assert.False(t, ok)
	assert.Equal(t, "nothing found", msg)
}

func TestRunUnknownFunction(t *testing.T) {
	x := NewExecutor(&fakePlayer{}, nil)
	res := x.Run(context.Background(), "format_disk", `{}`)
	assert.False(t, res.OK)

	ok, msg := decodeResult(t, res.Text)
	assert.False(t, ok)
	assert.Contains(t, msg, "unknown function: format_disk")
}

func TestCatalogueShape(t *testing.T) {
	cat := Catalogue()
	assert.Len(t, cat, 5)
}
