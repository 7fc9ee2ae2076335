package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"talkie/internal/turn"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, turn.ModeAutomatic, cfg.TurnMode())
	assert.NotEmpty(t, cfg.STT.Denylist)
	assert.NotEmpty(t, cfg.Turn.Fillers)
}

func TestLoadFileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "talkie.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode: manual
vad:
  speech_threshold_db: -45
  silence: 2s
chat:
  window: 4
tts:
  voice: nova
  format: wav
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, turn.ModeManual, cfg.TurnMode())
	assert.Equal(t, -45.0, cfg.VAD.SpeechThresholdDB)
	assert.Equal(t, 2*time.Second, cfg.VAD.Silence)
	assert.Equal(t, 4, cfg.Chat.Window)
	assert.Equal(t, "nova", cfg.TTS.Voice)
	assert.Equal(t, "wav", cfg.TTS.Format)

	// Untouched settings keep their defaults.
	assert.Equal(t, 16000, cfg.Audio.SampleRate)
	assert.Equal(t, "gpt-4o-mini", cfg.Chat.Model)
}

func TestLoadEnvWinsOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "talkie.yaml")
	require.NoError(t, os.WriteFile(path, []byte("mode: manual\n"), 0o644))

	t.Setenv("TALKIE_MODE", "auto")
	t.Setenv("TALKIE_PLAYER_URL", "ws://localhost:8092")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, turn.ModeAutomatic, cfg.TurnMode())
	assert.Equal(t, "ws://localhost:8092", cfg.Player.URL)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown mode", func(c *Config) { c.Mode = "half-duplex" }},
		{"zero sample rate", func(c *Config) { c.Audio.SampleRate = 0 }},
		{"positive threshold", func(c *Config) { c.VAD.SpeechThresholdDB = 10 }},
		{"zero window", func(c *Config) { c.Chat.Window = 0 }},
		{"wild speed", func(c *Config) { c.TTS.Speed = 9 }},
		{"bad format", func(c *Config) { c.TTS.Format = "flac" }},
		{"whisper without model", func(c *Config) { c.STT.Backend = "whisper" }},
		{"unknown backend", func(c *Config) { c.STT.Backend = "vosk" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
