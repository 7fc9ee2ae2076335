// Package config carries every tunable of the daemon. Defaults work out of
// the box; a YAML file refines them and a handful of environment variables
// win over both, so a keybinding script can flip the important ones without
// touching the file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"

	"talkie/internal/turn"
)

type Audio struct {
	SampleRate   int           `yaml:"sample_rate"`
	FrameSize    int           `yaml:"frame_size"`
	PlaybackTail time.Duration `yaml:"playback_tail"`
}

type VAD struct {
	SpeechThresholdDB float64       `yaml:"speech_threshold_db"`
	Silence           time.Duration `yaml:"silence"`
	Interval          time.Duration `yaml:"interval"`
}

type Turn struct {
	RelistenDelay time.Duration `yaml:"relisten_delay"`
	MaxRecord     time.Duration `yaml:"max_record"`
	Fillers       []string      `yaml:"fillers"`
	Greeting      string        `yaml:"greeting"`
}

type STT struct {
	// Backend is "openai" (hosted transcription) or "whisper" (local
	// whisper.cpp model, no network).
	Backend          string   `yaml:"backend"`
	Model            string   `yaml:"model"`
	Language         string   `yaml:"language"`
	Prompt           string   `yaml:"prompt"`
	WhisperModelPath string   `yaml:"whisper_model_path"`
	Threads          int      `yaml:"threads"`
	RejectRepeat     bool     `yaml:"reject_repeat"`
	Denylist         []string `yaml:"denylist"`
}

type Chat struct {
	Model         string `yaml:"model"`
	MaxTokens     int64  `yaml:"max_tokens"`
	SystemPrompt  string `yaml:"system_prompt"`
	ToolPrompt    string `yaml:"tool_prompt"`
	Window        int    `yaml:"window"`
	MaxToolRounds int    `yaml:"max_tool_rounds"`
}

type TTS struct {
	Model  string  `yaml:"model"`
	Voice  string  `yaml:"voice"`
	Speed  float64 `yaml:"speed"`
	Format string  `yaml:"format"`
}

type Duck struct {
	Enabled   bool          `yaml:"enabled"`
	Factor    float64       `yaml:"factor"`
	Fade      time.Duration `yaml:"fade"`
	MinVolume int           `yaml:"min_volume"`
	SelfNames []string      `yaml:"self_names"`
}

type Player struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

type Notify struct {
	Chime   string `yaml:"chime"`
	Desktop bool   `yaml:"desktop"`
}

type Config struct {
	Mode       string `yaml:"mode"`
	SocketPath string `yaml:"socket_path"`
	ScratchDir string `yaml:"scratch_dir"`
	Proxy      string `yaml:"proxy"`

	Audio  Audio  `yaml:"audio"`
	VAD    VAD    `yaml:"vad"`
	Turn   Turn   `yaml:"turn"`
	STT    STT    `yaml:"stt"`
	Chat   Chat   `yaml:"chat"`
	TTS    TTS    `yaml:"tts"`
	Duck   Duck   `yaml:"duck"`
	Player Player `yaml:"player"`
	Notify Notify `yaml:"notify"`
}

func Default() Config {
	return Config{
		Mode:       "auto",
		SocketPath: "/tmp/talkie.sock",
		ScratchDir: os.TempDir(),
		Audio: Audio{
			SampleRate:   16000,
			FrameSize:    512,
			PlaybackTail: 300 * time.Millisecond,
		},
		VAD: VAD{
			SpeechThresholdDB: -40,
			Silence:           1500 * time.Millisecond,
			Interval:          150 * time.Millisecond,
		},
		Turn: Turn{
			RelistenDelay: time.Second,
			MaxRecord:     30 * time.Second,
			Fillers:       []string{"Ага", "Понял", "Секунду"},
			Greeting:      "Слушаю.",
		},
		STT: STT{
			Backend:      "openai",
			Model:        "whisper-1",
			Language:     "ru",
			Prompt:       "Разговор с голосовым ассистентом: музыка, погода, бытовые вопросы.",
			Threads:      4,
			RejectRepeat: true,
			Denylist: []string{
				"субтитры",
				"редактор субтитров",
				"продолжение следует",
				"спасибо за просмотр",
				"подписывайтесь",
				"музыка",
				"аплодисменты",
				"динамичная музыка",
			},
		},
		Chat: Chat{
			Model:     "gpt-4o-mini",
			MaxTokens: 300,
			SystemPrompt: "Ты — голосовой ассистент. Отвечай кратко, одним-двумя " +
				"предложениями, разговорным русским языком. Твой ответ будет озвучен.",
			ToolPrompt: "Для управления музыкой вызывай функции. Поисковый запрос " +
				"передавай дословно, не переводи названия и имена исполнителей.",
			Window:        8,
			MaxToolRounds: 1,
		},
		TTS: TTS{
			Model:  "gpt-4o-mini-tts",
			Voice:  "alloy",
			Speed:  1.0,
			Format: "mp3",
		},
		Duck: Duck{
			Enabled:   true,
			Factor:    0.3,
			Fade:      200 * time.Millisecond,
			MinVolume: 20,
			SelfNames: []string{"talkie"},
		},
		Player: Player{
			Timeout: 5 * time.Second,
		},
	}
}

// Load builds the effective configuration: defaults, then the YAML file at
// path (optional, "" skips it), then environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("TALKIE_MODE"); v != "" {
		c.Mode = v
	}
	if v := os.Getenv("TALKIE_SOCKET"); v != "" {
		c.SocketPath = v
	}
	if v := os.Getenv("TALKIE_PLAYER_URL"); v != "" {
		c.Player.URL = v
	}
	if v := os.Getenv("TALKIE_PROXY"); v != "" {
		c.Proxy = v
	}
	if v := os.Getenv("TALKIE_SCRATCH_DIR"); v != "" {
		c.ScratchDir = v
	}
}

func (c *Config) Validate() error {
	if _, err := turn.ParseMode(c.Mode); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("config: sample_rate must be positive, got %d", c.Audio.SampleRate)
	}
	if c.Audio.FrameSize <= 0 {
		return fmt.Errorf("config: frame_size must be positive, got %d", c.Audio.FrameSize)
	}
	if c.VAD.Silence <= 0 {
		return fmt.Errorf("config: vad.silence must be positive, got %s", c.VAD.Silence)
	}
	if c.VAD.SpeechThresholdDB >= 0 {
		return fmt.Errorf("config: vad.speech_threshold_db must be negative dBFS, got %g", c.VAD.SpeechThresholdDB)
	}
	if c.Chat.Window <= 0 {
		return fmt.Errorf("config: chat.window must be positive, got %d", c.Chat.Window)
	}
	if c.TTS.Speed < 0.25 || c.TTS.Speed > 4.0 {
		return fmt.Errorf("config: tts.speed must be within [0.25, 4.0], got %g", c.TTS.Speed)
	}
	switch c.TTS.Format {
	case "mp3", "wav", "opus":
	default:
		return fmt.Errorf("config: tts.format must be mp3, wav or opus, got %q", c.TTS.Format)
	}
	switch c.STT.Backend {
	case "openai":
	case "whisper":
		if c.STT.WhisperModelPath == "" {
			return fmt.Errorf("config: stt.whisper_model_path required for the whisper backend")
		}
	default:
		return fmt.Errorf("config: stt.backend must be openai or whisper, got %q", c.STT.Backend)
	}
	return nil
}

// TurnMode returns the parsed mode. Call Validate first.
func (c *Config) TurnMode() turn.Mode {
	m, _ := turn.ParseMode(c.Mode)
	return m
}
