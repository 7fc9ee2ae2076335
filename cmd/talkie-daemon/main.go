package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	cli "github.com/spf13/pflag"

	"github.com/lmittmann/tint"
	log "log/slog"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"talkie/internal/audio"
	"talkie/internal/chat"
	"talkie/internal/config"
	"talkie/internal/ipc"
	"talkie/internal/notify"
	"talkie/internal/player"
	"talkie/internal/proxy"
	"talkie/internal/speech"
	"talkie/internal/stt"
	"talkie/internal/tools"
	"talkie/internal/turn"
	"talkie/internal/vad"
)

var logLevelMap = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

func main() {
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	cfgFile := cli.StringP("config", "c", "", "Config file path (YAML)")
	logLevel := cli.StringP("log", "l", "info", "Log level")
	mode := cli.StringP("mode", "m", "", "Turn-taking mode: manual or auto")
	proxyAddr := cli.StringP("proxy", "p", "", "SOCKS5 proxy address")
	cli.Parse()

	log.SetDefault(log.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level: logLevelMap[*logLevel],
	})))

	log.Info("Booting up")

	godotenv.Load(*envFile)

	cfg, err := config.Load(*cfgFile)
	if err != nil {
		log.Error("Failed to load config", "err", err)
		os.Exit(1)
	}
	if *mode != "" {
		cfg.Mode = *mode
	}
	if *proxyAddr != "" {
		cfg.Proxy = *proxyAddr
	}
	if err := cfg.Validate(); err != nil {
		log.Error("Bad config", "err", err)
		os.Exit(1)
	}

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		log.Error("OPENAI_API_KEY not set")
		os.Exit(1)
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.Proxy != "" {
		httpClient, err := proxy.NewSocksClient(cfg.Proxy)
		if err != nil {
			log.Error("Failed to dial socks proxy", "proxy", cfg.Proxy, "err", err)
			os.Exit(1)
		}
		opts = append(opts, option.WithHTTPClient(httpClient))
		log.Debug("Loaded proxy")
	}
	client := openai.NewClient(opts...)

	if err := audio.Init(); err != nil {
		log.Error("Failed to init audio", "err", err)
		os.Exit(1)
	}
	defer audio.Terminate()
	log.Debug("Loaded audio")

	capture := audio.NewCapture(cfg.Audio.SampleRate, cfg.Audio.FrameSize)
	detector := vad.New(vad.Config{
		SpeechThresholdDB: cfg.VAD.SpeechThresholdDB,
		Silence:           cfg.VAD.Silence,
		Interval:          cfg.VAD.Interval,
	}, nil)

	transcriber, closeSTT, err := buildTranscriber(client, cfg)
	if err != nil {
		log.Error("Failed to init transcriber", "err", err)
		os.Exit(1)
	}
	defer closeSTT()
	log.Debug("Loaded transcriber", "backend", cfg.STT.Backend)

	controls, closePlayer := dialPlayer(cfg)
	defer closePlayer()

	executor := tools.NewExecutor(controls, log.Default())
	engine := chat.NewEngine(client, chat.Config{
		Model:         cfg.Chat.Model,
		MaxTokens:     cfg.Chat.MaxTokens,
		SystemPrompt:  cfg.Chat.SystemPrompt,
		ToolPrompt:    cfg.Chat.ToolPrompt,
		Window:        cfg.Chat.Window,
		MaxToolRounds: cfg.Chat.MaxToolRounds,
	}, executor, controls.Authorized, log.Default())

	var ducker speech.Ducker = speech.NopDucker{}
	if cfg.Duck.Enabled {
		ducker = audio.NewDucker(cfg.Duck.SelfNames, cfg.Duck.MinVolume)
	}
	synth := speech.NewSynthesizer(client, cfg.TTS.Model, cfg.TTS.Voice, cfg.TTS.Speed, cfg.TTS.Format, cfg.ScratchDir)
	out := audio.NewPlayer(cfg.Audio.FrameSize, cfg.Audio.PlaybackTail, log.Default())
	speaker := speech.NewSpeaker(synth, speech.DeviceOutput(out), ducker, speech.SpeakerConfig{
		DuckFactor: cfg.Duck.Factor,
		DuckFade:   cfg.Duck.Fade,
	}, log.Default())

	notifier := notify.New(cfg.Notify.Chime, cfg.Notify.Desktop, log.Default())

	ctrl := turn.New(capture, detector, transcriber, engine, speaker, notifier, turn.Config{
		Mode:          cfg.TurnMode(),
		Fillers:       cfg.Turn.Fillers,
		RelistenDelay: cfg.Turn.RelistenDelay,
		MaxRecord:     cfg.Turn.MaxRecord,
	}, log.Default())
	defer ctrl.Close()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	srv, err := ipc.StartServer(cfg.SocketPath, func(msg ipc.ControlMessage) {
		switch msg.Cmd {
		case "start":
			ctrl.StartListening()
		case "stop":
			ctrl.StopListening()
		case "interrupt":
			ctrl.Interrupt()
		case "mode":
			m, err := turn.ParseMode(msg.Arg)
			if err != nil {
				log.Warn("Bad mode", "arg", msg.Arg)
				return
			}
			ctrl.SetMode(m)
		case "reset":
			ctrl.ResetConversation()
		case "quit":
			quit <- syscall.SIGTERM
		default:
			log.Warn("Unknown command", "cmd", msg.Cmd)
		}
	}, log.Default())
	if err != nil {
		log.Error("Failed ipc server", "err", err)
		os.Exit(1)
	}
	defer srv.Close()

	log.Info("Boot up - successful", "mode", cfg.Mode, "socket", cfg.SocketPath)

	if cfg.TurnMode() == turn.ModeAutomatic {
		ctrl.Greet(cfg.Turn.Greeting)
	}

	<-quit
	log.Info("Shutting down")
}

func buildTranscriber(client openai.Client, cfg config.Config) (turn.Transcriber, func(), error) {
	filter := stt.NewFilter(cfg.STT.Denylist, cfg.STT.RejectRepeat)

	if cfg.STT.Backend == "whisper" {
		w, err := stt.NewWhisper(cfg.STT.WhisperModelPath, cfg.STT.Language, cfg.STT.Prompt, cfg.STT.Threads)
		if err != nil {
			return nil, nil, err
		}
		return &stt.Filtered{Inner: w, Filter: filter}, func() { w.Close() }, nil
	}

	hosted := stt.NewOpenAI(client, cfg.STT.Model, cfg.STT.Language, cfg.STT.Prompt, cfg.ScratchDir)
	return &stt.Filtered{Inner: hosted, Filter: filter}, func() {}, nil
}

// dialPlayer connects to the music-player daemon. The assistant works
// without it: tools just report the player as unavailable.
func dialPlayer(cfg config.Config) (player.Controls, func()) {
	if cfg.Player.URL == "" {
		return player.Unavailable{}, func() {}
	}
	bus, err := player.Dial(cfg.Player.URL, cfg.Player.Timeout, log.Default())
	if err != nil {
		log.Warn("Music player unreachable", "url", cfg.Player.URL, "err", err)
		return player.Unavailable{}, func() {}
	}
	log.Debug("Loaded music player", "authorized", bus.Authorized())
	return bus, func() { bus.Close() }
}
