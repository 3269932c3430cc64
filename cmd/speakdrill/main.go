package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	speakdrill "github.com/snarg/speakdrill"
	"github.com/snarg/speakdrill/internal/api"
	"github.com/snarg/speakdrill/internal/config"
	"github.com/snarg/speakdrill/internal/database"
	"github.com/snarg/speakdrill/internal/notify"
	"github.com/snarg/speakdrill/internal/session"
	"github.com/snarg/speakdrill/internal/speech"
	"github.com/snarg/speakdrill/internal/storage"
	"github.com/snarg/speakdrill/internal/transcode"
)

var version = "dev"

func main() {
	startTime := time.Now()

	var overrides config.Overrides
	flag.StringVar(&overrides.EnvFile, "env-file", "", "path to .env file")
	flag.StringVar(&overrides.HTTPAddr, "addr", "", "http listen address")
	flag.StringVar(&overrides.LogLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	flag.StringVar(&overrides.DatabaseURL, "database-url", "", "postgres connection string")
	flag.StringVar(&overrides.MediaDir, "media-dir", "", "local media directory")
	flag.Parse()

	// Config
	cfg, err := config.Load(overrides)
	if err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("failed to load config")
	}

	// Logger
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).With().Timestamp().Logger().Level(level)
	log.Info().Str("version", version).Msg("speakdrill starting")

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database
	dbLog := log.With().Str("component", "database").Logger()
	db, err := database.Connect(ctx, cfg.DatabaseURL, dbLog)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := db.InitSchema(ctx, speakdrill.SchemaSQL); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize schema")
	}

	// Media storage
	storeLog := log.With().Str("component", "storage").Logger()
	store, err := storage.New(cfg.S3, cfg.MediaDir, storeLog)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize media storage")
	}
	log.Info().Str("backend", store.Type()).Msg("media storage ready")

	// Transcoder
	var transcoder *transcode.Transcoder
	if cfg.FFmpegPath != "" {
		transcoder = transcode.NewTranscoderWithPath(cfg.FFmpegPath, cfg.TranscodeTimeout)
	} else {
		transcoder, err = transcode.NewTranscoder(cfg.TranscodeTimeout)
		if err != nil {
			log.Fatal().Err(err).Msg("ffmpeg not available")
		}
	}

	// Speech engine
	engine := speech.NewClient(cfg.SpeechKey, cfg.SpeechRegion, cfg.SpeechVoice, cfg.SpeechLanguage, cfg.SpeechTimeout)

	// Result notifications (optional)
	var notifier *notify.Publisher
	if cfg.MQTTBrokerURL != "" {
		notifier, err = notify.Connect(notify.Options{
			BrokerURL: cfg.MQTTBrokerURL,
			ClientID:  cfg.MQTTClientID,
			Topic:     cfg.MQTTTopic,
			Username:  cfg.MQTTUsername,
			Password:  cfg.MQTTPassword,
			Log:       log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to mqtt broker")
		}
		defer notifier.Close()
	}

	// HTTP Server
	httpLog := log.With().Str("component", "http").Logger()
	srv := api.NewServer(api.Deps{
		Config:      cfg,
		DB:          db,
		Store:       store,
		Transcoder:  transcoder,
		Evaluator:   engine,
		Synthesizer: engine,
		Sessions:    session.NewManager(),
		Notifier:    notifier,
		Speech:      engine,
		Version:     version,
		StartTime:   startTime,
		Log:         httpLog,
	})

	// Start HTTP server in background
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	// Wait for shutdown signal or server error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("http server error")
		}
	}

	// Graceful shutdown with 10s timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}

	log.Info().Msg("speakdrill stopped")
}
