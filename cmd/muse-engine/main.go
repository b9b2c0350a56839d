package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/sonicmuse/muse-engine/internal/api"
	"github.com/sonicmuse/muse-engine/internal/asr"
	"github.com/sonicmuse/muse-engine/internal/config"
	"github.com/sonicmuse/muse-engine/internal/metrics"
	"github.com/sonicmuse/muse-engine/internal/musicgen"
	"github.com/sonicmuse/muse-engine/internal/pipeline"
	"github.com/sonicmuse/muse-engine/internal/prompt"
	"github.com/sonicmuse/muse-engine/internal/storage"
	"github.com/sonicmuse/muse-engine/internal/store"
)

var version = "dev"

func main() {
	startTime := time.Now()

	envFile := flag.String("env-file", ".env", "path to .env file")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("failed to load config")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).With().Timestamp().Logger().Level(level)
	log.Info().Str("version", version).Msg("muse-engine starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Job store is optional; without a database jobs run without history.
	var db *store.DB
	if cfg.DatabaseURL != "" {
		dbLog := log.With().Str("component", "store").Logger()
		db, err = store.Connect(ctx, cfg.DatabaseURL, dbLog)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer db.Close()
	} else {
		log.Warn().Msg("no database configured, job history disabled")
	}

	artifacts, err := storage.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init artifact store")
	}
	log.Info().Str("type", artifacts.Type()).Msg("artifact store ready")

	presets, err := prompt.Load(cfg.PresetsPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load style presets")
	}

	whisper := asr.NewWhisperClient(cfg.WhisperURL, cfg.WhisperAPIKey, cfg.WhisperModel, cfg.WhisperTimeout)
	generator := musicgen.NewHTTPClient(cfg.MusicGenURL, cfg.MusicGenAPIKey, cfg.MusicGenTimeout)

	pipeLog := log.With().Str("component", "pipeline").Logger()
	pipe := pipeline.New(cfg, presets, whisper, generator, pipeLog)

	events := pipeline.NewEventBus(256)
	pool := pipeline.NewWorkerPool(pipeline.WorkerPoolOptions{
		Pipeline:   pipe,
		Store:      pipeline.NewStoreHandle(db),
		Storage:    artifacts,
		Events:     events,
		Workers:    cfg.Workers,
		QueueSize:  cfg.QueueSize,
		JobTimeout: cfg.MusicGenTimeout + cfg.WhisperTimeout,
		Log:        log,
	})
	pool.Start()
	defer pool.Stop()

	prometheus.MustRegister(metrics.NewCollector(db.PoolOrNil(), pool))

	if cfg.WatchDir != "" {
		watcher := pipeline.NewFileWatcher(pool, cfg.WatchDir, log)
		if err := watcher.Start(); err != nil {
			log.Fatal().Err(err).Str("dir", cfg.WatchDir).Msg("failed to start watch folder")
		}
		defer watcher.Stop()
		log.Info().Str("dir", cfg.WatchDir).Msg("watch folder active")
	}

	defaults := api.RequestDefaults{
		DurationS:        cfg.DefaultDuration,
		Seed:             cfg.DefaultSeed,
		Intensity:        cfg.DefaultIntensity,
		BackgroundGainDB: cfg.BackgroundGainDB,
		Ducking:          cfg.Ducking,
	}
	handlers := api.NewHandlers(pipe, pool, events, db, artifacts, defaults, log)

	httpLog := log.With().Str("component", "http").Logger()
	srv := api.NewServer(cfg, handlers, version, startTime, httpLog)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("http server error")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}

	log.Info().Msg("muse-engine stopped")
}
