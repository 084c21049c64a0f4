package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/ruteravelar/filavoz/internal/announce"
	"github.com/ruteravelar/filavoz/internal/audiocache"
	"github.com/ruteravelar/filavoz/internal/config"
	"github.com/ruteravelar/filavoz/internal/jobs"
	"github.com/ruteravelar/filavoz/internal/jobs/workers"
	"github.com/ruteravelar/filavoz/internal/storage"
	"github.com/ruteravelar/filavoz/internal/synth"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	store := storage.NewSupabaseStorage(cfg.Storage.SupabaseURL, cfg.Storage.SupabaseKey)
	cache := audiocache.New(store, rdb, cfg.Storage.Bucket, cfg.Storage.Namespace)

	synthesizer := newSynthesizer(cfg)

	precacher := announce.NewPrecacher(
		synthesizer,
		cache,
		announce.DefaultCatalogue(),
		cfg.Synth.Voice,
		cfg.Synth.SpeakingRate,
		cfg.Synth.Pitch,
		time.Duration(cfg.Announce.PrecacheDelayMS)*time.Millisecond,
	)

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			// Warm-up is sequential against the synthesis backend, one
			// worker is all the concurrency it can use.
			Concurrency: 2,
			Queues: map[string]int{
				"default": 1,
			},
		},
	)

	registry := jobs.NewHandlersRegistry()
	registry.Register(jobs.TypePrecache, asynq.HandlerFunc(workers.NewPrecacheWorker(precacher).ProcessTask))

	slog.Info("starting worker")
	if err := srv.Run(registry.Mux()); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}
}

func newSynthesizer(cfg *config.Config) synth.Synthesizer {
	switch cfg.Synth.Backend {
	case "http":
		return synth.NewHTTPSynthesizer(synth.HTTPConfig{BaseURL: cfg.Synth.HTTPBaseURL})
	default:
		return synth.NewOpenAISynthesizer(synth.OpenAIConfig{
			APIKey:  cfg.Synth.OpenAIKey,
			BaseURL: cfg.Synth.OpenAIBaseURL,
			Model:   cfg.Synth.OpenAIModel,
		})
	}
}
