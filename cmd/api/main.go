package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ruteravelar/filavoz/internal/announce"
	"github.com/ruteravelar/filavoz/internal/api"
	"github.com/ruteravelar/filavoz/internal/audiocache"
	"github.com/ruteravelar/filavoz/internal/audit"
	"github.com/ruteravelar/filavoz/internal/config"
	"github.com/ruteravelar/filavoz/internal/database"
	"github.com/ruteravelar/filavoz/internal/display"
	"github.com/ruteravelar/filavoz/internal/flow"
	"github.com/ruteravelar/filavoz/internal/jobs"
	"github.com/ruteravelar/filavoz/internal/models"
	"github.com/ruteravelar/filavoz/internal/realtime"
	"github.com/ruteravelar/filavoz/internal/schedule"
	"github.com/ruteravelar/filavoz/internal/station"
	"github.com/ruteravelar/filavoz/internal/storage"
	"github.com/ruteravelar/filavoz/internal/synth"
	"github.com/ruteravelar/filavoz/internal/webhook"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.NewPool(ctx, cfg.Database)
	if err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := database.RunMigrations(ctx, db, cfg.Database.MigrationsPath); err != nil {
		slog.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		// The change feed and audio cache index live in redis.
		slog.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	defer rdb.Close()

	store := storage.NewSupabaseStorage(cfg.Storage.SupabaseURL, cfg.Storage.SupabaseKey)
	cache := audiocache.New(store, rdb, cfg.Storage.Bucket, cfg.Storage.Namespace)

	synthesizer := newSynthesizer(cfg)

	hub := display.NewHub()
	player := display.NewPlayer(hub)

	pipeline := announce.NewPipeline(synthesizer, cache, player, announce.Config{
		QueueSize:    cfg.Announce.QueueSize,
		MaxPlayback:  time.Duration(cfg.Announce.MaxPlaybackSeconds) * time.Second,
		SynthTimeout: time.Duration(cfg.Announce.SynthTimeoutSeconds) * time.Second,
		DefaultVoice: cfg.Synth.Voice,
		DefaultRate:  cfg.Synth.SpeakingRate,
		DefaultPitch: cfg.Synth.Pitch,
	})
	defer pipeline.Close()

	feed := realtime.NewRedisFeed(rdb, cfg.Facility.Name)
	engine := flow.NewEngine(flow.NewPostgresStore(db), feed)

	rules := schedule.NewStore(db)
	scheduler := schedule.NewScheduler(rules, pipeline, hub,
		cfg.Synth.Voice, cfg.Synth.SpeakingRate,
		time.Duration(cfg.Schedule.TickSeconds)*time.Second)
	go scheduler.Run(ctx)

	for _, st := range models.DefaultStations() {
		sess := station.NewSession(st, engine, feed, pipeline, hub)
		go func(st models.Station) {
			if err := sess.Run(ctx); err != nil && ctx.Err() == nil {
				slog.Error("station session exited", "error", err, "station", st.ID)
			}
		}(st)
	}

	jobsClient := jobs.NewClient(cfg.Redis)
	defer jobsClient.Close()

	dispatcher := webhook.NewDispatcher(webhook.NewPostgresLog(db))
	defer dispatcher.Close()
	webhooks := webhook.NewService(db, dispatcher)
	go func() {
		if err := webhook.NewRelay(feed, webhooks).Run(ctx); err != nil && ctx.Err() == nil {
			slog.Error("webhook relay exited", "error", err)
		}
	}()

	audits := audit.NewService(db)

	router := api.NewRouter(db, rdb, cfg, engine, pipeline, rules, jobsClient, hub, webhooks, audits)
	handler := router.Setup()

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("starting API server", "addr", cfg.Addr(), "facility", cfg.Facility.Name)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced shutdown", "error", err)
	}
	slog.Info("server stopped")
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
