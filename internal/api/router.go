package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/ruteravelar/filavoz/internal/announce"
	"github.com/ruteravelar/filavoz/internal/api/handlers"
	"github.com/ruteravelar/filavoz/internal/api/middleware"
	"github.com/ruteravelar/filavoz/internal/audit"
	"github.com/ruteravelar/filavoz/internal/auth"
	"github.com/ruteravelar/filavoz/internal/config"
	"github.com/ruteravelar/filavoz/internal/display"
	"github.com/ruteravelar/filavoz/internal/flow"
	"github.com/ruteravelar/filavoz/internal/jobs"
	"github.com/ruteravelar/filavoz/internal/schedule"
	"github.com/ruteravelar/filavoz/internal/webhook"
)

type Router struct {
	mux      *chi.Mux
	db       *pgxpool.Pool
	redis    *redis.Client
	cfg      *config.Config
	jwt      *auth.JWTMiddleware
	engine   *flow.Engine
	pipeline *announce.Pipeline
	rules    *schedule.Store
	jobs     *jobs.Client
	hub      *display.Hub
	webhooks *webhook.Service
	audits   *audit.Service
}

func NewRouter(
	db *pgxpool.Pool,
	rdb *redis.Client,
	cfg *config.Config,
	engine *flow.Engine,
	pipeline *announce.Pipeline,
	rules *schedule.Store,
	jobsClient *jobs.Client,
	hub *display.Hub,
	webhooks *webhook.Service,
	audits *audit.Service,
) *Router {
	return &Router{
		mux:      chi.NewRouter(),
		db:       db,
		redis:    rdb,
		cfg:      cfg,
		jwt:      auth.NewJWTMiddleware(cfg.Auth.JWTSecret),
		engine:   engine,
		pipeline: pipeline,
		rules:    rules,
		jobs:     jobsClient,
		hub:      hub,
		webhooks: webhooks,
		audits:   audits,
	}
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(rt.cfg.Server.AllowedOrigins))

	rl := middleware.NewRateLimiter(50, 100)
	r.Use(rl.Limit)

	// Health endpoints (no auth)
	health := handlers.NewHealthHandler(rt.db, rt.redis)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	// Display sockets authenticate out of band; kiosks have no operator token.
	r.Get("/ws/display", rt.hub.Handle)

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rt.jwt.Authenticate)

		patientH := handlers.NewPatientHandler(rt.engine, rt.pipeline, rt.audits)
		r.Route("/patients", func(r chi.Router) {
			r.Post("/", patientH.Register)
			r.Get("/", patientH.List)
			r.Post("/{id}/call", patientH.Call)
			r.Post("/{id}/recall", patientH.Recall)
			r.Post("/{id}/forward", patientH.Forward)
			r.Post("/{id}/finish", patientH.Finish)
			r.Post("/{id}/finish-silent", patientH.FinishSilent)
		})

		announceH := handlers.NewAnnouncementHandler(rt.pipeline, rt.jobs)
		r.Route("/announcements", func(r chi.Router) {
			r.Post("/", announceH.Create)
			r.Get("/status", announceH.Status)
		})
		r.Post("/precache", announceH.Precache)

		scheduleH := handlers.NewScheduleHandler(rt.rules)
		r.Route("/scheduled-messages", func(r chi.Router) {
			r.Post("/", scheduleH.Create)
			r.Get("/", scheduleH.List)
			r.Get("/{id}", scheduleH.Get)
			r.Put("/{id}", scheduleH.Update)
			r.Delete("/{id}", scheduleH.Delete)
		})

		webhookH := handlers.NewWebhookHandler(rt.webhooks)
		r.Route("/webhooks", func(r chi.Router) {
			r.Post("/", webhookH.Create)
			r.Get("/", webhookH.List)
			r.Delete("/{id}", webhookH.Delete)
		})

		auditH := handlers.NewAuditHandler(rt.audits)
		r.Get("/audit-logs", auditH.List)
	})

	return r
}
