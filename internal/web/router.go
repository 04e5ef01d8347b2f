package web

import (
	"log/slog"
	"net/http"

	"github.com/kenchan6666/mikabot/internal/db"
	"github.com/kenchan6666/mikabot/internal/web/handlers"
	"github.com/kenchan6666/mikabot/internal/web/middleware"
)

// Config carries the wiring the router cannot derive from its services.
type Config struct {
	AdminAPIKey string
	LLMProvider string
}

type Router struct {
	repo     db.Repository
	log      *slog.Logger
	pipeline handlers.MessagePipeline
	songs    handlers.SongIndex
	limiter  handlers.LimiterAdmin
	catalog  handlers.StaleChecker
	config   Config
}

func NewRouter(repo db.Repository, log *slog.Logger, pipeline handlers.MessagePipeline, songs handlers.SongIndex, limiter handlers.LimiterAdmin, catalog handlers.StaleChecker, config Config) *Router {
	return &Router{
		repo:     repo,
		log:      log,
		pipeline: pipeline,
		songs:    songs,
		limiter:  limiter,
		catalog:  catalog,
		config:   config,
	}
}

func (r *Router) Handler() http.Handler {
	mux := http.NewServeMux()

	webhookHandler := handlers.NewWebhookHandler(r.pipeline, r.log)
	songHandler := handlers.NewSongHandler(r.songs, r.log)
	adminHandler := handlers.NewAdminHandler(r.limiter, r.log)
	healthHandler := handlers.NewHealthHandler(r.repo, r.catalog, r.config.LLMProvider, r.log)

	rateLimiter := middleware.NewRateLimiter(30, 60)

	mux.Handle("POST /webhook/langbot",
		middleware.Chain(
			http.HandlerFunc(webhookHandler.Receive),
			middleware.RequestID,
			middleware.PrometheusMetrics(),
			middleware.RequestLogger(r.log),
		),
	)

	// Deprecated alias kept for older gateway configs.
	mux.Handle("POST /webhook",
		middleware.Chain(
			http.HandlerFunc(webhookHandler.ReceiveLegacy),
			middleware.RequestID,
			middleware.PrometheusMetrics(),
			middleware.RequestLogger(r.log),
		),
	)

	mux.Handle("GET /api/v1/songs",
		middleware.Chain(
			http.HandlerFunc(songHandler.List),
			middleware.RequestID,
			middleware.PrometheusMetrics(),
			middleware.RequestLogger(r.log),
			middleware.CacheControl("public, s-maxage=60, max-age=0"),
		),
	)

	mux.Handle("GET /api/v1/songs/search",
		middleware.Chain(
			http.HandlerFunc(songHandler.Search),
			middleware.RequestID,
			middleware.PrometheusMetrics(),
			middleware.RequestLogger(r.log),
			middleware.RateLimit(rateLimiter),
		),
	)

	mux.Handle("POST /api/v1/admin/rate-limits/reset",
		middleware.Chain(
			http.HandlerFunc(adminHandler.ResetRateLimit),
			middleware.RequestID,
			middleware.PrometheusMetrics(),
			middleware.RequestLogger(r.log),
			middleware.APIKeyAuth(r.config.AdminAPIKey),
		),
	)

	mux.Handle("GET /health",
		middleware.Chain(
			http.HandlerFunc(healthHandler.Check),
			middleware.PrometheusMetrics(),
		),
	)

	return middleware.CORS(mux)
}
