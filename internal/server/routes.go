package server

import (
	"net/http"

	"github.com/cortexai/chatbi/internal/handler"
	"github.com/cortexai/chatbi/internal/metrics"
	"github.com/cortexai/chatbi/internal/middleware"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

// Routes builds the HTTP handler for app. limiter may be nil to disable
// rate limiting.
func Routes(app *App, limiter *middleware.RateLimiter) http.Handler {
	cfg := app.Config
	p := app.Pipeline

	if cfg.EnableAuth && len(cfg.APIKeys) == 0 {
		log.Warn().Msg("WARNING: auth enabled but no API keys configured - auth is not enforced")
	}

	// ─── Handlers ────────────────────────────────────────────────────────────────
	healthH := handler.NewHealthHandler(p, cfg.StorageType, app.Insights.Names())
	askH := handler.NewAskHandler(p)
	historyH := handler.NewHistoryHandler(p)
	exportH := handler.NewExportHandler(p)
	sessionH := handler.NewSessionHandler(p)
	tablesH := handler.NewTablesHandler(p)

	// ─── Router ──────────────────────────────────────────────────────────────────
	r := chi.NewRouter()

	// Core middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(metrics.Middleware)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.CORSOrigins)))
	r.Use(chiMiddleware.RealIP)

	// Public routes
	r.Get("/health", healthH.Health)
	r.Get("/", healthH.Health)
	r.Handle("/metrics", metrics.Handler())

	// Auth + rate limiting for API routes
	var apiMiddleware []func(http.Handler) http.Handler
	if limiter != nil {
		apiMiddleware = append(apiMiddleware, limiter.Middleware)
	}
	if cfg.EnableAuth && len(cfg.APIKeys) > 0 {
		apiMiddleware = append(apiMiddleware, middleware.Auth(cfg.APIKeys, cfg.APIKeyHeader))
	}

	r.Group(func(r chi.Router) {
		for _, m := range apiMiddleware {
			r.Use(m)
		}

		r.Route(cfg.APIPrefix, func(r chi.Router) {
			r.Post("/ask", askH.Ask)
			r.Get("/history", historyH.History)
			r.Get("/dashboard", historyH.Dashboard)
			r.Post("/export", exportH.Export)

			r.Post("/session", sessionH.Create)
			r.Get("/session/{session_id}", sessionH.Get)
			r.Delete("/session/{session_id}", sessionH.Delete)

			r.Get("/tables", tablesH.ListTables)
			r.Get("/tables/{table}", tablesH.GetTable)
		})
	})

	return r
}
