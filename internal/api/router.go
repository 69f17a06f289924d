// Package api exposes the feed over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"tgfeed/internal/channel"
	"tgfeed/internal/feed"
	"tgfeed/internal/locales"
	"tgfeed/internal/logging"
	"tgfeed/internal/stats"
)

// FeedService serves feed pages.
type FeedService interface {
	GetPage(ctx context.Context, channel string, limit int, cursor *time.Time) (feed.Page, error)
}

// StatsService serves subscriber counts.
type StatsService interface {
	GetStats(ctx context.Context, channel string) (stats.Result, error)
}

// Deps holds what the router needs.
type Deps struct {
	Feed  FeedService
	Stats StatsService
	// Webhook, when set, is mounted at POST /telegram/webhook.
	Webhook http.Handler

	Normalizer     channel.Normalizer
	DefaultChannel string

	CORSAllowedOrigins []string
	// RateLimitPerMinute limits /api requests per client IP; 0 disables.
	RateLimitPerMinute int
}

// Server holds the HTTP handlers.
type Server struct {
	deps     Deps
	validate *validator.Validate
	log      zerolog.Logger
}

// NewServer creates the handlers.
func NewServer(deps Deps) *Server {
	return &Server{
		deps:     deps,
		validate: newValidator(),
		log:      logging.Component("api"),
	}
}

// Router builds the chi router with the global middleware stack.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.deps.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Accept-Language", "Content-Type"},
		MaxAge:         86400,
	}))
	r.Use(PrometheusMetrics)

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		if n := s.deps.RateLimitPerMinute; n > 0 {
			r.Use(httprate.Limit(n, time.Minute,
				httprate.WithKeyFuncs(httprate.KeyByRealIP),
				httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
					s.respondError(w, r, http.StatusTooManyRequests, locales.MsgErrorRateLimited)
				}),
			))
		}
		r.Get("/posts", s.handlePosts)
		r.Get("/stats", s.handleStats)
	})

	if s.deps.Webhook != nil {
		r.Method(http.MethodPost, "/telegram/webhook", s.deps.Webhook)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.respondError(w, r, http.StatusNotFound, locales.MsgErrorNotFound)
	})
	return r
}
