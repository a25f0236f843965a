package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type RouterConfig struct {
	Service        WidgetService
	PgPool         *pgxpool.Pool
	Redis          *redis.Client
	Gatherer       prometheus.Gatherer
	Logger         zerolog.Logger
	AllowedOrigins []string
	SubmitPerMin   int
	SubmitBurst    int
	CreatePerMin   int
	CreateBurst    int
	TrustProxy     bool
	Env            string
	Version        string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(CORS(cfg.AllowedOrigins))

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	// Every route that stores a new instance shares one limiter.
	createLimit := RateLimitMiddleware(cfg.CreatePerMin, cfg.CreateBurst, cfg.TrustProxy)
	submitLimit := RateLimitMiddleware(cfg.SubmitPerMin, cfg.SubmitBurst, cfg.TrustProxy)

	// Widget endpoints
	r.Route("/v1/widgets", func(r chi.Router) {
		r.With(createLimit).Post("/", createWidgetHandler(cfg.Service))
		r.Get("/{id}", getWidgetHandler(cfg.Service))
		r.Delete("/{id}", deleteWidgetHandler(cfg.Service))
		r.With(submitLimit).Post("/{id}/bookings", submitBookingHandler(cfg.Service))
	})
	r.With(createLimit).Post("/v1/pages/bootstrap", bootstrapPageHandler(cfg.Service))
	r.With(createLimit).Get("/embed", embedHandler(cfg.Service))

	return r
}
