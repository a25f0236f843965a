package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hackgods/petcare-booking-widget/internal/api"
	"github.com/hackgods/petcare-booking-widget/internal/config"
	"github.com/hackgods/petcare-booking-widget/internal/db"
	"github.com/hackgods/petcare-booking-widget/internal/events"
	"github.com/hackgods/petcare-booking-widget/internal/instance"
	"github.com/hackgods/petcare-booking-widget/internal/logging"
	"github.com/hackgods/petcare-booking-widget/internal/observability/metrics"
	redisclient "github.com/hackgods/petcare-booking-widget/internal/redis"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("config load error: " + err.Error())
	}

	logger := logging.New(cfg.LogLevel, cfg.Env)
	logger.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Msg("widget-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Redis
	rdb, err := redisclient.NewRedisClient(rootCtx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error().Err(err).Msg("error closing redis")
		}
	}()
	logger.Info().Msg("connected to Redis")

	// Connect Postgres when configured, otherwise events go to the log
	var pgPool *pgxpool.Pool
	var recorder events.Recorder = events.NewLogRecorder(logger)
	if cfg.PostgresDSN != "" {
		if err := db.Migrate(cfg.PostgresDSN); err != nil {
			logger.Fatal().Err(err).Msg("postgres migration error")
		}
		pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
		pgPool, err = db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
		cancelPg()
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connection error")
		}
		defer pgPool.Close()
		recorder = events.NewPgRepository(pgPool)
		logger.Info().Msg("connected to Postgres")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	widgetMetrics := metrics.NewWidgetMetrics(reg)

	svc := instance.NewService(
		redisclient.NewInstanceStore(rdb, cfg.InstanceTTL),
		redisclient.NewRedisInstanceLocker(rdb, cfg.SubmitLockTTL),
		recorder,
		cfg,
		instance.WithMetrics(widgetMetrics),
		instance.WithLogger(logger),
	)

	router := api.NewRouter(api.RouterConfig{
		Service:        svc,
		PgPool:         pgPool,
		Redis:          rdb,
		Gatherer:       reg,
		Logger:         logger,
		AllowedOrigins: cfg.AllowedOrigins,
		SubmitPerMin:   cfg.SubmitPerMin,
		SubmitBurst:    cfg.SubmitBurst,
		CreatePerMin:   cfg.CreatePerMin,
		CreateBurst:    cfg.CreateBurst,
		TrustProxy:     cfg.TrustProxy,
		Env:            cfg.Env,
		Version:        version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}()
	logger.Info().Str("addr", srv.Addr).Msg("listening")

	<-rootCtx.Done()
	logger.Info().Msg("shutting down widget-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}
