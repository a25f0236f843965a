package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/hackgods/petcare-booking-widget/internal/config"
	"github.com/hackgods/petcare-booking-widget/internal/db"
	"github.com/hackgods/petcare-booking-widget/internal/events"
	"github.com/hackgods/petcare-booking-widget/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("config load error: " + err.Error())
	}

	logger := logging.New(cfg.LogLevel, cfg.Env)
	logger.Info().
		Str("env", cfg.Env).
		Dur("interval", cfg.PruneInterval).
		Dur("retention", cfg.EventRetention).
		Msg("events-pruner starting up")

	if cfg.PostgresDSN == "" {
		logger.Fatal().Msg("POSTGRES_DSN is required")
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	logger.Info().Msg("connected to Postgres")

	repo := events.NewPgRepository(pgPool)

	// Run once at startup
	runOnce(rootCtx, logger, repo, cfg.EventRetention)

	scheduler := cron.New()
	if _, err := scheduler.AddFunc("@every "+cfg.PruneInterval.String(), func() {
		runOnce(rootCtx, logger, repo, cfg.EventRetention)
	}); err != nil {
		logger.Fatal().Err(err).Msg("schedule prune job")
	}
	scheduler.Start()

	<-rootCtx.Done()
	logger.Info().Msg("shutdown signal received, stopping events pruner")
	<-scheduler.Stop().Done()
}

func runOnce(ctx context.Context, logger zerolog.Logger, repo *events.PgRepository, retention time.Duration) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	deleted, err := repo.PruneBefore(runCtx, start.Add(-retention))
	if err != nil {
		logger.Error().Err(err).Msg("prune run error")
		return
	}
	logger.Info().Int64("deleted", deleted).Dur("took", time.Since(start)).Msg("prune run complete")
}
