package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/hackgods/petcare-booking-widget/internal/logging"
	"github.com/hackgods/petcare-booking-widget/internal/marketplace"
)

func main() {
	_ = godotenv.Load()

	logger := logging.New(getEnv("LOG_LEVEL", "debug"), getEnv("APP_ENV", "dev"))
	addr := getEnv("STUB_ADDR", ":9090")

	stub := marketplace.NewStub(os.Getenv("STUB_API_KEY"), logger)
	srv := &http.Server{
		Addr:              addr,
		Handler:           stub.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("marketplace stub stopped")
		}
	}()
	logger.Info().Str("addr", addr).Msg("marketplace stub listening")

	<-rootCtx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	logger.Info().Int("bookings", len(stub.Bookings())).Msg("marketplace stub shut down")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
