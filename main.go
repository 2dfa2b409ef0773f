package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"triage_server/config"
	"triage_server/internal/bootstrap"
	"triage_server/pkg/logger"

	"github.com/joho/godotenv"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// Load .env file if exists (for local development). Logger setup happens
	// inside NewAPI once the config is known, so nothing is logged before it.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log := logger.Get()
		log.Fatal().Err(err).Msg("failed to load config")
	}

	app, cleanup, err := bootstrap.NewAPI(cfg)
	if err != nil {
		log := logger.Get()
		log.Fatal().Err(err).Msg("failed to initialize API")
	}
	defer cleanup()

	// Graceful shutdown with timeout
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log := logger.Get()
		log.Info().Dur("timeout", shutdownTimeout).Msg("shutting down API server")

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			done <- app.Shutdown()
		}()

		select {
		case err := <-done:
			if err != nil {
				log.Error().Err(err).Msg("error shutting down")
			} else {
				log.Info().Msg("API server shut down gracefully")
			}
		case <-ctx.Done():
			log.Warn().Msg("API shutdown timed out, forcing exit")
		}
	}()

	addr := ":" + cfg.Port
	mainLog := logger.Get()
	mainLog.Info().Str("addr", addr).Msg("starting API server")
	if err := app.Listen(addr); err != nil {
		mainLog.Fatal().Err(err).Msg("failed to start server")
	}
}
