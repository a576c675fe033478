package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/jorabeknazarmatov/test-platform/internal/config"
	"github.com/jorabeknazarmatov/test-platform/internal/database"
	"github.com/jorabeknazarmatov/test-platform/internal/handler"
	"github.com/jorabeknazarmatov/test-platform/internal/logger"
	"github.com/jorabeknazarmatov/test-platform/internal/middleware"
	"github.com/jorabeknazarmatov/test-platform/internal/monitor"
	"github.com/jorabeknazarmatov/test-platform/internal/router"
	"github.com/jorabeknazarmatov/test-platform/internal/session"
	"github.com/jorabeknazarmatov/test-platform/internal/sessionapi"
	"github.com/jorabeknazarmatov/test-platform/internal/validator"
)

// OTP checks allowed per client IP per minute.
const otpChecksPerMinute = 10

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.KioskPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting test kiosk")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Session API Backend ───────────────────────────────────────────
	backend, err := sessionapi.NewBackend(cfg.FixtureFile, cfg.APIBaseURL, cfg.APITimeout, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set up the Session API backend")
	}

	// ─── Session Controller ────────────────────────────────────────────
	ctrl := session.NewController(backend, session.Options{
		DefaultDuration: cfg.DefaultTestDuration,
		Logger:          log,
	})

	// ─── Monitor Relay (optional) ──────────────────────────────────────
	if cfg.RedisURL != "" {
		rdb, err := database.NewRedisClient(ctx, cfg.RedisURL, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer rdb.Close()

		updates, unsubscribe := ctrl.Subscribe()
		defer unsubscribe()
		go monitor.NewRelay(monitor.NewRedisPublisher(rdb), log).Start(ctx, updates)
	} else {
		log.Info().Msg("REDIS_URL not set, monitor relay disabled")
	}

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Session:   handler.NewSessionHandler(ctrl, backend, log),
		Directory: handler.NewDirectoryHandler(backend),
		WS:        handler.NewWSHandler(ctrl, log, cfg.AllowedOrigins),
	}

	otpLimiter := middleware.NewRateLimiter(otpChecksPerMinute, time.Minute)
	go otpLimiter.Run(ctx)

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(handlers, otpLimiter, cfg, log)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.KioskPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Kiosk listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Let answer writes already in flight reach the server.
	ctrl.Wait()
	cancel()

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
