package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/jorabeknazarmatov/test-platform/internal/config"
	"github.com/jorabeknazarmatov/test-platform/internal/logger"
	"github.com/jorabeknazarmatov/test-platform/internal/session"
	"github.com/jorabeknazarmatov/test-platform/internal/sessionapi"
)

func main() {
	cfg := config.Load()

	// stdout belongs to the question screen.
	log := logger.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	backend, err := sessionapi.NewBackend(cfg.FixtureFile, cfg.APIBaseURL, cfg.APITimeout, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set up the Session API backend")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := newApp(backend, os.Stdin, os.Stdout)
	a.ctrl = session.NewController(backend, session.Options{
		DefaultDuration: cfg.DefaultTestDuration,
		Logger:          log,
		OnAnswerError: func(e *session.AnswerSubmitError) {
			a.printf("! %d-savol javobi serverga yetmadi: %s\n", e.QuestionID, reasonText(e))
		},
	})
	if fd := int(os.Stdin.Fd()); term.IsTerminal(fd) {
		a.readOTP = func() (string, error) {
			b, err := term.ReadPassword(fd)
			a.printf("\n")
			return string(b), err
		}
	}

	// The main loop blocks on stdin, so an interrupt is handled here.
	go func() {
		<-ctx.Done()
		a.ctrl.Reset()
		a.printf("\nTest to'xtatildi.\n")
		os.Exit(130)
	}()

	if err := a.run(ctx); err != nil && err != errQuit {
		fmt.Fprintln(os.Stderr, "Xatolik:", err)
		a.ctrl.Wait()
		os.Exit(1)
	}
	a.ctrl.Wait()
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
