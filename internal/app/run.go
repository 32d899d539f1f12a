package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
)

type Runner func(ctx context.Context) error

// Run executes run until it returns or the process receives SIGINT or
// SIGTERM. Cancellation is passed to run through ctx, and Run waits for it
// to finish its own shutdown before returning the exit code.
func Run(serviceName string, log zerolog.Logger, run Runner) int {
	log.Info().Str("process", serviceName).Msg("starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- run(ctx) }()

	select {
	case <-ctx.Done():
		log.Info().Str("process", serviceName).Msg("shutting down")
		// Wait for the runner to drain.
		if err := <-errCh; err != nil {
			log.Error().Err(err).Str("process", serviceName).Msg("shutdown failed")
			return 1
		}
		return 0
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Str("process", serviceName).Msg("failed")
			return 1
		}
		log.Info().Str("process", serviceName).Msg("stopped")
		return 0
	}
}
