package serverapp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"graphql-ir/internal/logging"
)

// cleanupStack releases resources in reverse order of acquisition.
type cleanupStack []cleanupStep

type cleanupStep struct {
	name    string
	release func(context.Context) error
}

func (s *cleanupStack) push(name string, release func(context.Context) error) {
	*s = append(*s, cleanupStep{name: name, release: release})
}

// telemetryProvider is an OpenTelemetry provider wrapper from the observability package.
type telemetryProvider interface {
	Shutdown(ctx context.Context, logger *slog.Logger) error
}

func (s *cleanupStack) pushProvider(name string, provider telemetryProvider, logger *logging.Logger) {
	s.push(name, func(ctx context.Context) error {
		return provider.Shutdown(ctx, logger.Logger)
	})
}

// run releases every step even when earlier ones fail and joins their errors.
func (s cleanupStack) run(ctx context.Context, logger *logging.Logger) error {
	var errs []error
	for i := len(s) - 1; i >= 0; i-- {
		step := s[i]
		start := time.Now()
		err := step.release(ctx)
		if err != nil {
			logger.Warn("cleanup failed",
				slog.String("component", step.name),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", step.name, err))
			continue
		}
		logger.Debug("released", slog.String("component", step.name), slog.Duration("duration", time.Since(start)))
	}
	return errors.Join(errs...)
}

// Shutdown releases all acquired resources once. Later calls return the
// result of the first.
func (a *App) Shutdown(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	a.shutdownOnce.Do(func() {
		a.stateMu.Lock()
		cleanup := a.cleanup
		a.cleanup = nil
		a.started = false
		a.stateMu.Unlock()

		a.shutdownErr = cleanup.run(ctx, a.logger)
	})
	return a.shutdownErr
}
