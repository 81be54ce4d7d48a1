package serverapp

import (
	"context"
	"fmt"
	"log/slog"
)

// Init acquires telemetry providers, loads metadata and builds the HTTP
// server. Calling it again after success is a no-op. On failure everything
// acquired so far is released.
func (a *App) Init(ctx context.Context) (err error) {
	a.stateMu.Lock()
	done := a.initialized
	a.stateMu.Unlock()
	if done {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var cleanup cleanupStack
	defer func() {
		if err != nil {
			_ = cleanup.run(context.Background(), a.logger)
		}
	}()

	if a.loggerProvider != nil {
		cleanup.pushProvider("logger provider", a.loggerProvider, a.logger)
	}

	meterProvider, metrics, err := initMetrics(a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry metrics: %w", err)
	}
	if meterProvider != nil {
		cleanup.pushProvider("meter provider", meterProvider, a.logger)
	}

	tracerProvider, err := initTracing(a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry tracing: %w", err)
	}
	if tracerProvider != nil {
		cleanup.pushProvider("tracer provider", tracerProvider, a.logger)
	}

	a.logger.Info("loading metadata", slog.String("file", a.cfg.Metadata.File))
	service, err := buildService(ctx, a.cfg, a.logger, metrics)
	if err != nil {
		return fmt.Errorf("failed to initialize lowering service: %w", err)
	}

	mux := buildRouter(a.cfg, a.logger, service, meterProvider)
	srv := buildServer(a.cfg, wrapHTTPHandler(a.cfg, a.logger, mux), fmt.Sprintf(":%d", a.cfg.Server.Port))
	cleanup.push("HTTP server", srv.Shutdown)

	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	a.meterProvider = meterProvider
	a.metrics = metrics
	a.tracerProvider = tracerProvider
	a.service = service
	a.mux = mux
	a.handler = srv.Handler
	a.serverAddr = srv.Addr
	a.srv = srv
	a.cleanup = cleanup
	a.initialized = true
	return nil
}
