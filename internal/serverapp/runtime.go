package serverapp

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
)

// StopReason tells why WaitForStop returned.
type StopReason string

const (
	StopSignal      StopReason = "signal"
	StopServerError StopReason = "server_error"
)

// Start binds the listen address and serves in the background. Bind failures
// are returned directly; later serve failures arrive on the returned channel.
func (a *App) Start() (<-chan error, error) {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()

	if !a.initialized {
		return nil, fmt.Errorf("app is not initialized")
	}
	if a.started {
		return a.serverErrors, nil
	}

	ln, err := net.Listen("tcp", a.serverAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", a.serverAddr, err)
	}
	a.listenAddr = ln.Addr().String()
	a.logger.Info("server starting", a.startAttrs()...)

	serverErrors := make(chan error, 1)
	go func() {
		if err := a.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()
	a.serverErrors = serverErrors
	a.started = true
	return serverErrors, nil
}

// Addr returns the bound listen address once Start has succeeded.
func (a *App) Addr() string {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	return a.listenAddr
}

func (a *App) startAttrs() []any {
	attrs := []any{
		slog.String("address", a.listenAddr),
		slog.String("lower_endpoint", LowerPath),
		slog.String("explain_endpoint", ExplainPath),
		slog.String("health_endpoint", HealthPath),
	}
	if a.service != nil {
		attrs = append(attrs, slog.String("schema_fingerprint", a.service.Snapshot().Fingerprint))
	}
	if a.cfg == nil {
		return attrs
	}
	attrs = append(attrs, slog.Int64("max_request_bytes", a.cfg.Server.MaxRequestBytes))
	if a.cfg.Observability.MetricsEnabled {
		attrs = append(attrs, slog.String("metrics_endpoint", MetricsPath))
	}
	if a.cfg.Server.RateLimit.Enabled {
		attrs = append(attrs,
			slog.Float64("rate_limit_rps", a.cfg.Server.RateLimit.RPS),
			slog.Int("rate_limit_burst", a.cfg.Server.RateLimit.Burst),
		)
	}
	return attrs
}

// WaitForStop blocks until a signal arrives on stop or the server fails. A nil
// serverErrors falls back to the channel returned by Start.
func (a *App) WaitForStop(stop <-chan os.Signal, serverErrors <-chan error) (StopReason, error) {
	if serverErrors == nil {
		a.stateMu.Lock()
		serverErrors = a.serverErrors
		a.stateMu.Unlock()
	}
	if stop == nil && serverErrors == nil {
		return "", fmt.Errorf("nothing to wait for: no stop channel and server not started")
	}

	// A nil channel never becomes ready, so one select covers every case.
	select {
	case err := <-serverErrors:
		if err == nil {
			return StopServerError, fmt.Errorf("server stopped unexpectedly")
		}
		return StopServerError, fmt.Errorf("server failed: %w", err)
	case sig := <-stop:
		a.logger.Info("received shutdown signal", slog.String("signal", sig.String()))
		return StopSignal, nil
	}
}
