// Package serverapp wires configuration, observability and the lowering
// service into the HTTP server and manages its lifecycle.
package serverapp

import (
	"fmt"
	"net/http"
	"sync"

	"graphql-ir/internal/config"
	"graphql-ir/internal/logging"
	"graphql-ir/internal/lowering"
	"graphql-ir/internal/observability"
)

// App owns runtime resources for the graphql-ir server lifecycle.
type App struct {
	cfg    *config.Config
	logger *logging.Logger

	loggerProvider *observability.LoggerProvider
	meterProvider  *observability.MeterProvider
	metrics        *observability.LoweringMetrics
	tracerProvider *observability.TracerProvider

	service *lowering.Service

	mux     *http.ServeMux
	handler http.Handler

	serverAddr string
	listenAddr string
	srv        *http.Server

	cleanup cleanupStack

	stateMu      sync.Mutex
	initialized  bool
	started      bool
	serverErrors chan error

	shutdownOnce sync.Once
	shutdownErr  error
}

// New creates an App lifecycle wrapper.
func New(cfg *config.Config, logger *logging.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &App{cfg: cfg, logger: logger}, nil
}

// AttachLoggerProvider registers an optional logger provider for shutdown cleanup.
func (a *App) AttachLoggerProvider(provider *observability.LoggerProvider) {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	a.loggerProvider = provider
}

// Handler returns the fully wrapped HTTP handler. It is nil before Init.
func (a *App) Handler() http.Handler {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	return a.handler
}
