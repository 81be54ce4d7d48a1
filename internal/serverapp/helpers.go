package serverapp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"graphql-ir/internal/config"
	"graphql-ir/internal/logging"
	"graphql-ir/internal/lowering"
	"graphql-ir/internal/metadata"
	"graphql-ir/internal/middleware"
	"graphql-ir/internal/naming"
	"graphql-ir/internal/observability"
)

// Routes served by the application.
const (
	LowerPath          = "/v1/lower"
	ExplainPath        = "/v1/explain"
	HealthPath         = "/health"
	MetricsPath        = "/metrics"
	ReloadMetadataPath = "/admin/reload-metadata"
)

// InitLogger builds the process logger from configuration and, when log
// export is enabled, the OTLP logger provider backing it. Logs go to stdout.
func InitLogger(cfg *config.Config) (*logging.Logger, *observability.LoggerProvider, error) {
	return InitLoggerTo(cfg, nil)
}

// InitLoggerTo is InitLogger writing to out. A nil out means stdout.
func InitLoggerTo(cfg *config.Config, out io.Writer) (*logging.Logger, *observability.LoggerProvider, error) {
	loggerCfg := logging.Config{
		Level:       cfg.Observability.Logging.Level,
		Format:      cfg.Observability.Logging.Format,
		Output:      out,
		ServiceName: cfg.Observability.ServiceName,
	}
	logger := logging.NewLogger(loggerCfg)
	slog.SetDefault(logger.Logger)

	if !cfg.Observability.Logging.ExportsEnabled {
		return logger, nil, nil
	}

	logsConfig := cfg.Observability.GetLogsConfig()
	logger.Info("initializing OpenTelemetry logging",
		slog.String("otlp_endpoint", logsConfig.Endpoint),
		slog.String("otlp_protocol", logsConfig.Protocol),
		slog.Bool("insecure", logsConfig.Insecure),
	)
	loggerProvider, err := observability.InitLoggerProvider(observability.FromConfig(cfg.Observability, logsConfig))
	if err != nil {
		return nil, nil, err
	}

	loggerCfg.LoggerProvider = loggerProvider.Provider()
	logger = logging.NewLogger(loggerCfg)
	slog.SetDefault(logger.Logger)
	return logger, loggerProvider, nil
}

func initMetrics(cfg *config.Config, logger *logging.Logger) (*observability.MeterProvider, *observability.LoweringMetrics, error) {
	if !cfg.Observability.MetricsEnabled {
		return nil, nil, nil
	}

	logger.Info("initializing OpenTelemetry metrics",
		slog.String("service_name", cfg.Observability.ServiceName),
		slog.String("service_version", cfg.Observability.ServiceVersion),
		slog.String("environment", cfg.Observability.Environment),
	)
	meterProvider, err := observability.InitMeterProvider(observability.FromConfig(cfg.Observability, cfg.Observability.GetMetricsConfig()))
	if err != nil {
		return nil, nil, err
	}

	metrics, err := observability.InitMetrics(logger.Logger)
	if err != nil {
		return nil, nil, err
	}
	return meterProvider, metrics, nil
}

func initTracing(cfg *config.Config, logger *logging.Logger) (*observability.TracerProvider, error) {
	if !cfg.Observability.TracingEnabled {
		return nil, nil
	}

	tracesConfig := cfg.Observability.GetTracesConfig()
	logger.Info("initializing OpenTelemetry tracing",
		slog.String("otlp_endpoint", tracesConfig.Endpoint),
		slog.String("otlp_protocol", tracesConfig.Protocol),
		slog.Bool("insecure", tracesConfig.Insecure),
		slog.Float64("sample_ratio", cfg.Observability.TraceSampleRatio),
	)
	tracerProvider, err := observability.InitTracerProvider(observability.FromConfig(cfg.Observability, tracesConfig))
	if err != nil {
		return nil, err
	}
	logger.Info("OpenTelemetry tracing initialized successfully")
	return tracerProvider, nil
}

// LoadMetadata reads and resolves the metadata document at path ("@-" for stdin).
func LoadMetadata(path string) (*metadata.Metadata, error) {
	data, err := config.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata file: %w", err)
	}
	doc, err := metadata.Load(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return metadata.Resolve(doc)
}

func buildService(ctx context.Context, cfg *config.Config, logger *logging.Logger, metrics *observability.LoweringMetrics) (*lowering.Service, error) {
	md, err := LoadMetadata(cfg.Metadata.File)
	if err != nil {
		return nil, err
	}
	return lowering.New(md, naming.New(cfg.Naming, logger.Logger), logger, metrics)
}

func buildRouter(cfg *config.Config, logger *logging.Logger, service *lowering.Service, meterProvider *observability.MeterProvider) *http.ServeMux {
	mux := http.NewServeMux()

	analyzed := func(h http.Handler) http.Handler {
		return middleware.BodyLimitMiddleware(cfg.Server.MaxRequestBytes)(middleware.RequestAnalysisMiddleware()(h))
	}
	lower := analyzed(lowerHandler(service))
	explain := analyzed(explainHandler(service))
	mux.Handle("POST "+LowerPath, lower)
	mux.Handle("GET "+LowerPath, lower)
	mux.Handle("POST "+ExplainPath, explain)
	mux.Handle("GET "+ExplainPath, explain)

	mux.HandleFunc("GET "+HealthPath, healthHandler(service, cfg.Server.HealthCheckTimeout))
	mux.HandleFunc("POST "+ReloadMetadataPath, reloadHandler(service, cfg.Metadata.File))

	if cfg.Observability.MetricsEnabled && meterProvider != nil {
		mux.Handle("GET "+MetricsPath, promhttp.Handler())
		logger.Info("metrics endpoint enabled", slog.String("path", MetricsPath))
	}
	return mux
}

func wrapHTTPHandler(cfg *config.Config, logger *logging.Logger, handler http.Handler) http.Handler {
	handler = middleware.LoggingMiddleware(logger)(handler)

	if cfg.Observability.MetricsEnabled || cfg.Observability.TracingEnabled {
		handler = otelhttp.NewHandler(handler, "http.server",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return httpRootSpanName(r)
			}),
		)
		logger.Info("HTTP instrumentation enabled")
	}

	if cfg.Server.CORS.Enabled {
		handler = middleware.CORSMiddleware(cfg.Server.CORS)(handler)
	}
	if cfg.Server.RateLimit.Enabled {
		handler = middleware.RateLimitMiddleware(cfg.Server.RateLimit, HealthPath, MetricsPath)(handler)
	}
	return handler
}

func httpRootSpanName(r *http.Request) string {
	if r == nil {
		return "HTTP /*"
	}
	method := strings.TrimSpace(r.Method)
	if method == "" {
		method = "HTTP"
	}
	return method + " " + normalizeHTTPSpanRoute(r.URL.Path)
}

func normalizeHTTPSpanRoute(rawPath string) string {
	switch rawPath {
	case LowerPath, ExplainPath, HealthPath, MetricsPath, ReloadMetadataPath:
		return rawPath
	default:
		return "/*"
	}
}

func buildServer(cfg *config.Config, handler http.Handler, serverAddr string) *http.Server {
	return &http.Server{
		Addr:         serverAddr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
}
