// Package observability provides OpenTelemetry integration for metrics, tracing, and logging.
// It supports OTLP exporters (gRPC and HTTP) for traces and logs, and Prometheus for metrics.
package observability

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc/credentials"

	"graphql-ir/internal/config"
)

// InstrumentationName scopes the tracer and meter of the lowering service.
const InstrumentationName = "graphql-ir"

// shutdownTimeout bounds each provider shutdown.
const shutdownTimeout = 5 * time.Second

// Config holds the provider settings for one telemetry signal.
type Config struct {
	ServiceName      string
	ServiceVersion   string
	Environment      string
	TraceSampleRatio float64
	// Export is the effective OTLP exporter configuration of the signal.
	Export config.OTLPConfig
}

// FromConfig builds the provider configuration for one signal from the
// application settings and that signal's effective OTLP settings.
func FromConfig(cfg config.ObservabilityConfig, otlp config.OTLPConfig) Config {
	return Config{
		ServiceName:      cfg.ServiceName,
		ServiceVersion:   cfg.ServiceVersion,
		Environment:      cfg.Environment,
		TraceSampleRatio: cfg.TraceSampleRatio,
		Export:           otlp,
	}
}

// Tracer returns the tracer of the lowering service from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(InstrumentationName)
}

func newResource(cfg Config) (*resource.Resource, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			"",
			attribute.String("service.name", cfg.ServiceName),
			attribute.String("service.version", cfg.ServiceVersion),
			attribute.String("deployment.environment", cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	return res, nil
}

func shutdown(ctx context.Context, logger *slog.Logger, name string, fn func(context.Context) error) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if err := fn(shutdownCtx); err != nil {
		logger.Error("failed to shutdown "+name+" provider", slog.String("error", err.Error()))
		return err
	}
	logger.Info(name + " provider shutdown successfully")
	return nil
}

// MeterProvider wraps the OpenTelemetry meter provider. Its Prometheus
// reader registers with the default registry served on /metrics.
type MeterProvider struct {
	provider *metric.MeterProvider
}

// InitMeterProvider initializes OpenTelemetry metrics with Prometheus exporter
func InitMeterProvider(cfg Config) (*MeterProvider, error) {
	res, err := newResource(cfg)
	if err != nil {
		return nil, err
	}
	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := metric.NewMeterProvider(
		metric.WithResource(res),
		metric.WithReader(exporter),
	)
	otel.SetMeterProvider(provider)
	return &MeterProvider{provider: provider}, nil
}

// Shutdown gracefully shuts down the meter provider
func (mp *MeterProvider) Shutdown(ctx context.Context, logger *slog.Logger) error {
	return shutdown(ctx, logger, "meter", mp.provider.Shutdown)
}

type otlpProtocol string

const (
	otlpProtocolGRPC otlpProtocol = "grpc"
	otlpProtocolHTTP otlpProtocol = "http/protobuf"
)

func parseOTLPProtocol(value string) (otlpProtocol, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", string(otlpProtocolGRPC):
		return otlpProtocolGRPC, nil
	case "http", string(otlpProtocolHTTP):
		return otlpProtocolHTTP, nil
	default:
		return "", fmt.Errorf("unsupported OTLP protocol %q (use grpc or http/protobuf)", value)
	}
}

func buildTLSConfig(cfg config.OTLPConfig) (*tls.Config, error) {
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}

	if cfg.TLSCertFile != "" {
		certPool := x509.NewCertPool()
		caCert, err := os.ReadFile(cfg.TLSCertFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read OTLP TLS CA file: %w", err)
		}
		if !certPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse OTLP TLS CA file")
		}
		tlsConfig.RootCAs = certPool
	}

	if cfg.TLSClientCertFile != "" || cfg.TLSClientKeyFile != "" {
		if cfg.TLSClientCertFile == "" || cfg.TLSClientKeyFile == "" {
			return nil, fmt.Errorf("OTLP TLS client cert and key must both be set")
		}
		cert, err := tls.LoadX509KeyPair(cfg.TLSClientCertFile, cfg.TLSClientKeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load OTLP TLS client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}
	return tlsConfig, nil
}

func isHTTPEndpointURL(endpoint string) bool {
	return strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://")
}

// exporterSettings is the protocol-independent reading of an OTLP exporter
// configuration shared by the trace and log exporters.
type exporterSettings struct {
	endpoint    string
	endpointURL bool
	tls         *tls.Config // nil when insecure
	headers     map[string]string
	timeout     time.Duration
	gzip        bool
	retry       bool
}

func newExporterSettings(cfg config.OTLPConfig) (exporterSettings, error) {
	s := exporterSettings{
		endpoint:    cfg.Endpoint,
		endpointURL: isHTTPEndpointURL(cfg.Endpoint),
		headers:     cfg.Headers,
		timeout:     cfg.Timeout,
		gzip:        cfg.Compression == "gzip",
		retry:       cfg.RetryEnabled && cfg.RetryMaxAttempts > 0,
	}
	if !cfg.Insecure {
		tlsConfig, err := buildTLSConfig(cfg)
		if err != nil {
			return exporterSettings{}, err
		}
		s.tls = tlsConfig
	}
	return s, nil
}

const (
	retryInitialInterval = 1 * time.Second
	retryMaxInterval     = 5 * time.Second
	retryMaxElapsedTime  = 30 * time.Second
)

// otlpOptions names the option constructors of one OTLP exporter package. A
// nil endpointURL means the exporter only takes host:port endpoints.
type otlpOptions[O any] struct {
	endpoint    func(string) O
	endpointURL func(string) O
	insecure    func() O
	tls         func(*tls.Config) O
	headers     func(map[string]string) O
	timeout     func(time.Duration) O
	gzip        func() O
	retry       func() O
}

func (b otlpOptions[O]) build(s exporterSettings) []O {
	opts := make([]O, 0, 6)
	if s.endpointURL && b.endpointURL != nil {
		opts = append(opts, b.endpointURL(s.endpoint))
	} else {
		opts = append(opts, b.endpoint(s.endpoint))
	}
	if s.tls == nil {
		opts = append(opts, b.insecure())
	} else {
		opts = append(opts, b.tls(s.tls))
	}
	if len(s.headers) > 0 {
		opts = append(opts, b.headers(s.headers))
	}
	if s.timeout > 0 {
		opts = append(opts, b.timeout(s.timeout))
	}
	if s.gzip {
		opts = append(opts, b.gzip())
	}
	if s.retry {
		opts = append(opts, b.retry())
	}
	return opts
}

var traceGRPCOptions = otlpOptions[otlptracegrpc.Option]{
	endpoint: otlptracegrpc.WithEndpoint,
	insecure: otlptracegrpc.WithInsecure,
	tls: func(c *tls.Config) otlptracegrpc.Option {
		return otlptracegrpc.WithTLSCredentials(credentials.NewTLS(c))
	},
	headers: otlptracegrpc.WithHeaders,
	timeout: otlptracegrpc.WithTimeout,
	gzip:    func() otlptracegrpc.Option { return otlptracegrpc.WithCompressor("gzip") },
	retry: func() otlptracegrpc.Option {
		return otlptracegrpc.WithRetry(otlptracegrpc.RetryConfig{
			Enabled: true, InitialInterval: retryInitialInterval, MaxInterval: retryMaxInterval, MaxElapsedTime: retryMaxElapsedTime,
		})
	},
}

var traceHTTPOptions = otlpOptions[otlptracehttp.Option]{
	endpoint:    otlptracehttp.WithEndpoint,
	endpointURL: otlptracehttp.WithEndpointURL,
	insecure:    otlptracehttp.WithInsecure,
	tls:         otlptracehttp.WithTLSClientConfig,
	headers:     otlptracehttp.WithHeaders,
	timeout:     otlptracehttp.WithTimeout,
	gzip:        func() otlptracehttp.Option { return otlptracehttp.WithCompression(otlptracehttp.GzipCompression) },
	retry: func() otlptracehttp.Option {
		return otlptracehttp.WithRetry(otlptracehttp.RetryConfig{
			Enabled: true, InitialInterval: retryInitialInterval, MaxInterval: retryMaxInterval, MaxElapsedTime: retryMaxElapsedTime,
		})
	},
}

var logGRPCOptions = otlpOptions[otlploggrpc.Option]{
	endpoint: otlploggrpc.WithEndpoint,
	insecure: otlploggrpc.WithInsecure,
	tls: func(c *tls.Config) otlploggrpc.Option {
		return otlploggrpc.WithTLSCredentials(credentials.NewTLS(c))
	},
	headers: otlploggrpc.WithHeaders,
	timeout: otlploggrpc.WithTimeout,
	gzip:    func() otlploggrpc.Option { return otlploggrpc.WithCompressor("gzip") },
	retry: func() otlploggrpc.Option {
		return otlploggrpc.WithRetry(otlploggrpc.RetryConfig{
			Enabled: true, InitialInterval: retryInitialInterval, MaxInterval: retryMaxInterval, MaxElapsedTime: retryMaxElapsedTime,
		})
	},
}

var logHTTPOptions = otlpOptions[otlploghttp.Option]{
	endpoint:    otlploghttp.WithEndpoint,
	endpointURL: otlploghttp.WithEndpointURL,
	insecure:    otlploghttp.WithInsecure,
	tls:         otlploghttp.WithTLSClientConfig,
	headers:     otlploghttp.WithHeaders,
	timeout:     otlploghttp.WithTimeout,
	gzip:        func() otlploghttp.Option { return otlploghttp.WithCompression(otlploghttp.GzipCompression) },
	retry: func() otlploghttp.Option {
		return otlploghttp.WithRetry(otlploghttp.RetryConfig{
			Enabled: true, InitialInterval: retryInitialInterval, MaxInterval: retryMaxInterval, MaxElapsedTime: retryMaxElapsedTime,
		})
	},
}

// prepareExport resolves what every OTLP-exporting provider needs before
// its exporter can be created.
func prepareExport(cfg Config) (*resource.Resource, otlpProtocol, exporterSettings, error) {
	protocol, err := parseOTLPProtocol(cfg.Export.Protocol)
	if err != nil {
		return nil, "", exporterSettings{}, err
	}
	settings, err := newExporterSettings(cfg.Export)
	if err != nil {
		return nil, "", exporterSettings{}, err
	}
	res, err := newResource(cfg)
	if err != nil {
		return nil, "", exporterSettings{}, err
	}
	return res, protocol, settings, nil
}

// TracerProvider wraps the OpenTelemetry tracer provider
type TracerProvider struct {
	provider *sdktrace.TracerProvider
}

// InitTracerProvider initializes OpenTelemetry tracing with an OTLP exporter
// and installs it as the global tracer provider.
func InitTracerProvider(cfg Config) (*TracerProvider, error) {
	res, protocol, settings, err := prepareExport(cfg)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	var exporter sdktrace.SpanExporter
	switch protocol {
	case otlpProtocolGRPC:
		exporter, err = otlptracegrpc.New(ctx, traceGRPCOptions.build(settings)...)
	case otlpProtocolHTTP:
		exporter, err = otlptracehttp.New(ctx, traceHTTPOptions.build(settings)...)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(traceSamplerForRatio(cfg.TraceSampleRatio)),
	)
	otel.SetTracerProvider(provider)
	return &TracerProvider{provider: provider}, nil
}

func traceSamplerForRatio(ratio float64) sdktrace.Sampler {
	switch {
	case ratio <= 0:
		return sdktrace.NeverSample()
	case ratio >= 1:
		return sdktrace.AlwaysSample()
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
	}
}

// Shutdown gracefully shuts down the tracer provider
func (tp *TracerProvider) Shutdown(ctx context.Context, logger *slog.Logger) error {
	return shutdown(ctx, logger, "tracer", tp.provider.Shutdown)
}

// LoggerProvider wraps the OpenTelemetry logger provider
type LoggerProvider struct {
	provider *log.LoggerProvider
}

// InitLoggerProvider initializes OpenTelemetry log export over OTLP. The
// provider is handed to logging.NewLogger rather than installed globally.
func InitLoggerProvider(cfg Config) (*LoggerProvider, error) {
	res, protocol, settings, err := prepareExport(cfg)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	var exporter log.Exporter
	switch protocol {
	case otlpProtocolGRPC:
		exporter, err = otlploggrpc.New(ctx, logGRPCOptions.build(settings)...)
	case otlpProtocolHTTP:
		exporter, err = otlploghttp.New(ctx, logHTTPOptions.build(settings)...)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP log exporter: %w", err)
	}

	provider := log.NewLoggerProvider(
		log.WithResource(res),
		log.WithProcessor(log.NewBatchProcessor(exporter)),
	)
	return &LoggerProvider{provider: provider}, nil
}

// Shutdown gracefully shuts down the logger provider
func (lp *LoggerProvider) Shutdown(ctx context.Context, logger *slog.Logger) error {
	return shutdown(ctx, logger, "logger", lp.provider.Shutdown)
}

// Provider returns the underlying logger provider
func (lp *LoggerProvider) Provider() *log.LoggerProvider {
	return lp.provider
}
