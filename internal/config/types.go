// Package config loads configuration from files, env vars, and flags, and validates it.
package config

import (
	"maps"
	"time"

	"graphql-ir/internal/naming"
)

// Config holds the application configuration shared by the server and the CLI.
type Config struct {
	Metadata      MetadataConfig      `mapstructure:"metadata"`
	Lower         LowerConfig         `mapstructure:"lower"`
	Server        ServerConfig        `mapstructure:"server"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Naming        naming.Config       `mapstructure:"naming"`
}

// MetadataConfig points at the metadata document the schema is built from.
type MetadataConfig struct {
	// File is a YAML or JSON metadata document. "@-" reads stdin.
	File string `mapstructure:"file"`
}

// LowerConfig holds the inputs of a single CLI lowering run.
type LowerConfig struct {
	Query         string `mapstructure:"query"`
	QueryFile     string `mapstructure:"query_file"`
	OperationName string `mapstructure:"operation_name"`
	// Variables is a JSON object of operation variables.
	Variables     string            `mapstructure:"variables"`
	VariablesFile string            `mapstructure:"variables_file"`
	Session       map[string]string `mapstructure:"session"`
	// Output is "ir" for the JSON IR or "explain" for the request plan.
	Output string `mapstructure:"output"`
	Pretty bool   `mapstructure:"pretty"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port               int           `mapstructure:"port"`
	MaxRequestBytes    int64         `mapstructure:"max_request_bytes"`
	ReadTimeout        time.Duration `mapstructure:"read_timeout"`
	WriteTimeout       time.Duration `mapstructure:"write_timeout"`
	IdleTimeout        time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout    time.Duration `mapstructure:"shutdown_timeout"`
	HealthCheckTimeout time.Duration `mapstructure:"health_check_timeout"`

	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// CORSConfig controls cross-origin access to the HTTP endpoints.
type CORSConfig struct {
	Enabled          bool     `mapstructure:"enabled"`
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposeHeaders    []string `mapstructure:"expose_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"` // seconds
}

// RateLimitConfig configures the global request rate limit.
type RateLimitConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	RPS     float64 `mapstructure:"rps"`
	Burst   int     `mapstructure:"burst"`
}

// LoggingConfig holds logging parameters.
type LoggingConfig struct {
	Level          string `mapstructure:"level"`           // debug, info, warn, error
	Format         string `mapstructure:"format"`          // json, text
	ExportsEnabled bool   `mapstructure:"exports_enabled"` // Enable OTLP log export
}

// ObservabilityConfig holds observability parameters.
type ObservabilityConfig struct {
	ServiceName      string        `mapstructure:"service_name"`
	ServiceVersion   string        `mapstructure:"service_version"`
	Environment      string        `mapstructure:"environment"`
	MetricsEnabled   bool          `mapstructure:"metrics_enabled"`
	TracingEnabled   bool          `mapstructure:"tracing_enabled"`
	TraceSampleRatio float64       `mapstructure:"trace_sample_ratio"`
	Logging          LoggingConfig `mapstructure:"logging"`

	// Global OTLP settings (defaults for all signals)
	OTLP OTLPConfig `mapstructure:"otlp"`

	// Signal-specific overrides (optional)
	Traces  *OTLPConfig `mapstructure:"traces,omitempty"`
	Logs    *OTLPConfig `mapstructure:"logs,omitempty"`
	Metrics *OTLPConfig `mapstructure:"metrics,omitempty"`
}

// OTLPConfig holds OTLP exporter configuration
type OTLPConfig struct {
	Endpoint          string            `mapstructure:"endpoint"`
	Protocol          string            `mapstructure:"protocol"` // "grpc", "http/protobuf"
	Insecure          bool              `mapstructure:"insecure"`
	TLSCertFile       string            `mapstructure:"tls_cert_file"`
	TLSClientCertFile string            `mapstructure:"tls_client_cert_file"`
	TLSClientKeyFile  string            `mapstructure:"tls_client_key_file"`
	Headers           map[string]string `mapstructure:"headers"`
	Timeout           time.Duration     `mapstructure:"timeout"`
	Compression       string            `mapstructure:"compression"` // "none", "gzip"
	RetryEnabled      bool              `mapstructure:"retry_enabled"`
	RetryMaxAttempts  int               `mapstructure:"retry_max_attempts"`
}

// GetTracesConfig returns the effective OTLP config for traces.
func (c *ObservabilityConfig) GetTracesConfig() OTLPConfig { return c.effectiveOTLP(c.Traces) }

// GetLogsConfig returns the effective OTLP config for logs.
func (c *ObservabilityConfig) GetLogsConfig() OTLPConfig { return c.effectiveOTLP(c.Logs) }

// GetMetricsConfig returns the effective OTLP config for metrics.
func (c *ObservabilityConfig) GetMetricsConfig() OTLPConfig { return c.effectiveOTLP(c.Metrics) }

func (c *ObservabilityConfig) effectiveOTLP(signal *OTLPConfig) OTLPConfig {
	if signal == nil {
		return c.OTLP
	}
	return mergeOTLPConfigs(c.OTLP, *signal)
}

func overrideString(base *string, override string) {
	if override != "" {
		*base = override
	}
}

// mergeOTLPConfigs lays signal settings over the global ones. Insecure always
// comes from the override since false cannot be told apart from unset; retry
// settings move together when the override names an attempt count.
func mergeOTLPConfigs(base OTLPConfig, override OTLPConfig) OTLPConfig {
	result := base
	overrideString(&result.Endpoint, override.Endpoint)
	overrideString(&result.Protocol, override.Protocol)
	overrideString(&result.TLSCertFile, override.TLSCertFile)
	overrideString(&result.TLSClientCertFile, override.TLSClientCertFile)
	overrideString(&result.TLSClientKeyFile, override.TLSClientKeyFile)
	overrideString(&result.Compression, override.Compression)
	result.Insecure = override.Insecure

	if override.Headers != nil {
		result.Headers = maps.Clone(base.Headers)
		if result.Headers == nil {
			result.Headers = make(map[string]string, len(override.Headers))
		}
		maps.Copy(result.Headers, override.Headers)
	}
	if override.Timeout != 0 {
		result.Timeout = override.Timeout
	}
	if override.RetryMaxAttempts != 0 {
		result.RetryEnabled = override.RetryEnabled
		result.RetryMaxAttempts = override.RetryMaxAttempts
	}
	return result
}
