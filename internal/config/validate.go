package config

import (
	"encoding/json"
	"fmt"
	"maps"
	"net"
	"net/url"
	"slices"
	"strings"

	"graphql-ir/internal/naming"
)

// ValidationError represents a configuration validation error with context.
type ValidationError struct {
	Field   string
	Message string
	Hint    string
}

func (e ValidationError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: %s (hint: %s)", e.Field, e.Message, e.Hint)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationWarning represents a non-fatal configuration issue.
type ValidationWarning struct {
	Field   string
	Message string
	Hint    string
}

// ValidationResult contains the results of configuration validation.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationWarning
}

// HasErrors returns true if there are any validation errors.
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// Error returns a combined error message if there are validation errors.
func (r *ValidationResult) Error() string {
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}

func (r *ValidationResult) fail(field, hint, format string, args ...any) {
	r.Errors = append(r.Errors, ValidationError{Field: field, Message: fmt.Sprintf(format, args...), Hint: hint})
}

func (r *ValidationResult) warn(field, hint, format string, args ...any) {
	r.Warnings = append(r.Warnings, ValidationWarning{Field: field, Message: fmt.Sprintf(format, args...), Hint: hint})
}

// oneOf records an error when value is not among allowed. An empty string in
// allowed accepts the unset value without listing it in the hint.
func (r *ValidationResult) oneOf(field, what, value string, allowed ...string) {
	if slices.Contains(allowed, value) {
		return
	}
	listed := slices.DeleteFunc(slices.Clone(allowed), func(s string) bool { return s == "" })
	r.fail(field, "valid values are: "+strings.Join(listed, ", "), "invalid %s %q", what, value)
}

// Validate checks the settings every binary needs and returns validation results.
func (c *Config) Validate() *ValidationResult {
	result := &ValidationResult{}
	c.Metadata.validate(result)
	c.Server.validate(result)
	c.Observability.validate(result)
	validateNamingConfig(result, c.Naming)
	return result
}

// ValidateLower additionally checks the CLI lowering inputs.
func (c *Config) ValidateLower() *ValidationResult {
	result := c.Validate()
	c.Lower.validate(result)
	return result
}

func (m *MetadataConfig) validate(result *ValidationResult) {
	if strings.TrimSpace(m.File) == "" {
		result.fail("metadata.file", "set --metadata.file or GQLIR_METADATA_FILE", "a metadata document is required")
	}
}

func (l *LowerConfig) validate(result *ValidationResult) {
	if strings.TrimSpace(l.Query) == "" {
		result.fail("lower.query", "set --lower.query or --lower.query_file", "a query document is required")
	}
	if l.Variables != "" {
		var variables map[string]any
		if err := json.Unmarshal([]byte(l.Variables), &variables); err != nil {
			result.fail("lower.variables", "", "variables must be a JSON object: %v", err)
		}
	}
	result.oneOf("lower.output", "output format", l.Output, "ir", "explain")
	if l.Pretty && l.Output == "explain" {
		result.warn("lower.pretty", "", "pretty has no effect on explain output")
	}
}

func (s *ServerConfig) validate(result *ValidationResult) {
	if s.Port < 1 || s.Port > 65535 {
		result.fail("server.port", "use a port between 1 and 65535", "port %d is out of range", s.Port)
	}
	if s.MaxRequestBytes <= 0 {
		result.fail("server.max_request_bytes", "", "max_request_bytes must be positive")
	}
	if min(s.ShutdownTimeout, s.ReadTimeout, s.WriteTimeout, s.IdleTimeout) < 0 {
		result.fail("server", "", "timeouts cannot be negative")
	}
	if s.WriteTimeout > 0 && s.ReadTimeout > s.WriteTimeout {
		result.warn("server.write_timeout", "slow clients may see responses cut off", "write_timeout is shorter than read_timeout")
	}

	rl := s.RateLimit
	switch {
	case rl.Enabled:
		if rl.RPS <= 0 {
			result.fail("server.rate_limit.rps", "", "rps must be greater than 0 when rate limiting is enabled")
		}
		if rl.Burst <= 0 {
			result.fail("server.rate_limit.burst", "", "burst must be greater than 0 when rate limiting is enabled")
		}
	case rl.RPS > 0 || rl.Burst > 0:
		result.warn("server.rate_limit.enabled", "set server.rate_limit.enabled=true to apply them",
			"rate limit values are set but rate limiting is disabled")
	}

	if s.CORS.Enabled && len(s.CORS.AllowedOrigins) == 0 {
		result.warn("server.cors.allowed_origins", "", "CORS is enabled but no origins are allowed")
	}
	if s.CORS.AllowCredentials && slices.Contains(s.CORS.AllowedOrigins, "*") {
		result.fail("server.cors.allow_credentials", "list explicit origins instead of *",
			"credentials cannot be allowed for the wildcard origin")
	}
}

func validateNamingConfig(result *ValidationResult, cfg naming.Config) {
	check := func(field string, overrides map[string]string) {
		for _, from := range slices.Sorted(maps.Keys(overrides)) {
			to := overrides[from]
			if strings.TrimSpace(from) == "" || strings.TrimSpace(to) == "" {
				result.fail(field, "", "override %q -> %q has an empty side", from, to)
			}
		}
	}
	check("naming.plural_overrides", cfg.PluralOverrides)
	check("naming.singular_overrides", cfg.SingularOverrides)
}

func (o *ObservabilityConfig) validate(result *ValidationResult) {
	result.oneOf("observability.logging.level", "log level", o.Logging.Level, "debug", "info", "warn", "error")
	result.oneOf("observability.logging.format", "log format", o.Logging.Format, "json", "text")
	if o.TraceSampleRatio < 0 || o.TraceSampleRatio > 1 {
		result.fail("observability.trace_sample_ratio", "use a value between 0.0 and 1.0",
			"sample ratio %v is out of range", o.TraceSampleRatio)
	}

	o.OTLP.validate("observability.otlp", result)
	signals := []struct {
		prefix string
		cfg    *OTLPConfig
	}{
		{"observability.traces", o.Traces},
		{"observability.logs", o.Logs},
		{"observability.metrics", o.Metrics},
	}
	for _, signal := range signals {
		if signal.cfg != nil {
			signal.cfg.validate(signal.prefix, result)
		}
	}
}

func (o *OTLPConfig) validate(prefix string, result *ValidationResult) {
	result.oneOf(prefix+".protocol", "OTLP protocol", o.Protocol, "", "grpc", "http/protobuf")
	if o.Protocol == "http/protobuf" && !validOTLPEndpoint(o.Endpoint) {
		result.fail(prefix+".endpoint", "use host:port or a full URL", "invalid OTLP endpoint %q for http/protobuf", o.Endpoint)
	}
	result.oneOf(prefix+".compression", "OTLP compression", o.Compression, "", "none", "gzip")
	if o.RetryMaxAttempts < 0 {
		result.fail(prefix+".retry_max_attempts", "", "retry_max_attempts cannot be negative")
	}
}

// validOTLPEndpoint accepts host:port or an absolute URL with a host.
func validOTLPEndpoint(endpoint string) bool {
	if strings.Contains(endpoint, "://") {
		parsed, err := url.Parse(endpoint)
		return err == nil && parsed.Host != ""
	}
	_, _, err := net.SplitHostPort(endpoint)
	return endpoint != "" && err == nil
}
