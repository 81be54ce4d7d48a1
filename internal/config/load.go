package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "GQLIR"

// StdinPath reads a file-valued setting from standard input.
const StdinPath = "@-"

// Load parses args and loads configuration with the following precedence:
// 1. Command line flags
// 2. Environment variables
// 3. Config file
// 4. Default values
func Load(args []string) (*Config, error) {
	fs := NewFlagSet("graphql-ir")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return LoadFlags(fs)
}

// LoadFlags loads configuration using an already parsed flag set created by
// NewFlagSet. Callers may define extra flags on the set before parsing.
func LoadFlags(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	cfgPath, _ := fs.GetString("config")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.SetConfigName("graphql-ir")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/graphql-ir/")
		v.AddConfigPath("$HOME/.graphql-ir")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		if cfgPath != "" {
			return nil, fmt.Errorf("failed to read config file %q: %w", cfgPath, err)
		}
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	bindChangedFlagsToViper(fs, v)
	if err := validateSingleStdinFileSource(v); err != nil {
		return nil, err
	}

	if v.GetString("lower.query") == "" && v.GetString("lower.query_file") != "" {
		query, err := readRawFile(v.GetString("lower.query_file"))
		if err != nil {
			return nil, fmt.Errorf("failed to read query file: %w", err)
		}
		v.Set("lower.query", query)
	}
	if v.GetString("lower.variables") == "" && v.GetString("lower.variables_file") != "" {
		variables, err := readRawFile(v.GetString("lower.variables_file"))
		if err != nil {
			return nil, fmt.Errorf("failed to read variables file: %w", err)
		}
		v.Set("lower.variables", strings.TrimSpace(variables))
	}

	var cfg Config
	if err := v.UnmarshalExact(
		&cfg,
		viper.DecodeHook(
			mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
				stringToStringMapHookFunc(",", "="),
			),
		),
	); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

func bindChangedFlagsToViper(fs *pflag.FlagSet, v *viper.Viper) {
	fs.Visit(func(f *pflag.Flag) {
		if f.Name == "config" || f.Name == "version" {
			return
		}

		switch f.Value.Type() {
		case "string":
			val, _ := fs.GetString(f.Name)
			v.Set(f.Name, val)
		case "int":
			val, _ := fs.GetInt(f.Name)
			v.Set(f.Name, val)
		case "int64":
			val, _ := fs.GetInt64(f.Name)
			v.Set(f.Name, val)
		case "bool":
			val, _ := fs.GetBool(f.Name)
			v.Set(f.Name, val)
		case "float64":
			val, _ := fs.GetFloat64(f.Name)
			v.Set(f.Name, val)
		case "duration":
			val, _ := fs.GetDuration(f.Name)
			v.Set(f.Name, val)
		case "stringSlice":
			val, _ := fs.GetStringSlice(f.Name)
			v.Set(f.Name, val)
		case "stringToString":
			val, _ := fs.GetStringToString(f.Name)
			v.Set(f.Name, val)
		default:
			v.Set(f.Name, f.Value.String())
		}
	})
}

// NewFlagSet defines all configuration flags using canonical snake_case keys.
func NewFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)

	fs.String("metadata.file", "", "Metadata document (YAML or JSON, use @- for stdin)")

	// Lowering inputs (CLI)
	fs.String("lower.query", "", "GraphQL query document to lower")
	fs.String("lower.query_file", "", "Path to the GraphQL query document (use @- for stdin)")
	fs.String("lower.operation_name", "", "Operation to lower when the document has several")
	fs.String("lower.variables", "", "Operation variables as a JSON object")
	fs.String("lower.variables_file", "", "Path to a JSON file of operation variables (use @- for stdin)")
	fs.StringToString("lower.session", nil, "Session variables (name=value,...)")
	fs.String("lower.output", "", "Output format (ir, explain)")
	fs.Bool("lower.pretty", false, "Indent JSON output")

	// Server flags
	fs.Int("server.port", 0, "HTTP server port")
	fs.Int64("server.max_request_bytes", 0, "Maximum request body size in bytes")
	fs.Duration("server.read_timeout", 0, "HTTP read timeout")
	fs.Duration("server.write_timeout", 0, "HTTP write timeout")
	fs.Duration("server.idle_timeout", 0, "HTTP idle timeout")
	fs.Duration("server.shutdown_timeout", 0, "Graceful shutdown timeout")
	fs.Duration("server.health_check_timeout", 0, "Health check timeout")
	fs.Bool("server.cors.enabled", false, "Enable CORS (Cross-Origin Resource Sharing)")
	fs.StringSlice("server.cors.allowed_origins", nil, "Allowed CORS origins (comma-separated or repeated)")
	fs.StringSlice("server.cors.allowed_methods", nil, "Allowed CORS methods (comma-separated or repeated)")
	fs.StringSlice("server.cors.allowed_headers", nil, "Allowed CORS headers (comma-separated or repeated)")
	fs.StringSlice("server.cors.expose_headers", nil, "CORS headers exposed to browsers (comma-separated or repeated)")
	fs.Bool("server.cors.allow_credentials", false, "Allow credentials in CORS requests")
	fs.Int("server.cors.max_age", 0, "CORS preflight cache duration (seconds)")
	fs.Bool("server.rate_limit.enabled", false, "Enable global rate limiting")
	fs.Float64("server.rate_limit.rps", 0, "Global rate limit requests per second")
	fs.Int("server.rate_limit.burst", 0, "Global rate limit burst size")

	// Observability flags
	fs.String("observability.service_name", "", "Service name reported to telemetry backends")
	fs.String("observability.service_version", "", "Service version reported to telemetry backends")
	fs.String("observability.environment", "", "Deployment environment")
	fs.Bool("observability.metrics_enabled", false, "Enable Prometheus metrics")
	fs.Bool("observability.tracing_enabled", false, "Enable OpenTelemetry tracing")
	fs.Float64("observability.trace_sample_ratio", 0, "Trace sampling ratio (0.0 to 1.0)")
	fs.String("observability.logging.level", "", "Log level (debug, info, warn, error)")
	fs.String("observability.logging.format", "", "Log format (json, text)")
	fs.Bool("observability.logging.exports_enabled", false, "Export logs over OTLP")

	// Global OTLP flags
	fs.String("observability.otlp.endpoint", "", "OTLP endpoint for all signals")
	fs.String("observability.otlp.protocol", "", "OTLP protocol (grpc, http/protobuf)")
	fs.Bool("observability.otlp.insecure", false, "Use insecure OTLP connection")
	fs.Duration("observability.otlp.timeout", 0, "Timeout for OTLP exports")

	// Signal-specific OTLP flags
	fs.String("observability.traces.endpoint", "", "OTLP endpoint for traces only")
	fs.String("observability.logs.endpoint", "", "OTLP endpoint for logs only")
	fs.String("observability.metrics.endpoint", "", "OTLP endpoint for metrics only")

	fs.StringP("config", "c", "", "Config file path")
	return fs
}

// setDefaults sets default values (lowest precedence).
func setDefaults(v *viper.Viper) {
	v.SetDefault("metadata.file", "")

	v.SetDefault("lower.query", "")
	v.SetDefault("lower.query_file", "")
	v.SetDefault("lower.operation_name", "")
	v.SetDefault("lower.variables", "")
	v.SetDefault("lower.variables_file", "")
	v.SetDefault("lower.session", map[string]string{})
	v.SetDefault("lower.output", "ir")
	v.SetDefault("lower.pretty", false)

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.max_request_bytes", 1<<20)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.health_check_timeout", 2*time.Second)
	v.SetDefault("server.cors.enabled", false)
	v.SetDefault("server.cors.allowed_origins", []string{})
	v.SetDefault("server.cors.allowed_methods", []string{"GET", "POST", "OPTIONS"})
	v.SetDefault("server.cors.allowed_headers", []string{"Content-Type", "X-Request-ID"})
	v.SetDefault("server.cors.expose_headers", []string{"X-Request-ID"})
	v.SetDefault("server.cors.allow_credentials", false)
	v.SetDefault("server.cors.max_age", 86400)
	v.SetDefault("server.rate_limit.enabled", false)
	v.SetDefault("server.rate_limit.rps", 0.0)
	v.SetDefault("server.rate_limit.burst", 0)

	v.SetDefault("observability.service_name", "graphql-ir")
	v.SetDefault("observability.service_version", "")
	v.SetDefault("observability.environment", "development")
	v.SetDefault("observability.metrics_enabled", true)
	v.SetDefault("observability.tracing_enabled", false)
	v.SetDefault("observability.trace_sample_ratio", 1.0)

	v.SetDefault("observability.logging.level", "info")
	v.SetDefault("observability.logging.format", "json")
	v.SetDefault("observability.logging.exports_enabled", false)

	v.SetDefault("observability.otlp.endpoint", "localhost:4317")
	v.SetDefault("observability.otlp.protocol", "grpc")
	v.SetDefault("observability.otlp.insecure", false)
	v.SetDefault("observability.otlp.tls_cert_file", "")
	v.SetDefault("observability.otlp.tls_client_cert_file", "")
	v.SetDefault("observability.otlp.tls_client_key_file", "")
	v.SetDefault("observability.otlp.timeout", 10*time.Second)
	v.SetDefault("observability.otlp.compression", "gzip")
	v.SetDefault("observability.otlp.retry_enabled", true)
	v.SetDefault("observability.otlp.retry_max_attempts", 3)

	v.SetDefault("naming.plural_overrides", map[string]string{})
	v.SetDefault("naming.singular_overrides", map[string]string{})
}

// ReadFile returns the contents of path, or of stdin for "@-".
func ReadFile(path string) ([]byte, error) {
	if path == StdinPath {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func readRawFile(path string) (string, error) {
	data, err := ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// validateSingleStdinFileSource rejects configurations reading more than one input from stdin.
func validateSingleStdinFileSource(v *viper.Viper) error {
	var stdinKeys []string
	for _, key := range []string{"metadata.file", "lower.query_file", "lower.variables_file"} {
		if strings.TrimSpace(v.GetString(key)) == StdinPath {
			stdinKeys = append(stdinKeys, key)
		}
	}
	if len(stdinKeys) > 1 {
		return fmt.Errorf("only one of %s may read from stdin (%s)", strings.Join(stdinKeys, ", "), StdinPath)
	}
	return nil
}

// stringToStringMapHookFunc decodes "a=1,b=2" strings, as supplied through
// environment variables, into maps.
func stringToStringMapHookFunc(sep, kvSep string) mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if from.Kind() != reflect.String || to != reflect.TypeOf(map[string]string{}) {
			return data, nil
		}

		raw := strings.TrimSpace(data.(string))
		out := map[string]string{}
		if raw == "" {
			return out, nil
		}
		for _, pair := range strings.Split(raw, sep) {
			key, value, ok := strings.Cut(pair, kvSep)
			if !ok {
				return nil, fmt.Errorf("invalid key=value pair %q", pair)
			}
			out[strings.TrimSpace(key)] = strings.TrimSpace(value)
		}
		return out, nil
	}
}
