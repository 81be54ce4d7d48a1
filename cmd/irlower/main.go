// Command irlower lowers one GraphQL query against a metadata document and
// prints the resulting IR or its request plan.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"graphql-ir/internal/config"
	"graphql-ir/internal/explain"
	"graphql-ir/internal/gqlrequest"
	"graphql-ir/internal/lowering"
	"graphql-ir/internal/naming"
	"graphql-ir/internal/serverapp"
)

var (
	// Version is set at build time via -ldflags "-X main.Version=...".
	Version = "dev"
	Commit  = "none"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "irlower: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := config.NewFlagSet("irlower")
	fs.Bool("version", false, "Print version and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if showVersion, _ := fs.GetBool("version"); showVersion {
		fmt.Fprintf(stdout, "irlower %s (%s)\n", Version, Commit)
		return nil
	}

	cfg, err := config.LoadFlags(fs)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, loggerProvider, err := serverapp.InitLoggerTo(cfg, stderr)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	if loggerProvider != nil {
		defer func() { _ = loggerProvider.Shutdown(context.Background(), logger.Logger) }()
	}

	result := cfg.ValidateLower()
	for _, warn := range result.Warnings {
		logger.Warn("configuration warning",
			slog.String("field", warn.Field),
			slog.String("message", warn.Message),
		)
	}
	if result.HasErrors() {
		for _, e := range result.Errors {
			logger.Error("configuration error",
				slog.String("field", e.Field),
				slog.String("message", e.Message),
				slog.String("hint", e.Hint),
			)
		}
		return fmt.Errorf("configuration validation failed")
	}

	md, err := serverapp.LoadMetadata(cfg.Metadata.File)
	if err != nil {
		return err
	}
	service, err := lowering.New(md, naming.New(cfg.Naming, logger.Logger), logger, nil)
	if err != nil {
		return err
	}

	variables, err := parseVariables(cfg.Lower.Variables)
	if err != nil {
		return err
	}
	lowered, err := service.Lower(ctx, lowering.Request{
		Analysis: gqlrequest.AnalyzeEnvelope(gqlrequest.Envelope{
			Query:         cfg.Lower.Query,
			OperationName: cfg.Lower.OperationName,
		}),
		Variables: variables,
		Session:   lowering.SessionFromMap(cfg.Lower.Session),
	})
	if err != nil {
		return err
	}

	if cfg.Lower.Output == "explain" {
		plan, err := explain.Build(lowered.IR)
		if err != nil {
			return err
		}
		_, err = io.WriteString(stdout, plan.Format())
		return err
	}

	enc := json.NewEncoder(stdout)
	if cfg.Lower.Pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(lowered.IR)
}

func parseVariables(raw string) (map[string]any, error) {
	if raw == "" {
		return map[string]any{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var variables map[string]any
	if err := dec.Decode(&variables); err != nil {
		return nil, fmt.Errorf("variables must be a JSON object: %w", err)
	}
	if variables == nil {
		variables = map[string]any{}
	}
	return variables, nil
}
