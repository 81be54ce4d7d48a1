// Package lowering is the request-facing entry point: it owns the schema
// built from the loaded metadata and turns query documents into IR.
package lowering

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"graphql-ir/internal/gqlrequest"
	"graphql-ir/internal/ir"
	"graphql-ir/internal/logging"
	"graphql-ir/internal/metadata"
	"graphql-ir/internal/naming"
	"graphql-ir/internal/normalize"
	"graphql-ir/internal/observability"
	"graphql-ir/internal/schema"
	"graphql-ir/internal/session"
)

// SpanName names the span wrapping one lowering request.
const SpanName = "ir.lower"

// Snapshot is an immutable view of the schema requests are lowered against.
type Snapshot struct {
	Metadata    *metadata.Metadata
	Schema      *schema.Schema
	BuiltAt     time.Time
	Fingerprint string
}

// Request is one lowering request.
type Request struct {
	// Analysis is the parsed query document. Build it with gqlrequest.AnalyzeEnvelope.
	Analysis *gqlrequest.Analysis
	// Variables holds decoded variable values with numbers as json.Number.
	Variables map[string]any
	Session   session.Variables
	Headers   http.Header
}

// Result is a lowered operation.
type Result struct {
	IR          *ir.QueryIR
	Usage       *ir.UsageCounts
	Fingerprint string
}

// Service lowers requests against the current snapshot. It is safe for
// concurrent use; Reload swaps the snapshot without blocking Lower.
type Service struct {
	namer   *naming.Namer
	logger  *logging.Logger
	metrics *observability.LoweringMetrics
	tracer  trace.Tracer

	reloadMu sync.Mutex
	active   atomic.Pointer[Snapshot]
}

// New builds the schema for md and returns a service lowering against it.
// logger and metrics may be nil.
func New(md *metadata.Metadata, namer *naming.Namer, logger *logging.Logger, metrics *observability.LoweringMetrics) (*Service, error) {
	if namer == nil {
		namer = naming.Default()
	}
	if logger == nil {
		logger = &logging.Logger{Logger: slog.Default()}
	}
	s := &Service{
		namer:   namer,
		logger:  logger.WithFields(slog.String("component", "lowering")),
		metrics: metrics,
		tracer:  observability.Tracer(),
	}
	if err := s.Reload(context.Background(), md); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload rebuilds the schema from md and makes it current. On failure the
// previous snapshot stays active.
func (s *Service) Reload(ctx context.Context, md *metadata.Metadata) error {
	if md == nil {
		return fmt.Errorf("lowering service requires metadata")
	}
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	start := time.Now()
	s.namer.Reset()
	built, err := schema.Build(md, s.namer)
	s.metrics.RecordSchemaBuild(ctx, time.Since(start), err == nil)
	if err != nil {
		return fmt.Errorf("failed to build schema: %w", err)
	}

	snapshot := &Snapshot{
		Metadata:    md,
		Schema:      built,
		BuiltAt:     time.Now(),
		Fingerprint: Fingerprint(built),
	}
	previous := s.active.Swap(snapshot)
	if previous == nil || previous.Fingerprint != snapshot.Fingerprint {
		s.logger.Info("schema built",
			slog.String("fingerprint", snapshot.Fingerprint),
			slog.Int("types", len(built.ObjectNames())),
			slog.Duration("duration", time.Since(start)),
		)
	}
	return nil
}

// Snapshot returns the current schema snapshot.
func (s *Service) Snapshot() *Snapshot {
	return s.active.Load()
}

// Fingerprint identifies a schema by a hash of its SDL.
func Fingerprint(s *schema.Schema) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(s.SDL()))
}

// Lower normalizes and lowers the operation of req.
func (s *Service) Lower(ctx context.Context, req Request) (*Result, error) {
	snapshot := s.active.Load()
	meta := observability.RequestMeta{SchemaFingerprint: snapshot.Fingerprint}
	if role, ok := req.Session.Get(session.Role); ok {
		meta.Role = role
	}

	ctx, span := s.tracer.Start(ctx, SpanName, trace.WithAttributes(
		observability.RequestSpanAttributes(req.Analysis, meta)...,
	))
	defer span.End()

	logger := s.requestLogger(ctx, req.Analysis, meta)

	s.metrics.IncrementActiveRequests(ctx)
	defer s.metrics.DecrementActiveRequests(ctx)

	start := time.Now()
	result, err := s.lower(snapshot, req, logger)
	duration := time.Since(start)

	if err != nil {
		kind := ErrorKind(err)
		s.metrics.RecordRequest(ctx, duration, kind)
		span.RecordError(err)
		span.SetStatus(codes.Error, kind)
		span.SetAttributes(attribute.String("ir.error.kind", kind))
		level := slog.LevelInfo
		if !IsClientError(err) {
			level = slog.LevelError
		}
		logger.Log(ctx, level, "lowering failed",
			slog.String("error_kind", kind),
			slog.String("error", err.Error()),
			slog.Duration("duration", duration),
		)
		return nil, err
	}

	stats := collectStats(result.IR)
	s.metrics.RecordRequest(ctx, duration, "")
	s.metrics.RecordRootFields(ctx, stats.rootFields)
	s.metrics.RecordRelationship(ctx, observability.LocalityLocal, stats.local)
	s.metrics.RecordRelationship(ctx, observability.LocalityRemote, stats.remote)
	s.recordUsage(ctx, result.Usage)
	span.SetAttributes(
		attribute.Int("ir.root_fields", stats.rootFields),
		attribute.Int("ir.relationships.local", stats.local),
		attribute.Int("ir.relationships.remote", stats.remote),
	)
	logger.Debug("lowered operation",
		slog.Int("root_fields", stats.rootFields),
		slog.Int("usage_total", result.Usage.Total()),
		slog.Duration("duration", duration),
	)
	return result, nil
}

// requestLogger returns the context logger when request middleware already
// attached the operation to it, and a service logger carrying it otherwise.
func (s *Service) requestLogger(ctx context.Context, analysis *gqlrequest.Analysis, meta observability.RequestMeta) *logging.Logger {
	if stored, ok := gqlrequest.FromContext(ctx); ok && stored == analysis {
		logger := logging.FromContextOr(ctx, s.logger)
		if meta.Role != "" {
			logger = logger.WithFields(slog.String("role", meta.Role))
		}
		return logger.WithFields(slog.String("schema_fingerprint", meta.SchemaFingerprint))
	}
	return logging.FromContextOr(ctx, s.logger).WithFields(observability.RequestLogFields(ctx, analysis, meta)...)
}

func (s *Service) lower(snapshot *Snapshot, req Request, logger *logging.Logger) (*Result, error) {
	if req.Analysis == nil {
		return nil, fmt.Errorf("%w: %w", normalize.ErrInvalidQuery, gqlrequest.ErrNoOperation)
	}
	op, err := normalize.Normalize(snapshot.Schema, req.Analysis, req.Variables)
	if err != nil {
		return nil, err
	}
	query, usage, err := ir.GenerateQueryIR(op, ir.Request{
		Session: req.Session,
		Headers: req.Headers,
		Logger:  logger.Logger,
	})
	if err != nil {
		return nil, err
	}
	return &Result{IR: query, Usage: usage, Fingerprint: snapshot.Fingerprint}, nil
}

func (s *Service) recordUsage(ctx context.Context, usage *ir.UsageCounts) {
	usage.Models().Each(func(name string, n int) { s.metrics.RecordUsage(ctx, "model", name, n) })
	usage.Commands().Each(func(name string, n int) { s.metrics.RecordUsage(ctx, "command", name, n) })
	usage.Relationships().Each(func(name string, n int) { s.metrics.RecordUsage(ctx, "relationship", name, n) })
}

// errorKinds classifies lowering failures. Client kinds are caused by the
// request; the rest point at inconsistent metadata or a broken schema.
var errorKinds = []struct {
	err    error
	kind   string
	client bool
}{
	{normalize.ErrInvalidQuery, "invalid_query", true},
	{normalize.ErrUnsupportedOperation, "unsupported_operation", true},
	{ir.ErrMissingNonNullableArgument, "missing_non_nullable_argument", true},
	{ir.ErrArgumentConversion, "argument_conversion", true},
	{ir.ErrUnresolvedRelayTypeName, "unresolved_relay_type_name", true},
	{ir.ErrNestedRemoteRelationship, "nested_remote_relationship", true},
	{ir.ErrMissingFieldMapping, "missing_field_mapping", false},
	{ir.ErrMissingTypeMapping, "missing_type_mapping", false},
	{ir.ErrUnresolvedGlobalIDField, "unresolved_global_id_field", false},
	{ir.ErrUnexpectedAnnotation, "unexpected_annotation", false},
}

// ErrorKind names the class of a lowering failure for metrics and responses.
func ErrorKind(err error) string {
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return "internal"
}

// IsClientError reports whether err was caused by the request rather than by
// the service or its metadata.
func IsClientError(err error) bool {
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.client
		}
	}
	return false
}

// SessionFromMap builds session variables from caller-supplied pairs.
func SessionFromMap(values map[string]string) session.Variables {
	vars := make(session.Variables, len(values))
	for name, value := range values {
		vars[strings.ToLower(strings.TrimSpace(name))] = value
	}
	return vars
}
