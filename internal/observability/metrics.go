package observability

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Relationship localities reported by RecordRelationship.
const (
	LocalityLocal  = "local"
	LocalityRemote = "remote"
)

// LoweringMetrics holds the metrics of the lowering service.
type LoweringMetrics struct {
	requestDuration metric.Float64Histogram
	requestCounter  metric.Int64Counter
	errorCounter    metric.Int64Counter
	activeRequests  metric.Int64UpDownCounter
	rootFields      metric.Int64Histogram
	relationships   metric.Int64Counter
	usage           metric.Int64Counter
	schemaBuild     metric.Float64Histogram
}

// InitLoweringMetrics creates the lowering instruments on the global meter provider.
func InitLoweringMetrics() (*LoweringMetrics, error) {
	meter := otel.Meter(InstrumentationName)
	m := &LoweringMetrics{}
	var err error

	if m.requestDuration, err = meter.Float64Histogram(
		"ir.lower.duration",
		metric.WithDescription("Duration of lowering requests in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, fmt.Errorf("failed to create lowering duration histogram: %w", err)
	}
	if m.requestCounter, err = meter.Int64Counter(
		"ir.lower.requests.total",
		metric.WithDescription("Total number of lowering requests"),
	); err != nil {
		return nil, fmt.Errorf("failed to create request counter: %w", err)
	}
	if m.errorCounter, err = meter.Int64Counter(
		"ir.lower.errors.total",
		metric.WithDescription("Total number of failed lowering requests by error kind"),
	); err != nil {
		return nil, fmt.Errorf("failed to create error counter: %w", err)
	}
	if m.activeRequests, err = meter.Int64UpDownCounter(
		"ir.lower.requests.active",
		metric.WithDescription("Number of lowering requests in flight"),
	); err != nil {
		return nil, fmt.Errorf("failed to create active requests counter: %w", err)
	}
	if m.rootFields, err = meter.Int64Histogram(
		"ir.lower.root_fields",
		metric.WithDescription("Number of root fields per lowered operation"),
	); err != nil {
		return nil, fmt.Errorf("failed to create root field histogram: %w", err)
	}
	if m.relationships, err = meter.Int64Counter(
		"ir.lower.relationships.total",
		metric.WithDescription("Number of lowered relationship fields by locality"),
	); err != nil {
		return nil, fmt.Errorf("failed to create relationship counter: %w", err)
	}
	if m.usage, err = meter.Int64Counter(
		"ir.usage.total",
		metric.WithDescription("Uses of models, commands and relationships by lowered operations"),
	); err != nil {
		return nil, fmt.Errorf("failed to create usage counter: %w", err)
	}
	if m.schemaBuild, err = meter.Float64Histogram(
		"ir.schema.build.duration",
		metric.WithDescription("Duration of schema builds in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, fmt.Errorf("failed to create schema build histogram: %w", err)
	}
	return m, nil
}

// InitMetrics initializes the lowering metrics and logs that they are ready.
func InitMetrics(logger *slog.Logger) (*LoweringMetrics, error) {
	metrics, err := InitLoweringMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize lowering metrics: %w", err)
	}
	logger.Info("lowering metrics initialized")
	return metrics, nil
}

// RecordRequest records one lowering request. errorKind is empty on success.
func (m *LoweringMetrics) RecordRequest(ctx context.Context, duration time.Duration, errorKind string) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.Bool("has_errors", errorKind != ""))
	m.requestDuration.Record(ctx, float64(duration.Microseconds())/1000, attrs)
	m.requestCounter.Add(ctx, 1, attrs)
	if errorKind != "" {
		m.errorCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", errorKind)))
	}
}

// RecordRootFields records the root field count of a lowered operation.
func (m *LoweringMetrics) RecordRootFields(ctx context.Context, count int) {
	if m == nil {
		return
	}
	m.rootFields.Record(ctx, int64(count))
}

// RecordRelationship counts lowered relationship fields of one locality.
func (m *LoweringMetrics) RecordRelationship(ctx context.Context, locality string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.relationships.Add(ctx, int64(count), metric.WithAttributes(attribute.String("locality", locality)))
}

// RecordUsage adds count uses of a metadata object. kind is model, command or relationship.
func (m *LoweringMetrics) RecordUsage(ctx context.Context, kind, name string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.usage.Add(ctx, int64(count), metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("name", name),
	))
}

// RecordSchemaBuild records how long building the schema took.
func (m *LoweringMetrics) RecordSchemaBuild(ctx context.Context, duration time.Duration, success bool) {
	if m == nil {
		return
	}
	m.schemaBuild.Record(ctx, float64(duration.Microseconds())/1000, metric.WithAttributes(
		attribute.Bool("success", success),
	))
}

// IncrementActiveRequests increments the active requests counter
func (m *LoweringMetrics) IncrementActiveRequests(ctx context.Context) {
	if m != nil {
		m.activeRequests.Add(ctx, 1)
	}
}

// DecrementActiveRequests decrements the active requests counter
func (m *LoweringMetrics) DecrementActiveRequests(ctx context.Context) {
	if m != nil {
		m.activeRequests.Add(ctx, -1)
	}
}
