package observability

import (
	"context"
	"log/slog"

	"graphql-ir/internal/gqlrequest"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// RequestMeta carries per-request facts known only after the request was
// attached to a schema and session.
type RequestMeta struct {
	Role              string
	SchemaFingerprint string
}

// requestFact is one request property. An empty logKey keeps it off logs.
type requestFact struct {
	spanKey string
	logKey  string
	value   attribute.Value
}

func requestFacts(analysis *gqlrequest.Analysis, meta RequestMeta) []requestFact {
	var facts []requestFact
	str := func(spanKey, logKey, v string) {
		if v != "" {
			facts = append(facts, requestFact{spanKey, logKey, attribute.StringValue(v)})
		}
	}
	num := func(spanKey string, v int) {
		facts = append(facts, requestFact{spanKey: spanKey, value: attribute.IntValue(v)})
	}

	if analysis != nil {
		str("graphql.operation.requested_name", "", analysis.RequestedOperationName)
		str("graphql.operation.name", "operation_name", analysis.OperationName)
		str("graphql.operation.type", "operation_type", analysis.OperationType)
		str("graphql.operation.hash", "operation_hash", analysis.OperationHash)
		if analysis.Envelope.DocumentSizeBytes > 0 {
			num("graphql.document.size_bytes", analysis.Envelope.DocumentSizeBytes)
		}
		if analysis.Operation != nil {
			num("graphql.query.root_field_count", analysis.RootFieldCount)
			num("graphql.query.field_count", analysis.FieldCount)
			num("graphql.query.depth", analysis.SelectionDepth)
		}
	}
	str("session.role", "role", meta.Role)
	str("schema.fingerprint", "schema_fingerprint", meta.SchemaFingerprint)
	return facts
}

// RequestSpanAttributes builds span attributes for a lowering request.
func RequestSpanAttributes(analysis *gqlrequest.Analysis, meta RequestMeta) []attribute.KeyValue {
	facts := requestFacts(analysis, meta)
	attrs := make([]attribute.KeyValue, 0, len(facts))
	for _, f := range facts {
		attrs = append(attrs, attribute.KeyValue{Key: attribute.Key(f.spanKey), Value: f.value})
	}
	return attrs
}

// RequestLogFields builds structured log fields for a lowering request,
// ending with the trace id when ctx carries a valid span.
func RequestLogFields(ctx context.Context, analysis *gqlrequest.Analysis, meta RequestMeta) []any {
	var fields []any
	for _, f := range requestFacts(analysis, meta) {
		if f.logKey != "" {
			fields = append(fields, slog.String(f.logKey, f.value.AsString()))
		}
	}
	if spanCtx := trace.SpanContextFromContext(ctx); spanCtx.IsValid() {
		fields = append(fields, slog.String("trace_id", spanCtx.TraceID().String()))
	}
	return fields
}
