package gqlrequest

import "context"

type contextKey struct{}

// NewContext returns a copy of ctx carrying analysis.
func NewContext(ctx context.Context, analysis *Analysis) context.Context {
	return context.WithValue(ctx, contextKey{}, analysis)
}

// FromContext returns the analysis stored by NewContext, if any.
func FromContext(ctx context.Context) (*Analysis, bool) {
	analysis, ok := ctx.Value(contextKey{}).(*Analysis)
	return analysis, ok && analysis != nil
}
