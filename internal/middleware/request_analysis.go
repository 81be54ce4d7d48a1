package middleware

import (
	"errors"
	"net/http"

	"graphql-ir/internal/gqlrequest"
	"graphql-ir/internal/logging"
	"graphql-ir/internal/observability"
)

// RequestAnalysisMiddleware decodes and analyzes the lowering request once,
// stores the analysis in the request context and adds the operation to the
// request logger. Bodies over the size limit are rejected here.
func RequestAnalysisMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			analysis := gqlrequest.AnalyzeRequest(r)
			var tooLarge *http.MaxBytesError
			if errors.As(analysis.DecodeError, &tooLarge) {
				WriteError(w, http.StatusRequestEntityTooLarge, "request_too_large", tooLarge.Error())
				return
			}

			ctx := gqlrequest.NewContext(r.Context(), analysis)
			if fields := observability.RequestLogFields(ctx, analysis, observability.RequestMeta{}); len(fields) > 0 {
				ctx = logging.WithLogger(ctx, logging.FromContext(ctx).WithFields(fields...))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
