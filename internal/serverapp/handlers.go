package serverapp

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"graphql-ir/internal/config"
	"graphql-ir/internal/explain"
	"graphql-ir/internal/gqlrequest"
	"graphql-ir/internal/ir"
	"graphql-ir/internal/logging"
	"graphql-ir/internal/lowering"
	"graphql-ir/internal/middleware"
)

// reloadTimeout bounds one metadata reload.
const reloadTimeout = 15 * time.Second

// healthProbe is lowered by the health check to exercise the schema.
const healthProbe = "{ __typename }"

// LowerResponse is the body of a successful lowering.
type LowerResponse struct {
	IR                *ir.QueryIR     `json:"ir"`
	Usage             *ir.UsageCounts `json:"usage"`
	SchemaFingerprint string          `json:"schema_fingerprint"`
}

// ExplainResponse is the body of a successful explain.
type ExplainResponse struct {
	Plan              *explain.Plan `json:"plan"`
	Text              string        `json:"text"`
	SchemaFingerprint string        `json:"schema_fingerprint"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// lowerRequest lowers the request and writes an error response on failure.
func lowerRequest(w http.ResponseWriter, r *http.Request, service *lowering.Service) (*lowering.Result, bool) {
	ctx := r.Context()
	analysis, ok := gqlrequest.FromContext(ctx)
	if !ok {
		analysis = gqlrequest.AnalyzeRequest(r)
	}
	if analysis.DecodeError != nil {
		middleware.WriteError(w, http.StatusBadRequest, "invalid_request", "request body is not a valid lowering request")
		return nil, false
	}
	variables, err := analysis.Envelope.Variables()
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return nil, false
	}

	result, err := service.Lower(ctx, lowering.Request{
		Analysis:  analysis,
		Variables: variables,
		Session:   lowering.SessionFromMap(analysis.Envelope.Session),
		Headers:   r.Header.Clone(),
	})
	if err != nil {
		writeLowerError(w, err)
		return nil, false
	}
	return result, true
}

// writeLowerError reports client mistakes with their message. Internal
// failures keep only their kind; the message stays in the service log.
func writeLowerError(w http.ResponseWriter, err error) {
	if lowering.IsClientError(err) {
		middleware.WriteError(w, http.StatusBadRequest, lowering.ErrorKind(err), err.Error())
		return
	}
	middleware.WriteError(w, http.StatusInternalServerError, lowering.ErrorKind(err), "internal lowering error")
}

func lowerHandler(service *lowering.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, ok := lowerRequest(w, r, service)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, LowerResponse{
			IR:                result.IR,
			Usage:             result.Usage,
			SchemaFingerprint: result.Fingerprint,
		})
	}
}

func explainHandler(service *lowering.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, ok := lowerRequest(w, r, service)
		if !ok {
			return
		}
		plan, err := explain.Build(result.IR)
		if err != nil {
			logging.FromContext(r.Context()).Error("explain failed", slog.String("error", err.Error()))
			middleware.WriteError(w, http.StatusInternalServerError, "internal", "failed to build request plan")
			return
		}
		writeJSON(w, http.StatusOK, ExplainResponse{
			Plan:              plan,
			Text:              plan.Format(),
			SchemaFingerprint: result.Fingerprint,
		})
	}
}

// healthHandler lowers a trivial query against the current schema.
func healthHandler(service *lowering.Service, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqLogger := logging.FromContext(r.Context())

		ctx := r.Context()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		snapshot := service.Snapshot()
		_, err := service.Lower(ctx, lowering.Request{
			Analysis: gqlrequest.AnalyzeEnvelope(gqlrequest.Envelope{Query: healthProbe}),
		})
		if err != nil {
			reqLogger.Error("health check failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
			return
		}

		reqLogger.Debug("health check passed")
		writeJSON(w, http.StatusOK, map[string]string{
			"status":             "healthy",
			"schema_fingerprint": snapshot.Fingerprint,
			"schema_built_at":    snapshot.BuiltAt.UTC().Format(time.RFC3339),
		})
	}
}

// reloadHandler re-reads the metadata file and swaps in the rebuilt schema.
func reloadHandler(service *lowering.Service, metadataFile string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqLogger := logging.FromContext(r.Context())
		reqLogger.Info("metadata reload requested", slog.String("remote_addr", r.RemoteAddr))

		if metadataFile == config.StdinPath {
			middleware.WriteError(w, http.StatusConflict, "reload_unavailable", "metadata was read from stdin and cannot be reloaded")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), reloadTimeout)
		defer cancel()

		md, err := LoadMetadata(metadataFile)
		if err == nil {
			err = service.Reload(ctx, md)
		}
		if err != nil {
			reqLogger.Error("metadata reload failed", slog.String("error", err.Error()))
			middleware.WriteError(w, http.StatusUnprocessableEntity, "reload_failed", err.Error())
			return
		}

		snapshot := service.Snapshot()
		reqLogger.Info("metadata reloaded", slog.String("schema_fingerprint", snapshot.Fingerprint))
		writeJSON(w, http.StatusOK, map[string]string{
			"status":             "ok",
			"schema_fingerprint": snapshot.Fingerprint,
		})
	}
}
