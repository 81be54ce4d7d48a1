package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"graphql-ir/internal/gqlrequest"
	"graphql-ir/internal/logging"
)

func TestRequestAnalysisMiddleware_PopulatesContextAndRewindsBody(t *testing.T) {
	var (
		seen     *gqlrequest.Analysis
		bodyCopy string
		logs     bytes.Buffer
	)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = gqlrequest.FromContext(r.Context())
		body, _ := io.ReadAll(r.Body)
		bodyCopy = string(body)
		logging.FromContext(r.Context()).Info("handled")
	})

	logger := logging.NewLogger(logging.Config{Format: "json", Output: &logs})
	handler := LoggingMiddleware(logger)(RequestAnalysisMiddleware()(next))
	req := httptest.NewRequest(http.MethodPost, "/v1/lower", strings.NewReader(
		`{"query":"query Shelf { authors { first_name } }","operationName":"Shelf","session":{"x-hasura-role":"reader"}}`))
	req.Header.Set("Content-Type", "application/json")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.NotNil(t, seen)
	assert.Equal(t, "query", seen.OperationType)
	assert.Equal(t, "Shelf", seen.OperationName)
	assert.NotEmpty(t, seen.OperationHash)
	assert.Equal(t, map[string]string{"x-hasura-role": "reader"}, seen.Envelope.Session)
	assert.Contains(t, bodyCopy, `"operationName":"Shelf"`)
	assert.Contains(t, logs.String(), `"operation_hash":"`+seen.OperationHash+`"`)
}

func TestBodyLimit(t *testing.T) {
	reached := false
	handler := BodyLimitMiddleware(16)(RequestAnalysisMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
	})))

	t.Run("declared length", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/lower", strings.NewReader(`{"query":"{ authors { first_name } }"}`))
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})

	t.Run("streamed body", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/lower", io.NopCloser(strings.NewReader(`{"query":"{ authors { first_name } }"}`)))
		req.ContentLength = -1
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		assert.Contains(t, rec.Body.String(), "request_too_large")
	})

	assert.False(t, reached)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/lower", strings.NewReader(`{"query":"{a}"}`)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, reached)
}

func TestBodyLimit_Disabled(t *testing.T) {
	called := false
	handler := BodyLimitMiddleware(0)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("x", 1024))))
	assert.True(t, called)
}
