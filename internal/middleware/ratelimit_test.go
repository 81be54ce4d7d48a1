package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"graphql-ir/internal/config"
)

func TestRateLimitMiddleware_Disabled(t *testing.T) {
	handler := RateLimitMiddleware(config.RateLimitConfig{Enabled: false})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/lower", nil)
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRateLimitMiddleware_BurstExceeded(t *testing.T) {
	handler := RateLimitMiddleware(config.RateLimitConfig{
		Enabled: true,
		RPS:     1,
		Burst:   2,
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/lower", nil)

	for i := 0; i < 2; i++ {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code)
	}

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.Equal(t, "1", rr.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":{"kind":"rate_limited","message":"rate limit exceeded"}}`, rr.Body.String())
}

func TestRateLimitMiddleware_ExemptPath(t *testing.T) {
	handler := RateLimitMiddleware(config.RateLimitConfig{
		Enabled: true,
		RPS:     1,
		Burst:   1,
	}, "/health")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/lower", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	for i := 0; i < 3; i++ {
		rr = httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, rr.Code)
	}

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/lower", nil))
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
}

func TestTokenBucket_Refills(t *testing.T) {
	clock := time.Unix(0, 0)
	b := newTokenBucket(2, 1)
	b.now = func() time.Time { return clock }
	b.last = clock

	ok, _ := b.take()
	assert.True(t, ok)
	ok, wait := b.take()
	assert.False(t, ok)
	assert.Equal(t, 500*time.Millisecond, wait)

	clock = clock.Add(500 * time.Millisecond)
	ok, _ = b.take()
	assert.True(t, ok)
}

func TestTokenBucket_ZeroRateAllows(t *testing.T) {
	b := newTokenBucket(0, 0)
	for i := 0; i < 5; i++ {
		ok, _ := b.take()
		assert.True(t, ok)
	}
}

func TestRetryAfter(t *testing.T) {
	assert.Equal(t, "1", retryAfter(0))
	assert.Equal(t, "1", retryAfter(300*time.Millisecond))
	assert.Equal(t, "3", retryAfter(2100*time.Millisecond))
}
