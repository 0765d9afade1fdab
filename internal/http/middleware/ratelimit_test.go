package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/medpulse/medpulse-connect/internal/tenancy"
)

func TestRateLimiterRefillsOverTime(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, 2)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"), "keys are independent")

	now = now.Add(1500 * time.Millisecond)
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
}

func TestRateLimitMiddlewareKeysByOrgAndIP(t *testing.T) {
	mw := RateLimit(0.001, 1)
	handler := mw(http.HandlerFunc(okHandler))

	do := func(org, ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/patients/register", nil)
		req.RemoteAddr = ip + ":5555"
		if org != "" {
			req = req.WithContext(tenancy.WithOrgID(req.Context(), org))
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, do("clinic-1", "10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, do("clinic-1", "10.0.0.1"))
	assert.Equal(t, http.StatusOK, do("clinic-2", "10.0.0.1"))
	assert.Equal(t, http.StatusOK, do("clinic-1", "10.0.0.2"))
}

func TestRateLimitSetsRetryAfter(t *testing.T) {
	handler := RateLimit(0.5, 1)(http.HandlerFunc(okHandler))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/portal/consultation", nil))
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Empty(t, first.Header().Get("Retry-After"))

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/portal/consultation", nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "2", second.Header().Get("Retry-After"))
}
