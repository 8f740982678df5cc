package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginRateLimiterAllow(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("allows up to the limit then denies", func(t *testing.T) {
		limiter := NewLoginRateLimiter(3, time.Minute)

		for i := 0; i < 3; i++ {
			allowed, _ := limiter.allow("10.0.0.1", base.Add(time.Duration(i)*time.Second))
			assert.True(t, allowed, "hit %d", i+1)
		}

		allowed, retryAfter := limiter.allow("10.0.0.1", base.Add(3*time.Second))
		assert.False(t, allowed)
		assert.Greater(t, retryAfter, time.Duration(0))
	})

	t.Run("window slides", func(t *testing.T) {
		limiter := NewLoginRateLimiter(2, time.Minute)

		allowed, _ := limiter.allow("10.0.0.1", base)
		require.True(t, allowed)
		allowed, _ = limiter.allow("10.0.0.1", base.Add(time.Second))
		require.True(t, allowed)
		allowed, _ = limiter.allow("10.0.0.1", base.Add(2*time.Second))
		require.False(t, allowed)

		// The first hit ages out of the window.
		allowed, _ = limiter.allow("10.0.0.1", base.Add(61*time.Second))
		assert.True(t, allowed)
	})

	t.Run("ips are independent", func(t *testing.T) {
		limiter := NewLoginRateLimiter(1, time.Minute)

		allowed, _ := limiter.allow("10.0.0.1", base)
		require.True(t, allowed)
		allowed, _ = limiter.allow("10.0.0.1", base)
		require.False(t, allowed)

		allowed, _ = limiter.allow("10.0.0.2", base)
		assert.True(t, allowed)
	})
}

func TestLoginRateLimiterMiddleware(t *testing.T) {
	limiter := NewLoginRateLimiter(2, time.Minute)
	handler := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	hit := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, hit().Code)
	assert.Equal(t, http.StatusOK, hit().Code)

	rec := hit()
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestLoginRateLimiterPrune(t *testing.T) {
	limiter := NewLoginRateLimiter(5, time.Millisecond)

	allowed, _ := limiter.allow("10.0.0.1", time.Now().UTC().Add(-time.Second))
	require.True(t, allowed)

	assert.Equal(t, 1, limiter.Prune())
	assert.Equal(t, 0, limiter.Prune())
}

func TestClientIP(t *testing.T) {
	t.Run("forwarded header wins", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
		req.RemoteAddr = "10.0.0.1:5000"
		assert.Equal(t, "203.0.113.9", clientIP(req))
	})

	t.Run("falls back to remote addr", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		assert.Equal(t, "10.0.0.1:5000", clientIP(req))
	})
}
