package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/yukikurage/tenant-onboarding/internal/dto"
)

func TestRateLimiter_RejectsBurst(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.POST("/auth/login", NewRateLimiter(10).Handler(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/auth/login", nil))
	require.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/auth/login", nil))
	require.Equal(t, http.StatusTooManyRequests, w.Code)

	var state dto.ActionState
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &state))
	require.False(t, state.OK)
	require.Equal(t, rateLimitedMessage, state.Message)
}

func TestRateLimiter_DisabledWhenBudgetIsZero(t *testing.T) {
	gin.SetMode(gin.TestMode)

	limiter := NewRateLimiter(0)
	require.Nil(t, limiter)

	r := gin.New()
	r.POST("/auth/login", limiter.Handler(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/auth/login", nil))
		require.Equal(t, http.StatusNoContent, w.Code)
	}
}

func TestRateLimiter_CleanupRunsOncePerWindow(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	now := start
	limiter := NewRateLimiter(60)
	limiter.now = func() time.Time { return now }
	limiter.lastCleanup = start

	limiter.getLimiter("10.0.0.1")
	now = start.Add(30 * time.Second)
	limiter.getLimiter("10.0.0.2")
	require.Len(t, limiter.clients, 2)

	// First sweep: only the client idle longer than the window goes.
	firstSweep := start.Add(limiter.window + time.Second)
	now = firstSweep
	limiter.getLimiter("10.0.0.3")
	require.Equal(t, firstSweep, limiter.lastCleanup)
	require.ElementsMatch(t, []string{"10.0.0.2", "10.0.0.3"}, clientKeys(limiter))

	// 10.0.0.2 is now stale, but the previous sweep is too recent.
	now = firstSweep.Add(40 * time.Second)
	limiter.getLimiter("10.0.0.4")
	require.Equal(t, firstSweep, limiter.lastCleanup)
	require.ElementsMatch(t, []string{"10.0.0.2", "10.0.0.3", "10.0.0.4"}, clientKeys(limiter))

	now = firstSweep.Add(limiter.window + time.Second)
	limiter.getLimiter("10.0.0.5")
	require.Equal(t, now, limiter.lastCleanup)
	require.ElementsMatch(t, []string{"10.0.0.4", "10.0.0.5"}, clientKeys(limiter))
}

func clientKeys(r *RateLimiter) []string {
	keys := make([]string, 0, len(r.clients))
	for key := range r.clients {
		keys = append(keys, key)
	}
	return keys
}
