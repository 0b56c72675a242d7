package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	apierrors "github.com/yukikurage/tenant-onboarding/internal/errors"
)

const rateLimitedMessage = "Too many attempts. Please wait a moment and try again."

// RateLimiter throttles form submissions per client IP.
type RateLimiter struct {
	limit       rate.Limit
	burst       int
	window      time.Duration
	now         func() time.Time
	mu          sync.Mutex
	clients     map[string]*clientLimiter
	lastCleanup time.Time
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a limiter for the provided requests-per-minute
// budget. A non-positive budget disables limiting.
func NewRateLimiter(requestsPerMinute int) *RateLimiter {
	if requestsPerMinute <= 0 {
		return nil
	}
	burst := requestsPerMinute / 10
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limit:       rate.Limit(float64(requestsPerMinute) / 60.0),
		burst:       burst,
		window:      5 * time.Minute,
		now:         time.Now,
		clients:     make(map[string]*clientLimiter),
		lastCleanup: time.Now(),
	}
}

// Handler returns the gin middleware. Rejected requests get a failed action state.
func (r *RateLimiter) Handler() gin.HandlerFunc {
	if r == nil {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		if !r.getLimiter(c.ClientIP()).Allow() {
			apierrors.RespondWithAction(c, http.StatusTooManyRequests, rateLimitedMessage)
			c.Abort()
			return
		}
		c.Next()
	}
}

func (r *RateLimiter) getLimiter(key string) *rate.Limiter {
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, ok := r.clients[key]; ok {
		entry.lastSeen = now
		return entry.limiter
	}

	limiter := rate.NewLimiter(r.limit, r.burst)
	r.clients[key] = &clientLimiter{limiter: limiter, lastSeen: now}
	r.cleanupLocked(now)
	return limiter
}

// cleanupLocked drops idle clients at most once per window.
func (r *RateLimiter) cleanupLocked(now time.Time) {
	if now.Sub(r.lastCleanup) < r.window {
		return
	}
	r.lastCleanup = now
	for key, entry := range r.clients {
		if now.Sub(entry.lastSeen) > r.window {
			delete(r.clients, key)
		}
	}
}
