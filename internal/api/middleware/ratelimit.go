package middleware

import (
	"net/http"
	"sync"
	"time"

	"ledgercore/internal/pkg/config"

	"github.com/gin-gonic/gin"
)

// rateLimiter is a sliding-window per-client-IP limiter (it keeps each
// request's timestamp and counts those inside the last window), unchanged from
// the teacher's src/diplomat/middleware/ratelimit.go save for reading
// its settings off the generalized config.Config.
type rateLimiter struct {
	requests map[string][]time.Time
	mutex    sync.Mutex
	limit    int
	window   time.Duration
}

// RateLimit fails open on misconfiguration: a non-positive limit or
// window disables limiting, and only an explicit over-limit verdict
// aborts the chain. A panic inside the limiter is not recovered here.
func RateLimit(cfg *config.Config) gin.HandlerFunc {
	limiter := &rateLimiter{
		requests: make(map[string][]time.Time),
		limit:    cfg.RateLimit.RequestsPerMinute,
		window:   cfg.RateLimit.Window,
	}
	return func(c *gin.Context) {
		if limiter.limit <= 0 || limiter.window <= 0 {
			c.Next()
			return
		}
		clientIP := c.ClientIP()

		limiter.mutex.Lock()
		now := time.Now()
		var valid []time.Time
		for _, t := range limiter.requests[clientIP] {
			if now.Sub(t) < limiter.window {
				valid = append(valid, t)
			}
		}
		limiter.requests[clientIP] = valid

		if len(valid) >= limiter.limit {
			limiter.mutex.Unlock()
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"retry_after": int(limiter.window.Seconds()),
			})
			c.Abort()
			return
		}

		limiter.requests[clientIP] = append(limiter.requests[clientIP], now)
		limiter.mutex.Unlock()

		c.Next()
	}
}
