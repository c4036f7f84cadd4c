package web

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// Per-IP token buckets guard the public endpoints (webhooks, gift-code
// redemption) against hammering. Buckets idle for an hour are swept with
// the session janitor.

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

var (
	limitersMu sync.Mutex
	limiters   = map[string]*ipLimiter{}
)

func limiterFor(ip string, r rate.Limit, burst int) *rate.Limiter {
	limitersMu.Lock()
	defer limitersMu.Unlock()

	entry, ok := limiters[ip]
	if !ok {
		entry = &ipLimiter{limiter: rate.NewLimiter(r, burst)}
		limiters[ip] = entry
	}
	entry.lastSeen = time.Now()
	return entry.limiter
}

func sweepLimiters() {
	limitersMu.Lock()
	defer limitersMu.Unlock()
	cutoff := time.Now().Add(-time.Hour)
	for ip, entry := range limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(limiters, ip)
		}
	}
}

// rateLimit returns a middleware allowing r requests per second with the
// given burst per client IP.
func rateLimit(r rate.Limit, burst int) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiterFor(c.ClientIP(), r, burst).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limited"})
			return
		}
		c.Next()
	}
}
