// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements a per-client token bucket rate limiter on top of
// golang.org/x/time/rate. Clients are keyed by the buyer id an upstream
// authenticating middleware stored in the context, and by client IP
// otherwise. Request headers never select the bucket. Checkout replays detected by
// IdempotencyKey bypass the limiter: a client retrying a request that
// already produced an order is never throttled.
package middleware

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// CtxKeyBuyerID is the gin context key under which trusted auth middleware
// stores the authenticated buyer id.
const CtxKeyBuyerID = "buyerID"

const (
	visitorTTL     = 10 * time.Minute
	sweepThreshold = 5000
)

// KeyFunc derives the rate limit bucket of a request.
type KeyFunc func(*gin.Context) string

// KeyByBuyerOrIP keys by the authenticated buyer id under CtxKeyBuyerID,
// falling back to the client IP.
func KeyByBuyerOrIP() KeyFunc {
	return func(c *gin.Context) string {
		if v, ok := c.Get(CtxKeyBuyerID); ok {
			if b, ok := v.(string); ok && strings.TrimSpace(b) != "" {
				return "buyer:" + strings.TrimSpace(b)
			}
		}
		return "ip:" + c.ClientIP()
	}
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter holds one token bucket per key. Idle buckets are swept every
// sweepThreshold lookups.
type RateLimiter struct {
	rps   rate.Limit
	burst int
	keyFn KeyFunc
	ttl   time.Duration

	mu       sync.Mutex
	visitors map[string]*visitor
	lookups  uint64
}

// NewRateLimiter returns a limiter allowing rps requests per second with the
// given burst (at least 1) per key.
func NewRateLimiter(rps float64, burst int, keyFn KeyFunc) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	if keyFn == nil {
		keyFn = KeyByBuyerOrIP()
	}
	return &RateLimiter{
		rps:      rate.Limit(rps),
		burst:    burst,
		keyFn:    keyFn,
		ttl:      visitorTTL,
		visitors: make(map[string]*visitor),
	}
}

func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	// Sweep before touching key so a stale entry is not refreshed.
	rl.lookups++
	if rl.lookups >= sweepThreshold {
		for k, v := range rl.visitors {
			if now.Sub(v.lastSeen) >= rl.ttl {
				delete(rl.visitors, k)
			}
		}
		rl.lookups = 0
	}

	if v, ok := rl.visitors[key]; ok {
		v.lastSeen = now
		return v.limiter
	}
	lim := rate.NewLimiter(rl.rps, rl.burst)
	rl.visitors[key] = &visitor{limiter: lim, lastSeen: now}
	return lim
}

// IsRateBypass reports whether IdempotencyKey exempted the request.
func IsRateBypass(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyRateBypass)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Handler rejects requests over the limit with 429, Retry-After: 1 and the
// standard error envelope.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsRateBypass(c) || rl.limiter(rl.keyFn(c)).Allow() {
			c.Next()
			return
		}
		c.Header("Retry-After", "1")
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": c.Writer.Header().Get(requestIDHeader),
			"code":       "too_many_requests",
			"message":    "rate limit exceeded",
		})
	}
}
