// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file validates the Idempotency-Key header of checkout submissions. It
// does not deduplicate anything itself: the checkout guard in the services
// layer owns that. The middleware rejects malformed keys early, stashes the
// key for the handler and, when a lookup reports that the key already
// resolved to an order, marks the request as a replay so the rate limiter
// lets it through.
package middleware

import (
	"context"
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey carries the client-chosen key of a checkout submission.
const HeaderIdempotencyKey = "Idempotency-Key"

// HeaderIdempotencyReplayed is set to "true" on responses served from an
// earlier submission with the same key.
const HeaderIdempotencyReplayed = "Idempotency-Replayed"

const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemReplay = "idem.replay"
	ctxKeyRateBypass = "rate.bypass"
)

var defaultKeyPattern = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)

// GetIdempotencyKey returns the key stashed by IdempotencyKey.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxKeyIdemKey)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// IsReplay reports whether the lookup found a resolved submission for the key.
func IsReplay(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyIdemReplay)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// IdempotencyOptions configures IdempotencyKey.
type IdempotencyOptions struct {
	// MaxLen caps the key length. Values <= 0 default to 200.
	MaxLen int
	// Pattern restricts allowed characters. Nil means ^[A-Za-z0-9._~\-:]+$.
	Pattern *regexp.Regexp
	// Required rejects requests without the header.
	Required bool
}

// ReplayLookup reports whether key already resolved to an order. Errors are
// ignored by the middleware; the request then proceeds as a fresh one.
type ReplayLookup func(ctx context.Context, key string) (bool, error)

// IdempotencyKey validates the Idempotency-Key header and stashes it.
//
// Invalid or (when Required) missing keys are answered with 400 and the
// standard error envelope, code bad_request.
func IdempotencyKey(opts IdempotencyOptions, lookup ReplayLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 200
	}
	pat := opts.Pattern
	if pat == nil {
		pat = defaultKeyPattern
	}

	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey))
		if key == "" {
			if opts.Required {
				abortBadKey(c, HeaderIdempotencyKey+" header is required")
				return
			}
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			abortBadKey(c, "invalid "+HeaderIdempotencyKey)
			return
		}

		c.Set(ctxKeyIdemKey, key)
		if lookup != nil {
			if done, err := lookup(c.Request.Context(), key); err == nil && done {
				c.Set(ctxKeyIdemReplay, true)
				c.Set(ctxKeyRateBypass, true)
			}
		}
		c.Next()
	}
}

func abortBadKey(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"request_id": c.Writer.Header().Get(requestIDHeader),
		"code":       "bad_request",
		"message":    msg,
	})
}
