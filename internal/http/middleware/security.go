// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file provides SecurityHeaders: a conservative set of response headers
// for a JSON API behind a reverse proxy. HSTS is opt-in and only sent on
// HTTPS requests. No CSP is set since no HTML is served.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// SecurityOptions configures SecurityHeaders.
type SecurityOptions struct {
	// EnableHSTS sends Strict-Transport-Security on HTTPS requests. Enable it
	// only when traffic is HTTPS end to end.
	EnableHSTS bool
	// HSTSMaxAge defaults to 180 days.
	HSTSMaxAge time.Duration
	// CacheControl, when set, is the default Cache-Control of every response.
	// Handlers may override it (conditional order reads do). "no-store" also
	// adds the legacy Pragma and Expires headers.
	CacheControl string
	// EnablePolicy adds Permissions-Policy and
	// X-Permitted-Cross-Domain-Policies.
	EnablePolicy bool
	// ExposeHeaders are appended to Access-Control-Expose-Headers so browser
	// clients can read them. X-Request-ID is always exposed when present.
	ExposeHeaders []string
}

// SecurityHeaders returns the hardening middleware.
//
// Always sets X-Content-Type-Options: nosniff, X-Frame-Options: DENY and
// Referrer-Policy: no-referrer.
func SecurityHeaders(opt SecurityOptions) gin.HandlerFunc {
	maxAge := int(opt.HSTSMaxAge.Seconds())
	if maxAge <= 0 {
		maxAge = int((180 * 24 * time.Hour).Seconds())
	}
	hsts := "max-age=" + strconv.Itoa(maxAge) + "; includeSubDomains; preload"

	return func(c *gin.Context) {
		h := c.Writer.Header()

		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")

		if opt.EnablePolicy {
			h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=()")
			h.Set("X-Permitted-Cross-Domain-Policies", "none")
		}

		if opt.CacheControl != "" {
			h.Set("Cache-Control", opt.CacheControl)
			if opt.CacheControl == "no-store" {
				h.Set("Pragma", "no-cache")
				h.Set("Expires", "0")
			}
		}

		if opt.EnableHSTS && isHTTPS(c.Request) {
			h.Set("Strict-Transport-Security", hsts)
		}

		expose := opt.ExposeHeaders
		if h.Get(requestIDHeader) != "" {
			expose = append([]string{requestIDHeader}, expose...)
		}
		for _, name := range expose {
			addExposed(h, name)
		}

		c.Next()
	}
}

// addExposed appends name to Access-Control-Expose-Headers once.
func addExposed(h http.Header, name string) {
	const hdr = "Access-Control-Expose-Headers"
	cur := h.Get(hdr)
	switch {
	case cur == "":
		h.Set(hdr, name)
	case !strings.Contains(strings.ToLower(cur), strings.ToLower(name)):
		h.Set(hdr, cur+", "+name)
	}
}

// isHTTPS reports whether the request arrived over TLS directly or through a
// proxy that set X-Forwarded-Proto: https.
func isHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
