// Package sysutil holds process-level helpers for cmd/server.
package sysutil

import (
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ParseLevel maps LOG_LEVEL onto a zerolog level, case-insensitively.
// "warning" is an alias for warn. Unknown names fall back to info.
func ParseLevel(s string) zerolog.Level {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		s = "warn"
	}
	lvl, err := zerolog.ParseLevel(s)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// SetLogLevel applies ParseLevel(s) globally and returns the level in effect.
func SetLogLevel(s string) zerolog.Level {
	lvl := ParseLevel(s)
	zerolog.SetGlobalLevel(lvl)
	return lvl
}

// NewLogger builds the process logger, tagged with service. pretty switches
// from JSON lines to zerolog's console writer.
func NewLogger(w io.Writer, service string, pretty bool) zerolog.Logger {
	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).With().Timestamp().Str("service", service).Logger()
}

// FirstNonEmpty returns the first value that is not blank, unmodified.
func FirstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
