// Package logging provides structured logging for muti-ping.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Levels and Formats list the accepted configuration values.
var (
	Levels  = []string{"debug", "info", "warn", "error"}
	Formats = []string{"text", "json"}
)

// NewLogger creates a structured logger writing to stderr, leaving stdout
// to the ping output.
// Supported levels: debug, info, warn, error
// Supported formats: text, json
func NewLogger(level, format string) *slog.Logger {
	return NewLoggerWithWriter(level, format, os.Stderr)
}

// NewLoggerWithWriter creates a new structured logger with a custom writer.
func NewLoggerWithWriter(level, format string, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// ValidLevel reports whether level is one of Levels ("warning" is accepted
// as an alias of "warn").
func ValidLevel(level string) bool {
	l := strings.ToLower(level)
	if l == "warning" {
		return true
	}
	for _, v := range Levels {
		if l == v {
			return true
		}
	}
	return false
}

// ValidFormat reports whether format is one of Formats.
func ValidFormat(format string) bool {
	f := strings.ToLower(format)
	for _, v := range Formats {
		if f == v {
			return true
		}
	}
	return false
}

// parseLevel converts a string log level to slog.Level. Unknown values
// fall back to warn.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// NopLogger returns a logger that discards all output.
func NopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Common attribute keys for consistent logging.
const (
	KeyComponent = "component"
	KeyTarget    = "target"
	KeyAddress   = "address"
	KeyMode      = "mode"
	KeyID        = "id"
	KeySeq       = "seq"
	KeyTTL       = "ttl"
	KeyCode      = "code"
	KeyBytes     = "bytes"
	KeyRTT       = "rtt"
	KeyError     = "error"
	KeyCount     = "count"
)
