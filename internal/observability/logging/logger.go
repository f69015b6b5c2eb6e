// Package logging builds the structured loggers the api and worker binaries
// share. Both log JSON to stdout; the document id travels as a plain
// attribute so one grep follows a document across services.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// NewJSONLogger tags every record with the service name so api and worker
// lines stay distinguishable in a merged stream.
func NewJSONLogger(service, level string) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(level),
	})
	return slog.New(handler).With("service", service)
}

// parseLevel tolerates unknown values, falling back to info rather than
// failing startup over a typo in LOG_LEVEL.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
