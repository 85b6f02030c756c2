// Package logging builds the process-wide slog logger. Logs go to stderr so
// the CLI summary tables keep stdout to themselves.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// New creates a text slog.Logger at the given level.
func New(level string) *slog.Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: Level(level),
	})
	return slog.New(handler)
}

// Component tags a child logger with the subsystem it belongs to.
func Component(logger *slog.Logger, name string) *slog.Logger {
	return logger.With("component", name)
}

// Level maps a config string onto a slog level. Unknown values log everything.
func Level(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "error":
		return slog.LevelError
	case "warn", "warning":
		return slog.LevelWarn
	case "info":
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}
