// Package log configures the process-wide slog logger for the canvas
// backend and hands out per-component loggers tagged with a module name.
package log

import (
	"log/slog"
	"os"
	"strings"
)

// Setup installs a text handler on the default logger. Unknown level names
// fall back to info so a typo in LOG_LEVEL never silences the server.
func Setup(logLevel string) {
	var level slog.Level

	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))
}

// WithModule returns a logger tagged for one component, e.g. "dispatcher"
// or "kling_adapter".
func WithModule(module string) *slog.Logger {
	return slog.With("module", module)
}
