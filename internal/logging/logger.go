// Package logging builds the slog loggers used by the server and the CLI.
//
// Formats:
//
//	json     one JSON object per line
//	text     slog key=value lines
//	console  [LEVEL] [component] [HH:MM:SS] message key=value, coloured on a terminal
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"receivables-conciliation-backend/internal/config"
)

// NewLogger creates a structured logger writing to stdout.
func NewLogger(cfg config.LoggingConfig) *slog.Logger {
	return NewLoggerTo(os.Stdout, cfg)
}

func NewLoggerTo(w io.Writer, cfg config.LoggingConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = NewConsoleHandler(w, opts)
	}
	return slog.New(handler)
}

// ForComponent scopes logger to one part of the system.
func ForComponent(logger *slog.Logger, component string) *slog.Logger {
	return logger.With("component", component)
}

func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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
