// Package logger provides slog construction and common attribute helpers.
package logger

import (
	"log/slog"
	"os"
	"strings"

	"go.uber.org/fx"
)

// Module provides the application logger.
var Module = fx.Module("logger",
	fx.Provide(NewLogger),
)

// NewLogger creates the process-wide slog.Logger. The level is taken from
// LOG_LEVEL; output is text in local development and JSON otherwise
// (GO_ENV=production).
func NewLogger() *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if os.Getenv("GO_ENV") == "production" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

// Scope returns the standard attribute identifying a logger's component scope.
func Scope(scope string) slog.Attr {
	return slog.String("scope", scope)
}

// Error returns the standard attribute for attaching an error to a log record.
func Error(err error) slog.Attr {
	return slog.Any("error", err)
}
