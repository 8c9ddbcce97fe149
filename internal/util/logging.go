// Package util holds the HTTP middleware chain and small helpers shared by
// the chat API: request ids, request logs, client IP attribution, CORS and
// security headers, and the textarea row estimate.
package util

import (
	"log/slog"
	"os"
	"strings"
)

// InitLogger installs the process-wide JSON logger and returns it. Level
// names follow slog: debug, info, warn, error; anything else means info.
func InitLogger(level string) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(level),
	}))
	slog.SetDefault(logger)
	return logger
}

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
