package main

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/radutopala/mcp-server-qdrant/internal/config"
)

// newLogger builds the process logger. stdout is never used because the stdio
// transport owns it.
func newLogger(settings config.LogSettings) (*slog.Logger, func()) {
	var out io.Writer = os.Stderr
	closeFn := func() {}

	if settings.File != "" {
		file := &lumberjack.Logger{
			Filename:   settings.File,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		}
		out = file
		closeFn = func() { _ = file.Close() }
	}

	opts := &slog.HandlerOptions{Level: parseLevel(settings.Level)}

	var handler slog.Handler
	if strings.EqualFold(settings.Format, "json") {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	return slog.New(handler), closeFn
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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
