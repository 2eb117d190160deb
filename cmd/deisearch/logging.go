package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/deidaraiorek/deisearch/internal/config"
)

// setupLogger installs the default slog logger. When cfg.File is set the log
// is also appended to that file, which the caller must close.
func setupLogger(stderr io.Writer, cfg config.LogConfig) (*os.File, error) {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", cfg.Level)
	}

	out := stderr
	var logFile *os.File
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		logFile = f
		out = io.MultiWriter(stderr, f)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "text", "":
		handler = slog.NewTextHandler(out, opts)
	case "json":
		handler = slog.NewJSONHandler(out, opts)
	default:
		if logFile != nil {
			logFile.Close()
		}
		return nil, fmt.Errorf("invalid log format %q: must be text or json", cfg.Format)
	}

	slog.SetDefault(slog.New(handler))
	return logFile, nil
}
