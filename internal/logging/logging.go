package logging

import (
	"io"
	"log/slog"
	"strings"

	"github.com/runnerr0/dwell/internal/config"
	"github.com/runnerr0/dwell/internal/debuglog"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

// New builds the process logger. local uses text output at debug level,
// dev and prod use JSON. An explicit level or format in cfg wins over the env
// default. When ring is non-nil every record is also kept there.
func New(env string, cfg config.LoggingConfig, w io.Writer, ring *debuglog.Log) *slog.Logger {
	level := slog.LevelInfo
	format := "json"

	switch env {
	case envLocal:
		level = slog.LevelDebug
		format = "text"
	case envDev:
		level = slog.LevelDebug
	case envProd:
		level = slog.LevelInfo
	}

	if cfg.Level != "" {
		level = ParseLevel(cfg.Level)
	}
	if cfg.Format != "" {
		format = strings.ToLower(cfg.Format)
	}

	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if format == "json" {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}

	if ring != nil {
		h = debuglog.NewHandler(h, ring)
	}
	return slog.New(h)
}

// ParseLevel maps debug|info|warn|error to a slog level; anything else is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}
