package logx

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config selects the handler and level for the process logger.
type Config struct {
	Service string
	Env     string // e.g. "development", "production"
	Level   string // "debug" | "info" | "warn" | "error"
	Format  string // "json" | "text"
}

// New builds a slog.Logger writing to stdout and installs it as the default.
func New(cfg Config) *slog.Logger {
	logger := newLogger(os.Stdout, cfg)
	slog.SetDefault(logger)
	return logger
}

func newLogger(w io.Writer, cfg Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		AddSource: cfg.Env == "development",
		Level:     parseLevel(cfg.Level),
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler).With("service", cfg.Service, "env", cfg.Env)
}

func parseLevel(lvl string) slog.Level {
	switch strings.ToLower(lvl) {
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
