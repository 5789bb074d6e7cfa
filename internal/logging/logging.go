// Package logging wires the forwarder's -L/--log-level flag to a
// structured slog.Logger, adding a trace level below slog.LevelDebug
// since log/slog has no built-in level that low.
package logging

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// LevelTrace sits one step below slog.LevelDebug (-4), the conventional
// spacing slog uses between its own levels.
const LevelTrace = slog.LevelDebug - 4

// Config controls the logger built by Configure. It has no file or
// environment layer: every field is sourced from a CLI flag.
type Config struct {
	Level string
}

// Configure builds the process-wide slog.Logger from cfg and installs
// it as slog.Default.
func Configure(cfg Config) *slog.Logger {
	level := parseLevel(cfg.Level)
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceLevelName,
	})
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// replaceLevelName renders LevelTrace as "TRACE" instead of slog's
// default "DEBUG-4".
func replaceLevelName(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey {
		return a
	}
	if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
		a.Value = slog.StringValue("TRACE")
	}
	return a
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return LevelTrace
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Trace logs at LevelTrace, the verbosity below Debug used for
// per-packet wire-level detail.
func Trace(ctx context.Context, logger *slog.Logger, msg string, args ...any) {
	logger.Log(ctx, LevelTrace, msg, args...)
}
