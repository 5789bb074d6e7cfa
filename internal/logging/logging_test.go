package logging

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"trace":   LevelTrace,
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range cases {
		require.Equal(t, want, parseLevel(in), "input %q", in)
	}
}

func TestTraceLevelBelowDebug(t *testing.T) {
	require.Less(t, int(LevelTrace), int(slog.LevelDebug))
}

func TestConfigureInstallsDefaultLogger(t *testing.T) {
	logger := Configure(Config{Level: "trace"})
	require.NotNil(t, logger)
	require.Equal(t, logger, slog.Default())
}
