package logging

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevels(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		zap  zapcore.Level
		slog slog.Level
	}{
		{"debug", zapcore.DebugLevel, slog.LevelDebug},
		{" WARN ", zapcore.WarnLevel, slog.LevelWarn},
		{"error", zapcore.ErrorLevel, slog.LevelError},
		{"info", zapcore.InfoLevel, slog.LevelInfo},
		{"", zapcore.InfoLevel, slog.LevelInfo},
		{"verbose", zapcore.InfoLevel, slog.LevelInfo},
	}
	for _, tc := range cases {
		require.Equal(t, tc.zap, ParseZapLevel(tc.in), tc.in)
		require.Equal(t, tc.slog, ParseSlogLevel(tc.in), tc.in)
	}
}

func TestNewZap(t *testing.T) {
	t.Parallel()

	dev, err := NewZap(true, "debug")
	require.NoError(t, err)
	require.True(t, dev.Core().Enabled(zapcore.DebugLevel))

	prod, err := NewZap(false, "warn")
	require.NoError(t, err)
	require.False(t, prod.Core().Enabled(zapcore.InfoLevel))
	require.True(t, prod.Core().Enabled(zapcore.WarnLevel))
}

func TestNewSlog_WritesThroughZap(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	logger := NewSlog(zap.New(core), "info")

	logger.Debug("hidden")
	logger.Info("access_token_rotated", slog.String("user_id", "u-1"))

	entries := logs.All()
	require.Len(t, entries, 1)
	require.Equal(t, "access_token_rotated", entries[0].Message)
	require.Equal(t, "u-1", entries[0].ContextMap()["user_id"])
}

func TestContextRoundTrip(t *testing.T) {
	t.Parallel()

	require.Same(t, slog.Default(), From(context.Background()))

	l := slog.New(slog.DiscardHandler)
	ctx := Into(context.Background(), l)
	require.Same(t, l, From(ctx))

	require.Same(t, slog.Default(), From(Into(context.Background(), nil)))
}
