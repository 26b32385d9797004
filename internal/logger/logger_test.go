package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestParseLogLevel verifies mapping from strings to zapcore.Level and handling of unknown values.
func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"info":    zapcore.InfoLevel,
		" WARN ":  zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"panic":   zapcore.PanicLevel,
		"fatal":   zapcore.FatalLevel,
		"dpanic":  zapcore.DPanicLevel,
		"Debug\n": zapcore.DebugLevel,
	}
	for s, lvl := range cases {
		got, ok := ParseLogLevel(s)
		require.True(t, ok, s)
		require.Equal(t, lvl, got)
	}

	_, ok := ParseLogLevel("unknown")
	require.False(t, ok)
}

// TestFromContext_FallsBackToGlobal ensures a bare context yields the global logger.
func TestFromContext_FallsBackToGlobal(t *testing.T) {
	t.Parallel()

	require.Same(t, global, FromContext(context.Background()))
	require.Same(t, global, FromContext(nil)) //nolint:staticcheck // A nil context must not panic.
}

// TestWithKV_AttachesFields checks that fields added to the context logger reach the core.
func TestWithKV_AttachesFields(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	ctx := ToContext(context.Background(), zap.New(core).Sugar())
	ctx = WithName(ctx, "archpack-test")
	ctx = WithKV(ctx, "arch", "86")

	InfoKV(ctx, "Resolved target", "version", "b4567")

	entries := logs.All()
	require.Len(t, entries, 1)
	require.Equal(t, "archpack-test", entries[0].LoggerName)
	require.Equal(t, "86", entries[0].ContextMap()["arch"])
	require.Equal(t, "b4567", entries[0].ContextMap()["version"])
}

// TestWithLevel_OverridesCoreLevel checks the option both raises and lowers verbosity.
func TestWithLevel_OverridesCoreLevel(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.InfoLevel)

	verbose := ToContext(context.Background(), zap.New(core, WithLevel(zapcore.DebugLevel)).Sugar())
	DebugKV(verbose, "Resolved device", "arch", "89")

	quiet := ToContext(context.Background(), zap.New(core, WithLevel(zapcore.ErrorLevel)).Sugar())
	InfoKV(quiet, "dropped")
	ErrorKV(quiet, "kept", "arch", "89")

	entries := logs.All()
	require.Len(t, entries, 2)
	require.Equal(t, "Resolved device", entries[0].Message)
	require.Equal(t, "kept", entries[1].Message)

	// Fields attached after wrapping keep the overridden threshold.
	ctx := WithKV(quiet, "version", "b4567")
	WarnKV(ctx, "dropped")
	ErrorKV(ctx, "kept too")

	entries = logs.All()
	require.Len(t, entries, 3)
	require.Equal(t, "b4567", entries[2].ContextMap()["version"])
}
