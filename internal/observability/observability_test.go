package observability_test

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ashish-admin/stra-tech-sub002/internal/observability"
)

func captureLogs(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	previous := observability.SetLogger(zap.New(core))
	t.Cleanup(func() { observability.SetLogger(previous) })
	return logs
}

func TestFromContext(t *testing.T) {
	t.Run("should attach context fields", func(t *testing.T) {
		logs := captureLogs(t)

		ctx := context.Background()
		ctx = observability.WithTraceID(ctx, "trace-1")
		ctx = observability.WithRequestID(ctx, "req-1")
		ctx = observability.WithCaller(ctx, "campaign-desk")
		ctx = observability.WithService(ctx, "reasoning")
		ctx = observability.WithPhase(ctx, "dispatch")

		observability.FromContext(ctx).Info("hello")

		require.Equal(t, 1, logs.Len())
		fields := logs.All()[0].ContextMap()
		require.Equal(t, "trace-1", fields["trace_id"])
		require.Equal(t, "req-1", fields["request_id"])
		require.Equal(t, "campaign-desk", fields["caller"])
		require.Equal(t, "reasoning", fields["service"])
		require.Equal(t, "dispatch", fields["phase"])
		require.NotContains(t, fields, "span_id")
	})

	t.Run("should log without context fields", func(t *testing.T) {
		logs := captureLogs(t)

		observability.FromContext(context.Background()).Warn("bare")

		require.Equal(t, 1, logs.Len())
		require.Empty(t, logs.All()[0].Context)
	})
}

func TestInitLogger(t *testing.T) {
	previous := observability.SetLogger(nil)
	t.Cleanup(func() { observability.SetLogger(previous) })

	t.Run("should honour the configured level", func(t *testing.T) {
		logger, err := observability.InitLogger(&observability.LogConfig{Level: "warn", Format: "console"})
		require.NoError(t, err)
		require.False(t, logger.Core().Enabled(zapcore.InfoLevel))
		require.True(t, logger.Core().Enabled(zapcore.WarnLevel))
	})

	t.Run("should default to info without config", func(t *testing.T) {
		logger, err := observability.InitLogger(nil)
		require.NoError(t, err)
		require.True(t, logger.Core().Enabled(zapcore.InfoLevel))
		require.False(t, logger.Core().Enabled(zapcore.DebugLevel))
	})

	t.Run("should reject an unknown level", func(t *testing.T) {
		_, err := observability.InitLogger(&observability.LogConfig{Level: "loud", Format: "json"})
		require.Error(t, err)
	})
}

func TestEventBus(t *testing.T) {
	t.Run("should log and count events", func(t *testing.T) {
		logs := captureLogs(t)
		reg := prometheus.NewRegistry()
		bus := observability.NewEventBus(observability.NewMetrics(reg))

		bus.Publish(context.Background(), "budget.threshold", map[string]interface{}{
			"previous": "normal",
			"current":  "warning",
		})

		require.Equal(t, 1, logs.Len())
		entry := logs.All()[0]
		require.Equal(t, "telemetry event", entry.Message)
		require.Equal(t, "budget.threshold", entry.ContextMap()["event"])
		require.Equal(t, "warning", entry.ContextMap()["current"])

		expected := `
# HELP strategist_telemetry_events_total Structured telemetry events by type.
# TYPE strategist_telemetry_events_total counter
strategist_telemetry_events_total{event="budget.threshold"} 1
`
		require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "strategist_telemetry_events_total"))
	})

	t.Run("should tolerate nil metrics", func(t *testing.T) {
		captureLogs(t)
		bus := observability.NewEventBus(nil)
		require.NotPanics(t, func() {
			bus.Publish(context.Background(), "route.transition", nil)
		})
	})
}

func TestGenerateIDs(t *testing.T) {
	require.Len(t, observability.GenerateTraceID(), 32)
	require.Len(t, observability.GenerateSpanID(), 16)
	require.NotEqual(t, observability.GenerateRequestID(), observability.GenerateRequestID())
}
