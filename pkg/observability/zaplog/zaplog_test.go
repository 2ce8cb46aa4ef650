package zaplog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JailtonJunior94/tracekit/pkg/observability"
)

func newObserved(level zapcore.Level, contextFields observability.ContextFields) (observability.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return NewFromZap(zap.New(core), contextFields), logs
}

func TestLogger_Levels(t *testing.T) {
	logger, logs := newObserved(zapcore.InfoLevel, nil)
	ctx := context.Background()

	logger.Debug(ctx, "hidden")
	logger.Info(ctx, "info")
	logger.Warn(ctx, "warn")
	logger.Error(ctx, "error")

	entries := logs.AllUntimed()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
}

func TestLogger_ContextFieldsAndTypes(t *testing.T) {
	logger, logs := newObserved(zapcore.DebugLevel, func(context.Context) []observability.Field {
		return []observability.Field{
			observability.String("trace_id", "t-1"),
			observability.String("segment_id", "s-1"),
		}
	})

	logger.With(observability.String("component", "reporter")).Info(context.Background(), "sent",
		observability.Int("segments", 3),
		observability.Duration("elapsed", 20*time.Millisecond),
		observability.Error(errors.New("partial")),
		observability.String("api_key", "k"),
	)

	entries := logs.AllUntimed()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "t-1", fields["trace_id"])
	assert.Equal(t, "s-1", fields["segment_id"])
	assert.Equal(t, "reporter", fields["component"])
	assert.Equal(t, int64(3), fields["segments"])
	assert.Equal(t, 20*time.Millisecond, fields["elapsed"])
	assert.Equal(t, "partial", fields["error"])
	assert.Equal(t, observability.RedactedValue, fields["api_key"])
}

func TestNew_BuildsLogger(t *testing.T) {
	logger, err := New(Config{
		Level:       observability.LogLevelDebug,
		ServiceName: "orders",
		OutputPaths: []string{t.TempDir() + "/out.log"},
	})
	require.NoError(t, err)
	logger.Info(context.Background(), "started")
	assert.NotNil(t, logger.With(observability.String("k", "v")))
}

func TestToZapLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, toZapLevel(observability.LogLevelDebug))
	assert.Equal(t, zapcore.InfoLevel, toZapLevel(observability.LogLevelInfo))
	assert.Equal(t, zapcore.WarnLevel, toZapLevel(observability.LogLevelWarn))
	assert.Equal(t, zapcore.ErrorLevel, toZapLevel(observability.LogLevelError))
	assert.Equal(t, zapcore.InfoLevel, toZapLevel("bogus"))
}
