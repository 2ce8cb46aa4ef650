// Package zaplog implements observability.Logger on go.uber.org/zap.
package zaplog

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/JailtonJunior94/tracekit/pkg/observability"
)

// Config configures the production JSON logger.
type Config struct {
	Level       observability.LogLevel
	ServiceName string

	// ContextFields adds correlation fields to every entry. Wire it to tracing.Manager.LogFields.
	ContextFields observability.ContextFields

	// OutputPaths defaults to stderr.
	OutputPaths []string
}

type logger struct {
	zap           *zap.Logger
	contextFields observability.ContextFields
}

// New builds a JSON logger with ISO8601 timestamps and caller information.
func New(cfg Config) (observability.Logger, error) {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	encoderCfg.EncodeDuration = zapcore.MillisDurationEncoder

	outputs := cfg.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stderr"}
	}

	zapCfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(toZapLevel(cfg.Level)),
		Encoding:         "json",
		EncoderConfig:    encoderCfg,
		OutputPaths:      outputs,
		ErrorOutputPaths: []string{"stderr"},
		InitialFields: map[string]any{
			"pid":     os.Getpid(),
			"service": cfg.ServiceName,
		},
	}

	// One frame for the facade method and one for logger.log.
	z, err := zapCfg.Build(zap.AddCaller(), zap.AddCallerSkip(2))
	if err != nil {
		return nil, fmt.Errorf("build zap logger: %w", err)
	}
	return &logger{zap: z, contextFields: cfg.ContextFields}, nil
}

// NewFromZap wraps an existing zap logger.
func NewFromZap(z *zap.Logger, contextFields observability.ContextFields) observability.Logger {
	return &logger{zap: z, contextFields: contextFields}
}

func toZapLevel(level observability.LogLevel) zapcore.Level {
	switch level {
	case observability.LogLevelDebug:
		return zapcore.DebugLevel
	case observability.LogLevelWarn:
		return zapcore.WarnLevel
	case observability.LogLevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func (l *logger) Debug(ctx context.Context, msg string, fields ...observability.Field) {
	l.log(ctx, zapcore.DebugLevel, msg, fields)
}

func (l *logger) Info(ctx context.Context, msg string, fields ...observability.Field) {
	l.log(ctx, zapcore.InfoLevel, msg, fields)
}

func (l *logger) Warn(ctx context.Context, msg string, fields ...observability.Field) {
	l.log(ctx, zapcore.WarnLevel, msg, fields)
}

func (l *logger) Error(ctx context.Context, msg string, fields ...observability.Field) {
	l.log(ctx, zapcore.ErrorLevel, msg, fields)
}

func (l *logger) With(fields ...observability.Field) observability.Logger {
	return &logger{
		zap:           l.zap.With(toZapFields(observability.SanitizeFields(fields))...),
		contextFields: l.contextFields,
	}
}

// Sync flushes buffered entries. Call it before the process exits.
func (l *logger) Sync() error {
	return l.zap.Sync()
}

func (l *logger) log(ctx context.Context, level zapcore.Level, msg string, fields []observability.Field) {
	ce := l.zap.Check(level, msg)
	if ce == nil {
		return
	}

	if l.contextFields != nil && ctx != nil {
		fields = append(append([]observability.Field(nil), fields...), l.contextFields(ctx)...)
	}
	ce.Write(toZapFields(observability.SanitizeFields(fields))...)
}

func toZapFields(fields []observability.Field) []zap.Field {
	out := make([]zap.Field, 0, len(fields))
	for _, f := range fields {
		out = append(out, toZapField(f))
	}
	return out
}

func toZapField(f observability.Field) zap.Field {
	switch v := f.Value.(type) {
	case string:
		return zap.String(f.Key, v)
	case int:
		return zap.Int(f.Key, v)
	case int64:
		return zap.Int64(f.Key, v)
	case float64:
		return zap.Float64(f.Key, v)
	case bool:
		return zap.Bool(f.Key, v)
	case time.Duration:
		return zap.Duration(f.Key, v)
	case error:
		return zap.NamedError(f.Key, v)
	default:
		return zap.Any(f.Key, v)
	}
}
