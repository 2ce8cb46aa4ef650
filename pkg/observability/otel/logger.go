package otel

import (
	"context"
	"io"
	"log/slog"
	"time"

	otellog "go.opentelemetry.io/otel/log"

	"github.com/JailtonJunior94/tracekit/pkg/observability"
)

// otelLogger writes every entry twice: to a slog handler for the console and to the OTel
// log bridge for OTLP export.
type otelLogger struct {
	bridge        otellog.Logger
	console       *slog.Logger
	serviceName   string
	contextFields observability.ContextFields
	fields        []observability.Field
}

func newOtelLogger(cfg *Config, bridge otellog.Logger, output io.Writer) *otelLogger {
	return &otelLogger{
		bridge:        bridge,
		console:       newSlogLogger(cfg.LogLevel, cfg.LogFormat, output),
		serviceName:   cfg.ServiceName,
		contextFields: cfg.ContextFields,
	}
}

func newSlogLogger(level observability.LogLevel, format observability.LogFormat, output io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: convertLogLevel(level)}
	if format == observability.LogFormatJSON {
		return slog.New(slog.NewJSONHandler(output, opts))
	}
	return slog.New(slog.NewTextHandler(output, opts))
}

func convertLogLevel(level observability.LogLevel) slog.Level {
	switch level {
	case observability.LogLevelDebug:
		return slog.LevelDebug
	case observability.LogLevelWarn:
		return slog.LevelWarn
	case observability.LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func convertSeverity(level slog.Level) otellog.Severity {
	switch level {
	case slog.LevelDebug:
		return otellog.SeverityDebug
	case slog.LevelWarn:
		return otellog.SeverityWarn
	case slog.LevelError:
		return otellog.SeverityError
	default:
		return otellog.SeverityInfo
	}
}

func (l *otelLogger) Debug(ctx context.Context, msg string, fields ...observability.Field) {
	l.log(ctx, slog.LevelDebug, msg, fields)
}

func (l *otelLogger) Info(ctx context.Context, msg string, fields ...observability.Field) {
	l.log(ctx, slog.LevelInfo, msg, fields)
}

func (l *otelLogger) Warn(ctx context.Context, msg string, fields ...observability.Field) {
	l.log(ctx, slog.LevelWarn, msg, fields)
}

func (l *otelLogger) Error(ctx context.Context, msg string, fields ...observability.Field) {
	l.log(ctx, slog.LevelError, msg, fields)
}

func (l *otelLogger) With(fields ...observability.Field) observability.Logger {
	child := *l
	child.fields = append(append([]observability.Field(nil), l.fields...), fields...)
	return &child
}

func (l *otelLogger) log(ctx context.Context, level slog.Level, msg string, fields []observability.Field) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !l.console.Enabled(ctx, level) {
		return
	}

	all := make([]observability.Field, 0, len(l.fields)+len(fields)+3)
	all = append(all, l.fields...)
	all = append(all, fields...)
	if l.contextFields != nil {
		all = append(all, l.contextFields(ctx)...)
	}
	all = append(all, observability.String("service", l.serviceName))
	all = observability.SanitizeFields(all)

	attrs := make([]slog.Attr, len(all))
	for i, f := range all {
		attrs[i] = toSlogAttr(f)
	}
	l.console.LogAttrs(ctx, level, msg, attrs...)

	if l.bridge == nil {
		return
	}
	var record otellog.Record
	record.SetTimestamp(time.Now())
	record.SetBody(otellog.StringValue(msg))
	record.SetSeverity(convertSeverity(level))
	record.SetSeverityText(level.String())
	for _, f := range all {
		record.AddAttributes(toLogKeyValue(f))
	}
	l.bridge.Emit(ctx, record)
}
