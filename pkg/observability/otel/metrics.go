package otel

import (
	"context"

	"go.opentelemetry.io/otel/metric"

	"github.com/JailtonJunior94/tracekit/pkg/observability"
	"github.com/JailtonJunior94/tracekit/pkg/observability/noop"
)

// otelMetrics implements observability.Metrics on an OTel meter. Instruments that the
// meter refuses to create degrade to no-ops.
type otelMetrics struct {
	meter    metric.Meter
	fallback observability.Metrics
}

func newOtelMetrics(meter metric.Meter) *otelMetrics {
	return &otelMetrics{meter: meter, fallback: noop.NewMetrics()}
}

func (m *otelMetrics) Counter(name, description, unit string) observability.Counter {
	counter, err := m.meter.Int64Counter(name, metric.WithDescription(description), metric.WithUnit(unit))
	if err != nil {
		return m.fallback.Counter(name, description, unit)
	}
	return &otelCounter{counter: counter}
}

func (m *otelMetrics) Histogram(name, description, unit string) observability.Histogram {
	histogram, err := m.meter.Float64Histogram(name, metric.WithDescription(description), metric.WithUnit(unit))
	if err != nil {
		return m.fallback.Histogram(name, description, unit)
	}
	return &otelHistogram{histogram: histogram}
}

func (m *otelMetrics) UpDownCounter(name, description, unit string) observability.UpDownCounter {
	upDown, err := m.meter.Int64UpDownCounter(name, metric.WithDescription(description), metric.WithUnit(unit))
	if err != nil {
		return m.fallback.UpDownCounter(name, description, unit)
	}
	return &otelUpDownCounter{counter: upDown}
}

func (m *otelMetrics) Gauge(name, description, unit string, callback observability.GaugeCallback) error {
	_, err := m.meter.Float64ObservableGauge(
		name,
		metric.WithDescription(description),
		metric.WithUnit(unit),
		metric.WithFloat64Callback(func(ctx context.Context, observer metric.Float64Observer) error {
			observer.Observe(callback(ctx))
			return nil
		}),
	)
	return err
}

func attributeOptions(fields []observability.Field) []metric.AddOption {
	attrs := toAttributes(fields)
	if attrs == nil {
		return nil
	}
	return []metric.AddOption{metric.WithAttributes(attrs...)}
}

type otelCounter struct {
	counter metric.Int64Counter
}

func (c *otelCounter) Add(ctx context.Context, value int64, fields ...observability.Field) {
	c.counter.Add(ctx, value, attributeOptions(fields)...)
}

func (c *otelCounter) Increment(ctx context.Context, fields ...observability.Field) {
	c.Add(ctx, 1, fields...)
}

type otelHistogram struct {
	histogram metric.Float64Histogram
}

func (h *otelHistogram) Record(ctx context.Context, value float64, fields ...observability.Field) {
	attrs := toAttributes(fields)
	if attrs == nil {
		h.histogram.Record(ctx, value)
		return
	}
	h.histogram.Record(ctx, value, metric.WithAttributes(attrs...))
}

type otelUpDownCounter struct {
	counter metric.Int64UpDownCounter
}

func (u *otelUpDownCounter) Add(ctx context.Context, value int64, fields ...observability.Field) {
	u.counter.Add(ctx, value, attributeOptions(fields)...)
}
