// Package prometheus implements observability.Metrics on the Prometheus client library.
//
// Dotted instrument names such as "tracing.spans.created" are exposed as
// "tracing_spans_created_total". Label names are fixed by the first observation of an
// instrument: later observations fill missing labels with "" and drop unknown ones.
package prometheus

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"
	"sync"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JailtonJunior94/tracekit/pkg/observability"
)

// Config configures the registry.
type Config struct {
	Namespace   string
	ServiceName string

	// IncludeRuntime registers the Go runtime and process collectors.
	IncludeRuntime bool
}

// Metrics is an observability.Metrics backed by a Prometheus registry.
type Metrics struct {
	registry   *prom.Registry
	registerer prom.Registerer
	namespace  string

	mu             sync.Mutex
	counters       map[string]*counter
	histograms     map[string]*histogram
	upDownCounters map[string]*upDownCounter
}

// New creates a dedicated registry. Every series carries a service label when ServiceName is set.
func New(cfg Config) *Metrics {
	registry := prom.NewRegistry()

	var registerer prom.Registerer = registry
	if cfg.ServiceName != "" {
		registerer = prom.WrapRegistererWith(prom.Labels{"service": cfg.ServiceName}, registry)
	}

	if cfg.IncludeRuntime {
		registerer.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	return &Metrics{
		registry:       registry,
		registerer:     registerer,
		namespace:      sanitizeName(cfg.Namespace),
		counters:       make(map[string]*counter),
		histograms:     make(map[string]*histogram),
		upDownCounters: make(map[string]*upDownCounter),
	}
}

// Registry exposes the underlying registry, mostly for tests and custom collectors.
func (m *Metrics) Registry() *prom.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Counter(name, description, unit string) observability.Counter {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.counters[name]; ok {
		return c
	}
	c := &counter{metrics: m, opts: m.opts(name, description, unit, "_total")}
	m.counters[name] = c
	return c
}

func (m *Metrics) Histogram(name, description, unit string) observability.Histogram {
	m.mu.Lock()
	defer m.mu.Unlock()

	if h, ok := m.histograms[name]; ok {
		return h
	}
	h := &histogram{metrics: m, opts: m.opts(name, description, unit, "")}
	m.histograms[name] = h
	return h
}

func (m *Metrics) UpDownCounter(name, description, unit string) observability.UpDownCounter {
	m.mu.Lock()
	defer m.mu.Unlock()

	if u, ok := m.upDownCounters[name]; ok {
		return u
	}
	u := &upDownCounter{metrics: m, opts: m.opts(name, description, unit, "")}
	m.upDownCounters[name] = u
	return u
}

func (m *Metrics) Gauge(name, description, unit string, callback observability.GaugeCallback) error {
	if callback == nil {
		return errors.New("prometheus: gauge callback is nil")
	}
	opts := m.opts(name, description, unit, "")
	gauge := prom.NewGaugeFunc(prom.GaugeOpts(opts), func() float64 {
		return callback(context.Background())
	})
	return m.registerer.Register(gauge)
}

func (m *Metrics) opts(name, description, unit, suffix string) prom.Opts {
	metricName := sanitizeName(name)
	if u := unitSuffix(unit); u != "" && !strings.HasSuffix(metricName, u) {
		metricName += u
	}
	metricName += suffix

	if description == "" {
		description = name
	}
	return prom.Opts{Namespace: m.namespace, Name: metricName, Help: description}
}

// register returns the collector that ended up in the registry, which is the existing one
// when an equivalent collector was registered first.
func (m *Metrics) register(c prom.Collector) prom.Collector {
	if err := m.registerer.Register(c); err != nil {
		var are prom.AlreadyRegisteredError
		if errors.As(err, &are) {
			return are.ExistingCollector
		}
		return nil
	}
	return c
}

type counter struct {
	metrics *Metrics
	opts    prom.Opts

	once   sync.Once
	labels []string
	vec    *prom.CounterVec
}

func (c *counter) Add(_ context.Context, value int64, fields ...observability.Field) {
	if value < 0 {
		return
	}
	c.once.Do(func() {
		c.labels = labelNames(fields)
		vec, _ := c.metrics.register(prom.NewCounterVec(prom.CounterOpts(c.opts), c.labels)).(*prom.CounterVec)
		c.vec = vec
	})
	if c.vec == nil {
		return
	}
	c.vec.WithLabelValues(labelValues(c.labels, fields)...).Add(float64(value))
}

func (c *counter) Increment(ctx context.Context, fields ...observability.Field) {
	c.Add(ctx, 1, fields...)
}

type histogram struct {
	metrics *Metrics
	opts    prom.Opts

	once   sync.Once
	labels []string
	vec    *prom.HistogramVec
}

func (h *histogram) Record(_ context.Context, value float64, fields ...observability.Field) {
	h.once.Do(func() {
		h.labels = labelNames(fields)
		vec, _ := h.metrics.register(prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: h.opts.Namespace,
			Name:      h.opts.Name,
			Help:      h.opts.Help,
			Buckets:   prom.DefBuckets,
		}, h.labels)).(*prom.HistogramVec)
		h.vec = vec
	})
	if h.vec == nil {
		return
	}
	h.vec.WithLabelValues(labelValues(h.labels, fields)...).Observe(value)
}

type upDownCounter struct {
	metrics *Metrics
	opts    prom.Opts

	once   sync.Once
	labels []string
	vec    *prom.GaugeVec
}

func (u *upDownCounter) Add(_ context.Context, value int64, fields ...observability.Field) {
	u.once.Do(func() {
		u.labels = labelNames(fields)
		vec, _ := u.metrics.register(prom.NewGaugeVec(prom.GaugeOpts(u.opts), u.labels)).(*prom.GaugeVec)
		u.vec = vec
	})
	if u.vec == nil {
		return
	}
	u.vec.WithLabelValues(labelValues(u.labels, fields)...).Add(float64(value))
}

func labelNames(fields []observability.Field) []string {
	if len(fields) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(fields))
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		name := sanitizeName(f.Key)
		if name == "" || name == "service" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func labelValues(labels []string, fields []observability.Field) []string {
	values := make([]string, len(labels))
	for _, f := range fields {
		name := sanitizeName(f.Key)
		i := sort.SearchStrings(labels, name)
		if i < len(labels) && labels[i] == name {
			values[i] = observability.ValueString(f.Value)
		}
	}
	return values
}

func sanitizeName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

func unitSuffix(unit string) string {
	switch unit {
	case "s", "sec", "seconds":
		return "_seconds"
	case "ms", "milliseconds":
		return "_milliseconds"
	case "By", "bytes":
		return "_bytes"
	default:
		return ""
	}
}
