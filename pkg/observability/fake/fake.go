// Package fake provides capturing observability implementations for tests.
package fake

import (
	"context"
	"slices"
	"sync"

	"github.com/JailtonJunior94/tracekit/pkg/observability"
)

// Provider bundles a FakeLogger and FakeMetrics.
type Provider struct {
	logger  *FakeLogger
	metrics *FakeMetrics
}

func NewProvider() *Provider {
	return &Provider{logger: NewFakeLogger(), metrics: NewFakeMetrics()}
}

func (p *Provider) Logger() observability.Logger   { return p.logger }
func (p *Provider) Metrics() observability.Metrics { return p.metrics }

// LogEntry is one captured log call, with the fields of With merged in front.
type LogEntry struct {
	Level   observability.LogLevel
	Message string
	Fields  []observability.Field
}

// Field returns the value of the named field.
func (e LogEntry) Field(key string) (any, bool) {
	for _, f := range e.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

type logBook struct {
	mu      sync.Mutex
	entries []LogEntry
}

// FakeLogger captures log calls. Children created by With write to the same book.
type FakeLogger struct {
	book   *logBook
	fields []observability.Field
}

func NewFakeLogger() *FakeLogger {
	return &FakeLogger{book: &logBook{}}
}

func (l *FakeLogger) Debug(_ context.Context, msg string, fields ...observability.Field) {
	l.record(observability.LogLevelDebug, msg, fields)
}

func (l *FakeLogger) Info(_ context.Context, msg string, fields ...observability.Field) {
	l.record(observability.LogLevelInfo, msg, fields)
}

func (l *FakeLogger) Warn(_ context.Context, msg string, fields ...observability.Field) {
	l.record(observability.LogLevelWarn, msg, fields)
}

func (l *FakeLogger) Error(_ context.Context, msg string, fields ...observability.Field) {
	l.record(observability.LogLevelError, msg, fields)
}

func (l *FakeLogger) With(fields ...observability.Field) observability.Logger {
	return &FakeLogger{book: l.book, fields: slices.Concat(l.fields, fields)}
}

func (l *FakeLogger) record(level observability.LogLevel, msg string, fields []observability.Field) {
	entry := LogEntry{Level: level, Message: msg, Fields: slices.Concat(l.fields, fields)}
	l.book.mu.Lock()
	l.book.entries = append(l.book.entries, entry)
	l.book.mu.Unlock()
}

// GetEntries returns a copy of every captured entry.
func (l *FakeLogger) GetEntries() []LogEntry {
	l.book.mu.Lock()
	defer l.book.mu.Unlock()
	return slices.Clone(l.book.entries)
}

// EntriesAt returns the captured entries of one level.
func (l *FakeLogger) EntriesAt(level observability.LogLevel) []LogEntry {
	var out []LogEntry
	for _, e := range l.GetEntries() {
		if e.Level == level {
			out = append(out, e)
		}
	}
	return out
}

func (l *FakeLogger) Reset() {
	l.book.mu.Lock()
	l.book.entries = nil
	l.book.mu.Unlock()
}

// Value is one captured measurement.
type Value[N int64 | float64] struct {
	Value  N
	Fields []observability.Field
}

type series[N int64 | float64] struct {
	mu     sync.Mutex
	values []Value[N]
}

func (s *series[N]) add(v N, fields []observability.Field) {
	s.mu.Lock()
	s.values = append(s.values, Value[N]{Value: v, Fields: fields})
	s.mu.Unlock()
}

// GetValues returns a copy of the captured measurements.
func (s *series[N]) GetValues() []Value[N] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.values)
}

func (s *series[N]) sum() N {
	var total N
	for _, v := range s.GetValues() {
		total += v.Value
	}
	return total
}

type FakeCounter struct{ series[int64] }

func (c *FakeCounter) Add(_ context.Context, value int64, fields ...observability.Field) {
	c.add(value, fields)
}

func (c *FakeCounter) Increment(ctx context.Context, fields ...observability.Field) {
	c.Add(ctx, 1, fields...)
}

// Total is the sum of every Add.
func (c *FakeCounter) Total() int64 { return c.sum() }

type FakeHistogram struct{ series[float64] }

func (h *FakeHistogram) Record(_ context.Context, value float64, fields ...observability.Field) {
	h.add(value, fields)
}

type FakeUpDownCounter struct{ series[int64] }

func (u *FakeUpDownCounter) Add(_ context.Context, value int64, fields ...observability.Field) {
	u.add(value, fields)
}

// Current is the running sum of every change.
func (u *FakeUpDownCounter) Current() int64 { return u.sum() }

// FakeMetrics hands out capturing instruments, one per name.
type FakeMetrics struct {
	mu         sync.Mutex
	counters   map[string]*FakeCounter
	histograms map[string]*FakeHistogram
	upDowns    map[string]*FakeUpDownCounter
	gauges     map[string]observability.GaugeCallback
}

func NewFakeMetrics() *FakeMetrics {
	return &FakeMetrics{
		counters:   make(map[string]*FakeCounter),
		histograms: make(map[string]*FakeHistogram),
		upDowns:    make(map[string]*FakeUpDownCounter),
		gauges:     make(map[string]observability.GaugeCallback),
	}
}

func instrument[T any](mu *sync.Mutex, byName map[string]*T, name string) *T {
	mu.Lock()
	defer mu.Unlock()
	if existing, ok := byName[name]; ok {
		return existing
	}
	created := new(T)
	byName[name] = created
	return created
}

func lookup[T any](mu *sync.Mutex, byName map[string]*T, name string) *T {
	mu.Lock()
	defer mu.Unlock()
	return byName[name]
}

func (m *FakeMetrics) Counter(name, _, _ string) observability.Counter {
	return instrument(&m.mu, m.counters, name)
}

func (m *FakeMetrics) Histogram(name, _, _ string) observability.Histogram {
	return instrument(&m.mu, m.histograms, name)
}

func (m *FakeMetrics) UpDownCounter(name, _, _ string) observability.UpDownCounter {
	return instrument(&m.mu, m.upDowns, name)
}

// Gauge keeps the callback for ObserveGauge.
func (m *FakeMetrics) Gauge(name, _, _ string, callback observability.GaugeCallback) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gauges[name] = callback
	return nil
}

// ObserveGauge runs the callback of a registered gauge.
func (m *FakeMetrics) ObserveGauge(ctx context.Context, name string) (float64, bool) {
	m.mu.Lock()
	callback, ok := m.gauges[name]
	m.mu.Unlock()
	if !ok {
		return 0, false
	}
	return callback(ctx), true
}

// GetCounter returns the counter registered under name, or nil.
func (m *FakeMetrics) GetCounter(name string) *FakeCounter {
	return lookup(&m.mu, m.counters, name)
}

// GetHistogram returns the histogram registered under name, or nil.
func (m *FakeMetrics) GetHistogram(name string) *FakeHistogram {
	return lookup(&m.mu, m.histograms, name)
}

// GetUpDownCounter returns the up-down counter registered under name, or nil.
func (m *FakeMetrics) GetUpDownCounter(name string) *FakeUpDownCounter {
	return lookup(&m.mu, m.upDowns, name)
}
