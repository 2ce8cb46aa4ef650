package tracing

import (
	"time"

	"github.com/JailtonJunior94/tracekit/pkg/observability"
)

// Option configures optional collaborators of a Manager.
type Option func(*Manager)

// WithLogger sets the logger used for contract violations and diagnostics.
func WithLogger(logger observability.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithMetrics sets the metrics provider for engine instruments.
func WithMetrics(metrics observability.Metrics) Option {
	return func(m *Manager) {
		if metrics != nil {
			m.metricsProvider = metrics
		}
	}
}

// WithListener registers a segment listener at construction time.
func WithListener(listener SegmentListener) Option {
	return func(m *Manager) {
		m.initialListeners = append(m.initialListeners, listener)
	}
}

// WithIDGenerator replaces the trace and segment id generator.
func WithIDGenerator(ids IDGenerator) Option {
	return func(m *Manager) {
		if ids != nil {
			m.ids = ids
		}
	}
}

// WithSampler replaces the rate sampler built from Config.SampleRate.
func WithSampler(sampler Sampler) Option {
	return func(m *Manager) {
		if sampler != nil {
			m.sampler = sampler
		}
	}
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}
