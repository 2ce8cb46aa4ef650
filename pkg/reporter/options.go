package reporter

import (
	"time"

	"github.com/JailtonJunior94/tracekit/pkg/observability"
)

const (
	DefaultQueueSize       = 1024
	DefaultBatchSize       = 64
	DefaultFlushInterval   = time.Second
	DefaultInitialInterval = 100 * time.Millisecond
	DefaultMaxInterval     = 5 * time.Second
	DefaultMaxElapsedTime  = 30 * time.Second
)

type config struct {
	name            string
	queueSize       int
	batchSize       int
	flushInterval   time.Duration
	initialInterval time.Duration
	maxInterval     time.Duration
	maxElapsedTime  time.Duration
	logger          observability.Logger
	metrics         observability.Metrics
}

// Option configures a Buffered reporter.
type Option func(*config)

// WithName labels logs and metrics, useful when several reporters run side by side.
func WithName(name string) Option {
	return func(c *config) {
		if name != "" {
			c.name = name
		}
	}
}

// WithQueueSize bounds the number of segments waiting to be batched. Segments finished
// while the queue is full are dropped.
func WithQueueSize(size int) Option {
	return func(c *config) {
		if size > 0 {
			c.queueSize = size
		}
	}
}

func WithBatchSize(size int) Option {
	return func(c *config) {
		if size > 0 {
			c.batchSize = size
		}
	}
}

// WithFlushInterval sets how long a partial batch may wait before being sent.
func WithFlushInterval(interval time.Duration) Option {
	return func(c *config) {
		if interval > 0 {
			c.flushInterval = interval
		}
	}
}

// WithRetry configures the exponential backoff used when a sink fails.
// A zero maxElapsed retries until the reporter is closed.
func WithRetry(initial, maxInterval, maxElapsed time.Duration) Option {
	return func(c *config) {
		if initial > 0 {
			c.initialInterval = initial
		}
		if maxInterval > 0 {
			c.maxInterval = maxInterval
		}
		c.maxElapsedTime = maxElapsed
	}
}

func WithLogger(logger observability.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithMetrics(metrics observability.Metrics) Option {
	return func(c *config) {
		if metrics != nil {
			c.metrics = metrics
		}
	}
}
