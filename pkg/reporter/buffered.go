package reporter

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/JailtonJunior94/tracekit/pkg/observability"
	"github.com/JailtonJunior94/tracekit/pkg/observability/noop"
	"github.com/JailtonJunior94/tracekit/pkg/tracing"
)

// Buffered queues finished segments and ships them to a Sink from a single goroutine.
type Buffered struct {
	sink    Sink
	config  config
	logger  observability.Logger
	metrics *reporterMetrics

	queue chan tracing.TraceSegment
	done  chan struct{}

	// ctx bounds in-flight sends. It is cancelled when Close gives up waiting.
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool
}

type reporterMetrics struct {
	sent         observability.Counter
	dropped      observability.Counter
	failed       observability.Counter
	sendDuration observability.Histogram
}

// NewBuffered starts a reporter in front of sink. Register it with tracing.Manager.AddListener
// and call Close on shutdown to flush what is queued.
func NewBuffered(sink Sink, opts ...Option) (*Buffered, error) {
	if sink == nil {
		return nil, ErrNilSink
	}

	cfg := config{
		name:            "default",
		queueSize:       DefaultQueueSize,
		batchSize:       DefaultBatchSize,
		flushInterval:   DefaultFlushInterval,
		initialInterval: DefaultInitialInterval,
		maxInterval:     DefaultMaxInterval,
		maxElapsedTime:  DefaultMaxElapsedTime,
		logger:          noop.NewLogger(),
		metrics:         noop.NewMetrics(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &Buffered{
		sink:   sink,
		config: cfg,
		logger: cfg.logger.With(observability.String("reporter", cfg.name)),
		metrics: &reporterMetrics{
			sent:         cfg.metrics.Counter("reporter.segments.sent", "Segments delivered to the sink", "{segment}"),
			dropped:      cfg.metrics.Counter("reporter.segments.dropped", "Segments dropped because the queue was full or closed", "{segment}"),
			failed:       cfg.metrics.Counter("reporter.segments.failed", "Segments abandoned after retries", "{segment}"),
			sendDuration: cfg.metrics.Histogram("reporter.send.duration", "Duration of a successful sink send including retries", "s"),
		},
		queue:  make(chan tracing.TraceSegment, cfg.queueSize),
		done:   make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
	}

	if err := cfg.metrics.Gauge("reporter.queue.depth", "Segments waiting to be sent", "{segment}", func(context.Context) float64 {
		return float64(len(b.queue))
	}); err != nil {
		b.logger.Warn(ctx, "failed to register queue depth gauge", observability.Error(err))
	}

	go b.run()
	return b, nil
}

// OnSegmentFinished enqueues segment without blocking.
func (b *Buffered) OnSegmentFinished(segment tracing.TraceSegment) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		b.drop(segment, "reporter closed")
		return
	}

	select {
	case b.queue <- segment:
	default:
		b.drop(segment, "queue full")
	}
}

func (b *Buffered) drop(segment tracing.TraceSegment, reason string) {
	b.metrics.dropped.Increment(context.Background(), observability.String("reason", reason))
	b.logger.Debug(context.Background(), "segment dropped",
		observability.String("reason", reason),
		observability.String("segment_id", segment.SegmentID),
	)
}

// Close stops accepting segments and waits until the queue is drained or ctx is done.
// When ctx expires first, in-flight sends are cancelled and the remaining segments are lost.
func (b *Buffered) Close(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	b.closed = true
	close(b.queue)
	b.mu.Unlock()

	select {
	case <-b.done:
		b.cancel()
		return nil
	case <-ctx.Done():
		b.cancel()
		<-b.done
		return ctx.Err()
	}
}

func (b *Buffered) run() {
	defer close(b.done)

	ticker := time.NewTicker(b.config.flushInterval)
	defer ticker.Stop()

	batch := make([]tracing.TraceSegment, 0, b.config.batchSize)
	for {
		select {
		case segment, ok := <-b.queue:
			if !ok {
				b.flush(batch)
				return
			}
			batch = append(batch, segment)
			if len(batch) >= b.config.batchSize {
				b.flush(batch)
				batch = make([]tracing.TraceSegment, 0, b.config.batchSize)
			}
		case <-ticker.C:
			if len(batch) > 0 {
				b.flush(batch)
				batch = make([]tracing.TraceSegment, 0, b.config.batchSize)
			}
		}
	}
}

func (b *Buffered) flush(batch []tracing.TraceSegment) {
	if len(batch) == 0 {
		return
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = b.config.initialInterval
	expBackoff.MaxInterval = b.config.maxInterval
	expBackoff.MaxElapsedTime = b.config.maxElapsedTime

	attempt := 0
	operation := func() error {
		attempt++
		err := b.sink.Send(b.ctx, batch)
		if err == nil {
			return nil
		}
		if IsPermanent(err) || b.ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		b.logger.Warn(b.ctx, "sink send failed, retrying",
			observability.Int("attempt", attempt),
			observability.Int("segments", len(batch)),
			observability.Error(err),
		)
		return err
	}

	start := time.Now()
	if err := backoff.Retry(operation, backoff.WithContext(expBackoff, b.ctx)); err != nil {
		b.metrics.failed.Add(context.Background(), int64(len(batch)))
		b.logger.Error(context.Background(), "sink send abandoned",
			observability.Int("attempts", attempt),
			observability.Int("segments", len(batch)),
			observability.Error(err),
		)
		return
	}

	b.metrics.sendDuration.Record(context.Background(), time.Since(start).Seconds())
	b.metrics.sent.Add(context.Background(), int64(len(batch)))
}
