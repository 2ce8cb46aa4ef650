// Package kafkasink publishes finished segments to a Kafka topic, one JSON document per
// segment keyed by trace id so that all segments of a trace land on the same partition.
package kafkasink

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/JailtonJunior94/tracekit/pkg/observability"
	"github.com/JailtonJunior94/tracekit/pkg/observability/noop"
	"github.com/JailtonJunior94/tracekit/pkg/reporter"
	"github.com/JailtonJunior94/tracekit/pkg/tracing"
)

// Header keys set on every message.
const (
	HeaderContentType = "content-type"
	HeaderSegmentID   = "segment-id"
	HeaderService     = "service"
)

var (
	ErrNoBrokers  = errors.New("kafkasink: at least one broker is required")
	ErrNoTopic    = errors.New("kafkasink: topic is required")
	ErrSinkClosed = errors.New("kafkasink: sink is closed")
)

// Config configures the underlying kafka.Writer.
type Config struct {
	Brokers      []string
	Topic        string
	BatchTimeout time.Duration
	WriteTimeout time.Duration
	RequiredAcks kafka.RequiredAcks
	Compression  kafka.Compression
}

// DefaultConfig returns a config that waits for all in-sync replicas.
func DefaultConfig(topic string, brokers ...string) Config {
	return Config{
		Brokers:      brokers,
		Topic:        topic,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireAll,
		Compression:  kafka.Snappy,
	}
}

func (c Config) Validate() error {
	var errs []error
	if len(c.Brokers) == 0 {
		errs = append(errs, ErrNoBrokers)
	}
	if c.Topic == "" {
		errs = append(errs, ErrNoTopic)
	}
	return errors.Join(errs...)
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Sink is a reporter.Sink writing to Kafka.
type Sink struct {
	writer messageWriter
	topic  string
	logger observability.Logger
	closed atomic.Bool
}

var _ reporter.Sink = (*Sink)(nil)

// Option configures a Sink.
type Option func(*Sink)

func WithLogger(logger observability.Logger) Option {
	return func(s *Sink) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a Sink with its own kafka.Writer.
func New(cfg Config, opts ...Option) (*Sink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           cfg.BatchTimeout,
		WriteTimeout:           cfg.WriteTimeout,
		RequiredAcks:           cfg.RequiredAcks,
		Compression:            cfg.Compression,
		AllowAutoTopicCreation: true,
	}
	return newSink(writer, cfg.Topic, opts...), nil
}

func newSink(writer messageWriter, topic string, opts ...Option) *Sink {
	s := &Sink{
		writer: writer,
		topic:  topic,
		logger: noop.NewLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send writes one message per segment in a single batch. Segments that cannot be encoded
// are skipped and logged.
func (s *Sink) Send(ctx context.Context, segments []tracing.TraceSegment) error {
	if s.closed.Load() {
		return reporter.Permanent(ErrSinkClosed)
	}

	messages := make([]kafka.Message, 0, len(segments))
	for _, segment := range segments {
		value, err := Encode(segment)
		if err != nil {
			s.logger.Error(ctx, "failed to encode segment",
				observability.String("segment_id", segment.SegmentID),
				observability.Error(err),
			)
			continue
		}
		messages = append(messages, kafka.Message{
			Key:   []byte(segment.TraceID),
			Value: value,
			Time:  segment.EndTime,
			Headers: []kafka.Header{
				{Key: HeaderContentType, Value: []byte(ContentType)},
				{Key: HeaderSegmentID, Value: []byte(segment.SegmentID)},
				{Key: HeaderService, Value: []byte(segment.Service)},
			},
		})
	}
	if len(messages) == 0 {
		return nil
	}

	if err := s.writer.WriteMessages(ctx, messages...); err != nil {
		return fmt.Errorf("kafkasink: write %d segments to %s: %w", len(messages), s.topic, err)
	}

	s.logger.Debug(ctx, "segments published",
		observability.String("topic", s.topic),
		observability.Int("count", len(messages)),
	)
	return nil
}

// Close flushes and closes the writer. It is safe to call more than once.
func (s *Sink) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	if err := s.writer.Close(); err != nil {
		return fmt.Errorf("kafkasink: close writer: %w", err)
	}
	return nil
}
