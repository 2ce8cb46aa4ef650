package kafkatrace

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JailtonJunior94/tracekit/pkg/reporter"
	"github.com/JailtonJunior94/tracekit/pkg/tracing"
)

type captureWriter struct {
	messages []kafka.Message
	err      error
}

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func newManager(t *testing.T) (*tracing.Manager, *reporter.Memory) {
	t.Helper()
	memory := reporter.NewMemory()
	manager, err := tracing.NewManager(tracing.DefaultConfig("billing"), tracing.WithListener(memory))
	require.NoError(t, err)
	return manager, memory
}

func TestWriterAndHandler_LinkSegments(t *testing.T) {
	manager, memory := newManager(t)
	sink := &captureWriter{}
	writer := WrapWriter(manager, sink, "broker:9092", "invoices")

	original := kafka.Message{Key: []byte("k"), Headers: []kafka.Header{{Key: "tenant", Value: []byte("acme")}}}

	ctx, _ := manager.CreateLocalSpan(context.Background(), "issue-invoice")
	require.NoError(t, writer.WriteMessages(ctx, original, kafka.Message{Key: []byte("k2")}))
	manager.StopSpan(ctx)

	require.Len(t, sink.messages, 2)
	assert.Len(t, original.Headers, 1)
	for _, msg := range sink.messages {
		assert.NotEmpty(t, NewHeaderCarrier(&msg).Get(tracing.HeaderName))
	}
	assert.Equal(t, "acme", NewHeaderCarrier(&sink.messages[0]).Get("tenant"))

	consumed := sink.messages[0]
	consumed.Topic = "invoices"
	var consumerTrace string
	handler := Handle(manager, "mailer", func(ctx context.Context, _ kafka.Message) error {
		consumerTrace = manager.TraceID(ctx)
		return nil
	})
	require.NoError(t, handler(context.Background(), consumed))

	segments := memory.Segments()
	require.Len(t, segments, 2)
	producer, consumer := segments[0], segments[1]
	assert.Equal(t, producer.TraceID, consumerTrace)

	exit, ok := producer.Span(1)
	require.True(t, ok)
	assert.Equal(t, "Kafka/invoices/Producer", exit.OperationName)
	assert.Equal(t, "broker:9092", exit.Peer)
	assert.Equal(t, tracing.LayerMQ, exit.Layer)

	entry, ok := consumer.EntrySpan()
	require.True(t, ok)
	assert.Equal(t, "Kafka/invoices/Consumer/mailer", entry.OperationName)
	require.Len(t, entry.Refs, 1)
	assert.Equal(t, producer.SegmentID, entry.Refs[0].ParentSegmentID)
	assert.Equal(t, exit.SpanID, entry.Refs[0].ParentSpanID)
}

func TestWriter_Error(t *testing.T) {
	manager, memory := newManager(t)
	writer := WrapWriter(manager, &captureWriter{err: errors.New("not leader")}, "broker:9092", "invoices")

	ctx, _ := manager.CreateLocalSpan(context.Background(), "issue-invoice")
	assert.Error(t, writer.WriteMessages(ctx, kafka.Message{}))
	manager.StopSpan(ctx)

	exit, ok := memory.Segments()[0].Span(1)
	require.True(t, ok)
	assert.True(t, exit.IsError)
}

func TestHandle_ErrorAndNoCarrier(t *testing.T) {
	manager, memory := newManager(t)
	handler := Handle(manager, "", func(context.Context, kafka.Message) error {
		return errors.New("poison message")
	})

	assert.Error(t, handler(context.Background(), kafka.Message{Topic: "invoices"}))

	segments := memory.Segments()
	require.Len(t, segments, 1)
	entry, _ := segments[0].EntrySpan()
	assert.Equal(t, "Kafka/invoices/Consumer", entry.OperationName)
	assert.True(t, entry.IsError)
	assert.Empty(t, entry.Refs)
}

func TestHeaderCarrier_SetReplaces(t *testing.T) {
	msg := kafka.Message{}
	carrier := NewHeaderCarrier(&msg)

	carrier.Set("sw8", "a")
	carrier.Set("sw8", "b")

	assert.Len(t, msg.Headers, 1)
	assert.Equal(t, "b", carrier.Get("sw8"))
	assert.Equal(t, []string{"sw8"}, carrier.Keys())
}

func TestNewWriter_UsesWriterAddress(t *testing.T) {
	manager, _ := newManager(t)
	w := NewWriter(manager, &kafka.Writer{Addr: kafka.TCP("k1:9092"), Topic: "invoices"})

	assert.Equal(t, "k1:9092", w.peer)
	assert.Equal(t, "invoices", w.topic)
}

type panicWriter struct{}

func (panicWriter) WriteMessages(context.Context, ...kafka.Message) error { panic("writer bug") }

func TestPanicsStopTheSpan(t *testing.T) {
	manager, memory := newManager(t)

	handler := Handle(manager, "", func(context.Context, kafka.Message) error { panic("handler bug") })
	assert.PanicsWithValue(t, "handler bug", func() {
		_ = handler(context.Background(), kafka.Message{Topic: "invoices"})
	})

	writer := WrapWriter(manager, panicWriter{}, "broker:9092", "invoices")
	ctx, _ := manager.CreateLocalSpan(context.Background(), "issue-invoice")
	assert.PanicsWithValue(t, "writer bug", func() {
		_ = writer.WriteMessages(ctx, kafka.Message{Key: []byte("k")})
	})
	manager.StopSpan(ctx)

	assert.Zero(t, manager.ActiveContexts())
	segments := memory.Segments()
	require.Len(t, segments, 2)

	entry, ok := segments[0].EntrySpan()
	require.True(t, ok)
	assert.True(t, entry.IsError)

	exit, ok := segments[1].Span(1)
	require.True(t, ok)
	assert.True(t, exit.IsError)
	assert.False(t, segments[1].Spans[0].IsError)
}
