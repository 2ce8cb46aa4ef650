// Package kafkatrace traces segmentio/kafka-go producers and consumers.
package kafkatrace

import (
	"context"

	"github.com/segmentio/kafka-go"

	"github.com/JailtonJunior94/tracekit/pkg/tracing"
)

// MessageWriter is the subset of *kafka.Writer used by Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Writer opens one exit span per WriteMessages call and writes the sw8 header on every
// message of the batch.
type Writer struct {
	next    MessageWriter
	manager *tracing.Manager
	peer    string
	topic   string
}

// NewWriter wraps a kafka.Writer, using its address and topic for the span.
func NewWriter(manager *tracing.Manager, w *kafka.Writer) *Writer {
	var peer string
	if w.Addr != nil {
		peer = w.Addr.String()
	}
	return WrapWriter(manager, w, peer, w.Topic)
}

// WrapWriter wraps any MessageWriter. topic is used when messages do not name one.
func WrapWriter(manager *tracing.Manager, next MessageWriter, peer, topic string) *Writer {
	return &Writer{next: next, manager: manager, peer: peer, topic: topic}
}

func (w *Writer) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	topic := w.topic
	if topic == "" && len(msgs) > 0 {
		topic = msgs[0].Topic
	}

	ctx, span := w.manager.CreateExitSpan(ctx, "Kafka/"+topic+"/Producer", w.peer)
	span.SetComponent(tracing.ComponentKafkaProducer).
		SetLayer(tracing.LayerMQ).
		Tag(tracing.TagMQBroker, w.peer).
		Tag(tracing.TagMQTopic, topic)
	defer w.manager.StopSpanOnPanic(ctx)

	traced := make([]kafka.Message, len(msgs))
	for i, msg := range msgs {
		msg.Headers = append([]kafka.Header(nil), msg.Headers...)
		w.manager.InjectHeaders(ctx, NewHeaderCarrier(&msg))
		traced[i] = msg
	}

	if err := w.next.WriteMessages(ctx, traced...); err != nil {
		w.manager.StopSpanWithError(ctx, err)
		return err
	}
	w.manager.StopSpan(ctx)
	return nil
}

// HandlerFunc processes one consumed message.
type HandlerFunc func(ctx context.Context, msg kafka.Message) error

// Handle wraps handler so that each message runs inside an entry span linked to the
// producer through the message headers. group is recorded in the operation name.
func Handle(manager *tracing.Manager, group string, handler HandlerFunc) HandlerFunc {
	return func(ctx context.Context, msg kafka.Message) error {
		carrier := manager.Extract(NewHeaderCarrier(&msg))

		name := "Kafka/" + msg.Topic + "/Consumer"
		if group != "" {
			name += "/" + group
		}
		ctx, span := manager.CreateEntrySpan(ctx, name, carrier)
		span.SetComponent(tracing.ComponentKafkaConsumer).
			SetLayer(tracing.LayerMQ).
			Tag(tracing.TagMQTopic, msg.Topic)
		defer manager.StopSpanOnPanic(ctx)

		if err := handler(ctx, msg); err != nil {
			manager.StopSpanWithError(ctx, err)
			return err
		}
		manager.StopSpan(ctx)
		return nil
	}
}
