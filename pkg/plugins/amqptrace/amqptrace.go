// Package amqptrace traces RabbitMQ publishers and consumers built on amqp091-go.
package amqptrace

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/JailtonJunior94/tracekit/pkg/tracing"
)

// Channel is the subset of *amqp.Channel used by Publish.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Publisher publishes through a channel inside an exit span.
type Publisher struct {
	channel Channel
	manager *tracing.Manager
	peer    string
}

// NewPublisher wraps channel. peer is the broker address recorded on spans, e.g. "rabbitmq:5672".
func NewPublisher(manager *tracing.Manager, channel Channel, peer string) *Publisher {
	return &Publisher{channel: channel, manager: manager, peer: peer}
}

// Publish writes the sw8 header into a copy of msg.Headers and publishes it.
func (p *Publisher) Publish(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	ctx, span := p.manager.CreateExitSpan(ctx, operationName(exchange, key, "Producer"), p.peer)
	span.SetComponent(tracing.ComponentAMQPProducer).
		SetLayer(tracing.LayerMQ).
		Tag(tracing.TagMQBroker, p.peer).
		Tag(tracing.TagMQExchange, exchange).
		Tag(tracing.TagMQQueue, key)
	defer p.manager.StopSpanOnPanic(ctx)

	headers := make(amqp.Table, len(msg.Headers)+1)
	for k, v := range msg.Headers {
		headers[k] = v
	}
	p.manager.InjectHeaders(ctx, TableCarrier(headers))
	msg.Headers = headers

	if err := p.channel.PublishWithContext(ctx, exchange, key, mandatory, immediate, msg); err != nil {
		p.manager.StopSpanWithError(ctx, err)
		return err
	}
	p.manager.StopSpan(ctx)
	return nil
}

// HandlerFunc processes one delivery.
type HandlerFunc func(ctx context.Context, delivery amqp.Delivery) error

// Handle wraps handler so that each delivery runs inside an entry span linked to the
// publisher through the delivery headers.
func Handle(manager *tracing.Manager, queue string, handler HandlerFunc) HandlerFunc {
	return func(ctx context.Context, delivery amqp.Delivery) error {
		var carrier *tracing.ContextCarrier
		if delivery.Headers != nil {
			carrier = manager.Extract(TableCarrier(delivery.Headers))
		}

		ctx, span := manager.CreateEntrySpan(ctx, operationName(delivery.Exchange, queue, "Consumer"), carrier)
		span.SetComponent(tracing.ComponentAMQPConsumer).
			SetLayer(tracing.LayerMQ).
			Tag(tracing.TagMQExchange, delivery.Exchange).
			Tag(tracing.TagMQQueue, queue)
		defer manager.StopSpanOnPanic(ctx)

		if err := handler(ctx, delivery); err != nil {
			manager.StopSpanWithError(ctx, err)
			return err
		}
		manager.StopSpan(ctx)
		return nil
	}
}

func operationName(exchange, queue, role string) string {
	return "RabbitMQ/Topic/" + exchange + "Queue/" + queue + "/" + role
}
