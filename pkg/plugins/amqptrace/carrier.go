package amqptrace

import (
	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel/propagation"
)

// TableCarrier adapts AMQP message headers to propagation.TextMapCarrier. Values written by
// other clients as byte slices are read as strings.
type TableCarrier amqp.Table

var _ propagation.TextMapCarrier = TableCarrier{}

func (c TableCarrier) Get(key string) string {
	switch v := c[key].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return ""
	}
}

// Set panics on a nil table, like any map write. Publish allocates the table when needed.
func (c TableCarrier) Set(key, value string) {
	c[key] = value
}

func (c TableCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}
