package tracing

import (
	"context"

	"go.opentelemetry.io/otel/propagation"
)

// Propagator exposes the sw8 carrier as an OpenTelemetry TextMapPropagator, so any transport
// that already speaks propagation.TextMapCarrier (HTTP headers, gRPC metadata, message
// headers) can be traced without a dedicated codec.
//
// Inject writes the carrier of the active exit span. Extract stores the inbound carrier in
// the returned ctx; the next CreateEntrySpan called with a nil carrier picks it up.
type Propagator struct {
	manager *Manager
}

var _ propagation.TextMapPropagator = (*Propagator)(nil)

func (p *Propagator) Inject(ctx context.Context, carrier propagation.TextMapCarrier) {
	p.manager.InjectHeaders(ctx, carrier)
}

func (p *Propagator) Extract(ctx context.Context, carrier propagation.TextMapCarrier) context.Context {
	extracted := p.manager.Extract(carrier)
	if extracted == nil {
		return ctx
	}
	return ContextWithCarrier(ctx, *extracted)
}

func (p *Propagator) Fields() []string {
	return []string{HeaderName}
}
