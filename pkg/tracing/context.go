package tracing

import (
	"context"
	"sync/atomic"
)

type (
	flowKey         struct{}
	continuationKey struct{}
	carrierKey      struct{}
)

func flowFromContext(ctx context.Context) (uint64, bool) {
	id, ok := ctx.Value(flowKey{}).(uint64)
	return id, ok
}

func withFlow(ctx context.Context, flowID uint64) context.Context {
	return context.WithValue(ctx, flowKey{}, flowID)
}

// continuation holds snapshots parked by Continued on a flow that has no execution context
// yet. They are applied to every execution context later created for flowID. bound is set
// once the first one exists, after which Continued starts a new flow instead of appending.
type continuation struct {
	flowID    uint64
	snapshots []ContextSnapshot
	bound     atomic.Bool
}

func continuationFromContext(ctx context.Context) *continuation {
	c, _ := ctx.Value(continuationKey{}).(*continuation)
	return c
}

// pendingFor returns the continuation parked for flowID, if any.
func pendingFor(ctx context.Context, flowID uint64) *continuation {
	c := continuationFromContext(ctx)
	if c == nil || c.flowID != flowID || len(c.snapshots) == 0 {
		return nil
	}
	return c
}

func withContinuation(ctx context.Context, c *continuation) context.Context {
	return context.WithValue(ctx, continuationKey{}, c)
}

// ContextWithCarrier stores an extracted carrier in ctx. CreateEntrySpan uses it when called
// with a nil carrier.
func ContextWithCarrier(ctx context.Context, carrier ContextCarrier) context.Context {
	return context.WithValue(ctx, carrierKey{}, carrier)
}

// CarrierFromContext returns the carrier stored by ContextWithCarrier.
func CarrierFromContext(ctx context.Context) (ContextCarrier, bool) {
	carrier, ok := ctx.Value(carrierKey{}).(ContextCarrier)
	return carrier, ok
}
