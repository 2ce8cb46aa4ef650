package otelsink

import (
	"context"
	"crypto/rand"

	"go.opentelemetry.io/otel/trace"
)

type desiredIDsKey struct{}

type desiredIDs struct {
	traceID trace.TraceID
	spanID  trace.SpanID
}

func withDesiredIDs(ctx context.Context, traceID trace.TraceID, spanID trace.SpanID) context.Context {
	return context.WithValue(ctx, desiredIDsKey{}, desiredIDs{traceID: traceID, spanID: spanID})
}

// segmentIDGenerator hands out the ids computed from the segment being replayed.
type segmentIDGenerator struct{}

func (segmentIDGenerator) NewIDs(ctx context.Context) (trace.TraceID, trace.SpanID) {
	if ids, ok := ctx.Value(desiredIDsKey{}).(desiredIDs); ok {
		return ids.traceID, ids.spanID
	}
	var tid trace.TraceID
	var sid trace.SpanID
	_, _ = rand.Read(tid[:])
	_, _ = rand.Read(sid[:])
	return tid, sid
}

func (segmentIDGenerator) NewSpanID(ctx context.Context, _ trace.TraceID) trace.SpanID {
	if ids, ok := ctx.Value(desiredIDsKey{}).(desiredIDs); ok {
		return ids.spanID
	}
	var sid trace.SpanID
	_, _ = rand.Read(sid[:])
	return sid
}
