// Package otelsink replays finished trace segments as OpenTelemetry spans, so segments can be
// shipped to any OTLP backend.
//
// Span ids are derived from (segment id, span id), which keeps parent links stable across
// segments reported by different processes.
package otelsink

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/JailtonJunior94/tracekit/pkg/tracing"
)

const instrumentationName = "github.com/JailtonJunior94/tracekit/pkg/reporter/otelsink"

// Attribute keys added to every replayed span.
const (
	AttrSegmentID = attribute.Key("tracing.segment_id")
	AttrSpanID    = attribute.Key("tracing.span_id")
	AttrService   = attribute.Key("tracing.service")
	AttrInstance  = attribute.Key("tracing.instance")
	AttrComponent = attribute.Key("tracing.component")
	AttrLayer     = attribute.Key("tracing.layer")
	AttrPeer      = attribute.Key("tracing.peer")
	AttrAsync     = attribute.Key("tracing.async")
	AttrRefType   = attribute.Key("tracing.ref_type")
)

// Sink is a reporter.Sink backed by an OpenTelemetry SDK tracer provider.
type Sink struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

type options struct {
	resource *sdkresource.Resource
	sync     bool
}

// Option configures a Sink.
type Option func(*options)

// WithResource sets the resource attached to every exported span.
func WithResource(res *sdkresource.Resource) Option {
	return func(o *options) {
		o.resource = res
	}
}

// WithSyncer exports every span as soon as it ends instead of batching. Meant for tests.
func WithSyncer() Option {
	return func(o *options) {
		o.sync = true
	}
}

// New builds a Sink exporting through exporter. The sink owns its tracer provider, so it
// never touches the global one.
func New(exporter sdktrace.SpanExporter, opts ...Option) (*Sink, error) {
	if exporter == nil {
		return nil, fmt.Errorf("otelsink: exporter is nil")
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	providerOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithIDGenerator(segmentIDGenerator{}),
	}
	if o.sync {
		providerOpts = append(providerOpts, sdktrace.WithSyncer(exporter))
	} else {
		providerOpts = append(providerOpts, sdktrace.WithBatcher(exporter))
	}
	if o.resource != nil {
		providerOpts = append(providerOpts, sdktrace.WithResource(o.resource))
	}

	provider := sdktrace.NewTracerProvider(providerOpts...)
	return &Sink{
		provider: provider,
		tracer:   provider.Tracer(instrumentationName),
	}, nil
}

// Send replays segments and flushes them to the exporter.
func (s *Sink) Send(ctx context.Context, segments []tracing.TraceSegment) error {
	for _, segment := range segments {
		s.replay(ctx, segment)
	}
	if err := s.provider.ForceFlush(ctx); err != nil {
		return fmt.Errorf("otelsink: flush: %w", err)
	}
	return nil
}

// Shutdown flushes pending spans and shuts the exporter down.
func (s *Sink) Shutdown(ctx context.Context) error {
	return s.provider.Shutdown(ctx)
}

func (s *Sink) replay(ctx context.Context, segment tracing.TraceSegment) {
	traceID := TraceID(segment.TraceID)
	flags := trace.FlagsSampled

	for _, record := range segment.Spans {
		spanCtx := withDesiredIDs(ctx, traceID, SpanID(segment.SegmentID, record.SpanID))

		startOpts := []trace.SpanStartOption{
			trace.WithTimestamp(record.StartTime),
			trace.WithSpanKind(spanKind(record)),
			trace.WithAttributes(attributes(segment, record)...),
		}

		refs := record.Refs
		switch {
		case record.ParentSpanID >= 0:
			spanCtx = trace.ContextWithSpanContext(spanCtx, trace.NewSpanContext(trace.SpanContextConfig{
				TraceID:    traceID,
				SpanID:     SpanID(segment.SegmentID, record.ParentSpanID),
				TraceFlags: flags,
			}))
		case len(refs) > 0:
			spanCtx = trace.ContextWithRemoteSpanContext(spanCtx, refSpanContext(refs[0], flags))
			startOpts = append(startOpts, trace.WithAttributes(AttrRefType.String(refs[0].Type.String())))
			refs = refs[1:]
		default:
			spanCtx = trace.ContextWithSpanContext(spanCtx, trace.SpanContext{})
		}

		for _, ref := range refs {
			startOpts = append(startOpts, trace.WithLinks(trace.Link{
				SpanContext: refSpanContext(ref, flags),
				Attributes:  []attribute.KeyValue{AttrRefType.String(ref.Type.String())},
			}))
		}

		_, span := s.tracer.Start(spanCtx, spanName(record), startOpts...)
		for _, entry := range record.Logs {
			span.AddEvent(entry.Kind, trace.WithTimestamp(entry.Time), trace.WithAttributes(
				attribute.String("message", entry.Message),
			))
		}
		if record.IsError {
			span.SetStatus(codes.Error, errorDescription(record))
		}
		span.End(trace.WithTimestamp(record.EndTime))
	}
}

func refSpanContext(ref tracing.SegmentRef, flags trace.TraceFlags) trace.SpanContext {
	return trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    TraceID(ref.TraceID),
		SpanID:     SpanID(ref.ParentSegmentID, ref.ParentSpanID),
		TraceFlags: flags,
		Remote:     true,
	})
}

func spanName(record tracing.SpanRecord) string {
	if record.OperationName == "" {
		return record.Kind.String()
	}
	return record.OperationName
}

func spanKind(record tracing.SpanRecord) trace.SpanKind {
	switch record.Kind {
	case tracing.SpanKindEntry:
		if record.Layer == tracing.LayerMQ {
			return trace.SpanKindConsumer
		}
		return trace.SpanKindServer
	case tracing.SpanKindExit:
		if record.Layer == tracing.LayerMQ {
			return trace.SpanKindProducer
		}
		return trace.SpanKindClient
	default:
		return trace.SpanKindInternal
	}
}

func attributes(segment tracing.TraceSegment, record tracing.SpanRecord) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 6+len(record.Tags))
	attrs = append(attrs,
		AttrSegmentID.String(segment.SegmentID),
		AttrSpanID.Int(int(record.SpanID)),
		AttrService.String(segment.Service),
		AttrInstance.String(segment.Instance),
	)
	if record.Component != "" {
		attrs = append(attrs, AttrComponent.String(string(record.Component)))
	}
	if record.Layer != tracing.LayerUnknown {
		attrs = append(attrs, AttrLayer.String(record.Layer.String()))
	}
	if record.Peer != "" {
		attrs = append(attrs, AttrPeer.String(record.Peer))
	}
	if record.Async {
		attrs = append(attrs, AttrAsync.Bool(true))
	}
	for _, tag := range record.Tags {
		attrs = append(attrs, attribute.String(string(tag.Key), tag.Value))
	}
	return attrs
}

func errorDescription(record tracing.SpanRecord) string {
	for i := len(record.Logs) - 1; i >= 0; i-- {
		if record.Logs[i].Kind == tracing.LogKindError {
			return record.Logs[i].Message
		}
	}
	return ""
}

// TraceID maps a tracing trace id to an OpenTelemetry one. 32-char hex ids map one to one;
// anything else is hashed.
func TraceID(id string) trace.TraceID {
	if tid, err := trace.TraceIDFromHex(id); err == nil {
		return tid
	}
	sum := sha256.Sum256([]byte(id))
	var tid trace.TraceID
	copy(tid[:], sum[:len(tid)])
	return tid
}

// SpanID derives a stable OpenTelemetry span id from a segment id and a span id.
func SpanID(segmentID string, spanID int32) trace.SpanID {
	h := fnv.New64a()
	_, _ = h.Write([]byte(segmentID))
	_, _ = h.Write([]byte{'/'})
	_, _ = h.Write([]byte(strconv.FormatInt(int64(spanID), 10)))

	sum := h.Sum64()
	if sum == 0 {
		sum = 1
	}
	var sid trace.SpanID
	binary.BigEndian.PutUint64(sid[:], sum)
	return sid
}
