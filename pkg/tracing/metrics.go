package tracing

import "github.com/JailtonJunior94/tracekit/pkg/observability"

type engineMetrics struct {
	spansCreated       observability.Counter
	spansLimited       observability.Counter
	segmentsFinished   observability.Counter
	contextsActive     observability.UpDownCounter
	carrierErrors      observability.Counter
	contractViolations observability.Counter
}

func newEngineMetrics(m observability.Metrics) *engineMetrics {
	return &engineMetrics{
		spansCreated:       m.Counter("tracing.spans.created", "Recording spans created", "{span}"),
		spansLimited:       m.Counter("tracing.spans.limited", "Spans replaced by inert spans after the segment span limit", "{span}"),
		segmentsFinished:   m.Counter("tracing.segments.finished", "Segments finished", "{segment}"),
		contextsActive:     m.UpDownCounter("tracing.contexts.active", "Execution contexts currently bound to a flow", "{context}"),
		carrierErrors:      m.Counter("tracing.carrier.errors", "Inbound carriers rejected as malformed", "{carrier}"),
		contractViolations: m.Counter("tracing.contract.violations", "Instrumentation calls that broke the span lifecycle contract", "{call}"),
	}
}
