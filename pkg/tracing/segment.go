package tracing

import "time"

// RefType tells how a segment was linked to its parent.
type RefType int

const (
	// RefCrossProcess links to a parent in another process, through a ContextCarrier.
	RefCrossProcess RefType = iota
	// RefCrossThread links to a parent in this process, through a ContextSnapshot.
	RefCrossThread
)

func (t RefType) String() string {
	if t == RefCrossThread {
		return "CrossThread"
	}
	return "CrossProcess"
}

// SegmentRef points from a segment (and the span that received it) to its parent span.
type SegmentRef struct {
	Type                RefType
	TraceID             string
	ParentSegmentID     string
	ParentSpanID        int32
	ParentService       string
	ParentInstance      string
	ParentEndpoint      string
	AddressUsedAtClient string
}

// SpanRecord is the immutable view of a finished span.
type SpanRecord struct {
	SpanID        int32
	ParentSpanID  int32
	Kind          SpanKind
	OperationName string
	Component     Component
	Layer         SpanLayer
	Peer          string
	Tags          []Tag
	Logs          []LogEntry
	IsError       bool
	Async         bool
	Refs          []SegmentRef
	StartTime     time.Time
	EndTime       time.Time
}

// TagValue returns the value recorded for key.
func (r SpanRecord) TagValue(key TagKey) (string, bool) {
	for _, t := range r.Tags {
		if t.Key == key {
			return t.Value, true
		}
	}
	return "", false
}

// Duration is the span's wall time.
func (r SpanRecord) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}

// TraceSegment is the immutable record of a finished segment, handed to SegmentListeners.
// Spans are in creation order.
type TraceSegment struct {
	TraceID   string
	SegmentID string
	Service   string
	Instance  string
	Sampled   bool
	Refs      []SegmentRef
	Spans     []SpanRecord
	StartTime time.Time
	EndTime   time.Time
}

// Span returns the record with the given id.
func (s TraceSegment) Span(id int32) (SpanRecord, bool) {
	for _, sp := range s.Spans {
		if sp.SpanID == id {
			return sp, true
		}
	}
	return SpanRecord{}, false
}

// EntrySpan returns the first span of the segment when it is an entry span.
func (s TraceSegment) EntrySpan() (SpanRecord, bool) {
	if len(s.Spans) == 0 || s.Spans[0].Kind != SpanKindEntry {
		return SpanRecord{}, false
	}
	return s.Spans[0], true
}

// segment is the mutable state behind a TraceSegment. Guarded by the owning
// ExecutionContext's mutex.
type segment struct {
	id        string
	traceID   string
	service   string
	instance  string
	sampled   bool
	createdAt time.Time
	refs      []SegmentRef
	spans     []*tracingSpan
}

func (s *segment) addRef(ref SegmentRef) {
	for _, r := range s.refs {
		if r == ref {
			return
		}
	}
	s.refs = append(s.refs, ref)
}

// endpoint is the operation name of the segment's first span, propagated as the parent endpoint.
func (s *segment) endpoint() string {
	if len(s.spans) == 0 {
		return ""
	}
	return s.spans[0].OperationName()
}

func (s *segment) record(finishedAt time.Time) TraceSegment {
	spans := make([]SpanRecord, 0, len(s.spans))
	for _, sp := range s.spans {
		spans = append(spans, sp.record())
	}

	refs := make([]SegmentRef, len(s.refs))
	copy(refs, s.refs)

	return TraceSegment{
		TraceID:   s.traceID,
		SegmentID: s.id,
		Service:   s.service,
		Instance:  s.instance,
		Sampled:   s.sampled,
		Refs:      refs,
		Spans:     spans,
		StartTime: s.createdAt,
		EndTime:   finishedAt,
	}
}
