package tracing

// ContextSnapshot is an immutable copy of the linkage data of a span, taken with
// Manager.Capture and handed to another goroutine (or callback) that calls Manager.Continued.
type ContextSnapshot struct {
	traceID        string
	segmentID      string
	spanID         int32
	parentEndpoint string
	sampled        bool
}

func (s ContextSnapshot) TraceID() string        { return s.traceID }
func (s ContextSnapshot) SegmentID() string      { return s.segmentID }
func (s ContextSnapshot) SpanID() int32          { return s.spanID }
func (s ContextSnapshot) ParentEndpoint() string { return s.parentEndpoint }
func (s ContextSnapshot) IsSampled() bool        { return s.sampled }

// IsValid reports whether the snapshot was captured from a recording span.
func (s ContextSnapshot) IsValid() bool {
	return s.traceID != "" && s.segmentID != "" && s.spanID >= 0
}
