package tracing

import "time"

// SpanKind is the role a span plays in its segment.
type SpanKind int

const (
	SpanKindLocal SpanKind = iota
	SpanKindEntry
	SpanKindExit
)

func (k SpanKind) String() string {
	switch k {
	case SpanKindEntry:
		return "Entry"
	case SpanKindExit:
		return "Exit"
	default:
		return "Local"
	}
}

// Span is a timed, named unit of work. Setters return the span so calls can be chained.
//
// Once a span is finished every setter is ignored. Inert spans, returned when there is no
// execution context or the segment span limit was reached, accept every call and keep nothing.
type Span interface {
	SpanID() int32
	ParentSpanID() int32
	Kind() SpanKind
	IsEntry() bool
	IsExit() bool

	OperationName() string
	SetOperationName(name string) Span
	SetComponent(component Component) Span
	SetLayer(layer SpanLayer) Span

	// Peer is the remote address of an exit span. SetPeer is dropped on other kinds.
	Peer() string
	SetPeer(peer string) Span

	Tag(key TagKey, value string) Span
	Log(kind, message string) Span
	LogError(err error) Span
	ErrorOccurred() Span
	IsError() bool

	// PrepareForAsync detaches the span's finish from StopSpan. The returned handle must be
	// finished exactly once, from any goroutine. Calling it again returns the same handle.
	PrepareForAsync() *AsyncHandle

	// AsyncFinish finishes the span through the handle created by PrepareForAsync.
	AsyncFinish() error

	IsRecording() bool
}

// Tag is a recorded key/value pair.
type Tag struct {
	Key   TagKey
	Value string
}

// LogEntry is a timestamped event recorded on a span.
type LogEntry struct {
	Time    time.Time
	Kind    string
	Message string
}

// LogKindError is the log kind used by LogError.
const LogKindError = "error"
