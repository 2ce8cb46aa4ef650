package tracing

// noopSpan is the inert span returned when there is nothing to record into.
type noopSpan struct {
	kind SpanKind
}

var _ Span = noopSpan{}

func (noopSpan) SpanID() int32                   { return -1 }
func (noopSpan) ParentSpanID() int32             { return -1 }
func (s noopSpan) Kind() SpanKind                { return s.kind }
func (s noopSpan) IsEntry() bool                 { return s.kind == SpanKindEntry }
func (s noopSpan) IsExit() bool                  { return s.kind == SpanKindExit }
func (noopSpan) OperationName() string           { return "" }
func (s noopSpan) SetOperationName(string) Span  { return s }
func (s noopSpan) SetComponent(Component) Span   { return s }
func (s noopSpan) SetLayer(SpanLayer) Span       { return s }
func (noopSpan) Peer() string                    { return "" }
func (s noopSpan) SetPeer(string) Span           { return s }
func (s noopSpan) Tag(TagKey, string) Span       { return s }
func (s noopSpan) Log(string, string) Span       { return s }
func (s noopSpan) LogError(error) Span           { return s }
func (s noopSpan) ErrorOccurred() Span           { return s }
func (noopSpan) IsError() bool                   { return false }
func (noopSpan) PrepareForAsync() *AsyncHandle   { return &AsyncHandle{} }
func (noopSpan) AsyncFinish() error              { return nil }
func (noopSpan) IsRecording() bool               { return false }
