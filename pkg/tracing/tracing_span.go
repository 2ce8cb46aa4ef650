package tracing

import (
	"sync"
	"time"
)

// tracingSpan is a recording span owned by an ExecutionContext.
//
// Lock order: ExecutionContext.mu before tracingSpan.mu.
type tracingSpan struct {
	ec       *ExecutionContext
	id       int32
	parentID int32
	kind     SpanKind

	mu            sync.Mutex
	operationName string
	component     Component
	layer         SpanLayer
	peer          string
	tags          map[TagKey]string
	tagOrder      []TagKey
	logs          []LogEntry
	errorOccurred bool
	refs          []SegmentRef
	start         time.Time
	end           time.Time
	async         *AsyncHandle
	stopped       bool
	finished      bool
}

func newTracingSpan(ec *ExecutionContext, id, parentID int32, kind SpanKind, operationName string, start time.Time) *tracingSpan {
	return &tracingSpan{
		ec:            ec,
		id:            id,
		parentID:      parentID,
		kind:          kind,
		operationName: operationName,
		tags:          make(map[TagKey]string),
		start:         start,
	}
}

func (s *tracingSpan) SpanID() int32       { return s.id }
func (s *tracingSpan) ParentSpanID() int32 { return s.parentID }
func (s *tracingSpan) Kind() SpanKind      { return s.kind }
func (s *tracingSpan) IsEntry() bool       { return s.kind == SpanKindEntry }
func (s *tracingSpan) IsExit() bool        { return s.kind == SpanKindExit }
func (s *tracingSpan) IsRecording() bool   { return true }

func (s *tracingSpan) OperationName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.operationName
}

func (s *tracingSpan) SetOperationName(name string) Span {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.finished {
		s.operationName = name
	}
	return s
}

func (s *tracingSpan) SetComponent(component Component) Span {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.finished {
		s.component = component
	}
	return s
}

func (s *tracingSpan) SetLayer(layer SpanLayer) Span {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.finished {
		s.layer = layer
	}
	return s
}

func (s *tracingSpan) Peer() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peer
}

func (s *tracingSpan) SetPeer(peer string) Span {
	if s.kind != SpanKindExit {
		return s
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.finished {
		s.peer = peer
	}
	return s
}

func (s *tracingSpan) Tag(key TagKey, value string) Span {
	if key == "" {
		return s
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return s
	}
	if _, ok := s.tags[key]; !ok {
		s.tagOrder = append(s.tagOrder, key)
	}
	s.tags[key] = value
	return s
}

func (s *tracingSpan) Log(kind, message string) Span {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.finished {
		s.logs = append(s.logs, LogEntry{Time: s.ec.manager.now(), Kind: kind, Message: message})
	}
	return s
}

func (s *tracingSpan) LogError(err error) Span {
	if err == nil {
		return s
	}
	return s.Log(LogKindError, err.Error())
}

func (s *tracingSpan) ErrorOccurred() Span {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.finished {
		s.errorOccurred = true
	}
	return s
}

func (s *tracingSpan) IsError() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errorOccurred
}

func (s *tracingSpan) PrepareForAsync() *AsyncHandle {
	return s.ec.prepareForAsync(s)
}

func (s *tracingSpan) AsyncFinish() error {
	s.mu.Lock()
	handle := s.async
	s.mu.Unlock()

	if handle == nil {
		return s.ec.manager.asyncViolation("async finish on span that was never prepared", s.OperationName())
	}
	return handle.Finish()
}

func (s *tracingSpan) addRef(ref SegmentRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return
	}
	for _, r := range s.refs {
		if r == ref {
			return
		}
	}
	s.refs = append(s.refs, ref)
}

// stop is called when the span is popped from the stack. It reports whether the span
// finished; prepared spans only detach.
func (s *tracingSpan) stop(at time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	if s.async != nil {
		return false
	}
	s.finish(at)
	return true
}

func (s *tracingSpan) finish(at time.Time) {
	if s.finished {
		return
	}
	if at.Before(s.start) {
		at = s.start
	}
	s.end = at
	s.finished = true
}

func (s *tracingSpan) record() SpanRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	tags := make([]Tag, 0, len(s.tagOrder))
	for _, k := range s.tagOrder {
		tags = append(tags, Tag{Key: k, Value: s.tags[k]})
	}
	logs := make([]LogEntry, len(s.logs))
	copy(logs, s.logs)
	refs := make([]SegmentRef, len(s.refs))
	copy(refs, s.refs)

	return SpanRecord{
		SpanID:        s.id,
		ParentSpanID:  s.parentID,
		Kind:          s.kind,
		OperationName: s.operationName,
		Component:     s.component,
		Layer:         s.layer,
		Peer:          s.peer,
		Tags:          tags,
		Logs:          logs,
		IsError:       s.errorOccurred,
		Async:         s.async != nil,
		Refs:          refs,
		StartTime:     s.start,
		EndTime:       s.end,
	}
}
