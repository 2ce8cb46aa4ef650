package reporter

import (
	"context"
	"sync"

	"github.com/JailtonJunior94/tracekit/pkg/tracing"
)

// Memory keeps every segment it receives. It is both a SegmentListener and a Sink, which
// makes it the usual collector in tests and examples.
type Memory struct {
	mu       sync.Mutex
	segments []tracing.TraceSegment
	notify   chan struct{}
}

func NewMemory() *Memory {
	return &Memory{notify: make(chan struct{}, 1)}
}

func (m *Memory) OnSegmentFinished(segment tracing.TraceSegment) {
	m.mu.Lock()
	m.segments = append(m.segments, segment)
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
}

func (m *Memory) Send(_ context.Context, segments []tracing.TraceSegment) error {
	for _, s := range segments {
		m.OnSegmentFinished(s)
	}
	return nil
}

// Segments returns a copy of what was received so far, in arrival order.
func (m *Memory) Segments() []tracing.TraceSegment {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]tracing.TraceSegment, len(m.segments))
	copy(out, m.segments)
	return out
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.segments)
}

// ByTrace returns the received segments that belong to traceID.
func (m *Memory) ByTrace(traceID string) []tracing.TraceSegment {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []tracing.TraceSegment
	for _, s := range m.segments {
		if s.TraceID == traceID {
			out = append(out, s)
		}
	}
	return out
}

// WaitFor blocks until at least n segments arrived or ctx is done.
func (m *Memory) WaitFor(ctx context.Context, n int) error {
	for {
		if m.Len() >= n {
			return nil
		}
		select {
		case <-m.notify:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.segments = nil
}
