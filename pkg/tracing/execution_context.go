package tracing

import (
	"context"
	"fmt"
	"sync"
)

// ExecutionContext is the per-flow tracing state: the active span stack and the segment it
// records into. It is created on the first span of a flow and finishes its segment once the
// stack is empty and no async span is pending.
type ExecutionContext struct {
	manager *Manager
	flowID  uint64

	mu          sync.Mutex
	segment     *segment
	stack       []Span
	nextSpanID  int32
	pendingRefs []SegmentRef
	asyncCount  int
	finished    bool
}

func newExecutionContext(m *Manager, flowID uint64, traceID string, sampled bool) *ExecutionContext {
	return &ExecutionContext{
		manager: m,
		flowID:  flowID,
		segment: &segment{
			id:        m.ids.NewSegmentID(),
			traceID:   traceID,
			service:   m.config.ServiceName,
			instance:  m.config.InstanceName,
			sampled:   sampled,
			createdAt: m.now(),
		},
	}
}

// TraceID returns the trace id of the segment.
func (ec *ExecutionContext) TraceID() string {
	return ec.segment.traceID
}

// SegmentID returns the id of the segment being recorded.
func (ec *ExecutionContext) SegmentID() string {
	return ec.segment.id
}

// Sampled reports whether the segment will be reported.
func (ec *ExecutionContext) Sampled() bool {
	return ec.segment.sampled
}

// Depth returns the number of spans on the stack.
func (ec *ExecutionContext) Depth() int {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	return len(ec.stack)
}

// adopt parks refs that link the first span created on this context to its parent.
func (ec *ExecutionContext) adopt(refs ...SegmentRef) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	for _, ref := range refs {
		ec.segment.addRef(ref)
		ec.pendingRefs = append(ec.pendingRefs, ref)
	}
}

func (ec *ExecutionContext) push(kind SpanKind, operationName, peer string) Span {
	ec.mu.Lock()
	defer ec.mu.Unlock()

	if len(ec.segment.spans) >= ec.manager.config.MaxSpansPerSegment {
		span := noopSpan{kind: kind}
		ec.stack = append(ec.stack, span)
		ec.manager.metrics.spansLimited.Increment(context.Background())
		return span
	}

	parentID := int32(-1)
	for i := len(ec.stack) - 1; i >= 0; i-- {
		if ec.stack[i].IsRecording() {
			parentID = ec.stack[i].SpanID()
			break
		}
	}

	span := newTracingSpan(ec, ec.nextSpanID, parentID, kind, operationName, ec.manager.now())
	ec.nextSpanID++
	if kind == SpanKindExit {
		span.peer = peer
	}
	span.refs = append(span.refs, ec.pendingRefs...)
	ec.pendingRefs = nil

	ec.segment.spans = append(ec.segment.spans, span)
	ec.stack = append(ec.stack, span)
	ec.manager.metrics.spansCreated.Increment(context.Background())
	return span
}

func (ec *ExecutionContext) activeSpan() Span {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	return ec.active()
}

func (ec *ExecutionContext) active() Span {
	if len(ec.stack) == 0 {
		return nil
	}
	return ec.stack[len(ec.stack)-1]
}

// activeRecording returns the top of the stack when it is a recording span. Caller holds ec.mu.
func (ec *ExecutionContext) activeRecording() (*tracingSpan, bool) {
	span, ok := ec.active().(*tracingSpan)
	return span, ok
}

// pop stops the active span. It reports whether the stack is now empty, and returns the
// finished segment when this pop completed it.
func (ec *ExecutionContext) pop() (empty bool, finished *TraceSegment) {
	ec.mu.Lock()
	defer ec.mu.Unlock()

	if len(ec.stack) == 0 {
		return true, nil
	}

	top := ec.stack[len(ec.stack)-1]
	ec.stack[len(ec.stack)-1] = nil
	ec.stack = ec.stack[:len(ec.stack)-1]

	if span, ok := top.(*tracingSpan); ok {
		span.stop(ec.manager.now())
	}

	if len(ec.stack) > 0 {
		return false, nil
	}
	return true, ec.tryFinish()
}

func (ec *ExecutionContext) prepareForAsync(span *tracingSpan) *AsyncHandle {
	ec.mu.Lock()
	defer ec.mu.Unlock()

	span.mu.Lock()
	defer span.mu.Unlock()

	if span.async != nil {
		return span.async
	}
	if span.stopped || span.finished {
		ec.manager.logger.Warn(context.Background(), "prepare for async on a stopped span ignored",
			fieldOperation(span.operationName))
		return &AsyncHandle{}
	}

	span.async = &AsyncHandle{span: span}
	ec.asyncCount++
	return span.async
}

func (ec *ExecutionContext) asyncFinish(span *tracingSpan) {
	ec.mu.Lock()
	span.mu.Lock()
	span.finish(ec.manager.now())
	span.mu.Unlock()

	ec.asyncCount--
	var finished *TraceSegment
	if len(ec.stack) == 0 {
		finished = ec.tryFinish()
	}
	ec.mu.Unlock()

	if finished != nil {
		ec.manager.segmentFinished(*finished)
	}
}

// tryFinish builds the segment record once nothing is running on the context anymore.
// Caller holds ec.mu.
func (ec *ExecutionContext) tryFinish() *TraceSegment {
	if ec.finished || len(ec.stack) > 0 || ec.asyncCount > 0 {
		return nil
	}
	ec.finished = true
	record := ec.segment.record(ec.manager.now())
	return &record
}

// capture snapshots the active span. Caller must not hold ec.mu.
func (ec *ExecutionContext) capture() (ContextSnapshot, error) {
	ec.mu.Lock()
	defer ec.mu.Unlock()

	span, ok := ec.activeRecording()
	if !ok {
		return ContextSnapshot{}, fmt.Errorf("%w: capture requires a recording active span", ErrContextState)
	}

	return ContextSnapshot{
		traceID:        ec.segment.traceID,
		segmentID:      ec.segment.id,
		spanID:         span.id,
		parentEndpoint: ec.segment.endpoint(),
		sampled:        ec.segment.sampled,
	}, nil
}

func (ec *ExecutionContext) ownsSnapshot(snapshot ContextSnapshot) bool {
	return ec.segment.id == snapshot.segmentID
}

// continued links the active span and the segment to the snapshot.
func (ec *ExecutionContext) continued(snapshot ContextSnapshot) error {
	ec.mu.Lock()
	defer ec.mu.Unlock()

	span, ok := ec.activeRecording()
	if !ok {
		return fmt.Errorf("%w: continued requires a recording active span", ErrContextState)
	}

	ref := ec.manager.crossThreadRef(snapshot)
	ec.segment.addRef(ref)
	span.addRef(ref)
	return nil
}

// inject fills carrier from the active exit span.
func (ec *ExecutionContext) inject(carrier *ContextCarrier) error {
	ec.mu.Lock()
	defer ec.mu.Unlock()

	span, ok := ec.activeRecording()
	if !ok || span.kind != SpanKindExit {
		return fmt.Errorf("%w: inject requires an active exit span", ErrContextState)
	}

	*carrier = ContextCarrier{
		Sampled:             ec.segment.sampled,
		TraceID:             ec.segment.traceID,
		ParentSegmentID:     ec.segment.id,
		ParentSpanID:        span.id,
		ParentService:       ec.segment.service,
		ParentInstance:      ec.segment.instance,
		ParentEndpoint:      ec.segment.endpoint(),
		AddressUsedAtClient: span.Peer(),
	}
	return nil
}

// extract links the active entry span and the segment to the upstream carrier.
func (ec *ExecutionContext) extract(carrier ContextCarrier) {
	ec.mu.Lock()
	defer ec.mu.Unlock()

	ref := carrier.ref()
	ec.segment.addRef(ref)
	if span, ok := ec.activeRecording(); ok {
		span.addRef(ref)
	}
}
