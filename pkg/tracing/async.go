package tracing

import "sync/atomic"

// AsyncHandle finishes a span prepared with PrepareForAsync. It keeps the span's
// ExecutionContext alive after the flow itself has ended, and is safe to pass to
// another goroutine.
type AsyncHandle struct {
	span     *tracingSpan
	consumed atomic.Bool
}

// Finish stamps the span's end time and, when it was the last outstanding work, completes
// the segment. A second call reports ErrAsyncLifecycle (and panics in strict mode).
// Handles of inert spans do nothing.
func (h *AsyncHandle) Finish() error {
	if h == nil || h.span == nil {
		return nil
	}
	if !h.consumed.CompareAndSwap(false, true) {
		return h.span.ec.manager.asyncViolation("async span finished more than once", h.span.OperationName())
	}
	h.span.ec.asyncFinish(h.span)
	return nil
}

// Span returns the span this handle finishes.
func (h *AsyncHandle) Span() Span {
	if h == nil || h.span == nil {
		return noopSpan{}
	}
	return h.span
}
