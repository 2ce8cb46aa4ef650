package tracing

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/JailtonJunior94/tracekit/pkg/observability"
)

// SegmentListener receives every finished, sampled segment. OnSegmentFinished runs on the
// goroutine that finished the segment and must not block; hand the segment to a queue
// (see the reporter package) when delivery does I/O.
type SegmentListener interface {
	OnSegmentFinished(segment TraceSegment)
}

type funcListener struct {
	fn func(TraceSegment)
}

func (l *funcListener) OnSegmentFinished(segment TraceSegment) { l.fn(segment) }

// ListenerFunc adapts a function to a SegmentListener. Each call returns a distinct listener.
func ListenerFunc(fn func(TraceSegment)) SegmentListener {
	return &funcListener{fn: fn}
}

type listenerRegistry struct {
	mu        sync.RWMutex
	listeners []SegmentListener
	logger    observability.Logger
}

func (r *listenerRegistry) register(listener SegmentListener) error {
	if listener == nil {
		return ErrListenerNil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if slices.Contains(r.listeners, listener) {
		return ErrListenerAlreadyRegistered
	}
	r.listeners = append(r.listeners, listener)
	return nil
}

func (r *listenerRegistry) remove(listener SegmentListener) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.listeners = slices.DeleteFunc(slices.Clone(r.listeners), func(l SegmentListener) bool {
		return l == listener
	})
}

func (r *listenerRegistry) dispatch(segment TraceSegment) {
	r.mu.RLock()
	listeners := make([]SegmentListener, len(r.listeners))
	copy(listeners, r.listeners)
	r.mu.RUnlock()

	for _, listener := range listeners {
		r.notify(listener, segment)
	}
}

func (r *listenerRegistry) notify(listener SegmentListener, segment TraceSegment) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error(context.Background(), "segment listener panicked",
				observability.String("segment_id", segment.SegmentID),
				observability.String("panic", fmt.Sprint(rec)),
			)
		}
	}()
	listener.OnSegmentFinished(segment)
}
