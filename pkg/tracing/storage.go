package tracing

import (
	"sync"
	"sync/atomic"
)

// ContextStorage maps flows of control to their ExecutionContext. Entries are created
// lazily by the first span of a flow and removed when its stack empties.
type ContextStorage struct {
	mu       sync.RWMutex
	contexts map[uint64]*ExecutionContext
	nextFlow atomic.Uint64
}

func newContextStorage() *ContextStorage {
	return &ContextStorage{
		contexts: make(map[uint64]*ExecutionContext),
	}
}

func (s *ContextStorage) newFlowID() uint64 {
	return s.nextFlow.Add(1)
}

func (s *ContextStorage) get(flowID uint64) (*ExecutionContext, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ec, ok := s.contexts[flowID]
	return ec, ok
}

// putIfAbsent stores ec unless the flow already has a context, which is returned instead.
func (s *ContextStorage) putIfAbsent(ec *ExecutionContext) (*ExecutionContext, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.contexts[ec.flowID]; ok {
		return current, false
	}
	s.contexts[ec.flowID] = ec
	return ec, true
}

// remove deletes the mapping only if it still points at ec.
func (s *ContextStorage) remove(ec *ExecutionContext) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.contexts[ec.flowID]; ok && current == ec {
		delete(s.contexts, ec.flowID)
		return true
	}
	return false
}

// Len returns the number of flows with a live ExecutionContext.
func (s *ContextStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.contexts)
}
