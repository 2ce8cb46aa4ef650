package tracing

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/propagation"

	"github.com/JailtonJunior94/tracekit/pkg/observability"
	"github.com/JailtonJunior94/tracekit/pkg/observability/noop"
)

// Manager is the facade every instrumentation point uses. It is safe for concurrent use.
type Manager struct {
	config     Config
	storage    *ContextStorage
	ids        IDGenerator
	sampler    Sampler
	now        func() time.Time
	logger     observability.Logger
	metrics    *engineMetrics
	listeners  *listenerRegistry
	propagator *Propagator

	metricsProvider  observability.Metrics
	initialListeners []SegmentListener
}

// NewManager validates config and builds a Manager.
func NewManager(config Config, opts ...Option) (*Manager, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	m := &Manager{
		config:          config,
		storage:         newContextStorage(),
		ids:             NewIDGenerator(),
		sampler:         NewRateSampler(config.SampleRate),
		now:             time.Now,
		logger:          noop.NewLogger(),
		metricsProvider: noop.NewMetrics(),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.logger = m.logger.With(observability.String("service", config.ServiceName))
	m.metrics = newEngineMetrics(m.metricsProvider)
	m.listeners = &listenerRegistry{logger: m.logger}
	m.propagator = &Propagator{manager: m}

	for _, listener := range m.initialListeners {
		if err := m.listeners.register(listener); err != nil {
			return nil, fmt.Errorf("register listener: %w", err)
		}
	}
	m.initialListeners = nil

	return m, nil
}

// Config returns the configuration the manager was built with.
func (m *Manager) Config() Config {
	return m.config
}

// Propagator returns the OpenTelemetry TextMapPropagator view of the manager.
func (m *Manager) Propagator() *Propagator {
	return m.propagator
}

// AddListener registers a listener for finished segments.
func (m *Manager) AddListener(listener SegmentListener) error {
	return m.listeners.register(listener)
}

// RemoveListener unregisters listener. Unknown listeners are ignored.
func (m *Manager) RemoveListener(listener SegmentListener) {
	m.listeners.remove(listener)
}

// ActiveContexts returns how many flows currently hold an execution context. A value that
// keeps growing means spans are created without being stopped.
func (m *Manager) ActiveContexts() int {
	return m.storage.Len()
}

// CreateEntrySpan starts the span for work received from outside the process. When the flow
// has no execution context a new segment is started. A valid, sampled carrier links it to the
// upstream span and its trace id is adopted; otherwise a new trace begins. A nil carrier falls
// back to one stored in ctx by the Propagator.
func (m *Manager) CreateEntrySpan(ctx context.Context, operationName string, carrier *ContextCarrier) (context.Context, Span) {
	if carrier == nil {
		if stored, ok := CarrierFromContext(ctx); ok {
			carrier = &stored
		}
	}
	if carrier != nil && (!carrier.Sampled || !carrier.IsValid()) {
		carrier = nil
	}

	ctx, ec := m.getOrCreate(ctx, carrier)
	span := ec.push(SpanKindEntry, operationName, "")
	if carrier != nil && span.IsRecording() {
		ec.extract(*carrier)
	}
	return ctx, span
}

// CreateLocalSpan starts an in-process span, creating the execution context if needed.
func (m *Manager) CreateLocalSpan(ctx context.Context, operationName string) (context.Context, Span) {
	ctx, ec := m.getOrCreate(ctx, nil)
	return ctx, ec.push(SpanKindLocal, operationName, "")
}

// CreateExitSpan starts the span for a call leaving the process towards peer. It needs an
// execution context or a continuation parked by Continued. Without either an inert span is
// returned and ErrContextState is logged.
func (m *Manager) CreateExitSpan(ctx context.Context, operationName, peer string) (context.Context, Span) {
	ec, ok := m.lookup(ctx)
	if !ok {
		flowID, _ := flowFromContext(ctx)
		if pendingFor(ctx, flowID) == nil {
			m.violation(ctx, fmt.Errorf("%w: exit span %q has no entry point", ErrContextState, operationName))
			return ctx, noopSpan{kind: SpanKindExit}
		}
		ctx, ec = m.getOrCreate(ctx, nil)
	}
	return ctx, ec.push(SpanKindExit, operationName, peer)
}

// ActiveSpan returns the span on top of the flow's stack, or an inert span.
func (m *Manager) ActiveSpan(ctx context.Context) Span {
	ec, ok := m.lookup(ctx)
	if !ok {
		return noopSpan{}
	}
	if span := ec.activeSpan(); span != nil {
		return span
	}
	return noopSpan{}
}

// StopSpan stops the active span of the flow. Spans prepared for async are only detached
// from the stack. When the stack empties the flow loses its execution context, and the
// segment finishes once no async span is pending.
func (m *Manager) StopSpan(ctx context.Context) {
	ec, ok := m.lookup(ctx)
	if !ok {
		m.logger.Debug(ctx, "stop span without execution context",
			observability.Error(ErrContextState))
		return
	}

	empty, finished := ec.pop()
	if empty && m.storage.remove(ec) {
		m.metrics.contextsActive.Add(ctx, -1)
	}
	if finished != nil {
		m.segmentFinished(*finished)
	}
}

// StopSpanWithError marks the active span as failed, logs err on it and stops it.
// It is the exit path for errors, panics and cancellation.
func (m *Manager) StopSpanWithError(ctx context.Context, err error) {
	if err != nil {
		m.ActiveSpan(ctx).ErrorOccurred().LogError(err)
	}
	m.StopSpan(ctx)
}

// StopSpanOnPanic stops the active span of ctx with the panic value as its error and
// re-panics. Defer it right after creating a span; without a panic it does nothing.
func (m *Manager) StopSpanOnPanic(ctx context.Context) {
	if p := recover(); p != nil {
		m.StopSpanWithError(ctx, fmt.Errorf("panic: %v", p))
		panic(p)
	}
}

// Capture takes a snapshot of the active span. The snapshot stays usable after the flow and
// its segment have finished.
func (m *Manager) Capture(ctx context.Context) ContextSnapshot {
	ec, ok := m.lookup(ctx)
	if !ok {
		m.violation(ctx, fmt.Errorf("%w: capture outside any flow", ErrContextState))
		return ContextSnapshot{}
	}

	snapshot, err := ec.capture()
	if err != nil {
		m.logger.Debug(ctx, "capture skipped", observability.Error(err))
		return ContextSnapshot{}
	}
	return snapshot
}

// Continued links the flow of ctx to a snapshot captured elsewhere.
//
// With an active span the span and its segment get a cross-thread ref. Without one the ref
// is parked on the returned ctx and applied to the next span created with it; that segment
// also adopts the snapshot's trace id. A ctx that still belongs to the flow the snapshot was
// captured from is moved to a new flow first, so the resumed work never nests in its parent's
// stack.
func (m *Manager) Continued(ctx context.Context, snapshot ContextSnapshot) context.Context {
	if !snapshot.IsValid() {
		m.logger.Debug(ctx, "ignoring invalid snapshot")
		return ctx
	}

	if ec, ok := m.lookup(ctx); ok {
		if !ec.ownsSnapshot(snapshot) {
			if err := ec.continued(snapshot); err != nil {
				m.logger.Debug(ctx, "continued skipped", observability.Error(err))
			}
			return ctx
		}
		return m.park(ctx, nil, snapshot)
	}

	flowID, _ := flowFromContext(ctx)
	if pending := pendingFor(ctx, flowID); pending != nil && !pending.bound.Load() {
		return m.park(ctx, pending.snapshots, snapshot)
	}
	return m.park(ctx, nil, snapshot)
}

func (m *Manager) park(ctx context.Context, previous []ContextSnapshot, snapshot ContextSnapshot) context.Context {
	flowID := m.storage.newFlowID()
	snapshots := make([]ContextSnapshot, 0, len(previous)+1)
	snapshots = append(snapshots, previous...)
	snapshots = append(snapshots, snapshot)
	return withContinuation(withFlow(ctx, flowID), &continuation{flowID: flowID, snapshots: snapshots})
}

// Fork moves ctx to a new, empty flow with no link to the current one.
func (m *Manager) Fork(ctx context.Context) context.Context {
	return withContinuation(withFlow(ctx, m.storage.newFlowID()), nil)
}

// Inject fills carrier from the active exit span. It reports false, leaving carrier
// untouched, when there is none.
func (m *Manager) Inject(ctx context.Context, carrier *ContextCarrier) bool {
	if carrier == nil {
		return false
	}

	ec, ok := m.lookup(ctx)
	if !ok {
		m.violation(ctx, fmt.Errorf("%w: inject outside any flow", ErrContextState))
		return false
	}
	if err := ec.inject(carrier); err != nil {
		m.violation(ctx, err)
		return false
	}
	return true
}

// InjectHeaders writes the encoded carrier of the active exit span into headers.
func (m *Manager) InjectHeaders(ctx context.Context, headers propagation.TextMapCarrier) {
	if headers == nil {
		return
	}
	var carrier ContextCarrier
	if m.Inject(ctx, &carrier) {
		headers.Set(HeaderName, carrier.Encode())
	}
}

// Extract reads the carrier from headers. Missing, malformed and unsampled carriers all
// return nil; malformed ones are logged and counted.
func (m *Manager) Extract(headers propagation.TextMapCarrier) *ContextCarrier {
	if headers == nil {
		return nil
	}
	value := headers.Get(HeaderName)
	if value == "" {
		return nil
	}

	carrier, err := DecodeCarrier(value)
	if err != nil {
		m.metrics.carrierErrors.Increment(context.Background())
		m.logger.Warn(context.Background(), "discarding inbound carrier", observability.Error(err))
		return nil
	}
	if !carrier.Sampled {
		return nil
	}
	return &carrier
}

// TraceID returns the trace id of the flow, or "" outside a flow.
func (m *Manager) TraceID(ctx context.Context) string {
	if ec, ok := m.lookup(ctx); ok {
		return ec.TraceID()
	}
	return ""
}

// SegmentID returns the segment id of the flow, or "" outside a flow.
func (m *Manager) SegmentID(ctx context.Context) string {
	if ec, ok := m.lookup(ctx); ok {
		return ec.SegmentID()
	}
	return ""
}

// LogFields returns trace_id and segment_id fields for log correlation. It matches
// observability.ContextFields.
func (m *Manager) LogFields(ctx context.Context) []observability.Field {
	ec, ok := m.lookup(ctx)
	if !ok {
		return nil
	}
	return []observability.Field{
		observability.String("trace_id", ec.TraceID()),
		observability.String("segment_id", ec.SegmentID()),
	}
}

func (m *Manager) lookup(ctx context.Context) (*ExecutionContext, bool) {
	if ctx == nil {
		return nil, false
	}
	flowID, ok := flowFromContext(ctx)
	if !ok {
		return nil, false
	}
	return m.storage.get(flowID)
}

func (m *Manager) getOrCreate(ctx context.Context, carrier *ContextCarrier) (context.Context, *ExecutionContext) {
	if ctx == nil {
		ctx = context.Background()
	}

	flowID, ok := flowFromContext(ctx)
	if ok {
		if ec, found := m.storage.get(flowID); found {
			return ctx, ec
		}
	} else {
		flowID = m.storage.newFlowID()
		ctx = withFlow(ctx, flowID)
	}

	var (
		refs    []SegmentRef
		traceID string
		sampled bool
	)
	switch pending := pendingFor(ctx, flowID); {
	case pending != nil:
		pending.bound.Store(true)
		traceID, sampled = pending.snapshots[0].traceID, pending.snapshots[0].sampled
		for _, snapshot := range pending.snapshots {
			refs = append(refs, m.crossThreadRef(snapshot))
		}
	case carrier != nil:
		traceID, sampled = carrier.TraceID, carrier.Sampled
	default:
		traceID, sampled = m.ids.NewTraceID(), m.sampler.Sample()
	}

	ec := newExecutionContext(m, flowID, traceID, sampled)
	ec.adopt(refs...)

	stored, created := m.storage.putIfAbsent(ec)
	if created {
		m.metrics.contextsActive.Add(ctx, 1)
	}
	return ctx, stored
}

func (m *Manager) crossThreadRef(snapshot ContextSnapshot) SegmentRef {
	return SegmentRef{
		Type:            RefCrossThread,
		TraceID:         snapshot.traceID,
		ParentSegmentID: snapshot.segmentID,
		ParentSpanID:    snapshot.spanID,
		ParentService:   m.config.ServiceName,
		ParentInstance:  m.config.InstanceName,
		ParentEndpoint:  snapshot.parentEndpoint,
	}
}

func (m *Manager) segmentFinished(segment TraceSegment) {
	m.metrics.segmentsFinished.Increment(context.Background())
	if !segment.Sampled {
		return
	}
	m.listeners.dispatch(segment)
}

func (m *Manager) violation(ctx context.Context, err error) {
	m.metrics.contractViolations.Increment(ctx)
	m.logger.Warn(ctx, "span lifecycle violation", observability.Error(err))
}

// asyncViolation reports ErrAsyncLifecycle, panicking in strict mode.
func (m *Manager) asyncViolation(reason, operationName string) error {
	err := fmt.Errorf("%w: %s (operation %q)", ErrAsyncLifecycle, reason, operationName)
	m.violation(context.Background(), err)
	if m.config.StrictMode {
		panic(err)
	}
	return err
}

func fieldOperation(name string) observability.Field {
	return observability.String("operation", name)
}
