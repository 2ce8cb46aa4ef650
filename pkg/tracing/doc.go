// Package tracing is the trace-context propagation and span-lifecycle engine shared by every
// instrumentation adapter in this module.
//
// All instrumentation talks to a *Manager:
//
//	ctx, entry := manager.CreateEntrySpan(r.Context(), "/orders", manager.Extract(propagation.HeaderCarrier(r.Header)))
//	defer manager.StopSpan(ctx)
//
//	ctx, exit := manager.CreateExitSpan(ctx, "/payments", "payments:8080")
//	manager.InjectHeaders(ctx, propagation.HeaderCarrier(req.Header))
//	manager.StopSpan(ctx)
//
// The engine keeps one ExecutionContext per flow of control. Go has no goroutine identity, so a
// flow is identified by a value stored in context.Context: Create*Span installs it and every
// later call made with that ctx (or a ctx derived from it) acts on the same flow. A ctx handed
// to another goroutine must go through Continued (linking the new work to a captured
// ContextSnapshot) or Fork before spans are created on it.
//
// Spans whose work completes elsewhere call PrepareForAsync before StopSpan and finish
// through the returned AsyncHandle exactly once, from any goroutine.
//
// Nothing in this package panics or returns errors into the traced application. Contract
// violations are logged and degrade to inert spans, except for async lifecycle violations
// when Config.StrictMode is enabled.
package tracing
