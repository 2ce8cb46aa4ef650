// Package interceptor drives the before/after/error hooks around an instrumented call.
//
// Adapters that cannot wrap a library with middleware describe the call as an Invocation
// and run it through Invoke. Invoke guarantees that After runs on every exit path,
// including panics, which is what keeps span stacks balanced.
package interceptor

import (
	"context"
	"fmt"

	"github.com/JailtonJunior94/tracekit/pkg/tracing"
)

// Invocation describes one intercepted call.
type Invocation struct {
	// Method names the intercepted operation, e.g. "CommandLineRunner.Run".
	Method string
	Args   []any

	// Result and Err are set by Invoke before After runs.
	Result any
	Err    error

	// Panicked is set when the call panicked. Err then holds a PanicError.
	Panicked bool
}

// MethodInterceptor is the hook set driven by Invoke.
//
// Before may return a derived ctx; that ctx is handed to the call and to the other hooks.
// OnError runs before After when the call failed or panicked.
type MethodInterceptor interface {
	Before(ctx context.Context, inv *Invocation) context.Context
	OnError(ctx context.Context, inv *Invocation, err error)
	After(ctx context.Context, inv *Invocation)
}

// PanicError wraps a value recovered from an intercepted call.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Invoke runs fn between the hooks of i. A panic in fn is reported to OnError and After and
// then re-raised.
func Invoke[T any](ctx context.Context, i MethodInterceptor, inv *Invocation, fn func(ctx context.Context) (T, error)) (result T, err error) {
	if inv == nil {
		inv = &Invocation{}
	}
	ctx = i.Before(ctx, inv)

	defer func() {
		if rec := recover(); rec != nil {
			inv.Panicked = true
			inv.Err = &PanicError{Value: rec}
			i.OnError(ctx, inv, inv.Err)
			i.After(ctx, inv)
			panic(rec)
		}
	}()

	result, err = fn(ctx)
	inv.Result, inv.Err = result, err
	if err != nil {
		i.OnError(ctx, inv, err)
	}
	i.After(ctx, inv)
	return result, err
}

// Chain composes interceptors. Before hooks run in order, OnError and After in reverse.
func Chain(interceptors ...MethodInterceptor) MethodInterceptor {
	return chain(interceptors)
}

type chain []MethodInterceptor

func (c chain) Before(ctx context.Context, inv *Invocation) context.Context {
	for _, i := range c {
		ctx = i.Before(ctx, inv)
	}
	return ctx
}

func (c chain) OnError(ctx context.Context, inv *Invocation, err error) {
	for j := len(c) - 1; j >= 0; j-- {
		c[j].OnError(ctx, inv, err)
	}
}

func (c chain) After(ctx context.Context, inv *Invocation) {
	for j := len(c) - 1; j >= 0; j-- {
		c[j].After(ctx, inv)
	}
}

// LocalSpan opens a local span named after the invocation in Before and stops it in After.
type LocalSpan struct {
	Manager   *tracing.Manager
	Component tracing.Component

	// OperationName overrides the span name. Defaults to Invocation.Method.
	OperationName func(inv *Invocation) string
}

func (l *LocalSpan) Before(ctx context.Context, inv *Invocation) context.Context {
	name := inv.Method
	if l.OperationName != nil {
		name = l.OperationName(inv)
	}
	ctx, span := l.Manager.CreateLocalSpan(ctx, name)
	if l.Component != "" {
		span.SetComponent(l.Component)
	}
	return ctx
}

func (l *LocalSpan) OnError(ctx context.Context, _ *Invocation, err error) {
	l.Manager.ActiveSpan(ctx).ErrorOccurred().LogError(err)
}

func (l *LocalSpan) After(ctx context.Context, _ *Invocation) {
	l.Manager.StopSpan(ctx)
}
