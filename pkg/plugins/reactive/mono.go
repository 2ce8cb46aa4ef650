// Package reactive traces deferred, callback based pipelines whose stages may run on
// different goroutines than the one that assembled them.
//
// Trace state travels with the subscriber context as a ContextSnapshot, the way reactive
// libraries carry values in their subscriber context.
package reactive

import (
	"context"
)

// Mono is a lazy computation that emits at most one value. Nothing runs until the Mono is
// subscribed or blocked on, and every subscription runs the whole chain again.
type Mono[T any] struct {
	source func(ctx context.Context) (T, error)
}

// FromFunc returns a Mono that calls fn on subscription.
func FromFunc[T any](fn func(ctx context.Context) (T, error)) Mono[T] {
	return Mono[T]{source: fn}
}

// Just returns a Mono that emits value.
func Just[T any](value T) Mono[T] {
	return FromFunc(func(context.Context) (T, error) { return value, nil })
}

// Error returns a Mono that fails with err.
func Error[T any](err error) Mono[T] {
	return FromFunc(func(context.Context) (T, error) {
		var zero T
		return zero, err
	})
}

// Defer builds the Mono at subscription time, with the subscriber context.
func Defer[T any](fn func(ctx context.Context) Mono[T]) Mono[T] {
	return FromFunc(func(ctx context.Context) (T, error) {
		return fn(ctx).run(ctx)
	})
}

// Map transforms the value emitted by m.
func Map[T, R any](m Mono[T], fn func(ctx context.Context, value T) (R, error)) Mono[R] {
	return FromFunc(func(ctx context.Context) (R, error) {
		value, err := m.run(ctx)
		if err != nil {
			var zero R
			return zero, err
		}
		return fn(ctx, value)
	})
}

// FlatMap chains the Mono returned by fn after m.
func FlatMap[T, R any](m Mono[T], fn func(ctx context.Context, value T) Mono[R]) Mono[R] {
	return FromFunc(func(ctx context.Context) (R, error) {
		value, err := m.run(ctx)
		if err != nil {
			var zero R
			return zero, err
		}
		return fn(ctx, value).run(ctx)
	})
}

// DoOnSuccess calls fn with the emitted value.
func (m Mono[T]) DoOnSuccess(fn func(ctx context.Context, value T)) Mono[T] {
	return FromFunc(func(ctx context.Context) (T, error) {
		value, err := m.run(ctx)
		if err == nil {
			fn(ctx, value)
		}
		return value, err
	})
}

// DoOnError calls fn when m fails.
func (m Mono[T]) DoOnError(fn func(ctx context.Context, err error)) Mono[T] {
	return FromFunc(func(ctx context.Context) (T, error) {
		value, err := m.run(ctx)
		if err != nil {
			fn(ctx, err)
		}
		return value, err
	})
}

// DoFinally calls fn once m terminated, with its error or nil. A panic in the chain also
// reaches fn, as a *PanicError, before it propagates.
func (m Mono[T]) DoFinally(fn func(ctx context.Context, err error)) Mono[T] {
	return FromFunc(func(ctx context.Context) (value T, err error) {
		defer func() {
			if rec := recover(); rec != nil {
				fn(ctx, &PanicError{Value: rec})
				panic(rec)
			}
			fn(ctx, err)
		}()
		return m.run(ctx)
	})
}

// ContextWrite rewrites the context seen by every stage upstream of this one.
func (m Mono[T]) ContextWrite(fn func(ctx context.Context) context.Context) Mono[T] {
	return FromFunc(func(ctx context.Context) (T, error) {
		return m.run(fn(ctx))
	})
}

// Block subscribes on the calling goroutine and returns the result.
func (m Mono[T]) Block(ctx context.Context) (T, error) {
	return m.run(ctx)
}

// Subscribe runs m on a new goroutine and delivers its result to exactly one of the callbacks.
// Either callback may be nil. The returned channel is closed after delivery.
func (m Mono[T]) Subscribe(ctx context.Context, onSuccess func(T), onError func(error)) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		value, err := m.run(ctx)
		switch {
		case err != nil && onError != nil:
			onError(err)
		case err == nil && onSuccess != nil:
			onSuccess(value)
		}
	}()
	return done
}

func (m Mono[T]) run(ctx context.Context) (T, error) {
	if m.source == nil {
		var zero T
		return zero, nil
	}
	return m.source(ctx)
}
