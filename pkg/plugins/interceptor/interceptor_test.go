package interceptor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JailtonJunior94/tracekit/pkg/reporter"
	"github.com/JailtonJunior94/tracekit/pkg/tracing"
)

type ctxKey struct{}

type recorder struct {
	name  string
	calls *[]string
}

func (r recorder) Before(ctx context.Context, _ *Invocation) context.Context {
	*r.calls = append(*r.calls, r.name+".before")
	return context.WithValue(ctx, ctxKey{}, r.name)
}

func (r recorder) OnError(_ context.Context, _ *Invocation, err error) {
	*r.calls = append(*r.calls, r.name+".error")
}

func (r recorder) After(_ context.Context, _ *Invocation) {
	*r.calls = append(*r.calls, r.name+".after")
}

func TestInvoke_Success(t *testing.T) {
	var calls []string
	inv := &Invocation{Method: "Greeter.Hello"}

	got, err := Invoke(context.Background(), recorder{name: "a", calls: &calls}, inv, func(ctx context.Context) (string, error) {
		assert.Equal(t, "a", ctx.Value(ctxKey{}))
		return "hello", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "hello", got)
	assert.Equal(t, "hello", inv.Result)
	assert.Equal(t, []string{"a.before", "a.after"}, calls)
}

func TestInvoke_ErrorAndChainOrder(t *testing.T) {
	var calls []string
	boom := errors.New("boom")
	i := Chain(recorder{name: "a", calls: &calls}, recorder{name: "b", calls: &calls})

	_, err := Invoke(context.Background(), i, nil, func(context.Context) (int, error) {
		return 0, boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"a.before", "b.before", "b.error", "a.error", "b.after", "a.after"}, calls)
}

func TestInvoke_Panic(t *testing.T) {
	var calls []string
	inv := &Invocation{Method: "Job.Run"}

	assert.PanicsWithValue(t, "kaboom", func() {
		_, _ = Invoke(context.Background(), recorder{name: "a", calls: &calls}, inv, func(context.Context) (int, error) {
			panic("kaboom")
		})
	})

	assert.True(t, inv.Panicked)
	var pe *PanicError
	require.ErrorAs(t, inv.Err, &pe)
	assert.Equal(t, "kaboom", pe.Value)
	assert.Equal(t, []string{"a.before", "a.error", "a.after"}, calls)
}

func TestLocalSpan(t *testing.T) {
	memory := reporter.NewMemory()
	manager, err := tracing.NewManager(tracing.DefaultConfig("jobs"), tracing.WithListener(memory))
	require.NoError(t, err)

	i := &LocalSpan{Manager: manager, Component: tracing.ComponentRunner}
	_, err = Invoke(context.Background(), i, &Invocation{Method: "Nightly.Run"}, func(ctx context.Context) (struct{}, error) {
		assert.Equal(t, "Nightly.Run", manager.ActiveSpan(ctx).OperationName())
		return struct{}{}, errors.New("disk full")
	})
	require.Error(t, err)

	segments := memory.Segments()
	require.Len(t, segments, 1)
	require.Len(t, segments[0].Spans, 1)
	span := segments[0].Spans[0]
	assert.Equal(t, tracing.SpanKindLocal, span.Kind)
	assert.Equal(t, tracing.ComponentRunner, span.Component)
	assert.True(t, span.IsError)
	require.Len(t, span.Logs, 1)
	assert.Equal(t, "disk full", span.Logs[0].Message)
	assert.Zero(t, manager.ActiveContexts())
}
