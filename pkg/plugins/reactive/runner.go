package reactive

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/JailtonJunior94/tracekit/pkg/plugins/interceptor"
	"github.com/JailtonJunior94/tracekit/pkg/tracing"
)

// Task is one branch of a FanOut.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// FanOut runs tasks concurrently, each in a local span of its own segment linked to the span
// active in ctx. Without an active span every task starts its own trace. It returns the first
// task error; the context of the other tasks is then cancelled.
func FanOut(ctx context.Context, manager *tracing.Manager, tasks ...Task) error {
	snapshot := manager.Capture(ctx)
	g, gctx := errgroup.WithContext(ctx)
	for _, task := range tasks {
		g.Go(func() error {
			var taskCtx context.Context
			if snapshot.IsValid() {
				taskCtx = manager.Continued(gctx, snapshot)
			} else {
				taskCtx = manager.Fork(gctx)
			}
			taskCtx, _ = manager.CreateLocalSpan(taskCtx, task.Name)
			defer manager.StopSpanOnPanic(taskCtx)

			if err := task.Run(taskCtx); err != nil {
				manager.StopSpanWithError(taskCtx, err)
				return err
			}
			manager.StopSpan(taskCtx)
			return nil
		})
	}
	return g.Wait()
}

// Run executes fn inside a local span named name, the way startup runners are traced.
func Run(ctx context.Context, manager *tracing.Manager, name string, fn func(ctx context.Context) error) error {
	runner := &interceptor.LocalSpan{Manager: manager, Component: tracing.ComponentRunner}
	_, err := interceptor.Invoke(ctx, runner, &interceptor.Invocation{Method: name}, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
