package tracingfx

import (
	"context"

	"go.uber.org/fx"

	"github.com/JailtonJunior94/tracekit/pkg/observability"
	"github.com/JailtonJunior94/tracekit/pkg/tracing"
)

// Module provides the tracing manager and its propagator.
// Usage:
//
//	fx.New(
//	    tracingfx.Module,
//	    tracingfx.ConfigModule,
//	    fx.Provide(fx.Annotate(
//	        func(r *reporter.Buffered) tracing.SegmentListener { return r },
//	        fx.ResultTags(`group:"segment_listeners"`),
//	    )),
//	)
var Module = fx.Module("tracing",
	fx.Provide(ProvideManager),
	fx.Invoke(RegisterLifecycle),
)

// ManagerParams contains dependencies for creating a manager.
type ManagerParams struct {
	fx.In

	Config    tracing.Config
	Logger    observability.Logger      `optional:"true"`
	Metrics   observability.Metrics     `optional:"true"`
	Listeners []tracing.SegmentListener `group:"segment_listeners"`
}

// ManagerResult contains the manager output.
type ManagerResult struct {
	fx.Out

	Manager    *tracing.Manager
	Propagator *tracing.Propagator
}

// ProvideManager creates a manager with injected collaborators.
func ProvideManager(p ManagerParams) (ManagerResult, error) {
	opts := []tracing.Option{
		tracing.WithLogger(p.Logger),
		tracing.WithMetrics(p.Metrics),
	}
	for _, listener := range p.Listeners {
		opts = append(opts, tracing.WithListener(listener))
	}

	manager, err := tracing.NewManager(p.Config, opts...)
	if err != nil {
		return ManagerResult{}, err
	}
	return ManagerResult{Manager: manager, Propagator: manager.Propagator()}, nil
}

// LifecycleParams contains dependencies for manager lifecycle management.
type LifecycleParams struct {
	fx.In

	Manager *tracing.Manager
	Logger  observability.Logger `optional:"true"`
	LC      fx.Lifecycle
}

// RegisterLifecycle reports flows that were still open at shutdown.
func RegisterLifecycle(p LifecycleParams) {
	p.LC.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			if p.Logger == nil {
				return nil
			}
			if open := p.Manager.ActiveContexts(); open > 0 {
				p.Logger.Warn(ctx, "tracing stopped with open execution contexts",
					observability.Int("active_contexts", open))
			}
			return nil
		},
	})
}

// ProvideListener is a helper to register a segment listener.
// Usage:
//
//	fx.Provide(fx.Annotate(
//	    tracingfx.ProvideListener(memory),
//	    fx.ResultTags(`group:"segment_listeners"`),
//	))
func ProvideListener(listener tracing.SegmentListener) func() tracing.SegmentListener {
	return func() tracing.SegmentListener {
		return listener
	}
}
