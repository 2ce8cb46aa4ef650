package reactive

import (
	"context"
	"net/http"
	"strconv"
	"sync/atomic"

	"go.opentelemetry.io/otel/propagation"

	"github.com/JailtonJunior94/tracekit/pkg/tracing"
)

// Exchange is one request handled by a reactive Handler.
type Exchange struct {
	Request *http.Request
	status  atomic.Int32
}

// NewExchange returns an Exchange for req with status 200.
func NewExchange(req *http.Request) *Exchange {
	ex := &Exchange{Request: req}
	ex.status.Store(http.StatusOK)
	return ex
}

// SetStatus records the response status.
func (e *Exchange) SetStatus(code int) { e.status.Store(int32(code)) }

// Status returns the response status.
func (e *Exchange) Status() int { return int(e.status.Load()) }

// Handler builds the pipeline that serves an exchange.
type Handler func(ex *Exchange) Mono[struct{}]

// TraceHandler wraps next with an entry span.
//
// The span is opened and stopped when the pipeline is subscribed, but finishes only after the
// pipeline terminates, wherever that happens. Stages of next find the span's snapshot with
// SnapshotFrom.
func TraceHandler(manager *tracing.Manager, next Handler) Handler {
	return func(ex *Exchange) Mono[struct{}] {
		return Defer(func(ctx context.Context) Mono[struct{}] {
			req := ex.Request
			carrier := manager.Extract(propagation.HeaderCarrier(req.Header))

			spanCtx, span := manager.CreateEntrySpan(ctx, req.URL.Path, carrier)
			span.SetComponent(tracing.ComponentReactiveServer).
				SetLayer(tracing.LayerHTTP).
				Tag(tracing.TagURL, req.URL.String()).
				Tag(tracing.TagHTTPMethod, req.Method)

			snapshot := manager.Capture(spanCtx)
			handle := span.PrepareForAsync()
			manager.StopSpan(spanCtx)

			finish := func(err error) {
				status := ex.Status()
				span.Tag(tracing.TagHTTPStatusCode, strconv.Itoa(status))
				if err != nil {
					span.ErrorOccurred().LogError(err)
				} else if status >= http.StatusBadRequest {
					span.ErrorOccurred()
				}
				_ = handle.Finish()
			}

			return assemble(next, ex, finish).
				DoFinally(func(_ context.Context, err error) { finish(err) }).
				ContextWrite(func(ctx context.Context) context.Context {
					return WithSnapshot(ctx, snapshot)
				})
		})
	}
}

// assemble builds the pipeline of next. A panic while building it still finishes the span.
func assemble(next Handler, ex *Exchange, finish func(err error)) Mono[struct{}] {
	defer func() {
		if rec := recover(); rec != nil {
			finish(&PanicError{Value: rec})
			panic(rec)
		}
	}()
	return next(ex)
}
