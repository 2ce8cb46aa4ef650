package reactive

import (
	"context"
	"net/http"
	"strconv"

	"go.opentelemetry.io/otel/propagation"

	"github.com/JailtonJunior94/tracekit/pkg/plugins/httptrace"
	"github.com/JailtonJunior94/tracekit/pkg/tracing"
)

// Doer sends HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client issues traced requests from inside a reactive pipeline.
type Client struct {
	manager *tracing.Manager
	doer    Doer
}

// NewClient returns a Client sending through doer, or http.DefaultClient when doer is nil.
func NewClient(manager *tracing.Manager, doer Doer) *Client {
	if doer == nil {
		doer = http.DefaultClient
	}
	return &Client{manager: manager, doer: doer}
}

// Exchange returns a Mono that sends req when subscribed.
//
// The exit span continues the snapshot found in the subscriber context. Without one the span
// is inert and the request goes out without a trace header.
func (c *Client) Exchange(req *http.Request) Mono[*http.Response] {
	return FromFunc(func(ctx context.Context) (*http.Response, error) {
		spanCtx := ctx
		if snapshot, ok := SnapshotFrom(ctx); ok {
			spanCtx = c.manager.Continued(ctx, snapshot)
		}

		spanCtx, span := c.manager.CreateExitSpan(spanCtx, req.URL.Path, httptrace.Peer(req))
		span.SetComponent(tracing.ComponentReactiveClient).
			SetLayer(tracing.LayerHTTP).
			Tag(tracing.TagURL, req.URL.String()).
			Tag(tracing.TagHTTPMethod, req.Method)

		out := req.Clone(ctx)
		if span.IsRecording() {
			c.manager.InjectHeaders(spanCtx, propagation.HeaderCarrier(out.Header))
		}
		handle := span.PrepareForAsync()
		c.manager.StopSpan(spanCtx)

		defer func() {
			if rec := recover(); rec != nil {
				span.ErrorOccurred().LogError(&PanicError{Value: rec})
				_ = handle.Finish()
				panic(rec)
			}
		}()

		resp, err := c.doer.Do(out)
		if err != nil {
			span.ErrorOccurred().LogError(err)
		} else {
			span.Tag(tracing.TagHTTPStatusCode, strconv.Itoa(resp.StatusCode))
			if resp.StatusCode >= http.StatusBadRequest {
				span.ErrorOccurred()
			}
		}
		_ = handle.Finish()
		return resp, err
	})
}
