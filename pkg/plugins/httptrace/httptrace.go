// Package httptrace traces net/http servers and clients.
//
// Middleware opens an entry span per request, linked to the caller through the sw8 header.
// Transport opens an exit span per outbound request and writes the sw8 header.
package httptrace

import (
	"fmt"
	"net"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/propagation"

	"github.com/JailtonJunior94/tracekit/pkg/tracing"
)

// OperationNameFunc names the span of a request.
type OperationNameFunc func(r *http.Request) string

type options struct {
	operationName OperationNameFunc
	component     tracing.Component
	chiRoutes     bool
}

// Option configures Middleware and Transport.
type Option func(*options)

// WithOperationName replaces the default "METHOD /path" naming.
func WithOperationName(fn OperationNameFunc) Option {
	return func(o *options) {
		if fn != nil {
			o.operationName = fn
		}
	}
}

// WithComponent overrides the component recorded on spans.
func WithComponent(component tracing.Component) Option {
	return func(o *options) {
		o.component = component
	}
}

// WithChiRoutes renames the entry span after routing to "METHOD <route pattern>" and tags
// http.route, so that /orders/42 and /orders/43 share one operation name.
func WithChiRoutes() Option {
	return func(o *options) {
		o.chiRoutes = true
		o.component = tracing.ComponentChi
	}
}

func newOptions(component tracing.Component, opts []Option) *options {
	o := &options{
		operationName: defaultOperationName,
		component:     component,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func defaultOperationName(r *http.Request) string {
	path := r.URL.Path
	if path == "" {
		path = "/"
	}
	return r.Method + " " + path
}

// Middleware traces inbound requests. Responses with status >= 400 and handler panics mark
// the span as failed; panics are re-raised after the span is stopped.
func Middleware(manager *tracing.Manager, opts ...Option) func(http.Handler) http.Handler {
	o := newOptions(tracing.ComponentHTTPServer, opts)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			carrier := manager.Extract(propagation.HeaderCarrier(r.Header))
			ctx, span := manager.CreateEntrySpan(r.Context(), o.operationName(r), carrier)
			span.SetComponent(o.component).
				SetLayer(tracing.LayerHTTP).
				Tag(tracing.TagURL, r.URL.String()).
				Tag(tracing.TagHTTPMethod, r.Method)

			rec := newStatusRecorder(w)
			defer func() {
				if p := recover(); p != nil {
					manager.StopSpanWithError(ctx, fmt.Errorf("panic: %v", p))
					panic(p)
				}

				if o.chiRoutes {
					if pattern := routePattern(r); pattern != "" {
						span.SetOperationName(r.Method + " " + pattern).Tag(tracing.TagHTTPRoute, pattern)
					}
				}
				status := rec.Status()
				span.Tag(tracing.TagHTTPStatusCode, strconv.Itoa(status))
				if status >= http.StatusBadRequest {
					span.ErrorOccurred()
				}
				manager.StopSpan(ctx)
			}()

			next.ServeHTTP(rec, r.WithContext(ctx))
		})
	}
}

func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return ""
	}
	return rctx.RoutePattern()
}

// Transport traces outbound requests made through Base.
type Transport struct {
	Base    http.RoundTripper
	manager *tracing.Manager
	options *options
}

// NewTransport wraps base, or http.DefaultTransport when base is nil.
func NewTransport(manager *tracing.Manager, base http.RoundTripper, opts ...Option) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{
		Base:    base,
		manager: manager,
		options: newOptions(tracing.ComponentHTTPClient, opts),
	}
}

// NewClient returns a copy of client whose transport is traced.
func NewClient(manager *tracing.Manager, client *http.Client, opts ...Option) *http.Client {
	if client == nil {
		client = &http.Client{}
	}
	traced := *client
	traced.Transport = NewTransport(manager, client.Transport, opts...)
	return &traced
}

// RoundTrip implements http.RoundTripper. The caller's request is never modified: the sw8
// header is written on a clone.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx, span := t.manager.CreateExitSpan(req.Context(), t.options.operationName(req), Peer(req))
	span.SetComponent(t.options.component).
		SetLayer(tracing.LayerHTTP).
		Tag(tracing.TagURL, req.URL.String()).
		Tag(tracing.TagHTTPMethod, req.Method)

	outbound := req.Clone(ctx)
	t.manager.InjectHeaders(ctx, propagation.HeaderCarrier(outbound.Header))

	resp, err := t.Base.RoundTrip(outbound)
	if err != nil {
		t.manager.StopSpanWithError(ctx, err)
		return resp, err
	}

	span.Tag(tracing.TagHTTPStatusCode, strconv.Itoa(resp.StatusCode))
	if resp.StatusCode >= http.StatusBadRequest {
		span.ErrorOccurred()
	}
	t.manager.StopSpan(ctx)
	return resp, nil
}

// Peer returns host:port of the request target, filling the scheme's default port.
func Peer(req *http.Request) string {
	host := req.URL.Hostname()
	port := req.URL.Port()
	if port == "" {
		switch req.URL.Scheme {
		case "https":
			port = "443"
		default:
			port = "80"
		}
	}
	return net.JoinHostPort(host, port)
}
