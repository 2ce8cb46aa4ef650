package httptrace

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/JailtonJunior94/tracekit/pkg/reporter"
	"github.com/JailtonJunior94/tracekit/pkg/tracing"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

type HTTPTraceSuite struct {
	suite.Suite
	memory  *reporter.Memory
	manager *tracing.Manager
}

func TestHTTPTraceSuite(t *testing.T) {
	suite.Run(t, new(HTTPTraceSuite))
}

func (s *HTTPTraceSuite) SetupTest() {
	s.memory = reporter.NewMemory()
	manager, err := tracing.NewManager(tracing.DefaultConfig("orders"), tracing.WithListener(s.memory))
	s.Require().NoError(err)
	s.manager = manager
}

func (s *HTTPTraceSuite) upstreamHeader() string {
	return tracing.ContextCarrier{
		Sampled:             true,
		TraceID:             "trace-upstream",
		ParentSegmentID:     "seg-upstream",
		ParentSpanID:        1,
		ParentService:       "gateway",
		ParentInstance:      "gateway-1",
		ParentEndpoint:      "/checkout",
		AddressUsedAtClient: "orders:8080",
	}.Encode()
}

func (s *HTTPTraceSuite) onlySpan() (tracing.TraceSegment, tracing.SpanRecord) {
	segments := s.memory.Segments()
	s.Require().Len(segments, 1)
	s.Require().NotEmpty(segments[0].Spans)
	return segments[0], segments[0].Spans[0]
}

func (s *HTTPTraceSuite) TestMiddleware_LinksUpstream() {
	handler := Middleware(s.manager)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.Equal("trace-upstream", s.manager.TraceID(r.Context()))
		w.WriteHeader(http.StatusNotFound)
	}))

	req := httptest.NewRequest(http.MethodGet, "/orders/42", nil)
	req.Header.Set(tracing.HeaderName, s.upstreamHeader())
	handler.ServeHTTP(httptest.NewRecorder(), req)

	segment, span := s.onlySpan()
	s.Equal("trace-upstream", segment.TraceID)
	s.Equal(tracing.SpanKindEntry, span.Kind)
	s.Equal("GET /orders/42", span.OperationName)
	s.Equal(tracing.ComponentHTTPServer, span.Component)
	s.Equal(tracing.LayerHTTP, span.Layer)
	s.True(span.IsError)
	status, _ := span.TagValue(tracing.TagHTTPStatusCode)
	s.Equal("404", status)
	s.Require().Len(span.Refs, 1)
	s.Equal("seg-upstream", span.Refs[0].ParentSegmentID)
	s.Equal(tracing.RefCrossProcess, span.Refs[0].Type)
}

func (s *HTTPTraceSuite) TestMiddleware_ChiRoutePattern() {
	router := chi.NewRouter()
	router.Use(Middleware(s.manager, WithChiRoutes()))
	router.Get("/orders/{id}", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "ok")
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/orders/42", nil))

	_, span := s.onlySpan()
	s.Equal("GET /orders/{id}", span.OperationName)
	s.Equal(tracing.ComponentChi, span.Component)
	route, _ := span.TagValue(tracing.TagHTTPRoute)
	s.Equal("/orders/{id}", route)
	s.False(span.IsError)
}

func (s *HTTPTraceSuite) TestMiddleware_PanicStopsSpan() {
	handler := Middleware(s.manager)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("handler exploded")
	}))

	s.Panics(func() {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/orders", nil))
	})

	_, span := s.onlySpan()
	s.True(span.IsError)
	s.Require().Len(span.Logs, 1)
	s.Contains(span.Logs[0].Message, "handler exploded")
	s.Zero(s.manager.ActiveContexts())
}

func (s *HTTPTraceSuite) TestTransport_PropagatesToServer() {
	received := make(chan string, 1)
	server := httptest.NewServer(Middleware(s.manager)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received <- r.Header.Get(tracing.HeaderName)
		w.WriteHeader(http.StatusCreated)
	})))
	defer server.Close()

	client := NewClient(s.manager, server.Client())

	ctx, _ := s.manager.CreateLocalSpan(context.Background(), "checkout")
	clientTraceID := s.manager.TraceID(ctx)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, server.URL+"/orders", nil)
	s.Require().NoError(err)

	resp, err := client.Do(req)
	s.Require().NoError(err)
	_ = resp.Body.Close()
	s.manager.StopSpan(ctx)

	waitCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.Require().NoError(s.memory.WaitFor(waitCtx, 2))

	s.NotEmpty(<-received)
	s.Empty(req.Header.Get(tracing.HeaderName))

	segments := s.memory.ByTrace(clientTraceID)
	s.Require().Len(segments, 2)

	var clientSeg, serverSeg tracing.TraceSegment
	for _, seg := range segments {
		if _, ok := seg.EntrySpan(); ok {
			serverSeg = seg
		} else {
			clientSeg = seg
		}
	}

	exit, ok := clientSeg.Span(1)
	s.Require().True(ok)
	s.Equal(tracing.SpanKindExit, exit.Kind)
	u, _ := url.Parse(server.URL)
	s.Equal(u.Host, exit.Peer)
	code, _ := exit.TagValue(tracing.TagHTTPStatusCode)
	s.Equal("201", code)

	entry, _ := serverSeg.EntrySpan()
	s.Require().Len(entry.Refs, 1)
	s.Equal(clientSeg.SegmentID, entry.Refs[0].ParentSegmentID)
	s.Equal(exit.SpanID, entry.Refs[0].ParentSpanID)
	s.Equal(u.Host, entry.Refs[0].AddressUsedAtClient)
}

func (s *HTTPTraceSuite) TestTransport_Error() {
	failing := roundTripFunc(func(*http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	})
	transport := NewTransport(s.manager, failing)

	ctx, _ := s.manager.CreateLocalSpan(context.Background(), "checkout")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://inventory/items", nil)
	s.Require().NoError(err)

	_, err = transport.RoundTrip(req)
	s.Error(err)
	s.manager.StopSpan(ctx)

	segment, _ := s.onlySpan()
	exit, ok := segment.Span(1)
	s.Require().True(ok)
	s.True(exit.IsError)
	s.Equal("inventory:80", exit.Peer)
}

func TestPeer(t *testing.T) {
	cases := map[string]string{
		"http://example.com/a":      "example.com:80",
		"https://example.com/a":     "example.com:443",
		"http://example.com:8080/a": "example.com:8080",
		"http://[::1]:9000/metrics": "[::1]:9000",
	}
	for raw, want := range cases {
		req, err := http.NewRequest(http.MethodGet, raw, nil)
		require.NoError(t, err)
		assert.Equal(t, want, Peer(req), raw)
	}
}

func TestStatusRecorder(t *testing.T) {
	rec := newStatusRecorder(httptest.NewRecorder())
	assert.Equal(t, http.StatusOK, rec.Status())

	rec.WriteHeader(http.StatusTeapot)
	rec.WriteHeader(http.StatusInternalServerError)
	assert.Equal(t, http.StatusTeapot, rec.Status())
}
