package reactive

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/JailtonJunior94/tracekit/pkg/observability"
	"github.com/JailtonJunior94/tracekit/pkg/observability/fake"
	"github.com/JailtonJunior94/tracekit/pkg/reporter"
	"github.com/JailtonJunior94/tracekit/pkg/tracing"
)

type ReactiveSuite struct {
	suite.Suite

	ctx      context.Context
	memory   *reporter.Memory
	manager  *tracing.Manager
	upstream *httptest.Server
	header   chan string
}

func TestReactiveSuite(t *testing.T) {
	suite.Run(t, new(ReactiveSuite))
}

func (s *ReactiveSuite) SetupTest() {
	s.ctx = context.Background()
	s.memory = reporter.NewMemory()

	manager, err := tracing.NewManager(tracing.DefaultConfig("gateway"), tracing.WithListener(s.memory))
	s.Require().NoError(err)
	s.manager = manager

	s.header = make(chan string, 4)
	s.upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.header <- r.Header.Get(tracing.HeaderName)
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
}

func (s *ReactiveSuite) TearDownTest() {
	s.upstream.Close()
}

func (s *ReactiveSuite) waitSegments(n int) []tracing.TraceSegment {
	ctx, cancel := context.WithTimeout(s.ctx, 2*time.Second)
	defer cancel()
	s.Require().NoError(s.memory.WaitFor(ctx, n))
	return s.memory.Segments()
}

func (s *ReactiveSuite) proxy(client *Client, path string) Handler {
	return func(ex *Exchange) Mono[struct{}] {
		req, err := http.NewRequest(http.MethodGet, s.upstream.URL+path, nil)
		s.Require().NoError(err)
		return Map(client.Exchange(req), func(_ context.Context, resp *http.Response) (struct{}, error) {
			defer resp.Body.Close()
			ex.SetStatus(resp.StatusCode)
			return struct{}{}, nil
		})
	}
}

func (s *ReactiveSuite) TestHandlerAndClientAcrossGoroutines() {
	client := NewClient(s.manager, s.upstream.Client())
	handler := TraceHandler(s.manager, s.proxy(client, "/orders"))

	req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	ex := NewExchange(req)
	errs := make(chan error, 1)
	<-handler(ex).Subscribe(s.ctx, nil, func(err error) { errs <- err })
	s.Empty(errs)

	sw8 := <-s.header
	s.NotEmpty(sw8)

	segments := s.waitSegments(2)
	s.Require().Len(segments, 2)

	byKind := map[tracing.SpanKind]tracing.TraceSegment{}
	for _, seg := range segments {
		s.Require().NotEmpty(seg.Spans)
		byKind[seg.Spans[0].Kind] = seg
	}
	server, clientSeg := byKind[tracing.SpanKindEntry], byKind[tracing.SpanKindExit]

	s.Equal(server.TraceID, clientSeg.TraceID)

	entry, ok := server.EntrySpan()
	s.Require().True(ok)
	s.Equal("/api/orders", entry.OperationName)
	s.Equal(tracing.ComponentReactiveServer, entry.Component)
	s.True(entry.Async)
	s.False(entry.IsError)
	status, _ := entry.TagValue(tracing.TagHTTPStatusCode)
	s.Equal("200", status)

	exit := clientSeg.Spans[0]
	s.Equal("/orders", exit.OperationName)
	s.Equal(tracing.ComponentReactiveClient, exit.Component)
	s.Equal(s.upstream.Listener.Addr().String(), exit.Peer)
	s.True(exit.Async)

	s.Require().Len(clientSeg.Refs, 1)
	ref := clientSeg.Refs[0]
	s.Equal(tracing.RefCrossThread, ref.Type)
	s.Equal(server.SegmentID, ref.ParentSegmentID)
	s.Equal(entry.SpanID, ref.ParentSpanID)

	carrier, err := tracing.DecodeCarrier(sw8)
	s.Require().NoError(err)
	s.Equal(clientSeg.TraceID, carrier.TraceID)
	s.Equal(clientSeg.SegmentID, carrier.ParentSegmentID)

	s.Zero(s.manager.ActiveContexts())
}

func (s *ReactiveSuite) TestUpstreamErrorStatusMarksBothSpans() {
	client := NewClient(s.manager, s.upstream.Client())
	handler := TraceHandler(s.manager, s.proxy(client, "/missing"))

	_, err := handler(NewExchange(httptest.NewRequest(http.MethodGet, "/api/missing", nil))).Block(s.ctx)
	s.Require().NoError(err)
	<-s.header

	for _, seg := range s.waitSegments(2) {
		s.True(seg.Spans[0].IsError, seg.Spans[0].OperationName)
		status, _ := seg.Spans[0].TagValue(tracing.TagHTTPStatusCode)
		s.Equal("404", status)
	}
}

func (s *ReactiveSuite) TestHandlerErrorIsLogged() {
	boom := errors.New("handler failed")
	handler := TraceHandler(s.manager, func(*Exchange) Mono[struct{}] {
		return Error[struct{}](boom)
	})

	_, err := handler(NewExchange(httptest.NewRequest(http.MethodPost, "/api/fail", nil))).Block(s.ctx)
	s.ErrorIs(err, boom)

	segments := s.waitSegments(1)
	entry, ok := segments[0].EntrySpan()
	s.Require().True(ok)
	s.True(entry.IsError)
	s.Require().NotEmpty(entry.Logs)
	s.Equal(tracing.LogKindError, entry.Logs[0].Kind)
}

func (s *ReactiveSuite) TestClientWithoutSnapshotSendsNoHeader() {
	client := NewClient(s.manager, s.upstream.Client())
	req, err := http.NewRequest(http.MethodGet, s.upstream.URL+"/orders", nil)
	s.Require().NoError(err)

	resp, err := client.Exchange(req).Block(s.ctx)
	s.Require().NoError(err)
	resp.Body.Close()

	s.Empty(<-s.header)
	s.Zero(s.memory.Len())
}

func (s *ReactiveSuite) TestFanOut() {
	ctx, span := s.manager.CreateEntrySpan(s.ctx, "/checkout", nil)
	s.Require().True(span.IsRecording())

	var ran atomic.Int32
	task := func(ctx context.Context) error {
		ran.Add(1)
		s.NotEmpty(s.manager.TraceID(ctx))
		return nil
	}
	err := FanOut(ctx, s.manager,
		Task{Name: "reserve-stock", Run: task},
		Task{Name: "charge-card", Run: task},
		Task{Name: "notify", Run: task},
	)
	s.Require().NoError(err)
	s.manager.StopSpan(ctx)

	s.EqualValues(3, ran.Load())

	segments := s.waitSegments(4)
	var parent tracing.TraceSegment
	children := map[string]tracing.TraceSegment{}
	for _, seg := range segments {
		if seg.Spans[0].Kind == tracing.SpanKindEntry {
			parent = seg
			continue
		}
		children[seg.Spans[0].OperationName] = seg
	}
	s.Len(children, 3)
	for name, child := range children {
		s.Equal(parent.TraceID, child.TraceID, name)
		s.Require().Len(child.Refs, 1, name)
		s.Equal(tracing.RefCrossThread, child.Refs[0].Type)
		s.Equal(parent.SegmentID, child.Refs[0].ParentSegmentID)
	}
}

func (s *ReactiveSuite) TestFanOutReturnsFirstError() {
	boom := errors.New("charge declined")
	ctx, _ := s.manager.CreateLocalSpan(s.ctx, "checkout")

	err := FanOut(ctx, s.manager,
		Task{Name: "ok", Run: func(context.Context) error { return nil }},
		Task{Name: "charge", Run: func(context.Context) error { return boom }},
	)
	s.manager.StopSpan(ctx)
	s.ErrorIs(err, boom)

	for _, seg := range s.waitSegments(3) {
		if seg.Spans[0].OperationName == "charge" {
			s.True(seg.Spans[0].IsError)
		}
	}
}

func (s *ReactiveSuite) TestRun() {
	boom := errors.New("migration failed")
	err := Run(s.ctx, s.manager, "migrate", func(ctx context.Context) error {
		s.NotEmpty(s.manager.TraceID(ctx))
		return boom
	})
	s.ErrorIs(err, boom)

	segments := s.waitSegments(1)
	span := segments[0].Spans[0]
	s.Equal("migrate", span.OperationName)
	s.Equal(tracing.SpanKindLocal, span.Kind)
	s.Equal(tracing.ComponentRunner, span.Component)
	s.True(span.IsError)
}

type panicDoer struct{}

func (panicDoer) Do(*http.Request) (*http.Response, error) { panic("transport bug") }

func (s *ReactiveSuite) TestFanOutWithoutActiveSpanKeepsTasksApart() {
	ctx, _ := s.manager.CreateEntrySpan(s.ctx, "/checkout", nil)
	s.manager.StopSpan(ctx)

	const tasks = 3
	var arrived sync.WaitGroup
	arrived.Add(tasks)
	task := func(ctx context.Context) error {
		arrived.Done()
		arrived.Wait()
		return nil
	}
	err := FanOut(ctx, s.manager,
		Task{Name: "a", Run: task},
		Task{Name: "b", Run: task},
		Task{Name: "c", Run: task},
	)
	s.Require().NoError(err)

	segments := s.waitSegments(1 + tasks)
	s.Len(segments, 1+tasks)
	for _, seg := range segments {
		s.Require().Len(seg.Spans, 1, seg.SegmentID)
		s.EqualValues(-1, seg.Spans[0].ParentSpanID)
	}
	s.Zero(s.manager.ActiveContexts())
}

func (s *ReactiveSuite) TestHandlerAssemblyPanicFinishesSpan() {
	handler := TraceHandler(s.manager, func(*Exchange) Mono[struct{}] { panic("route bug") })

	s.PanicsWithValue("route bug", func() {
		_, _ = handler(NewExchange(httptest.NewRequest(http.MethodGet, "/api/broken", nil))).Block(s.ctx)
	})

	segments := s.waitSegments(1)
	entry, ok := segments[0].EntrySpan()
	s.Require().True(ok)
	s.True(entry.IsError)
	s.Zero(s.manager.ActiveContexts())
}

func (s *ReactiveSuite) TestClientPanicFinishesBothSpans() {
	client := NewClient(s.manager, panicDoer{})
	handler := TraceHandler(s.manager, s.proxy(client, "/orders"))

	s.PanicsWithValue("transport bug", func() {
		_, _ = handler(NewExchange(httptest.NewRequest(http.MethodGet, "/api/orders", nil))).Block(s.ctx)
	})

	segments := s.waitSegments(2)
	s.Require().Len(segments, 2)
	for _, seg := range segments {
		s.True(seg.Spans[0].IsError, seg.Spans[0].OperationName)
	}
	s.Zero(s.manager.ActiveContexts())
}

func (s *ReactiveSuite) TestRunPanicStopsSpan() {
	s.PanicsWithValue("runner bug", func() {
		_ = Run(s.ctx, s.manager, "warm-cache", func(context.Context) error { panic("runner bug") })
	})

	segments := s.waitSegments(1)
	s.True(segments[0].Spans[0].IsError)
	s.Zero(s.manager.ActiveContexts())
}

func TestClientWithoutSnapshotReportsOneViolation(t *testing.T) {
	logger := fake.NewFakeLogger()
	metrics := fake.NewFakeMetrics()
	manager, err := tracing.NewManager(tracing.DefaultConfig("gateway"),
		tracing.WithLogger(logger), tracing.WithMetrics(metrics))
	require.NoError(t, err)

	header := make(chan string, 1)
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header <- r.Header.Get(tracing.HeaderName)
	}))
	defer upstream.Close()

	req, err := http.NewRequest(http.MethodGet, upstream.URL+"/orders", nil)
	require.NoError(t, err)
	resp, err := NewClient(manager, upstream.Client()).Exchange(req).Block(context.Background())
	require.NoError(t, err)
	resp.Body.Close()

	assert.Empty(t, <-header)
	assert.Len(t, logger.EntriesAt(observability.LogLevelWarn), 1)
	assert.EqualValues(t, 1, metrics.GetCounter("tracing.contract.violations").Total())
}

func TestSnapshotFrom(t *testing.T) {
	_, ok := SnapshotFrom(context.Background())
	assert.False(t, ok)

	_, ok = SnapshotFrom(WithSnapshot(context.Background(), tracing.ContextSnapshot{}))
	assert.False(t, ok, "zero snapshot is not valid")

	manager, err := tracing.NewManager(tracing.DefaultConfig("svc"))
	require.NoError(t, err)
	ctx, _ := manager.CreateLocalSpan(context.Background(), "op")
	snapshot := manager.Capture(ctx)
	manager.StopSpan(ctx)

	got, ok := SnapshotFrom(WithSnapshot(context.Background(), snapshot))
	assert.True(t, ok)
	assert.Equal(t, snapshot.TraceID(), got.TraceID())
}
