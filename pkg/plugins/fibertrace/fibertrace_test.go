package fibertrace

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JailtonJunior94/tracekit/pkg/reporter"
	"github.com/JailtonJunior94/tracekit/pkg/tracing"
)

func newApp(t *testing.T, config ...Config) (*fiber.App, *tracing.Manager, *reporter.Memory) {
	t.Helper()

	memory := reporter.NewMemory()
	manager, err := tracing.NewManager(tracing.DefaultConfig("catalog"), tracing.WithListener(memory))
	require.NoError(t, err)

	app := fiber.New()
	app.Use(New(manager, config...))
	return app, manager, memory
}

func TestMiddleware_RouteNaming(t *testing.T) {
	app, manager, memory := newApp(t)
	app.Get("/products/:id", func(c *fiber.Ctx) error {
		assert.NotEmpty(t, manager.TraceID(c.UserContext()))
		return c.SendString(c.Params("id"))
	})

	carrier := tracing.ContextCarrier{
		Sampled:         true,
		TraceID:         "trace-1",
		ParentSegmentID: "seg-1",
		ParentSpanID:    0,
		ParentService:   "web",
		ParentInstance:  "web-1",
	}
	req := httptest.NewRequest(fiber.MethodGet, "/products/7", nil)
	req.Header.Set(tracing.HeaderName, carrier.Encode())

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	segments := memory.Segments()
	require.Len(t, segments, 1)
	assert.Equal(t, "trace-1", segments[0].TraceID)

	span := segments[0].Spans[0]
	assert.Equal(t, "GET /products/:id", span.OperationName)
	assert.Equal(t, tracing.ComponentFiber, span.Component)
	route, _ := span.TagValue(tracing.TagHTTPRoute)
	assert.Equal(t, "/products/:id", route)
	status, _ := span.TagValue(tracing.TagHTTPStatusCode)
	assert.Equal(t, "200", status)
	assert.False(t, span.IsError)
	require.Len(t, span.Refs, 1)
	assert.Equal(t, "seg-1", span.Refs[0].ParentSegmentID)
}

func TestMiddleware_HandlerError(t *testing.T) {
	app, manager, memory := newApp(t)
	app.Get("/missing", func(*fiber.Ctx) error {
		return fiber.NewError(fiber.StatusNotFound, "no such product")
	})
	app.Get("/broken", func(*fiber.Ctx) error {
		return errors.New("database down")
	})

	_, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/missing", nil))
	require.NoError(t, err)
	_, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/broken", nil))
	require.NoError(t, err)

	segments := memory.Segments()
	require.Len(t, segments, 2)

	missing := segments[0].Spans[0]
	status, _ := missing.TagValue(tracing.TagHTTPStatusCode)
	assert.Equal(t, "404", status)
	assert.True(t, missing.IsError)

	broken := segments[1].Spans[0]
	status, _ = broken.TagValue(tracing.TagHTTPStatusCode)
	assert.Equal(t, "500", status)
	require.Len(t, broken.Logs, 1)
	assert.Equal(t, "database down", broken.Logs[0].Message)
	assert.Zero(t, manager.ActiveContexts())
}

func TestMiddleware_Skip(t *testing.T) {
	app, _, memory := newApp(t, Config{Next: func(c *fiber.Ctx) bool { return c.Path() == "/health" }})
	app.Get("/health", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })

	_, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Zero(t, memory.Len())
}
