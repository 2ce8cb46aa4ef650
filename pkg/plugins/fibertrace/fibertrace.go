// Package fibertrace traces Fiber applications.
package fibertrace

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel/propagation"

	"github.com/JailtonJunior94/tracekit/pkg/tracing"
)

// headerCarrier reads request headers and writes response headers of a Fiber context.
type headerCarrier struct {
	c *fiber.Ctx
}

var _ propagation.TextMapCarrier = headerCarrier{}

func (h headerCarrier) Get(key string) string { return h.c.Get(key) }
func (h headerCarrier) Set(key, value string) { h.c.Set(key, value) }

func (h headerCarrier) Keys() []string {
	headers := h.c.GetReqHeaders()
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	return keys
}

// Config configures the middleware.
type Config struct {
	// Next skips tracing when it returns true.
	Next func(c *fiber.Ctx) bool

	// OperationName names the entry span. Defaults to "METHOD <route path>".
	OperationName func(c *fiber.Ctx) string
}

// New returns a middleware that opens an entry span per request. The span ctx is set as the
// request's user context, so handlers reach it through c.UserContext().
func New(manager *tracing.Manager, config ...Config) fiber.Handler {
	var cfg Config
	if len(config) > 0 {
		cfg = config[0]
	}

	return func(c *fiber.Ctx) (err error) {
		if cfg.Next != nil && cfg.Next(c) {
			return c.Next()
		}

		carrier := manager.Extract(headerCarrier{c: c})
		ctx, span := manager.CreateEntrySpan(c.UserContext(), c.Method()+" "+c.Path(), carrier)
		span.SetComponent(tracing.ComponentFiber).
			SetLayer(tracing.LayerHTTP).
			Tag(tracing.TagURL, c.OriginalURL()).
			Tag(tracing.TagHTTPMethod, c.Method())

		c.SetUserContext(ctx)

		defer func() {
			if p := recover(); p != nil {
				manager.StopSpanWithError(ctx, fmt.Errorf("panic: %v", p))
				panic(p)
			}

			if cfg.OperationName != nil {
				span.SetOperationName(cfg.OperationName(c))
			} else if route := c.Route(); route != nil && route.Path != "" {
				span.SetOperationName(c.Method() + " " + route.Path).Tag(tracing.TagHTTPRoute, route.Path)
			}

			status := c.Response().StatusCode()
			if err != nil {
				span.LogError(err)
				status = statusFromError(err)
			}
			span.Tag(tracing.TagHTTPStatusCode, strconv.Itoa(status))
			if status >= fiber.StatusBadRequest {
				span.ErrorOccurred()
			}
			manager.StopSpan(ctx)
		}()

		return c.Next()
	}
}

// statusFromError mirrors what Fiber's default error handler will write for err.
func statusFromError(err error) int {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return fiber.StatusInternalServerError
}
