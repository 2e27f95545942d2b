package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"golang.org/x/time/rate"

	"github.com/gaborage/go-tiledmap/config"
	"github.com/gaborage/go-tiledmap/logger"
	"github.com/gaborage/go-tiledmap/trace"
)

const (
	// HeaderXResponseTime carries the handler latency.
	HeaderXResponseTime = "X-Response-Time"
	// HeaderXRendererCalls counts renderer round trips made for the request.
	HeaderXRendererCalls = "X-Renderer-Calls"

	burstMultiplier  = 2
	rateLimitCleanup = 3 * time.Minute
)

// setupMiddlewares installs the middleware chain. Order matters: the request
// ID must exist before the trace context copies it, and counters must be in
// the context before the request logger reads them.
func setupMiddlewares(e *echo.Echo, log logger.Logger, cfg *config.Config, healthPath string) {
	// Spans go to the global tracer provider, a no-op unless telemetry is enabled.
	e.Use(otelecho.Middleware(cfg.Observability.ServiceName,
		otelecho.WithSkipper(func(c echo.Context) bool {
			return c.Request().URL.Path == healthPath
		})))
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(TraceContext())
	e.Use(PerformanceStats())
	e.Use(RequestLogger(log, healthPath))
	e.Use(middleware.Recover())
	e.Use(RateLimit(cfg.Server.RateLimit))
	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		// PNG is already compressed.
		Skipper: func(c echo.Context) bool {
			return strings.HasSuffix(c.Request().URL.Path, ".png")
		},
	}))
	e.Use(Timing())
}

// TraceContext copies the request ID and any inbound traceparent into the
// request context, where the renderer client picks them up.
func TraceContext() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			ctx := req.Context()

			id := c.Response().Header().Get(echo.HeaderXRequestID)
			if id == "" {
				id = req.Header.Get(echo.HeaderXRequestID)
			}
			if id != "" {
				ctx = trace.WithTraceID(ctx, id)
			}
			if tp := req.Header.Get(trace.HeaderTraceParent); tp != "" {
				ctx = trace.WithTraceParent(ctx, tp)
			}

			c.SetRequest(req.WithContext(ctx))
			return next(c)
		}
	}
}

// PerformanceStats adds renderer and database counters to the request
// context and reports the renderer call count in a response header.
func PerformanceStats() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := logger.WithRendererCounter(c.Request().Context())
			ctx = logger.WithDBCounter(ctx)
			c.SetRequest(c.Request().WithContext(ctx))

			c.Response().Before(func() {
				c.Response().Header().Set(HeaderXRendererCalls,
					strconv.FormatInt(logger.GetRendererCounter(ctx), 10))
			})
			return next(c)
		}
	}
}

// RequestLogger logs one summary line per request, skipping the health probe.
// 4xx responses log at warn, 5xx at error.
func RequestLogger(log logger.Logger, healthPath string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().URL.Path == healthPath {
				return next(c)
			}

			start := time.Now()
			err := next(c)
			if err != nil {
				// Commit the error response so the logged status is final.
				c.Error(err)
			}
			status := c.Response().Status
			ctx := c.Request().Context()

			l := log.WithContext(ctx)
			var event logger.LogEvent
			switch {
			case status >= http.StatusInternalServerError:
				event = l.Error()
			case status >= http.StatusBadRequest:
				event = l.Warn()
			default:
				event = l.Info()
			}
			event.
				Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
				Str("method", c.Request().Method).
				Str("route", c.Path()).
				Str("path", c.Request().URL.Path).
				Int("status", status).
				Dur("latency", time.Since(start)).
				Int64("renderer_calls", logger.GetRendererCounter(ctx)).
				Dur("renderer_elapsed", time.Duration(logger.GetRendererElapsed(ctx))).
				Int64("db_calls", logger.GetDBCounter(ctx)).
				Dur("db_elapsed", time.Duration(logger.GetDBElapsed(ctx))).
				Msg("Request completed")
			return nil
		}
	}
}

// RateLimit limits each client IP to requestsPerSecond with a burst of
// twice that. Zero or less disables limiting.
func RateLimit(requestsPerSecond int) echo.MiddlewareFunc {
	if requestsPerSecond <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return next
		}
	}

	tooMany := func() error {
		return echo.NewHTTPError(http.StatusTooManyRequests, "Too many requests")
	}
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(requestsPerSecond),
			Burst:     requestsPerSecond * burstMultiplier,
			ExpiresIn: rateLimitCleanup,
		}),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(echo.Context, error) error { return tooMany() },
		DenyHandler:  func(echo.Context, string, error) error { return tooMany() },
	})
}

// Timing sets X-Response-Time just before the response is written.
func Timing() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			c.Response().Before(func() {
				c.Response().Header().Set(HeaderXResponseTime, time.Since(start).String())
			})
			return next(c)
		}
	}
}
