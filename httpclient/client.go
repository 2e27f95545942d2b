package httpclient

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	nethttp "net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/gaborage/go-tiledmap/logger"
	"github.com/gaborage/go-tiledmap/trace"
)

const (
	defaultTimeout            = 30 * time.Second
	defaultRetryDelay         = time.Second
	defaultMaxPayloadLogBytes = 1024
)

type client struct {
	httpClient *nethttp.Client
	logger     logger.Logger
	config     *Config
}

// Builder assembles a Client.
type Builder struct {
	config    Config
	logger    logger.Logger
	transport nethttp.RoundTripper
}

// NewBuilder starts from a 30s timeout, no retries and X-Request-ID propagation.
func NewBuilder(log logger.Logger) *Builder {
	if log == nil {
		log = logger.NewNop()
	}
	return &Builder{
		logger: log,
		config: Config{
			Timeout:            defaultTimeout,
			RetryDelay:         defaultRetryDelay,
			MaxPayloadLogBytes: defaultMaxPayloadLogBytes,
			TraceIDHeader:      HeaderXRequestID,
			DefaultHeaders:     map[string]string{},
		},
	}
}

// WithConfig replaces the whole configuration; zero fields keep their defaults.
func (b *Builder) WithConfig(cfg Config) *Builder {
	if cfg.Timeout > 0 {
		b.config.Timeout = cfg.Timeout
	}
	if cfg.RetryDelay > 0 {
		b.config.RetryDelay = cfg.RetryDelay
	}
	if cfg.MaxPayloadLogBytes > 0 {
		b.config.MaxPayloadLogBytes = cfg.MaxPayloadLogBytes
	}
	if cfg.TraceIDHeader != "" {
		b.config.TraceIDHeader = cfg.TraceIDHeader
	}
	b.config.MaxRetries = cfg.MaxRetries
	b.config.LogPayloads = cfg.LogPayloads
	b.config.EnableW3CTrace = cfg.EnableW3CTrace
	for k, v := range cfg.DefaultHeaders {
		b.config.DefaultHeaders[k] = v
	}
	b.config.RequestInterceptors = append(b.config.RequestInterceptors, cfg.RequestInterceptors...)
	b.config.ResponseInterceptors = append(b.config.ResponseInterceptors, cfg.ResponseInterceptors...)
	return b
}

// WithTimeout sets the per-attempt timeout.
func (b *Builder) WithTimeout(timeout time.Duration) *Builder {
	b.config.Timeout = timeout
	return b
}

// WithRetries retries transport failures, 429 and 5xx responses up to maxRetries
// times, waiting delay, 2*delay, 3*delay... between attempts.
func (b *Builder) WithRetries(maxRetries int, delay time.Duration) *Builder {
	b.config.MaxRetries = maxRetries
	b.config.RetryDelay = delay
	return b
}

// WithDefaultHeader adds a header sent with every request.
func (b *Builder) WithDefaultHeader(key, value string) *Builder {
	b.config.DefaultHeaders[key] = value
	return b
}

// WithRequestInterceptor appends a request interceptor.
func (b *Builder) WithRequestInterceptor(i RequestInterceptor) *Builder {
	b.config.RequestInterceptors = append(b.config.RequestInterceptors, i)
	return b
}

// WithResponseInterceptor appends a response interceptor.
func (b *Builder) WithResponseInterceptor(i ResponseInterceptor) *Builder {
	b.config.ResponseInterceptors = append(b.config.ResponseInterceptors, i)
	return b
}

// WithPayloadLogging enables header and body previews in debug logs.
func (b *Builder) WithPayloadLogging(enabled bool, maxBytes int) *Builder {
	b.config.LogPayloads = enabled
	if maxBytes > 0 {
		b.config.MaxPayloadLogBytes = maxBytes
	}
	return b
}

// WithW3CTrace enables traceparent propagation.
func (b *Builder) WithW3CTrace() *Builder {
	b.config.EnableW3CTrace = true
	return b
}

// WithTransport overrides the HTTP transport.
func (b *Builder) WithTransport(rt nethttp.RoundTripper) *Builder {
	b.transport = rt
	return b
}

// Build creates the Client.
func (b *Builder) Build() Client {
	cfg := b.config
	return &client{
		httpClient: &nethttp.Client{Timeout: cfg.Timeout, Transport: b.transport},
		logger:     b.logger,
		config:     &cfg,
	}
}

// Get issues a GET request.
func (c *client) Get(ctx context.Context, req *Request) (*Response, error) {
	return c.Do(ctx, nethttp.MethodGet, req)
}

// Do issues a request, retrying per configuration. A non-2xx final response
// is returned together with an HTTP error so callers can inspect the body.
func (c *client) Do(ctx context.Context, method string, req *Request) (*Response, error) {
	if req == nil || req.URL == "" {
		return nil, NewValidationError("request URL is required", "url")
	}
	ctx, traceID := trace.Ensure(ctx)

	start := time.Now()
	var attempts int64
	for {
		attempts++
		resp, retryable, err := c.attempt(ctx, method, req, traceID)
		if resp != nil {
			resp.Stats = Stats{ElapsedTime: time.Since(start), CallCount: attempts}
			if err == nil && !IsSuccessStatus(resp.StatusCode) {
				err = NewHTTPError(nethttp.StatusText(resp.StatusCode), resp.StatusCode, resp.Body)
			}
			c.logResponse(resp, traceID)
		}
		if err == nil || !retryable || attempts > int64(c.config.MaxRetries) {
			return resp, err
		}

		delay := c.config.RetryDelay * time.Duration(attempts)
		c.logger.Warn().
			Err(err).
			Str("request_id", traceID).
			Int64("attempt", attempts).
			Dur("delay", delay).
			Msg("Retrying request")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return resp, NewNetworkError("request canceled while waiting to retry", ctx.Err())
		case <-timer.C:
		}
	}
}

func (c *client) attempt(ctx context.Context, method string, req *Request, traceID string) (*Response, bool, error) {
	var body io.Reader = nethttp.NoBody
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := nethttp.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, false, NewValidationError(err.Error(), "url")
	}

	for k, v := range c.config.DefaultHeaders {
		httpReq.Header.Set(k, v)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if httpReq.Header.Get(c.config.TraceIDHeader) == "" {
		httpReq.Header.Set(c.config.TraceIDHeader, traceID)
	}
	if c.config.EnableW3CTrace && httpReq.Header.Get(HeaderTraceParent) == "" {
		// An active span wins over the inbound or generated parent.
		if oteltrace.SpanContextFromContext(ctx).IsValid() {
			otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(httpReq.Header))
		}
	}
	if c.config.EnableW3CTrace && httpReq.Header.Get(HeaderTraceParent) == "" {
		tp, ok := trace.ParentFromContext(ctx)
		if !ok {
			tp = trace.GenerateTraceParent()
		}
		httpReq.Header.Set(HeaderTraceParent, tp)
	}

	for _, interceptor := range c.config.RequestInterceptors {
		if err := interceptor(ctx, httpReq); err != nil {
			return nil, false, NewInterceptorError("request interceptor failed", "request", err)
		}
	}

	c.logRequest(httpReq, req.Body, traceID)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, NewNetworkError("request canceled", ctx.Err())
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, true, NewTimeoutError(err.Error(), c.config.Timeout)
		}
		return nil, true, NewNetworkError("request failed", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, true, NewNetworkError("failed to read response body", err)
	}

	for _, interceptor := range c.config.ResponseInterceptors {
		if err := interceptor(ctx, httpReq, httpResp); err != nil {
			return nil, false, NewInterceptorError("response interceptor failed", "response", err)
		}
	}

	resp := &Response{StatusCode: httpResp.StatusCode, Body: respBody, Headers: httpResp.Header}
	retryable := httpResp.StatusCode == nethttp.StatusTooManyRequests || httpResp.StatusCode >= 500
	return resp, retryable, nil
}

func (c *client) logRequest(req *nethttp.Request, body []byte, traceID string) {
	event := c.logger.Debug().
		Str("direction", "outbound").
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Str("request_id", traceID)
	if len(req.Header) > 0 {
		event = event.Int("header_count", len(req.Header))
	}
	if len(body) > 0 {
		event = event.Int("body_size", len(body))
	}
	if c.config.LogPayloads {
		event = c.withPayload(event, req.Header, body)
	}
	event.Msg("HTTP client request")
}

func (c *client) logResponse(resp *Response, traceID string) {
	event := c.logger.Debug().
		Str("direction", "inbound").
		Int("status", resp.StatusCode).
		Dur("elapsed", resp.Stats.ElapsedTime).
		Int64("call_count", resp.Stats.CallCount).
		Str("request_id", traceID)
	if len(resp.Body) > 0 {
		event = event.Int("body_size", len(resp.Body))
	}
	if c.config.LogPayloads {
		event = c.withPayload(event, resp.Headers, resp.Body)
	}
	event.Msg("HTTP client response")
}

func (c *client) withPayload(event logger.LogEvent, headers nethttp.Header, body []byte) logger.LogEvent {
	flat := make(map[string]any, len(headers))
	for k := range headers {
		flat[k] = headers.Get(k)
	}
	event = event.Interface("headers", flat)

	limit := c.config.MaxPayloadLogBytes
	if limit <= 0 {
		limit = defaultMaxPayloadLogBytes
	}
	truncated := len(body) > limit
	if truncated {
		body = body[:limit]
	}
	return event.
		Str("body_truncated", strconv.FormatBool(truncated)).
		Str("body_preview", string(body))
}
