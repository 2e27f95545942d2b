// Package httpclient is the outbound HTTP client used to talk to the tile renderer.
// It adds request ID propagation, bounded retries and request/response logging
// on top of net/http.
package httpclient

import (
	"context"
	nethttp "net/http"
	"time"

	"github.com/gaborage/go-tiledmap/trace"
)

const (
	// HeaderXRequestID is the header carrying the request ID.
	HeaderXRequestID = trace.HeaderXRequestID
	// HeaderTraceParent is the W3C trace context header.
	HeaderTraceParent = trace.HeaderTraceParent
)

// Client issues HTTP requests.
type Client interface {
	Get(ctx context.Context, req *Request) (*Response, error)
	Do(ctx context.Context, method string, req *Request) (*Response, error)
}

// Request is one outbound request.
type Request struct {
	URL     string
	Headers map[string]string
	Body    []byte
}

// Response is a fully read response.
type Response struct {
	StatusCode int
	Body       []byte
	Headers    nethttp.Header
	Stats      Stats
}

// Stats describes how a response was obtained.
type Stats struct {
	ElapsedTime time.Duration
	// CallCount is the number of attempts, retries included.
	CallCount int64
}

// RequestInterceptor is called before each attempt.
type RequestInterceptor func(ctx context.Context, req *nethttp.Request) error

// ResponseInterceptor is called after each attempt that produced a response.
type ResponseInterceptor func(ctx context.Context, req *nethttp.Request, resp *nethttp.Response) error

// Config holds the client configuration.
type Config struct {
	Timeout              time.Duration
	MaxRetries           int
	RetryDelay           time.Duration
	RequestInterceptors  []RequestInterceptor
	ResponseInterceptors []ResponseInterceptor
	DefaultHeaders       map[string]string
	// LogPayloads adds headers and a body preview to the debug log entries.
	LogPayloads bool
	// MaxPayloadLogBytes caps the logged body preview (default 1024).
	MaxPayloadLogBytes int
	// TraceIDHeader names the request ID header (default X-Request-ID).
	TraceIDHeader string
	// EnableW3CTrace also propagates or generates a traceparent header.
	EnableW3CTrace bool
}

// NewTraceIDInterceptor sets the request ID header from the context unless the
// request already carries one.
func NewTraceIDInterceptor() RequestInterceptor {
	return NewTraceIDInterceptorFor(HeaderXRequestID)
}

// NewTraceIDInterceptorFor is NewTraceIDInterceptor with a custom header name.
func NewTraceIDInterceptorFor(header string) RequestInterceptor {
	if header == "" {
		header = HeaderXRequestID
	}
	return func(ctx context.Context, req *nethttp.Request) error {
		if req.Header.Get(header) == "" {
			req.Header.Set(header, trace.EnsureTraceID(ctx))
		}
		return nil
	}
}
