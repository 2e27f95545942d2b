package httpclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/go-tiledmap/trace"
)

func TestNewBuilderDefaults(t *testing.T) {
	c := NewBuilder(nil).Build().(*client)

	assert.Equal(t, defaultTimeout, c.config.Timeout)
	assert.Equal(t, 0, c.config.MaxRetries)
	assert.Equal(t, defaultMaxPayloadLogBytes, c.config.MaxPayloadLogBytes)
	assert.Equal(t, HeaderXRequestID, c.config.TraceIDHeader)
	assert.False(t, c.config.LogPayloads)
	assert.NotNil(t, c.logger)
}

func TestBuilderWithConfig(t *testing.T) {
	c := NewBuilder(nil).WithConfig(Config{
		Timeout:        5 * time.Second,
		MaxRetries:     3,
		DefaultHeaders: map[string]string{"Accept": "image/png"},
		TraceIDHeader:  "X-Correlation-ID",
	}).Build().(*client)

	assert.Equal(t, 5*time.Second, c.config.Timeout)
	assert.Equal(t, 3, c.config.MaxRetries)
	assert.Equal(t, defaultRetryDelay, c.config.RetryDelay)
	assert.Equal(t, "image/png", c.config.DefaultHeaders["Accept"])
	assert.Equal(t, "X-Correlation-ID", c.config.TraceIDHeader)
	assert.Equal(t, 5*time.Second, c.httpClient.Timeout)
}

func TestClientGet(t *testing.T) {
	var gotHeaders http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("png"))
	}))
	defer srv.Close()

	c := NewBuilder(&fakeLogger{}).
		WithDefaultHeader("Accept", "image/png").
		WithW3CTrace().
		Build()

	ctx := trace.WithTraceID(context.Background(), "seed-42")
	resp, err := c.Get(ctx, &Request{URL: srv.URL + "/tile.png", Headers: map[string]string{"X-Extra": "1"}})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []byte("png"), resp.Body)
	assert.Equal(t, "image/png", resp.Headers.Get("Content-Type"))
	assert.Equal(t, int64(1), resp.Stats.CallCount)

	assert.Equal(t, "seed-42", gotHeaders.Get(HeaderXRequestID))
	assert.Equal(t, "image/png", gotHeaders.Get("Accept"))
	assert.Equal(t, "1", gotHeaders.Get("X-Extra"))
	assert.Regexp(t, `^00-[0-9a-f]{32}-[0-9a-f]{16}-01$`, gotHeaders.Get(HeaderTraceParent))
}

func TestClientGeneratesRequestID(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = r.Header.Get(HeaderXRequestID)
	}))
	defer srv.Close()

	_, err := NewBuilder(nil).Build().Get(context.Background(), &Request{URL: srv.URL})
	require.NoError(t, err)
	assert.NotEmpty(t, got)
}

func TestClientDoPostsBody(t *testing.T) {
	var body []byte
	var method string
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		method = r.Method
		body, _ = io.ReadAll(r.Body)
	}))
	defer srv.Close()

	_, err := NewBuilder(nil).Build().Do(context.Background(), http.MethodPost, &Request{URL: srv.URL, Body: []byte("payload")})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, method)
	assert.Equal(t, []byte("payload"), body)
}

func TestClientRetries(t *testing.T) {
	t.Run("server errors are retried", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			_, _ = w.Write([]byte("ok"))
		}))
		defer srv.Close()

		log := &fakeLogger{}
		resp, err := NewBuilder(log).WithRetries(3, time.Millisecond).Build().Get(context.Background(), &Request{URL: srv.URL})
		require.NoError(t, err)
		assert.Equal(t, int64(3), resp.Stats.CallCount)
		assert.Equal(t, int32(3), calls.Load())
		assert.Len(t, log.eventsByLevel("warn"), 2)
	})

	t.Run("exhausted retries return the last response", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("mapnik error"))
		}))
		defer srv.Close()

		resp, err := NewBuilder(nil).WithRetries(1, time.Millisecond).Build().Get(context.Background(), &Request{URL: srv.URL})
		require.Error(t, err)
		assert.True(t, IsHTTPStatusError(err, http.StatusInternalServerError))
		require.NotNil(t, resp)
		assert.Equal(t, []byte("mapnik error"), resp.Body)
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("client errors are not retried", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadRequest)
		}))
		defer srv.Close()

		_, err := NewBuilder(nil).WithRetries(5, time.Millisecond).Build().Get(context.Background(), &Request{URL: srv.URL})
		assert.True(t, IsHTTPStatusError(err, http.StatusBadRequest))
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("transport errors are retried", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		url := srv.URL
		srv.Close()

		resp, err := NewBuilder(nil).WithRetries(2, time.Millisecond).Build().Get(context.Background(), &Request{URL: url})
		assert.Nil(t, resp)
		assert.True(t, IsErrorType(err, NetworkError))
	})
}

func TestClientValidation(t *testing.T) {
	c := NewBuilder(nil).Build()

	_, err := c.Get(context.Background(), nil)
	assert.True(t, IsErrorType(err, ValidationError))

	_, err = c.Get(context.Background(), &Request{})
	assert.True(t, IsErrorType(err, ValidationError))

	_, err = c.Get(context.Background(), &Request{URL: "http://bad host/"})
	assert.True(t, IsErrorType(err, ValidationError))
}

func TestClientInterceptors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	defer srv.Close()

	t.Run("request interceptor failure", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := NewBuilder(nil).
			WithRequestInterceptor(func(context.Context, *http.Request) error { return boom }).
			Build().Get(context.Background(), &Request{URL: srv.URL})
		assert.True(t, IsErrorType(err, InterceptorError))
		assert.ErrorIs(t, err, boom)
	})

	t.Run("response interceptor sees the response", func(t *testing.T) {
		var status int
		_, err := NewBuilder(nil).
			WithResponseInterceptor(func(_ context.Context, _ *http.Request, resp *http.Response) error {
				status = resp.StatusCode
				return nil
			}).
			Build().Get(context.Background(), &Request{URL: srv.URL})
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, status)
	})
}

func TestClientCanceledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewBuilder(nil).WithRetries(3, time.Hour).Build().Get(ctx, &Request{URL: srv.URL})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTraceIDInterceptor(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		existing string
		ctxID    string
		expected string
	}{
		{name: "sets from context", header: "", ctxID: "ctx-id", expected: "ctx-id"},
		{name: "keeps existing", header: "", existing: "given", ctxID: "ctx-id", expected: "given"},
		{name: "custom header", header: "X-Correlation-ID", ctxID: "corr", expected: "corr"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := tt.header
			if header == "" {
				header = HeaderXRequestID
			}
			req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, "http://example.com", http.NoBody)
			require.NoError(t, err)
			if tt.existing != "" {
				req.Header.Set(header, tt.existing)
			}

			require.NoError(t, NewTraceIDInterceptorFor(tt.header)(trace.WithTraceID(context.Background(), tt.ctxID), req))
			assert.Equal(t, tt.expected, req.Header.Get(header))
		})
	}

	t.Run("generates when absent", func(t *testing.T) {
		req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, "http://example.com", http.NoBody)
		require.NoError(t, err)
		require.NoError(t, NewTraceIDInterceptor()(context.Background(), req))
		assert.NotEmpty(t, req.Header.Get(HeaderXRequestID))
	})
}
