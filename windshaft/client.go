// Package windshaft fetches PNG tiles and UTFGrid tiles from a Windshaft
// renderer. Every tile request carries the SQL built by tilequery in its
// query string; the renderer runs it against the datastore database.
package windshaft

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/gaborage/go-tiledmap/config"
	"github.com/gaborage/go-tiledmap/httpclient"
	"github.com/gaborage/go-tiledmap/logger"
	"github.com/gaborage/go-tiledmap/tile"
	"github.com/gaborage/go-tiledmap/tilequery"
)

// Tile is one rendered tile.
type Tile struct {
	Coord       tile.Coord
	Format      tile.Format
	ContentType string
	Data        []byte
}

// Client talks to one renderer.
type Client struct {
	cfg     config.WindshaftConfig
	base    string
	http    httpclient.Client
	queries *tilequery.Generator
	logger  logger.Logger

	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	tracer         trace.Tracer
	rendered       metric.Int64Counter
	duration       metric.Float64Histogram
}

const instrumentationName = "github.com/gaborage/go-tiledmap/windshaft"

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client built from the renderer config.
func WithHTTPClient(hc httpclient.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTracerProvider replaces the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) { c.tracerProvider = tp }
}

// WithMeterProvider replaces the global meter provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(c *Client) { c.meterProvider = mp }
}

// WithBaseURL overrides scheme://host:port, e.g. for an httptest server.
func WithBaseURL(base string) Option {
	return func(c *Client) { c.base = strings.TrimRight(base, "/") }
}

// New creates a renderer client. Tile SQL comes from queries.
func New(cfg config.WindshaftConfig, queries *tilequery.Generator, log logger.Logger, opts ...Option) *Client {
	c := &Client{
		cfg:     cfg,
		base:    cfg.BaseURL(),
		queries: queries,
		logger:  logger.Component(log, "windshaft"),

		tracerProvider: otel.GetTracerProvider(),
		meterProvider:  otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = httpclient.NewBuilder(c.logger).
			WithTimeout(cfg.Timeout).
			WithRetries(cfg.Retries, cfg.RetryDelay).
			WithW3CTrace().
			Build()
	}
	c.instrument()
	return c
}

// instrument creates the tracer and instruments. Instrument errors only
// happen for invalid names, so they are logged and the no-op fallback kept.
func (c *Client) instrument() {
	c.tracer = c.tracerProvider.Tracer(instrumentationName)
	meter := c.meterProvider.Meter(instrumentationName)

	var err error
	if c.rendered, err = meter.Int64Counter("tiledmap.tiles.rendered",
		metric.WithDescription("Tiles requested from the renderer, by format and outcome"),
		metric.WithUnit("{tile}")); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to create tile counter")
	}
	if c.duration, err = meter.Float64Histogram("tiledmap.tile.duration",
		metric.WithDescription("Renderer round trip time including retries"),
		metric.WithUnit("ms")); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to create tile duration histogram")
	}
}

// record ends span and updates the tile metrics. outcome is ok, rejected or failed.
func (c *Client) record(ctx context.Context, span trace.Span, f tile.Format, outcome string, start time.Time, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()

	attrs := metric.WithAttributes(
		attribute.String("tile.format", string(f)),
		attribute.String("outcome", outcome),
	)
	if c.rendered != nil {
		c.rendered.Add(ctx, 1, attrs)
	}
	if c.duration != nil {
		c.duration.Record(ctx, float64(time.Since(start))/float64(time.Millisecond), attrs)
	}
}

// TileURL returns the PNG URL rendering sql for coord.
func (c *Client) TileURL(resourceID string, coord tile.Coord, sql string) string {
	q := url.Values{"sql": {sql}}
	return c.tilePath(resourceID, coord, tile.FormatPNG) + "?" + q.Encode()
}

// GridURL returns the UTFGrid URL for coord. interactivity names the columns
// the renderer encodes into the grid.
func (c *Client) GridURL(resourceID string, coord tile.Coord, sql string, interactivity []string) string {
	q := url.Values{"sql": {sql}}
	if len(interactivity) > 0 {
		q.Set("interactivity", strings.Join(interactivity, ","))
	}
	return c.tilePath(resourceID, coord, tile.FormatGrid) + "?" + q.Encode()
}

func (c *Client) tilePath(resourceID string, coord tile.Coord, f tile.Format) string {
	var b strings.Builder
	b.WriteString(c.base)
	b.WriteString("/database/")
	b.WriteString(url.PathEscape(c.cfg.Database))
	b.WriteString("/table/")
	b.WriteString(url.PathEscape(resourceID))
	b.WriteByte('/')
	b.WriteString(coord.Path(f))
	return b.String()
}

// Tile renders the PNG of style for req.Coord.
func (c *Client) Tile(ctx context.Context, style tilequery.Style, req tilequery.Request) (*Tile, error) {
	s, err := c.queries.Tile(style, req)
	if err != nil {
		return nil, err
	}
	sql, err := s.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build %s tile sql: %w", style, err)
	}
	return c.fetch(ctx, req.Coord, tile.FormatPNG, c.TileURL(req.ResourceID, req.Coord, sql))
}

// Grid renders the UTFGrid of style for req.Coord.
func (c *Client) Grid(ctx context.Context, style tilequery.Style, req tilequery.Request) (*Tile, error) {
	s, interactivity, err := c.queries.Grid(style, req)
	if err != nil {
		return nil, err
	}
	sql, err := s.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build %s grid sql: %w", style, err)
	}
	return c.fetch(ctx, req.Coord, tile.FormatGrid, c.GridURL(req.ResourceID, req.Coord, sql, interactivity))
}

func (c *Client) fetch(ctx context.Context, coord tile.Coord, f tile.Format, rawURL string) (*Tile, error) {
	start := time.Now()
	ctx, span := c.tracer.Start(ctx, "windshaft.fetch",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.Int("tile.z", coord.Z),
			attribute.Int("tile.x", coord.X),
			attribute.Int("tile.y", coord.Y),
			attribute.String("tile.format", string(f)),
		))

	resp, err := c.http.Get(ctx, &httpclient.Request{URL: rawURL})
	if resp != nil {
		logger.IncrementRendererCounter(ctx)
		logger.AddRendererElapsed(ctx, resp.Stats.ElapsedTime.Nanoseconds())
		span.SetAttributes(
			attribute.Int("http.response.status_code", resp.StatusCode),
			attribute.Int64("windshaft.attempts", resp.Stats.CallCount),
		)
	}
	if resp != nil && !httpclient.IsSuccessStatus(resp.StatusCode) {
		rerr := newRendererError(coord, f, resp.StatusCode, resp.Body)
		c.logger.Warn().
			Str("tile", coord.String()).
			Int("status", resp.StatusCode).
			Str("reason", rerr.Message).
			Msg("Renderer rejected tile")
		c.record(ctx, span, f, "rejected", start, rerr)
		return nil, rerr
	}
	if err != nil {
		err = fmt.Errorf("fetch tile %s: %w", coord, err)
		c.record(ctx, span, f, "failed", start, err)
		return nil, err
	}
	c.record(ctx, span, f, "ok", start, nil)

	c.logger.Debug().
		Str("tile", coord.String()).
		Str("format", string(f)).
		Int("bytes", len(resp.Body)).
		Int64("attempts", resp.Stats.CallCount).
		Dur("elapsed", resp.Stats.ElapsedTime).
		Msg("Tile rendered")

	return &Tile{
		Coord:       coord,
		Format:      f,
		ContentType: resp.Headers.Get("Content-Type"),
		Data:        resp.Body,
	}, nil
}

// Filename returns z_x_y.png or z_x_y.grid.json.
func (t *Tile) Filename() string {
	return strconv.Itoa(t.Coord.Z) + "_" + strconv.Itoa(t.Coord.X) + "_" + strconv.Itoa(t.Coord.Y) + "." + string(t.Format)
}
