// Package observability sets up OpenTelemetry tracing and metrics. Renderer
// calls and HTTP requests are instrumented through the global providers it
// installs; when disabled the globals stay no-op.
package observability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.32.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/gaborage/go-tiledmap/config"
	"github.com/gaborage/go-tiledmap/logger"
)

const (
	// EndpointStdout prints telemetry instead of exporting it.
	EndpointStdout = "stdout"
	// ProtocolHTTP is OTLP over HTTP/protobuf.
	ProtocolHTTP = "http"
	// ProtocolGRPC is OTLP over gRPC.
	ProtocolGRPC = "grpc"
)

// ErrInvalidProtocol is returned for protocols other than http and grpc.
var ErrInvalidProtocol = errors.New("observability: protocol must be either 'http' or 'grpc'")

// Provider owns the SDK providers created for one process.
type Provider struct {
	cfg    config.ObservabilityConfig
	out    io.Writer
	tp     *sdktrace.TracerProvider
	mp     *sdkmetric.MeterProvider
	logger logger.Logger
}

// Option customizes NewProvider.
type Option func(*Provider)

// WithOutput redirects stdout exporters.
func WithOutput(w io.Writer) Option {
	return func(p *Provider) { p.out = w }
}

// NewProvider creates the tracer and meter providers described by cfg and
// installs them as the OpenTelemetry globals. A disabled config yields a
// provider whose accessors return no-op implementations.
func NewProvider(ctx context.Context, cfg config.ObservabilityConfig, log logger.Logger, opts ...Option) (*Provider, error) {
	p := &Provider{cfg: cfg, out: os.Stdout, logger: logger.Component(log, "observability")}
	for _, opt := range opts {
		opt(p)
	}
	if !cfg.Enabled {
		return p, nil
	}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		semconv.ServiceName(cfg.ServiceName),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	if cfg.Trace.Enabled {
		exp, err := p.traceExporter(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create trace exporter: %w", err)
		}
		p.tp = sdktrace.NewTracerProvider(
			sdktrace.WithResource(res),
			sdktrace.WithBatcher(exp),
			sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.Trace.SampleRate))),
		)
		otel.SetTracerProvider(p.tp)
	}

	if cfg.Metrics.Enabled {
		exp, err := p.metricExporter(ctx)
		if err != nil {
			_ = p.Shutdown(ctx)
			return nil, fmt.Errorf("failed to create metric exporter: %w", err)
		}
		var readerOpts []sdkmetric.PeriodicReaderOption
		if cfg.Metrics.Interval > 0 {
			readerOpts = append(readerOpts, sdkmetric.WithInterval(cfg.Metrics.Interval))
		}
		p.mp = sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp, readerOpts...)),
		)
		otel.SetMeterProvider(p.mp)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	p.logger.Info().
		Str("service", cfg.ServiceName).
		Bool("traces", p.tp != nil).
		Str("trace_endpoint", cfg.Trace.Endpoint).
		Bool("metrics", p.mp != nil).
		Str("metrics_endpoint", cfg.Metrics.Endpoint).
		Msg("Telemetry enabled")
	return p, nil
}

// TracerProvider returns the SDK provider, or a no-op one when tracing is off.
func (p *Provider) TracerProvider() trace.TracerProvider {
	if p.tp == nil {
		return tracenoop.NewTracerProvider()
	}
	return p.tp
}

// MeterProvider returns the SDK provider, or a no-op one when metrics are off.
func (p *Provider) MeterProvider() metric.MeterProvider {
	if p.mp == nil {
		return metricnoop.NewMeterProvider()
	}
	return p.mp
}

// Shutdown flushes pending telemetry and stops the exporters.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	if p.tp != nil {
		if err := p.tp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown trace provider: %w", err))
		}
	}
	if p.mp != nil {
		if err := p.mp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown meter provider: %w", err))
		}
	}
	return errors.Join(errs...)
}
