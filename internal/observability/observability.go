// Package observability wires OpenTelemetry into the gate.
//
// Setup builds one resource describing this gate process: its build identity
// and the settings that shape its decisions, such as proof difficulty and the
// storage backend. It then installs the providers configuration enables.
// Spans go to stdout or an OTLP collector. Metrics land in a private
// Prometheus registry that only MetricsServer exposes. Gate and store
// instruments created from the Provider report through that registry.
package observability

import (
	"context"
	"errors"
	"fmt"
	"os"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"linkgate/internal/models"
	"linkgate/internal/store"
	"linkgate/internal/version"
)

const (
	gateScope  = "linkgate/gate"
	storeScope = "linkgate/store"
)

// Provider owns the telemetry pipeline of one gate process.
type Provider struct {
	resource       *resource.Resource
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	registry       *promclient.Registry
}

// Setup installs the tracer and meter providers enabled by configuration and
// makes them global so otelmux spans share the pipeline. Disabled halves fall
// back to the otel no-op implementations.
func Setup(cfg *models.Config, ver version.Info) (*Provider, error) {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(append(buildAttributes(cfg.Observability, ver), gateAttributes(cfg)...)...),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	p := &Provider{resource: res}

	if cfg.Observability.Tracing.Enabled {
		tp, err := newTracerProvider(res, cfg.Observability.Tracing)
		if err != nil {
			return nil, fmt.Errorf("failed to setup tracing: %w", err)
		}
		p.tracerProvider = tp
		otel.SetTracerProvider(tp)
	}

	if cfg.Metrics.Enabled {
		p.registry = promclient.NewRegistry()
		exporter, err := otelprom.New(otelprom.WithRegisterer(p.registry))
		if err != nil {
			return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
		}
		p.meterProvider = sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(exporter),
		)
		otel.SetMeterProvider(p.meterProvider)
	}

	return p, nil
}

func buildAttributes(obs models.ObservabilityConfig, ver version.Info) []attribute.KeyValue {
	return []attribute.KeyValue{
		semconv.ServiceName(obs.ServiceName),
		semconv.ServiceVersion(ver.Version),
		semconv.ServiceInstanceID(ver.InstanceID),
		semconv.HostName(ver.Hostname),
		semconv.ProcessRuntimeVersion(ver.GoVersion),
		attribute.String("vcs.commit", ver.GitCommit),
		attribute.String("deployment.environment", environment()),
	}
}

// gateAttributes describes how this replica decides. Secrets, destinations
// and denylist contents stay out.
func gateAttributes(cfg *models.Config) []attribute.KeyValue {
	maxRequests := 0
	if cfg.RateLimit.Enabled {
		maxRequests = cfg.RateLimit.MaxRequests
	}
	return []attribute.KeyValue{
		attribute.String("gate.storage.backend", cfg.Storage.Type),
		attribute.Int("gate.proof.difficulty", cfg.Proof.Difficulty),
		attribute.Int("gate.proof.threshold", cfg.Proof.Threshold),
		attribute.Int("gate.rate_limit.max_requests", maxRequests),
		attribute.Bool("gate.session.enabled", cfg.Session.Enabled),
		attribute.Bool("gate.geoip.enabled", cfg.GeoIP.CountryDB != "" || cfg.GeoIP.ASNDB != ""),
	}
}

func newTracerProvider(res *resource.Resource, cfg models.TracingConfig) (*sdktrace.TracerProvider, error) {
	var exporter sdktrace.SpanExporter
	var err error

	switch cfg.Exporter {
	case "stdout":
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
	case "otlp":
		exporter, err = otlptracegrpc.New(context.Background(),
			otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
			otlptracegrpc.WithInsecure(),
		)
	default:
		return nil, fmt.Errorf("unsupported trace exporter: %s", cfg.Exporter)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s exporter: %w", cfg.Exporter, err)
	}

	sampler := sdktrace.TraceIDRatioBased(cfg.SampleRate)
	switch {
	case cfg.SampleRate >= 1.0:
		sampler = sdktrace.AlwaysSample()
	case cfg.SampleRate <= 0:
		sampler = sdktrace.NeverSample()
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.ParentBased(sampler)),
	), nil
}

func environment() string {
	for _, key := range []string{"LINKGATE_ENV", "ENVIRONMENT"} {
		if env := os.Getenv(key); env != "" {
			return env
		}
	}
	return "development"
}

// MetricsEnabled reports whether Setup installed a Prometheus pipeline.
func (p *Provider) MetricsEnabled() bool {
	return p != nil && p.registry != nil
}

func (p *Provider) meter(name string) metric.Meter {
	if p.meterProvider != nil {
		return p.meterProvider.Meter(name)
	}
	return otel.Meter(name)
}

func (p *Provider) tracer(name string) trace.Tracer {
	if p.tracerProvider != nil {
		return p.tracerProvider.Tracer(name)
	}
	return otel.Tracer(name)
}

// GateMetrics registers the gate decision instruments on this provider.
func (p *Provider) GateMetrics() (*GateMetrics, error) {
	return newGateMetrics(p.meter(gateScope))
}

// InstrumentStore wraps inner with spans and metrics from this provider.
func (p *Provider) InstrumentStore(inner store.Store) (*InstrumentedStore, error) {
	return newInstrumentedStore(inner, p.tracer(storeScope), p.meter(storeScope))
}

// Shutdown flushes pending spans and stops both providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	if p.tracerProvider != nil {
		if err := p.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown: %w", err))
		}
	}
	if p.meterProvider != nil {
		if err := p.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}
	return errors.Join(errs...)
}
