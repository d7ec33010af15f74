// Package telemetry wires OpenTelemetry tracing and metrics for hatescan.
// When disabled every instrument is a no-op.
package telemetry

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/straja-ai/hatescan/internal/config"
	"github.com/straja-ai/hatescan/internal/logging"
	"github.com/straja-ai/hatescan/internal/redact"
)

const instrumentationName = "github.com/straja-ai/hatescan"

// Config controls telemetry setup.
type Config struct {
	Enabled  bool
	Endpoint string
	Protocol string // grpc | http
	Service  string
	Version  string
}

// FromConfig maps the file config section.
func FromConfig(c config.TelemetryConfig, version string) Config {
	return Config{
		Enabled:  c.Enabled,
		Endpoint: c.Endpoint,
		Protocol: c.Protocol,
		Service:  c.Service,
		Version:  version,
	}
}

// Provider wires tracer/meter providers and exposes helpers.
type Provider struct {
	Enabled bool
	tracer  trace.Tracer
	meter   metric.Meter

	analysesCounter        metric.Int64Counter
	translationFallbacks   metric.Int64Counter
	lexiconReloads         metric.Int64Counter
	analyzeDuration        metric.Float64Histogram
	classifierDuration     metric.Float64Histogram
	shutdownTraceProvider  func(context.Context) error
	shutdownMetricProvider func(context.Context) error
}

// Noop returns a disabled provider.
func Noop() *Provider {
	p := &Provider{
		tracer: tracenoop.NewTracerProvider().Tracer(""),
		meter:  noop.NewMeterProvider().Meter(""),
	}
	p.initInstruments()
	return p
}

// NewProvider configures OTLP exporters and providers. When disabled, returns no-op providers.
func NewProvider(ctx context.Context, cfg Config, logger *zap.Logger) (*Provider, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	logger = logging.OrNop(logger)
	if !cfg.Enabled {
		return Noop(), nil
	}

	protocol := strings.ToLower(strings.TrimSpace(cfg.Protocol))
	if protocol == "" {
		protocol = "grpc"
	}
	if protocol != "grpc" && protocol != "http" {
		return nil, fmt.Errorf("telemetry protocol %q must be grpc or http", cfg.Protocol)
	}

	logger.Info("telemetry enabled",
		zap.String("protocol", protocol),
		zap.String("endpoint", redact.String(cfg.Endpoint)),
	)

	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithAttributes(
			attribute.String("service.name", cfg.Service),
			attribute.String("service.version", cfg.Version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("build telemetry resource: %w", err)
	}

	var traceExp sdktrace.SpanExporter
	var metricExp sdkmetric.Exporter
	switch protocol {
	case "grpc":
		traceExp, err = otlptracegrpc.New(ctx, otlptracegrpc.WithEndpoint(cfg.Endpoint), otlptracegrpc.WithInsecure())
		if err != nil {
			return nil, fmt.Errorf("create otlp grpc trace exporter: %w", err)
		}
		metricExp, err = otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithEndpoint(cfg.Endpoint), otlpmetricgrpc.WithInsecure())
		if err != nil {
			return nil, fmt.Errorf("create otlp grpc metric exporter: %w", err)
		}
	case "http":
		traceExp, err = otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(cfg.Endpoint), otlptracehttp.WithInsecure())
		if err != nil {
			return nil, fmt.Errorf("create otlp http trace exporter: %w", err)
		}
		metricExp, err = otlpmetrichttp.New(ctx, otlpmetrichttp.WithEndpoint(cfg.Endpoint), otlpmetrichttp.WithInsecure())
		if err != nil {
			return nil, fmt.Errorf("create otlp http metric exporter: %w", err)
		}
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithBatcher(traceExp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp)),
	)
	otel.SetMeterProvider(mp)

	p := &Provider{
		Enabled:                true,
		tracer:                 tp.Tracer(instrumentationName),
		meter:                  mp.Meter(instrumentationName),
		shutdownTraceProvider:  tp.Shutdown,
		shutdownMetricProvider: mp.Shutdown,
	}
	p.initInstruments()
	return p, nil
}

func (p *Provider) initInstruments() {
	if p == nil {
		return
	}
	// Instrument creation errors are ignored; telemetry is best-effort.
	p.analysesCounter, _ = p.meter.Int64Counter("hatescan_analyses_total")
	p.translationFallbacks, _ = p.meter.Int64Counter("hatescan_translation_fallbacks_total")
	p.lexiconReloads, _ = p.meter.Int64Counter("hatescan_lexicon_reloads_total")
	p.analyzeDuration, _ = p.meter.Float64Histogram("hatescan_analyze_duration_ms")
	p.classifierDuration, _ = p.meter.Float64Histogram("hatescan_classifier_duration_ms")
}

// Tracer returns the tracer.
func (p *Provider) Tracer() trace.Tracer {
	if p == nil {
		return tracenoop.NewTracerProvider().Tracer("")
	}
	return p.tracer
}

// Meter returns the meter.
func (p *Provider) Meter() metric.Meter {
	if p == nil {
		return noop.NewMeterProvider().Meter("")
	}
	return p.meter
}

// Shutdown flushes providers.
func (p *Provider) Shutdown(ctx context.Context) {
	if p == nil {
		return
	}
	if p.shutdownTraceProvider != nil {
		_ = p.shutdownTraceProvider(ctx)
	}
	if p.shutdownMetricProvider != nil {
		_ = p.shutdownMetricProvider(ctx)
	}
}

// AnalysisMetrics are the per-call values recorded by RecordAnalysis.
type AnalysisMetrics struct {
	Hate         bool
	Category     string
	Language     string
	Translated   bool
	Abstained    bool
	DurationMs   float64
	ClassifierMs float64
}

// RecordAnalysis emits counters/histograms with low-cardinality labels.
func (p *Provider) RecordAnalysis(ctx context.Context, m AnalysisMetrics) {
	if p == nil {
		return
	}
	labels := metric.WithAttributes(
		attribute.Bool("hatescan.hate", m.Hate),
		attribute.String("hatescan.category", m.Category),
		attribute.String("hatescan.language", m.Language),
		attribute.Bool("hatescan.translated", m.Translated),
		attribute.Bool("hatescan.model_abstained", m.Abstained),
	)
	p.analysesCounter.Add(ctx, 1, labels)
	p.analyzeDuration.Record(ctx, m.DurationMs, labels)
	if m.ClassifierMs > 0 {
		p.classifierDuration.Record(ctx, m.ClassifierMs, labels)
	}
}

// RecordTranslationFallback counts a translation that fell back to the original text.
func (p *Provider) RecordTranslationFallback(ctx context.Context, failure, language string) {
	if p == nil {
		return
	}
	p.translationFallbacks.Add(ctx, 1, metric.WithAttributes(
		attribute.String("hatescan.failure", failure),
		attribute.String("hatescan.language", language),
	))
}

// RecordLexiconReload counts reload attempts by outcome.
func (p *Provider) RecordLexiconReload(ctx context.Context, ok bool) {
	if p == nil {
		return
	}
	p.lexiconReloads.Add(ctx, 1, metric.WithAttributes(attribute.Bool("hatescan.ok", ok)))
}
