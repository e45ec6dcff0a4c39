package observability

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
)

const (
	serviceName = "feedback-triage"
	meterName   = "triage"

	metricExportInterval = 60 * time.Second
)

// Exporter names accepted in OTEL_METRICS_EXPORTER and OTEL_TRACES_EXPORTER. Empty disables the signal.
const (
	ExporterNone   = ""
	ExporterOTLP   = "otlp"
	ExporterStdout = "stdout"
)

// durationBounds are histogram buckets in seconds. A digest pass spans many model calls.
var durationBounds = []float64{0.05, 0.25, 1, 5, 15, 30, 60, 120, 300, 600}

// Telemetry holds the providers built for one triage process. Either provider may be nil.
type Telemetry struct {
	meterProvider  *sdkmetric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
}

// SetupTelemetry builds the metric and trace providers for the named exporters and installs the
// tracer provider globally. OTLP exporters read OTEL_EXPORTER_OTLP_* from the environment.
// Stdout spans go to stderr so they never mix with digest output.
func SetupTelemetry(ctx context.Context, metricsExporter, tracesExporter string) (*Telemetry, error) {
	t := &Telemetry{}

	if metricsExporter == ExporterNone && tracesExporter == ExporterNone {
		return t, nil
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
	))
	if err != nil {
		return nil, fmt.Errorf("merge resource: %w", err)
	}

	switch metricsExporter {
	case ExporterNone:
	case ExporterOTLP:
		exp, err := otlpmetrichttp.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("create OTLP metric exporter: %w", err)
		}

		t.meterProvider = sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(metricExportInterval))),
			sdkmetric.WithView(sdkmetric.NewView(
				sdkmetric.Instrument{Name: "triage_*_duration_seconds"},
				sdkmetric.Stream{Aggregation: sdkmetric.AggregationExplicitBucketHistogram{Boundaries: durationBounds}},
			)),
		)
	default:
		return nil, fmt.Errorf("unsupported metrics exporter %q", metricsExporter)
	}

	var spans sdktrace.SpanExporter

	switch tracesExporter {
	case ExporterNone:
	case ExporterOTLP:
		spans, err = otlptracehttp.New(ctx)
	case ExporterStdout:
		spans, err = stdouttrace.New(stdouttrace.WithWriter(os.Stderr))
	default:
		err = fmt.Errorf("unsupported traces exporter %q", tracesExporter)
	}

	if err != nil {
		return nil, errors.Join(fmt.Errorf("create trace exporter: %w", err), t.Shutdown(ctx))
	}

	if spans != nil {
		t.tracerProvider = sdktrace.NewTracerProvider(
			sdktrace.WithResource(res),
			sdktrace.WithSampler(newSampler()),
			sdktrace.WithBatcher(spans),
		)
		otel.SetTracerProvider(t.tracerProvider)
	}

	return t, nil
}

// Metrics returns the triage instruments, or nil when metrics are disabled.
func (t *Telemetry) Metrics() (TriageMetrics, error) {
	if t.meterProvider == nil {
		//nolint:nilnil // metrics disabled, callers accept nil TriageMetrics
		return nil, nil
	}

	return NewTriageMetrics(t.meterProvider.Meter(meterName))
}

// Shutdown flushes pending spans and metrics.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error

	if t.tracerProvider != nil {
		if err := t.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown: %w", err))
		}
	}

	if t.meterProvider != nil {
		if err := t.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}

	return errors.Join(errs...)
}
