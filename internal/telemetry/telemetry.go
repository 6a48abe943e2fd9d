package telemetry

import (
	"context"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	serviceName    = "varsly"
	serviceVersion = "1.0.0"
)

// Telemetry OpenTelemetry providers and pipeline instruments
type Telemetry struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	tracer         trace.Tracer
	meter          metric.Meter

	IngestRuns         metric.Int64Counter
	IngestDuration     metric.Float64Histogram
	SourceAttempts     metric.Int64Counter
	CandidatesRejected metric.Int64Counter
	AlertsCreated      metric.Int64Counter
	AlertsDuplicate    metric.Int64Counter

	NotifySent    metric.Int64Counter
	NotifySkipped metric.Int64Counter
	NotifyFailed  metric.Int64Counter
}

// New exports to SIGNOZ_ENDPOINT / OTEL_EXPORTER_OTLP_ENDPOINT, or returns a no-op instance when neither is set
func New(ctx context.Context) (*Telemetry, error) {
	endpoint := os.Getenv("SIGNOZ_ENDPOINT")
	if endpoint == "" {
		endpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	}
	if endpoint == "" {
		return NewNoop(), nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
			attribute.String("environment", getEnv("ENVIRONMENT", "production")),
		),
	)
	if err != nil {
		return nil, err
	}

	traceExporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	metricExporter, err := otlpmetrichttp.New(ctx,
		otlpmetrichttp.WithEndpoint(endpoint),
		otlpmetrichttp.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(traceExporter),
	)
	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(30*time.Second))),
	)
	otel.SetMeterProvider(meterProvider)

	t := &Telemetry{
		tracerProvider: tracerProvider,
		meterProvider:  meterProvider,
		tracer:         tracerProvider.Tracer(serviceName),
		meter:          meterProvider.Meter(serviceName),
	}
	if err := t.registerMetrics(); err != nil {
		return nil, err
	}
	return t, nil
}

// NewNoop instance backed by the global (no-op by default) providers
func NewNoop() *Telemetry {
	t := &Telemetry{
		tracer: otel.Tracer(serviceName),
		meter:  otel.Meter(serviceName),
	}
	_ = t.registerMetrics()
	return t
}

func (t *Telemetry) registerMetrics() error {
	var err error

	if t.IngestRuns, err = t.meter.Int64Counter(
		"varsly.ingest.runs",
		metric.WithDescription("Ingest runs by result"),
	); err != nil {
		return err
	}
	if t.IngestDuration, err = t.meter.Float64Histogram(
		"varsly.ingest.duration",
		metric.WithDescription("Duration of ingest runs in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return err
	}
	if t.SourceAttempts, err = t.meter.Int64Counter(
		"varsly.source.attempts",
		metric.WithDescription("Source fetch attempts by source and outcome"),
	); err != nil {
		return err
	}
	if t.CandidatesRejected, err = t.meter.Int64Counter(
		"varsly.candidates.rejected",
		metric.WithDescription("Notices dropped for lack of a title"),
	); err != nil {
		return err
	}
	if t.AlertsCreated, err = t.meter.Int64Counter(
		"varsly.alerts.created",
		metric.WithDescription("Alerts written"),
	); err != nil {
		return err
	}
	if t.AlertsDuplicate, err = t.meter.Int64Counter(
		"varsly.alerts.duplicates",
		metric.WithDescription("Matches that already had an alert"),
	); err != nil {
		return err
	}
	if t.NotifySent, err = t.meter.Int64Counter(
		"varsly.notify.sent",
		metric.WithDescription("Emails accepted by the provider"),
	); err != nil {
		return err
	}
	if t.NotifySkipped, err = t.meter.Int64Counter(
		"varsly.notify.skipped",
		metric.WithDescription("Notifications skipped by preference"),
	); err != nil {
		return err
	}
	if t.NotifyFailed, err = t.meter.Int64Counter(
		"varsly.notify.failed",
		metric.WithDescription("Notifications that failed"),
	); err != nil {
		return err
	}
	return nil
}

// StartSpan starts a span on the service tracer
func (t *Telemetry) StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, opts...)
}

// RecordIngest one finished run
func (t *Telemetry) RecordIngest(ctx context.Context, duration time.Duration, source string, ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	t.IngestRuns.Add(ctx, 1, metric.WithAttributes(
		attribute.String("source", source),
		attribute.String("result", result),
	))
	t.IngestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String("source", source)))
}

// RecordSourceAttempt one source try
func (t *Telemetry) RecordSourceAttempt(ctx context.Context, source, outcome string) {
	t.SourceAttempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("source", source),
		attribute.String("outcome", outcome),
	))
}

// RecordAlerts counts of one ingest run
func (t *Telemetry) RecordAlerts(ctx context.Context, created, duplicates, rejected int) {
	t.AlertsCreated.Add(ctx, int64(created))
	t.AlertsDuplicate.Add(ctx, int64(duplicates))
	t.CandidatesRejected.Add(ctx, int64(rejected))
}

// RecordNotify path is "immediate" or "digest"; outcome is sent, skipped or failed
func (t *Telemetry) RecordNotify(ctx context.Context, path, outcome string) {
	attrs := metric.WithAttributes(attribute.String("path", path))
	switch outcome {
	case "sent":
		t.NotifySent.Add(ctx, 1, attrs)
	case "skipped":
		t.NotifySkipped.Add(ctx, 1, attrs)
	default:
		t.NotifyFailed.Add(ctx, 1, attrs)
	}
}

// Shutdown flushes exporters
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t.tracerProvider != nil {
		if err := t.tracerProvider.Shutdown(ctx); err != nil {
			return err
		}
	}
	if t.meterProvider != nil {
		if err := t.meterProvider.Shutdown(ctx); err != nil {
			return err
		}
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
