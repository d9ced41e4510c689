package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	ServiceName    = "iotpulse-sensor-dashboard"
	ServiceVersion = "v1.2.0"
	MeterName      = "iotpulse"
)

// OTelConfig holds OpenTelemetry configuration
type OTelConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	TraceExporter  string // "stdout", "none"
	MetricExporter string // "prometheus", "none"
	EnableMetrics  bool
	EnableTracing  bool
	SampleRatio    float64
}

// OTelProviders holds the OpenTelemetry providers
type OTelProviders struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Tracer         trace.Tracer
	Meter          metric.Meter
	PrometheusHTTP http.Handler
	Logger         *slog.Logger
}

// DefaultOTelConfig returns a default OpenTelemetry configuration
func DefaultOTelConfig() *OTelConfig {
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	return &OTelConfig{
		ServiceName:    ServiceName,
		ServiceVersion: ServiceVersion,
		Environment:    env,
		TraceExporter:  "stdout",
		MetricExporter: "prometheus",
		EnableMetrics:  true,
		EnableTracing:  true,
		SampleRatio:    1.0,
	}
}

// InitializeOTel initializes tracing and metrics for the service
func InitializeOTel(cfg *OTelConfig, logger *slog.Logger) (*OTelProviders, error) {
	if cfg == nil {
		cfg = DefaultOTelConfig()
	}

	ctx := context.Background()

	logger.InfoContext(ctx, "Initializing OpenTelemetry",
		slog.String("service", cfg.ServiceName),
		slog.String("version", cfg.ServiceVersion),
		slog.String("environment", cfg.Environment),
		slog.Bool("tracing_enabled", cfg.EnableTracing),
		slog.Bool("metrics_enabled", cfg.EnableMetrics))

	res, err := createResource(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	providers := &OTelProviders{
		Logger: logger,
	}

	if cfg.EnableTracing {
		if err := initializeTracing(ctx, cfg, res, providers); err != nil {
			return nil, fmt.Errorf("failed to initialize tracing: %w", err)
		}
	}

	if cfg.EnableMetrics {
		if err := initializeMetrics(ctx, cfg, res, providers); err != nil {
			return nil, fmt.Errorf("failed to initialize metrics: %w", err)
		}
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return providers, nil
}

// createResource creates the OpenTelemetry resource
func createResource(cfg *OTelConfig) (*resource.Resource, error) {
	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		semconv.DeploymentEnvironmentName(cfg.Environment),
		attribute.String("service.instance.id", generateInstanceID()),
	), nil
}

// initializeTracing sets up OpenTelemetry tracing
func initializeTracing(ctx context.Context, cfg *OTelConfig, res *resource.Resource, providers *OTelProviders) error {
	var exporter sdktrace.SpanExporter
	var err error

	switch cfg.TraceExporter {
	case "stdout":
		exporter, err = stdouttrace.New(
			stdouttrace.WithPrettyPrint(),
		)
	case "none":
		return nil
	default:
		return fmt.Errorf("unsupported trace exporter: %s", cfg.TraceExporter)
	}

	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SampleRatio)),
	)

	providers.TracerProvider = tp
	providers.Tracer = tp.Tracer(MeterName, trace.WithInstrumentationVersion(cfg.ServiceVersion))
	otel.SetTracerProvider(tp)

	providers.Logger.InfoContext(ctx, "Tracing initialized",
		slog.String("exporter", cfg.TraceExporter),
		slog.Float64("sample_ratio", cfg.SampleRatio))

	return nil
}

// initializeMetrics sets up OpenTelemetry metrics
func initializeMetrics(ctx context.Context, cfg *OTelConfig, res *resource.Resource, providers *OTelProviders) error {
	switch cfg.MetricExporter {
	case "prometheus":
		exporter, err := prometheus.New()
		if err != nil {
			return fmt.Errorf("failed to create prometheus exporter: %w", err)
		}

		providers.PrometheusHTTP = promhttp.Handler()

		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(exporter),
		)

		providers.MeterProvider = mp
		providers.Meter = mp.Meter(MeterName, metric.WithInstrumentationVersion(cfg.ServiceVersion))
		otel.SetMeterProvider(mp)

	case "none":
		return nil
	default:
		return fmt.Errorf("unsupported metric exporter: %s", cfg.MetricExporter)
	}

	providers.Logger.InfoContext(ctx, "Metrics initialized",
		slog.String("exporter", cfg.MetricExporter))

	return nil
}

// BusinessMetrics holds all application-specific metrics
type BusinessMetrics struct {
	// Upload metrics
	UploadsTotal   metric.Int64Counter
	UploadFailures metric.Int64Counter
	UploadBytes    metric.Int64Counter
	UploadRows     metric.Int64Counter

	// Pipeline metrics
	PipelineStagesTotal   metric.Int64Counter
	PipelineStageDuration metric.Float64Histogram
	OutliersFlagged       metric.Int64Counter
	RowsProcessed         metric.Int64Counter

	// Archive metrics
	ArchiveWrites metric.Int64Counter
	ArchiveReads  metric.Int64Counter
}

// CreateBusinessMetrics creates application-specific metrics
func CreateBusinessMetrics(meter metric.Meter) (*BusinessMetrics, error) {
	uploadsTotal, err := meter.Int64Counter(
		"sensor_uploads_total",
		metric.WithDescription("Total number of sensor data uploads"),
	)
	if err != nil {
		return nil, err
	}

	uploadFailures, err := meter.Int64Counter(
		"sensor_upload_failures_total",
		metric.WithDescription("Total number of rejected sensor data uploads"),
	)
	if err != nil {
		return nil, err
	}

	uploadBytes, err := meter.Int64Counter(
		"sensor_upload_bytes_total",
		metric.WithDescription("Total bytes of uploaded sensor data"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	uploadRows, err := meter.Int64Counter(
		"sensor_upload_rows_total",
		metric.WithDescription("Total rows ingested from sensor data uploads"),
	)
	if err != nil {
		return nil, err
	}

	pipelineStagesTotal, err := meter.Int64Counter(
		"pipeline_stage_executions_total",
		metric.WithDescription("Total number of pipeline stage executions"),
	)
	if err != nil {
		return nil, err
	}

	pipelineStageDuration, err := meter.Float64Histogram(
		"pipeline_stage_duration_seconds",
		metric.WithDescription("Pipeline stage execution duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	outliersFlagged, err := meter.Int64Counter(
		"pipeline_outliers_flagged_total",
		metric.WithDescription("Total number of readings flagged as outliers"),
	)
	if err != nil {
		return nil, err
	}

	rowsProcessed, err := meter.Int64Counter(
		"pipeline_rows_processed_total",
		metric.WithDescription("Total rows processed by pipeline stages"),
	)
	if err != nil {
		return nil, err
	}

	archiveWrites, err := meter.Int64Counter(
		"archive_writes_total",
		metric.WithDescription("Total number of weekly archive writes"),
	)
	if err != nil {
		return nil, err
	}

	archiveReads, err := meter.Int64Counter(
		"archive_reads_total",
		metric.WithDescription("Total number of weekly archive reads"),
	)
	if err != nil {
		return nil, err
	}

	return &BusinessMetrics{
		UploadsTotal:   uploadsTotal,
		UploadFailures: uploadFailures,
		UploadBytes:    uploadBytes,
		UploadRows:     uploadRows,

		PipelineStagesTotal:   pipelineStagesTotal,
		PipelineStageDuration: pipelineStageDuration,
		OutliersFlagged:       outliersFlagged,
		RowsProcessed:         rowsProcessed,

		ArchiveWrites: archiveWrites,
		ArchiveReads:  archiveReads,
	}, nil
}

// RecordPipelineStage records metrics for one pipeline stage execution.
func RecordPipelineStage(ctx context.Context, metrics *BusinessMetrics, stage string, rows int, duration time.Duration) {
	if metrics == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String("stage", stage))
	metrics.PipelineStagesTotal.Add(ctx, 1, attrs)
	metrics.PipelineStageDuration.Record(ctx, duration.Seconds(), attrs)
	metrics.RowsProcessed.Add(ctx, int64(rows), attrs)
}

// RecordUpload records metrics for one upload attempt.
func RecordUpload(ctx context.Context, metrics *BusinessMetrics, bytes int64, rows int, err error) {
	if metrics == nil {
		return
	}

	metrics.UploadsTotal.Add(ctx, 1)
	if err != nil {
		metrics.UploadFailures.Add(ctx, 1)
		return
	}
	metrics.UploadBytes.Add(ctx, bytes)
	metrics.UploadRows.Add(ctx, int64(rows))
}

// RecordOutliersFlagged counts readings flagged by an outlier detection pass.
func RecordOutliersFlagged(ctx context.Context, metrics *BusinessMetrics, variable string, count int) {
	if metrics == nil || count == 0 {
		return
	}
	metrics.OutliersFlagged.Add(ctx, int64(count),
		metric.WithAttributes(attribute.String("variable", variable)))
}

// RecordArchiveWrite counts one weekly archive write.
func RecordArchiveWrite(ctx context.Context, metrics *BusinessMetrics) {
	if metrics == nil {
		return
	}
	metrics.ArchiveWrites.Add(ctx, 1)
}

// RecordArchiveRead counts one weekly archive read.
func RecordArchiveRead(ctx context.Context, metrics *BusinessMetrics) {
	if metrics == nil {
		return
	}
	metrics.ArchiveReads.Add(ctx, 1)
}

// Shutdown gracefully shuts down OpenTelemetry providers
func (p *OTelProviders) Shutdown(ctx context.Context) error {
	var errs []error

	if p.TracerProvider != nil {
		if err := p.TracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown: %w", err))
		}
	}

	if p.MeterProvider != nil {
		if err := p.MeterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("opentelemetry shutdown errors: %v", errs)
	}

	p.Logger.InfoContext(ctx, "OpenTelemetry shutdown complete")
	return nil
}

// generateInstanceID generates a unique instance identifier
func generateInstanceID() string {
	hostname, _ := os.Hostname()
	return fmt.Sprintf("%s-%d", hostname, time.Now().Unix())
}

// RecordError records an error on the current span
func RecordError(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// AddSpanEvent adds an event to the current span with structured attributes
func AddSpanEvent(ctx context.Context, name string, attributes map[string]interface{}) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	attrs := make([]attribute.KeyValue, 0, len(attributes))
	for k, v := range attributes {
		switch val := v.(type) {
		case string:
			attrs = append(attrs, attribute.String(k, val))
		case int:
			attrs = append(attrs, attribute.Int(k, val))
		case int64:
			attrs = append(attrs, attribute.Int64(k, val))
		case float64:
			attrs = append(attrs, attribute.Float64(k, val))
		case bool:
			attrs = append(attrs, attribute.Bool(k, val))
		default:
			attrs = append(attrs, attribute.String(k, fmt.Sprintf("%v", val)))
		}
	}

	span.AddEvent(name, trace.WithAttributes(attrs...))
}
