package infra

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/tnqbao/gau-account-service/config"
)

type LoggerClient struct {
	Logger         *slog.Logger
	loggerProvider *sdklog.LoggerProvider
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
}

func InitLoggerClient(cfg *config.EnvConfig) *LoggerClient {
	ctx := context.Background()

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.Grafana.ServiceName),
			semconv.DeploymentEnvironment(cfg.Environment.Mode),
		),
	)
	if err != nil {
		log.Fatalf("Failed to build OTLP resource: %v", err)
	}

	logExporter, err := otlploghttp.New(ctx,
		otlploghttp.WithEndpoint(cfg.Grafana.OTLPEndpoint),
		otlploghttp.WithURLPath("/otlp/v1/logs"),
	)
	if err != nil {
		log.Fatalf("Failed to create OTLP log exporter: %v", err)
	}

	loggerProvider := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(logExporter)),
		sdklog.WithResource(res),
	)

	traceExporter, err := otlptrace.New(ctx, otlptracehttp.NewClient(
		otlptracehttp.WithEndpoint(cfg.Grafana.OTLPEndpoint),
		otlptracehttp.WithURLPath("/otlp/v1/traces"),
	))
	if err != nil {
		log.Fatalf("Failed to create OTLP trace exporter: %v", err)
	}

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tracerProvider)

	metricExporter, err := otlpmetrichttp.New(ctx,
		otlpmetrichttp.WithEndpoint(cfg.Grafana.OTLPEndpoint),
		otlpmetrichttp.WithURLPath("/otlp/v1/metrics"),
	)
	if err != nil {
		log.Fatalf("Failed to create OTLP metric exporter: %v", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(30*time.Second))),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(meterProvider)

	if err := runtime.Start(runtime.WithMeterProvider(meterProvider)); err != nil {
		log.Printf("Failed to start runtime instrumentation: %v", err)
	}

	logger := otelslog.NewLogger(cfg.Grafana.ServiceName, otelslog.WithLoggerProvider(loggerProvider))

	return &LoggerClient{
		Logger:         logger,
		loggerProvider: loggerProvider,
		tracerProvider: tracerProvider,
		meterProvider:  meterProvider,
	}
}

func (l *LoggerClient) InfoWithContextf(ctx context.Context, format string, args ...interface{}) {
	l.Logger.InfoContext(ctx, fmt.Sprintf(format, args...))
}

func (l *LoggerClient) WarningWithContextf(ctx context.Context, format string, args ...interface{}) {
	l.Logger.WarnContext(ctx, fmt.Sprintf(format, args...))
}

func (l *LoggerClient) ErrorWithContextf(ctx context.Context, err error, format string, args ...interface{}) {
	if err != nil {
		l.Logger.ErrorContext(ctx, fmt.Sprintf(format, args...), slog.String("error", err.Error()))
		return
	}
	l.Logger.ErrorContext(ctx, fmt.Sprintf(format, args...))
}

// Shutdown flushes pending telemetry. Call on process exit.
func (l *LoggerClient) Shutdown(ctx context.Context) {
	if l.loggerProvider != nil {
		_ = l.loggerProvider.Shutdown(ctx)
	}
	if l.tracerProvider != nil {
		_ = l.tracerProvider.Shutdown(ctx)
	}
	if l.meterProvider != nil {
		_ = l.meterProvider.Shutdown(ctx)
	}
}
