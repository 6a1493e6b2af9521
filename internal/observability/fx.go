package observability

import (
	"github.com/smallbiznis/drivebridge/internal/observability/logger"
	"github.com/smallbiznis/drivebridge/internal/observability/metrics"
	"github.com/smallbiznis/drivebridge/internal/observability/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
)

// Module wires logging, tracing and metrics. Every binary includes it before
// any component that takes a *zap.Logger.
var Module = fx.Module("observability",
	fx.Provide(LoadConfig),
	loggingOptions,
	tracingOptions,
	metricsOptions,
)

var loggingOptions = fx.Options(
	fx.Provide(func(cfg Config) logger.Config {
		return logger.Config{
			ServiceName:         cfg.ServiceName,
			Environment:         cfg.Environment,
			Version:             cfg.Version,
			Level:               cfg.LogLevel,
			Format:              cfg.LogFormat,
			Debug:               cfg.Debug(),
			IncludeCaller:       true,
			IncludeStackOnError: cfg.Debug(),
		}
	}),
	fx.Provide(logger.New),
)

var tracingOptions = fx.Options(
	fx.Provide(func(cfg Config) tracing.Config {
		return tracing.Config{
			Enabled:          cfg.OtelEnabled,
			ServiceName:      cfg.ServiceName,
			ServiceVersion:   cfg.Version,
			Environment:      cfg.Environment,
			ExporterEndpoint: cfg.OtelExporterEndpoint,
			ExporterProtocol: cfg.OtelExporterProtocol,
			SamplingRatio:    cfg.OtelSamplingRatio,
		}
	}),
	fx.Provide(tracing.NewProvider),
	// The provider installs itself as the global on construction.
	fx.Invoke(func(*sdktrace.TracerProvider) {}),
)

var metricsOptions = fx.Options(
	fx.Provide(func(cfg Config) metrics.Config {
		return metrics.Config{
			Enabled:          cfg.OtelEnabled,
			ExporterEndpoint: cfg.OtelExporterEndpoint,
			ExporterProtocol: cfg.OtelExporterProtocol,
			ServiceName:      cfg.ServiceName,
			Environment:      cfg.Environment,
		}
	}),
	fx.Provide(
		metrics.NewProvider,
		metrics.New,
		metrics.NewHTTPMetrics,
		metrics.SchedulerWithConfig,
	),
	// Scheduler collectors register on the default registry even when no
	// scheduler runs, so /metrics and the push exporter expose a stable set.
	fx.Invoke(func(*metrics.SchedulerMetrics) {}),
)
