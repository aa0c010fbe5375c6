package observability

import (
	"github.com/smallbiznis/dormitory/internal/observability/logger"
	"github.com/smallbiznis/dormitory/internal/observability/metrics"
	"github.com/smallbiznis/dormitory/internal/observability/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("observability",
	fx.Provide(
		LoadConfig,
		splitConfig,
		logger.New,
		tracing.NewProvider,
		metrics.NewProvider,
		metrics.New,
	),
	fx.Invoke(announceTelemetry),
)

// components carries the per-package settings derived from one Config.
type components struct {
	fx.Out

	Logger  logger.Config
	Tracing tracing.Config
	Metrics metrics.Config
}

func splitConfig(cfg Config) components {
	return components{
		Logger: logger.Config{
			ServiceName:   cfg.ServiceName,
			Environment:   cfg.Environment,
			Version:       cfg.Version,
			Level:         cfg.LogLevel,
			Format:        cfg.LogFormat,
			Debug:         cfg.Debug(),
			IncludeCaller: true,
		},
		Tracing: tracing.Config{
			Enabled:          cfg.OtelEnabled,
			ServiceName:      cfg.ServiceName,
			ServiceVersion:   cfg.Version,
			Environment:      cfg.Environment,
			ExporterEndpoint: cfg.OtelExporterEndpoint,
			ExporterProtocol: cfg.OtelExporterProtocol,
			SamplingRatio:    cfg.OtelSamplingRatio,
		},
		Metrics: metrics.Config{
			Enabled:          cfg.OtelEnabled,
			ExporterEndpoint: cfg.OtelExporterEndpoint,
			ExporterProtocol: cfg.OtelExporterProtocol,
			ServiceName:      cfg.ServiceName,
			Environment:      cfg.Environment,
		},
	}
}

// announceTelemetry forces the tracer provider to be built at startup, which
// installs the global propagator, and logs where telemetry is going.
func announceTelemetry(log *zap.Logger, cfg Config, _ *sdktrace.TracerProvider) {
	if !cfg.OtelEnabled {
		log.Info("telemetry export disabled")
		return
	}
	log.Info("telemetry export enabled",
		zap.String("endpoint", cfg.OtelExporterEndpoint),
		zap.String("protocol", cfg.OtelExporterProtocol),
		zap.Float64("sampling_ratio", cfg.OtelSamplingRatio),
	)
}
