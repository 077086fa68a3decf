package observability

import (
	"github.com/smallbiznis/voiceassist/internal/observability/logger"
	"github.com/smallbiznis/voiceassist/internal/observability/metrics"
	"github.com/smallbiznis/voiceassist/internal/observability/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
	gormlogger "gorm.io/gorm/logger"
)

// Module provides the zap logger, the gorm logger, the tracer provider and
// the meter-backed instruments. Tracing and metrics export only when
// OTEL_ENABLED is set; the instruments work against a noop provider
// otherwise.
var Module = fx.Module("observability",
	fx.Provide(
		LoadConfig,
		Config.logger,
		Config.gormLogger,
		Config.tracing,
		Config.metrics,
		logger.New,
		tracing.NewProvider,
		metrics.NewProvider,
		metrics.New,
		metrics.NewHTTPMetrics,
	),
	// the tracer provider registers itself as the otel global on construction
	fx.Invoke(func(*sdktrace.TracerProvider) {}),
)

func (c Config) logger() logger.Config {
	return logger.Config{
		ServiceName:         c.ServiceName,
		Environment:         c.Environment,
		Version:             c.Version,
		Level:               c.LogLevel,
		Format:              c.LogFormat,
		Debug:               c.Debug(),
		IncludeCaller:       true,
		IncludeStackOnError: c.Debug(),
	}
}

func (c Config) gormLogger() gormlogger.Interface {
	cfg := logger.DefaultGormLoggerConfig()
	cfg.SlowThreshold = c.SlowQueryThreshold
	cfg.IgnoreRecordNotFound = true
	if c.Debug() {
		cfg.Level = gormlogger.Info
	}
	return logger.NewGormLogger(cfg)
}

func (c Config) tracing() tracing.Config {
	return tracing.Config{
		Enabled:          c.OtelEnabled,
		ServiceName:      c.ServiceName,
		ServiceVersion:   c.Version,
		Environment:      c.Environment,
		ExporterEndpoint: c.OtelExporterEndpoint,
		ExporterProtocol: c.OtelExporterProtocol,
		SamplingRatio:    c.OtelSamplingRatio,
	}
}

func (c Config) metrics() metrics.Config {
	return metrics.Config{
		Enabled:          c.OtelEnabled,
		ExporterEndpoint: c.OtelExporterEndpoint,
		ExporterProtocol: c.OtelExporterProtocol,
		ServiceName:      c.ServiceName,
		Environment:      c.Environment,
	}
}
