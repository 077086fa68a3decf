package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const exportInterval = 10 * time.Second

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics holds the assistant counters. A nil *Metrics records nothing, so
// services built without observability can call it freely.
type Metrics struct {
	usageMessages   metric.Int64Counter
	limitDenied     metric.Int64Counter
	searches        metric.Int64Counter
	commerceCalls   metric.Int64Counter
	rateLimitDenied metric.Int64Counter
	retentionPurged metric.Int64Counter
}

// NewProvider installs the global meter provider. Without OTEL_ENABLED it is
// a noop provider and nothing leaves the process.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, fmt.Errorf("metrics exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(exportInterval))),
	)
	otel.SetMeterProvider(provider)
	log.Info("metrics export enabled",
		zap.String("endpoint", cfg.ExporterEndpoint),
		zap.String("protocol", cfg.ExporterProtocol),
	)

	if lc != nil {
		lc.Append(fx.Hook{OnStop: provider.Shutdown})
	}
	return provider, nil
}

// New creates the assistant instruments on the given provider.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "voiceassist"
	}
	meter := provider.Meter(name)

	var firstErr error
	counter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("counter %s: %w", name, err)
		}
		return c
	}

	m := &Metrics{
		usageMessages:   counter("voiceassist_usage_messages_total", "Conversation messages counted by the usage ledger."),
		limitDenied:     counter("voiceassist_limit_denied_total", "Messages refused by a usage limit, by reason."),
		searches:        counter("voiceassist_search_total", "Product searches, by result source."),
		commerceCalls:   counter("voiceassist_commerce_calls_total", "Cart and checkout calls delegated to the commerce engine."),
		rateLimitDenied: counter("voiceassist_rate_limit_denied_total", "Tool calls rejected by the per-visitor throttle."),
		retentionPurged: counter("voiceassist_usage_purged_total", "Usage records deleted by the retention sweep."),
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return m, nil
}

func (m *Metrics) RecordUsageMessage(ctx context.Context, actorType string) {
	if m != nil {
		add(ctx, m.usageMessages, 1, label("actor_type", actorType))
	}
}

func (m *Metrics) RecordLimitDenied(ctx context.Context, reason string) {
	if m != nil {
		add(ctx, m.limitDenied, 1, label("reason", reason))
	}
}

// RecordSearch counts searches by where the results came from: catalog or
// fallback.
func (m *Metrics) RecordSearch(ctx context.Context, source string) {
	if m != nil {
		add(ctx, m.searches, 1, label("source", source))
	}
}

func (m *Metrics) RecordCommerceCall(ctx context.Context, operation, outcome string) {
	if m != nil {
		add(ctx, m.commerceCalls, 1, label("operation", operation), label("outcome", outcome))
	}
}

func (m *Metrics) RecordRateLimitDenied(ctx context.Context, endpoint string) {
	if m != nil {
		add(ctx, m.rateLimitDenied, 1, label("endpoint", endpoint))
	}
}

func (m *Metrics) RecordRetentionPurge(ctx context.Context, deleted int64) {
	if m != nil && deleted > 0 {
		add(ctx, m.retentionPurged, deleted)
	}
}

func add(ctx context.Context, c metric.Int64Counter, n int64, attrs ...attribute.KeyValue) {
	c.Add(ctx, n, metric.WithAttributes(FilterAttributes(attrs...)...))
}

func label(key, value string) attribute.KeyValue {
	return attribute.String(key, strings.TrimSpace(value))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	ctx := context.Background()
	switch p := strings.ToLower(strings.TrimSpace(protocol)); p {
	case "", "grpc", "grpc/protobuf":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(ctx, opts...)
	case "http", "http/protobuf":
		var opts []otlpmetrichttp.Option
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", p)
	}
}

// Session ids, identity keys and product ids never become labels.
var allowedLabelKeys = map[attribute.Key]bool{
	"endpoint":    true,
	"status_code": true,
	"actor_type":  true,
	"reason":      true,
	"source":      true,
	"operation":   true,
	"outcome":     true,
}

// FilterAttributes keeps only the allow-listed label keys.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := attrs[:0:0]
	for _, attr := range attrs {
		if allowedLabelKeys[attr.Key] {
			filtered = append(filtered, attr)
		}
	}
	return filtered
}
