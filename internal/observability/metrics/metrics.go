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

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes reallocation instruments.
type Metrics struct {
	previews          metric.Int64Counter
	previewWarnings   metric.Int64Counter
	applies           metric.Int64Counter
	assignmentChanges metric.Int64Counter
	applyDuration     metric.Float64Histogram
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the reallocation instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "dormitory"
	}
	meter := provider.Meter(name)

	previews, err := meter.Int64Counter("dormitory_allocation_previews_total")
	if err != nil {
		return nil, err
	}
	previewWarnings, err := meter.Int64Counter("dormitory_allocation_preview_warnings_total")
	if err != nil {
		return nil, err
	}
	applies, err := meter.Int64Counter("dormitory_allocation_applies_total")
	if err != nil {
		return nil, err
	}
	assignmentChanges, err := meter.Int64Counter("dormitory_assignment_changes_total")
	if err != nil {
		return nil, err
	}
	applyDuration, err := meter.Float64Histogram("dormitory_allocation_apply_duration_seconds",
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		previews:          previews,
		previewWarnings:   previewWarnings,
		applies:           applies,
		assignmentChanges: assignmentChanges,
		applyDuration:     applyDuration,
	}, nil
}

// RecordPreview counts a computed preview and the warnings it carried.
func (m *Metrics) RecordPreview(ctx context.Context, floor int, warnings map[string]int) {
	if m == nil {
		return
	}
	m.previews.Add(ctx, 1, metric.WithAttributes(FilterAttributes(attribute.Int("floor", floor))...))
	for warning, count := range warnings {
		if count <= 0 {
			continue
		}
		attrs := FilterAttributes(
			attribute.Int("floor", floor),
			attribute.String("warning", strings.TrimSpace(warning)),
		)
		m.previewWarnings.Add(ctx, int64(count), metric.WithAttributes(attrs...))
	}
}

// RecordApply counts an apply attempt by outcome and its duration.
func (m *Metrics) RecordApply(ctx context.Context, floor int, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.Int("floor", floor),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.applies.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.applyDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordAssignmentChanges counts created and released room assignments.
func (m *Metrics) RecordAssignmentChanges(ctx context.Context, floor, created, released int) {
	if m == nil {
		return
	}
	if created > 0 {
		attrs := FilterAttributes(attribute.Int("floor", floor), attribute.String("change", "created"))
		m.assignmentChanges.Add(ctx, int64(created), metric.WithAttributes(attrs...))
	}
	if released > 0 {
		attrs := FilterAttributes(attribute.Int("floor", floor), attribute.String("change", "released"))
		m.assignmentChanges.Add(ctx, int64(released), metric.WithAttributes(attrs...))
	}
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"floor":   {},
	"outcome": {},
	"warning": {},
	"change":  {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
