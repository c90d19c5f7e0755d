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

// Metrics exposes application-level instruments.
type Metrics struct {
	billsCreated       metric.Int64Counter
	billIDCollisions   metric.Int64Counter
	billIDExhausted    metric.Int64Counter
	customersDeleted   metric.Int64Counter
	summaryComputed    metric.Int64Counter
	summaryDurationMs  metric.Float64Histogram
	searchResultsTotal metric.Int64Histogram
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
				log.Info("shutting down meter provider")
				return provider.Shutdown(ctx)
			},
		})
	}

	log.Info("metrics initialized",
		zap.String("endpoint", cfg.ExporterEndpoint),
		zap.String("protocol", cfg.ExporterProtocol),
	)

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "alankar"
	}
	meter := provider.Meter(name)

	billsCreated, err := meter.Int64Counter("alankar_bills_created_total")
	if err != nil {
		return nil, err
	}
	billIDCollisions, err := meter.Int64Counter("alankar_bill_id_collisions_total")
	if err != nil {
		return nil, err
	}
	billIDExhausted, err := meter.Int64Counter("alankar_bill_id_exhausted_total")
	if err != nil {
		return nil, err
	}
	customersDeleted, err := meter.Int64Counter("alankar_customers_deleted_total")
	if err != nil {
		return nil, err
	}
	summaryComputed, err := meter.Int64Counter("alankar_summary_computed_total")
	if err != nil {
		return nil, err
	}
	summaryDurationMs, err := meter.Float64Histogram("alankar_summary_duration_ms")
	if err != nil {
		return nil, err
	}
	searchResultsTotal, err := meter.Int64Histogram("alankar_bill_search_total_results")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		billsCreated:       billsCreated,
		billIDCollisions:   billIDCollisions,
		billIDExhausted:    billIDExhausted,
		customersDeleted:   customersDeleted,
		summaryComputed:    summaryComputed,
		summaryDurationMs:  summaryDurationMs,
		searchResultsTotal: searchResultsTotal,
	}, nil
}

// NewNoop returns instruments bound to a no-op provider, for tests and tools.
func NewNoop() *Metrics {
	m, _ := New(Config{}, noop.NewMeterProvider())
	return m
}

func (m *Metrics) RecordBillCreated(ctx context.Context, idMode string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("id_mode", strings.TrimSpace(idMode)))
	m.billsCreated.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordBillIDCollision(ctx context.Context) {
	if m == nil {
		return
	}
	m.billIDCollisions.Add(ctx, 1)
}

func (m *Metrics) RecordBillIDExhausted(ctx context.Context) {
	if m == nil {
		return
	}
	m.billIDExhausted.Add(ctx, 1)
}

func (m *Metrics) RecordCustomerDeleted(ctx context.Context, cascadedBills int64) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.Bool("had_bills", cascadedBills > 0))
	m.customersDeleted.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordSummary(ctx context.Context, source string, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("source", strings.TrimSpace(source)))
	m.summaryComputed.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.summaryDurationMs.Record(ctx, float64(elapsed.Microseconds())/1000, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordSearch(ctx context.Context, mode string, total int64) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("mode", strings.TrimSpace(mode)))
	m.searchResultsTotal.Record(ctx, total, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithInsecure()}
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
	"id_mode":     {},
	"had_bills":   {},
	"source":      {},
	"mode":        {},
	"route":       {},
	"status_code": {},
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
