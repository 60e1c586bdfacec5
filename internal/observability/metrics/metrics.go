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

// Metrics exposes engine-level instruments. A nil *Metrics is a valid no-op.
type Metrics struct {
	voteReports   metric.Int64Counter
	confirmations metric.Int64Counter
	claims        metric.Int64Counter
	stateAdvances metric.Int64Counter
	recomputes    metric.Int64Counter
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

// New configures the engine instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "escrutinio"
	}
	meter := provider.Meter(name)

	voteReports, err := meter.Int64Counter("escrutinio_vote_reports_total")
	if err != nil {
		return nil, err
	}
	confirmations, err := meter.Int64Counter("escrutinio_confirmations_total")
	if err != nil {
		return nil, err
	}
	claims, err := meter.Int64Counter("escrutinio_mesa_claims_total")
	if err != nil {
		return nil, err
	}
	stateAdvances, err := meter.Int64Counter("escrutinio_mesa_state_advances_total")
	if err != nil {
		return nil, err
	}
	recomputes, err := meter.Int64Counter("escrutinio_counter_writes_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		voteReports:   voteReports,
		confirmations: confirmations,
		claims:        claims,
		stateAdvances: stateAdvances,
		recomputes:    recomputes,
	}, nil
}

func (m *Metrics) RecordVoteReport(ctx context.Context, electionID string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("election", strings.TrimSpace(electionID)))
	m.voteReports.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordConfirmation counts confirmation flag writes; confirmed=false is an undo.
func (m *Metrics) RecordConfirmation(ctx context.Context, confirmed bool) {
	if m == nil {
		return
	}
	result := "confirmed"
	if !confirmed {
		result = "unconfirmed"
	}
	m.confirmations.Add(ctx, 1, metric.WithAttributes(FilterAttributes(attribute.String("result", result))...))
}

func (m *Metrics) RecordClaim(ctx context.Context, claimed bool) {
	if m == nil {
		return
	}
	result := "won"
	if !claimed {
		result = "lost"
	}
	m.claims.Add(ctx, 1, metric.WithAttributes(FilterAttributes(attribute.String("result", result))...))
}

func (m *Metrics) RecordStateAdvance(ctx context.Context, state string) {
	if m == nil {
		return
	}
	m.stateAdvances.Add(ctx, 1, metric.WithAttributes(FilterAttributes(attribute.String("state", state))...))
}

// RecordCounterWrite counts denormalized counter write-backs by counter name.
func (m *Metrics) RecordCounterWrite(ctx context.Context, counter string) {
	if m == nil {
		return
	}
	m.recomputes.Add(ctx, 1, metric.WithAttributes(FilterAttributes(attribute.String("counter", counter))...))
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

// Mesa and reporter ids are unbounded, so they never become labels.
var allowedLabelKeys = map[attribute.Key]struct{}{
	"election": {},
	"result":   {},
	"state":    {},
	"counter":  {},
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
