package metrics

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("election", "gobernador-2019"),
		attribute.String("mesa_id", "456"),
		attribute.String("result", "won"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	for _, attr := range attrs {
		if attr.Key == "mesa_id" {
			t.Fatalf("expected mesa_id to be dropped")
		}
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordVoteReport(context.Background(), "x")
	m.RecordClaim(context.Background(), false)
	m.RecordConfirmation(context.Background(), true)
	m.RecordStateAdvance(context.Background(), "OPEN")
	m.RecordCounterWrite(context.Background(), "loaded_count")
}

func TestNewWithNoopProvider(t *testing.T) {
	m, err := New(Config{}, noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}
	m.RecordClaim(context.Background(), true)
}
