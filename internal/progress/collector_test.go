package progress_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/smallbiznis/escrutinio/internal/progress"
	"github.com/smallbiznis/escrutinio/internal/testutil/enginetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func gauges(t *testing.T, families []*dto.MetricFamily) map[string]float64 {
	t.Helper()
	out := make(map[string]float64, len(families))
	for _, family := range families {
		require.Equal(t, dto.MetricType_GAUGE, family.GetType(), family.GetName())
		require.Len(t, family.GetMetric(), 1)
		out[family.GetName()] = family.GetMetric()[0].GetGauge().GetValue()
	}
	return out
}

func TestSummaryCollectorReportsQueues(t *testing.T) {
	e := enginetest.New(t)
	election, option := e.Election(t, "Gobernador")
	ready := e.Mesa(t, 1, election)
	e.SetLoadOrder(t, ready.ID, 1)
	e.Attach(t, &ready.ID)
	loaded := e.Mesa(t, 2, election)
	e.Report(t, loaded.ID, election.ID, option.ID, 40)
	e.Attach(t, nil)

	registry := prometheus.NewRegistry()
	require.NoError(t, registry.Register(progress.NewSummaryCollector(e.Progress, zap.NewNop())))

	families, err := registry.Gather()
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{
		"escrutinio_unassigned_attachments":     1,
		"escrutinio_mesas_pending_data_entry":   1,
		"escrutinio_mesas_pending_confirmation": 1,
	}, gauges(t, families))
}
