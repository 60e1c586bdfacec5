package progress

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/escrutinio/internal/progress/domain"
	"go.uber.org/zap"
)

const scrapeTimeout = 5 * time.Second

// SummaryCollector exposes the operator summary as gauges computed on scrape.
type SummaryCollector struct {
	svc domain.Service
	log *zap.Logger

	unassigned          *prometheus.Desc
	pendingEntry        *prometheus.Desc
	pendingConfirmation *prometheus.Desc
}

func NewSummaryCollector(svc domain.Service, log *zap.Logger) *SummaryCollector {
	return &SummaryCollector{
		svc: svc,
		log: log.Named("progress.collector"),
		unassigned: prometheus.NewDesc(
			"escrutinio_unassigned_attachments",
			"Attachments not yet matched to a mesa.",
			nil, nil,
		),
		pendingEntry: prometheus.NewDesc(
			"escrutinio_mesas_pending_data_entry",
			"Mesas ready for an operator to load results.",
			nil, nil,
		),
		pendingConfirmation: prometheus.NewDesc(
			"escrutinio_mesas_pending_confirmation",
			"Mesas with loaded results awaiting confirmation.",
			nil, nil,
		),
	}
}

func (c *SummaryCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.unassigned
	ch <- c.pendingEntry
	ch <- c.pendingConfirmation
}

func (c *SummaryCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), scrapeTimeout)
	defer cancel()

	summary, err := c.svc.Summary(ctx)
	if err != nil {
		c.log.Warn("summary scrape failed", zap.Error(err))
		return
	}
	ch <- prometheus.MustNewConstMetric(c.unassigned, prometheus.GaugeValue, float64(summary.UnassignedAttachments))
	ch <- prometheus.MustNewConstMetric(c.pendingEntry, prometheus.GaugeValue, float64(summary.PendingDataEntry))
	ch <- prometheus.MustNewConstMetric(c.pendingConfirmation, prometheus.GaugeValue, float64(summary.PendingConfirmation))
}
