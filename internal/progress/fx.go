package progress

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/escrutinio/internal/progress/adapters"
	"github.com/smallbiznis/escrutinio/internal/progress/repository"
	"github.com/smallbiznis/escrutinio/internal/progress/service"
	"go.uber.org/fx"
)

var Module = fx.Module("progress.service",
	fx.Provide(repository.Provide),
	fx.Provide(adapters.NewAttachmentCounter),
	fx.Provide(adapters.NewProblemChecker),
	fx.Provide(service.NewCounters),
	fx.Provide(service.New),
	fx.Provide(NewSummaryCollector),
	fx.Invoke(func(c *SummaryCollector) error {
		return prometheus.Register(c)
	}),
)
