package election

import (
	"github.com/smallbiznis/escrutinio/internal/election/repository"
	"github.com/smallbiznis/escrutinio/internal/election/service"
	"go.uber.org/fx"
)

var Module = fx.Module("election.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
