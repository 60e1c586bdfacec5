package votereport

import (
	"github.com/smallbiznis/escrutinio/internal/votereport/repository"
	"github.com/smallbiznis/escrutinio/internal/votereport/service"
	"go.uber.org/fx"
)

var Module = fx.Module("votereport.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
