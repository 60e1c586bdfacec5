package mesa

import (
	"github.com/smallbiznis/escrutinio/internal/mesa/repository"
	"github.com/smallbiznis/escrutinio/internal/mesa/service"
	"go.uber.org/fx"
)

var Module = fx.Module("mesa.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
