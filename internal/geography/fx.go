package geography

import (
	"github.com/smallbiznis/escrutinio/internal/geography/repository"
	"github.com/smallbiznis/escrutinio/internal/geography/service"
	"go.uber.org/fx"
)

var Module = fx.Module("geography.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
