package migration

import (
	"github.com/smallbiznis/escrutinio/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		switch cfg.DBType {
		case "postgres", "sqlite":
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			return RunMigrations(sqlDB, cfg.DBType)
		default:
			log.Warn("automatic migrations skipped", zap.String("type", cfg.DBType))
			return nil
		}
	}),
)
