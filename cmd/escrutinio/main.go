package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/escrutinio/internal/cache"
	"github.com/smallbiznis/escrutinio/internal/clock"
	"github.com/smallbiznis/escrutinio/internal/config"
	"github.com/smallbiznis/escrutinio/internal/election"
	"github.com/smallbiznis/escrutinio/internal/geography"
	"github.com/smallbiznis/escrutinio/internal/importer"
	"github.com/smallbiznis/escrutinio/internal/mesa"
	"github.com/smallbiznis/escrutinio/internal/migration"
	"github.com/smallbiznis/escrutinio/internal/observability"
	"github.com/smallbiznis/escrutinio/internal/progress"
	"github.com/smallbiznis/escrutinio/internal/server"
	"github.com/smallbiznis/escrutinio/internal/votereport"
	"github.com/smallbiznis/escrutinio/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		cache.Module,

		// Functional Domains
		geography.Module,
		election.Module,
		mesa.Module,
		votereport.Module,
		progress.Module,
		importer.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.SnowflakeNode)
}
