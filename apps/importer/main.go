package main

import (
	"context"
	"fmt"
	"os"
	"time"

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
	"github.com/smallbiznis/escrutinio/pkg/db"
	"github.com/spf13/pflag"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type options struct {
	mapPath  string
	planPath string
	timeout  time.Duration
}

func main() {
	var opts options
	pflag.StringVarP(&opts.mapPath, "map", "m", "", "electoral map CSV to import (required)")
	pflag.StringVarP(&opts.planPath, "plan", "p", "", "TOML election plan; the built-in plan is used when empty")
	pflag.DurationVar(&opts.timeout, "timeout", 30*time.Minute, "abort the import after this long")
	pflag.Parse()

	if opts.mapPath == "" {
		fmt.Fprintln(os.Stderr, "importer: --map is required")
		pflag.Usage()
		os.Exit(2)
	}

	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		cache.Module,

		geography.Module,
		election.Module,
		mesa.Module,
		progress.Module,
		importer.Module,

		fx.Supply(opts),
		fx.Invoke(RunImport),
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.SnowflakeNode)
}

// RunImport performs one pass once the app has started and shuts it down after.
func RunImport(lc fx.Lifecycle, shutdowner fx.Shutdowner, im *importer.Importer, opts options, log *zap.Logger) {
	log = log.Named("importer.cli")
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				code := 0
				if err := importMap(im, opts, log); err != nil {
					log.Error("import failed", zap.Error(err))
					code = 1
				}
				_ = shutdowner.Shutdown(fx.ExitCode(code))
			}()
			return nil
		},
	})
}

func importMap(im *importer.Importer, opts options, log *zap.Logger) error {
	plan := importer.DefaultPlan()
	if opts.planPath != "" {
		loaded, err := importer.LoadPlan(opts.planPath)
		if err != nil {
			return err
		}
		plan = loaded
	}

	f, err := os.Open(opts.mapPath)
	if err != nil {
		return fmt.Errorf("open map: %w", err)
	}
	defer f.Close()

	rows, err := importer.ReadRows(f)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()

	report, err := im.Run(ctx, plan, rows)
	if err != nil {
		return err
	}
	log.Info("import finished",
		zap.String("pass_id", report.PassID),
		zap.Int("rows", report.Rows),
		zap.Int("mesas", report.Mesas),
		zap.Int("associations", report.Associations),
		zap.Bool("weighted_projection", report.WeightedProjection),
	)
	return nil
}
