package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/escrutinio/internal/config"
	electiondomain "github.com/smallbiznis/escrutinio/internal/election/domain"
	geographydomain "github.com/smallbiznis/escrutinio/internal/geography/domain"
	"github.com/smallbiznis/escrutinio/internal/importer"
	mesadomain "github.com/smallbiznis/escrutinio/internal/mesa/domain"
	"github.com/smallbiznis/escrutinio/internal/observability"
	obsmiddleware "github.com/smallbiznis/escrutinio/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/escrutinio/internal/observability/metrics"
	obstracing "github.com/smallbiznis/escrutinio/internal/observability/tracing"
	progressdomain "github.com/smallbiznis/escrutinio/internal/progress/domain"
	votereportdomain "github.com/smallbiznis/escrutinio/internal/votereport/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(func(s *Server) {
		s.RegisterRoutes()
	}),
	fx.Invoke(RunHTTP),
)

func NewEngine(cfg config.Config, obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics, db *gorm.DB) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:  cfg.CORSAllowedOrigins,
			AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
			AllowHeaders:  []string{"Origin", "Content-Type", "X-Request-Id", "X-Reporter-Id"},
			ExposeHeaders: []string{"X-Request-Id"},
			MaxAge:        12 * time.Hour,
		}))
	}
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func RunHTTP(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Log          *zap.Logger
	MesaSvc      mesadomain.Service
	ElectionSvc  electiondomain.Service
	VoteSvc      votereportdomain.Service
	ProgressSvc  progressdomain.Service
	GeographySvc geographydomain.Service
	Importer     *importer.Importer `optional:"true"`
}

type Server struct {
	engine       *gin.Engine
	log          *zap.Logger
	mesaSvc      mesadomain.Service
	electionSvc  electiondomain.Service
	voteSvc      votereportdomain.Service
	progressSvc  progressdomain.Service
	geographySvc geographydomain.Service
	importer     *importer.Importer
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine:       p.Gin,
		log:          p.Log.Named("http.server"),
		mesaSvc:      p.MesaSvc,
		electionSvc:  p.ElectionSvc,
		voteSvc:      p.VoteSvc,
		progressSvc:  p.ProgressSvc,
		geographySvc: p.GeographySvc,
		importer:     p.Importer,
	}
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) RegisterRoutes() {
	v1 := s.engine.Group("/v1")

	v1.GET("/summary", s.Summary)

	mesas := v1.Group("/mesas")
	{
		mesas.GET("/pending-entry", s.ListPendingEntry)
		mesas.GET("/pending-confirmation", s.ListPendingConfirmation)

		mesa := mesas.Group("/:id")
		mesa.GET("", s.GetMesa)
		mesa.POST("/claim", s.ClaimMesa)
		mesa.DELETE("/claim", s.ReleaseMesa)
		mesa.POST("/advance", s.AdvanceMesa)
		mesa.POST("/load-order", s.AssignLoadOrder)
		mesa.GET("/projection-group", s.GetProjectionGroup)
		mesa.GET("/next-election/entry", s.NextElectionForEntry)
		mesa.GET("/next-election/confirmation", s.NextElectionForConfirmation)

		election := mesa.Group("/elections/:election_id")
		election.GET("/votes", s.ListVotes)
		election.POST("/votes", s.RecordVote)
		election.PUT("/votes", s.RecordTallySheet)
		election.POST("/confirm", s.ConfirmMesa)
		election.DELETE("/confirm", s.UnconfirmMesa)
	}

	elections := v1.Group("/elections")
	{
		elections.GET("", s.ListActiveElections)
		elections.GET("/current", s.GetCurrentElection)
		elections.GET("/common", s.ListCommonElections)
		elections.GET("/:election_id/options", s.ListElectionOptions)
		elections.PATCH("/:election_id", s.UpdateElection)
	}

	v1.GET("/voting-places/:id", s.GetVotingPlace)

	if s.importer != nil {
		v1.POST("/imports", s.RunImport)
		v1.GET("/imports", s.ListImportRuns)
	}
}
