package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/escrutinio/internal/clock"
	mesadomain "github.com/smallbiznis/escrutinio/internal/mesa/domain"
	"github.com/smallbiznis/escrutinio/internal/observability/metrics"
	"github.com/smallbiznis/escrutinio/internal/progress/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type CountersParams struct {
	fx.In

	Log      *zap.Logger
	Clock    clock.Clock
	Repo     domain.Repository
	MesaRepo mesadomain.Repository
	Metrics  *metrics.Metrics `optional:"true"`
}

type counters struct {
	log      *zap.Logger
	clock    clock.Clock
	repo     domain.Repository
	mesaRepo mesadomain.Repository
	metrics  *metrics.Metrics
}

func NewCounters(p CountersParams) domain.Counters {
	return &counters{
		log:      p.Log.Named("progress.counters"),
		clock:    p.Clock,
		repo:     p.Repo,
		mesaRepo: p.MesaRepo,
		metrics:  p.Metrics,
	}
}

func (c *counters) RecomputeLoaded(ctx context.Context, tx *gorm.DB, mesaID snowflake.ID) error {
	mesa, err := c.mesaRepo.LockByID(ctx, tx, mesaID)
	if err != nil {
		return fmt.Errorf("lock mesa: %w", err)
	}
	if mesa == nil {
		return nil
	}

	loaded, err := c.repo.CountLoaded(ctx, tx, mesaID)
	if err != nil {
		return fmt.Errorf("count loaded elections: %w", err)
	}
	if loaded == mesa.LoadedCount {
		return nil
	}

	if err := c.repo.SetLoadedCount(ctx, tx, mesaID, loaded, c.clock.Now()); err != nil {
		return fmt.Errorf("write loaded count: %w", err)
	}
	c.metrics.RecordCounterWrite(ctx, "loaded")
	c.log.Debug("loaded count updated",
		zap.String("mesa_id", mesaID.String()),
		zap.Int("from", mesa.LoadedCount),
		zap.Int("to", loaded),
	)
	return nil
}

func (c *counters) RecomputeConfirmed(ctx context.Context, tx *gorm.DB, mesaID snowflake.ID) error {
	mesa, err := c.mesaRepo.LockByID(ctx, tx, mesaID)
	if err != nil {
		return fmt.Errorf("lock mesa: %w", err)
	}
	if mesa == nil {
		return nil
	}

	confirmed, err := c.repo.CountConfirmed(ctx, tx, mesaID)
	if err != nil {
		return fmt.Errorf("count confirmed elections: %w", err)
	}
	if confirmed == mesa.ConfirmedCount {
		return nil
	}

	if err := c.repo.SetConfirmedCount(ctx, tx, mesaID, confirmed, c.clock.Now()); err != nil {
		return fmt.Errorf("write confirmed count: %w", err)
	}
	c.metrics.RecordCounterWrite(ctx, "confirmed")
	c.log.Debug("confirmed count updated",
		zap.String("mesa_id", mesaID.String()),
		zap.Int("from", mesa.ConfirmedCount),
		zap.Int("to", confirmed),
	)
	return nil
}

func (c *counters) RecomputeElectors(ctx context.Context, tx *gorm.DB, mesaID snowflake.ID) error {
	mesa, err := c.mesaRepo.LockByID(ctx, tx, mesaID)
	if err != nil {
		return fmt.Errorf("lock mesa: %w", err)
	}
	if mesa == nil {
		return nil
	}

	circuitID, sectionID, ok, err := c.repo.MesaGeography(ctx, tx, mesaID)
	if err != nil {
		return fmt.Errorf("resolve mesa geography: %w", err)
	}
	if !ok {
		return nil
	}

	return c.recomputeGeography(ctx, tx, circuitID, sectionID)
}

func (c *counters) RecomputePlaceElectors(ctx context.Context, tx *gorm.DB, votingPlaceID snowflake.ID) error {
	circuitID, sectionID, ok, err := c.repo.PlaceGeography(ctx, tx, votingPlaceID)
	if err != nil {
		return fmt.Errorf("resolve place geography: %w", err)
	}
	if !ok {
		return nil
	}
	return c.recomputeGeography(ctx, tx, circuitID, sectionID)
}

// recomputeGeography locks the circuit and section rows, then writes each
// elector total only when the sum over mesas differs.
func (c *counters) recomputeGeography(ctx context.Context, tx *gorm.DB, circuitID, sectionID snowflake.ID) error {
	currentCircuit, currentSection, err := c.repo.CurrentElectors(ctx, tx, circuitID, sectionID)
	if err != nil {
		return fmt.Errorf("lock circuit and section: %w", err)
	}

	circuitTotal, err := c.repo.SumCircuitElectors(ctx, tx, circuitID)
	if err != nil {
		return fmt.Errorf("sum circuit electors: %w", err)
	}
	if circuitTotal != currentCircuit {
		if err := c.repo.SetCircuitElectors(ctx, tx, circuitID, circuitTotal); err != nil {
			return fmt.Errorf("write circuit electors: %w", err)
		}
		c.metrics.RecordCounterWrite(ctx, "circuit_electors")
	}

	sectionTotal, err := c.repo.SumSectionElectors(ctx, tx, sectionID)
	if err != nil {
		return fmt.Errorf("sum section electors: %w", err)
	}
	if sectionTotal != currentSection {
		if err := c.repo.SetSectionElectors(ctx, tx, sectionID, sectionTotal); err != nil {
			return fmt.Errorf("write section electors: %w", err)
		}
		c.metrics.RecordCounterWrite(ctx, "section_electors")
	}
	return nil
}
