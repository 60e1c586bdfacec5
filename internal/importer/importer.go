// Package importer loads the electoral map into the geography, election and
// mesa registries.
package importer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/escrutinio/internal/cache"
	"github.com/smallbiznis/escrutinio/internal/clock"
	"github.com/smallbiznis/escrutinio/internal/config"
	electiondomain "github.com/smallbiznis/escrutinio/internal/election/domain"
	geographydomain "github.com/smallbiznis/escrutinio/internal/geography/domain"
	mesadomain "github.com/smallbiznis/escrutinio/internal/mesa/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	lockKey = "escrutinio:import"
	lockTTL = 30 * time.Minute
)

var ErrImportRunning = errors.New("import_already_running")

type Params struct {
	fx.In

	Log       *zap.Logger
	Engine    *config.EngineConfigHolder
	Geography geographydomain.Service
	Elections electiondomain.Service
	Mesas     mesadomain.Service
	Locker    *cache.Locker `optional:"true"`
	DB        *gorm.DB      `optional:"true"`
	Clock     clock.Clock   `optional:"true"`
}

type Importer struct {
	log       *zap.Logger
	engine    *config.EngineConfigHolder
	geography geographydomain.Service
	elections electiondomain.Service
	mesas     mesadomain.Service
	locker    *cache.Locker
	db        *gorm.DB
	clock     clock.Clock
}

// Report summarizes one import pass.
type Report struct {
	PassID             string `json:"pass_id"`
	Rows               int    `json:"rows"`
	Mesas              int    `json:"mesas"`
	Associations       int    `json:"associations"`
	WeightedProjection bool   `json:"weighted_projection"`
}

func New(p Params) *Importer {
	clk := p.Clock
	if clk == nil {
		clk = clock.NewSystemClock()
	}
	return &Importer{
		log:       p.Log.Named("importer"),
		engine:    p.Engine,
		geography: p.Geography,
		elections: p.Elections,
		mesas:     p.Mesas,
		locker:    p.Locker,
		db:        p.DB,
		clock:     clk,
	}
}

type pass struct {
	*Importer

	plan     Plan
	capital  int
	report   Report
	log      *zap.Logger
	resolved map[string]electiondomain.Election
}

// Run imports rows under plan. Rows are idempotent: re-running a pass only
// moves mesas between voting places and adds missing associations.
func (im *Importer) Run(ctx context.Context, plan Plan, rows []Row) (Report, error) {
	if err := plan.Validate(); err != nil {
		return Report{}, err
	}

	token, acquired, err := im.locker.TryLock(ctx, lockKey, lockTTL)
	if err != nil {
		return Report{}, fmt.Errorf("acquire import lock: %w", err)
	}
	if !acquired {
		return Report{}, ErrImportRunning
	}
	defer func() {
		if err := im.locker.Release(context.Background(), lockKey, token); err != nil {
			im.log.Warn("import lock release failed", zap.Error(err))
		}
	}()

	p := &pass{
		Importer: im,
		plan:     plan,
		capital:  plan.CapitalSection,
		report:   Report{PassID: ulid.Make().String()},
		resolved: make(map[string]electiondomain.Election),
	}
	if p.capital == 0 {
		p.capital = im.engine.Get().CapitalSectionNumber
	}
	p.log = im.log.With(zap.String("pass_id", p.report.PassID))

	startedAt := im.clock.Now()
	report, runErr := p.run(ctx, rows)
	im.recordRun(ctx, startedAt, report, runErr)
	return report, runErr
}

func (p *pass) run(ctx context.Context, rows []Row) (Report, error) {
	p.log.Info("import started", zap.Int("rows", len(rows)), zap.Int("capital_section", p.capital))

	for i, row := range rows {
		if err := row.validate(); err != nil {
			return p.report, fmt.Errorf("row %d: %w", i+1, err)
		}
		if err := p.importRow(ctx, row); err != nil {
			return p.report, fmt.Errorf("row %d: %w", i+1, err)
		}
		p.report.Rows++
	}

	p.log.Info("import finished",
		zap.Int("rows", p.report.Rows),
		zap.Int("mesas", p.report.Mesas),
		zap.Int("associations", p.report.Associations),
		zap.Bool("weighted_projection", p.report.WeightedProjection),
	)
	return p.report, nil
}

func (p *pass) importRow(ctx context.Context, row Row) error {
	sectionNumber := row.SectionNumber
	section, err := p.geography.EnsureSection(ctx, geographydomain.EnsureSectionRequest{
		Number: &sectionNumber,
		Name:   row.SectionName,
	})
	if err != nil {
		return fmt.Errorf("section %d: %w", row.SectionNumber, err)
	}
	circuit, err := p.geography.EnsureCircuit(ctx, geographydomain.EnsureCircuitRequest{
		SectionID: section.ID,
		Number:    row.CircuitNumber,
		Name:      row.CircuitName,
	})
	if err != nil {
		return fmt.Errorf("circuit %s: %w", row.CircuitNumber, err)
	}
	place, err := p.geography.EnsureVotingPlace(ctx, geographydomain.EnsureVotingPlaceRequest{
		CircuitID:    circuit.ID,
		Name:         row.PlaceName,
		Address:      row.Address,
		Neighborhood: row.Neighborhood,
		City:         row.City,
	})
	if err != nil {
		return fmt.Errorf("voting place %q: %w", row.PlaceName, err)
	}

	electors := row.Electors
	locate := geographydomain.LocateVotingPlaceRequest{
		Electors:   &electors,
		Confidence: row.Confidence(),
		Quality:    row.GeoStatus,
	}
	if row.Latitude != nil && row.Longitude != nil {
		locate.Point = &geographydomain.GeoPoint{Latitude: *row.Latitude, Longitude: *row.Longitude}
	}
	if _, err := p.geography.LocateVotingPlace(ctx, place.ID, locate); err != nil {
		return fmt.Errorf("locate voting place %q: %w", row.PlaceName, err)
	}

	elections, err := p.electionsFor(ctx, row)
	if err != nil {
		return err
	}

	isCapital := row.SectionNumber == p.capital
	if isCapital && !p.report.WeightedProjection {
		if _, err := p.geography.SetWeightedProjection(ctx, p.capital); err != nil {
			return err
		}
		p.report.WeightedProjection = true
	}

	placeID, circuitID := place.ID, circuit.ID
	for number := row.MesaFrom; number <= row.MesaTo; number++ {
		mesa, err := p.mesas.Save(ctx, mesadomain.SaveMesaRequest{
			Number:        number,
			VotingPlaceID: &placeID,
			CircuitID:     &circuitID,
		})
		if err != nil {
			return fmt.Errorf("mesa %d: %w", number, err)
		}
		p.report.Mesas++

		for _, election := range elections {
			if _, err := p.mesas.AddElection(ctx, mesa.ID, election.ID); err != nil {
				return fmt.Errorf("mesa %d election %s: %w", number, election.Slug, err)
			}
			p.report.Associations++
		}
	}
	return nil
}

// electionsFor resolves, creating on first use, the elections a row's mesas join.
func (p *pass) electionsFor(ctx context.Context, row Row) ([]electiondomain.Election, error) {
	var out []electiondomain.Election
	for _, planned := range p.plan.Elections {
		if planned.Scope == ScopeCapital && row.SectionNumber != p.capital {
			continue
		}

		key := planned.key(row.SectionNumber)
		election, ok := p.resolved[key]
		if !ok {
			electionSlug, name := planned.resolve(row.SectionName)
			var heldAt *time.Time
			if !planned.Date.IsZero() {
				date := planned.Date
				heldAt = &date
			}
			created, err := p.elections.Create(ctx, electiondomain.CreateElectionRequest{
				Slug:     electionSlug,
				Name:     name,
				HeldAt:   heldAt,
				Inactive: !planned.active(),
			})
			if err != nil {
				return nil, fmt.Errorf("election %q: %w", name, err)
			}
			election = created
			p.resolved[key] = election
		}
		out = append(out, election)
	}
	return out, nil
}
