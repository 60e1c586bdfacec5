package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/escrutinio/internal/clock"
	"github.com/smallbiznis/escrutinio/internal/config"
	electiondomain "github.com/smallbiznis/escrutinio/internal/election/domain"
	"github.com/smallbiznis/escrutinio/internal/mesa/domain"
	"github.com/smallbiznis/escrutinio/internal/observability/metrics"
	progressdomain "github.com/smallbiznis/escrutinio/internal/progress/domain"
	"github.com/smallbiznis/escrutinio/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	Engine       *config.EngineConfigHolder
	Repo         domain.Repository
	ElectionRepo electiondomain.Repository
	Counters     progressdomain.Counters
	Metrics      *metrics.Metrics `optional:"true"`
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	clock        clock.Clock
	engine       *config.EngineConfigHolder
	repo         domain.Repository
	electionRepo electiondomain.Repository
	counters     progressdomain.Counters
	metrics      *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("mesa.service"),
		genID:        p.GenID,
		clock:        p.Clock,
		engine:       p.Engine,
		repo:         p.Repo,
		electionRepo: p.ElectionRepo,
		counters:     p.Counters,
		metrics:      p.Metrics,
	}
}

func (s *Service) Save(ctx context.Context, req domain.SaveMesaRequest) (domain.Mesa, error) {
	if req.Number <= 0 {
		return domain.Mesa{}, domain.ErrInvalidNumber
	}
	if req.Electors != nil && *req.Electors < 0 {
		return domain.Mesa{}, domain.ErrInvalidElectors
	}

	var saved domain.Mesa
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.clock.Now()
		var previousPlace *snowflake.ID
		existing, err := s.repo.FindByNumber(ctx, tx, req.Number)
		if err != nil {
			return fmt.Errorf("find mesa: %w", err)
		}

		if existing == nil {
			mesa := domain.Mesa{
				ID:            s.genID.Generate(),
				Number:        req.Number,
				State:         domain.StateWaiting,
				VotingPlaceID: req.VotingPlaceID,
				CircuitID:     req.CircuitID,
				Electors:      req.Electors,
				IsWitness:     req.IsWitness,
				RecordURL:     req.RecordURL,
				LoadOrder:     req.LoadOrder,
				CreatedAt:     now,
				UpdatedAt:     now,
			}
			err := tx.Transaction(func(sp *gorm.DB) error {
				return s.repo.Insert(ctx, sp, &mesa)
			})
			if err != nil {
				if !db.IsDuplicateKeyErr(err) {
					return fmt.Errorf("insert mesa: %w", err)
				}
				// lost an insert race on the number; fall through to update
				existing, err = s.repo.FindByNumber(ctx, tx, req.Number)
				if err != nil {
					return fmt.Errorf("reload mesa %d: %w", req.Number, err)
				}
				if existing == nil {
					return fmt.Errorf("mesa %d missing after duplicate insert", req.Number)
				}
			} else {
				saved = mesa
			}
		}

		if existing != nil {
			previousPlace = existing.VotingPlaceID
			existing.VotingPlaceID = req.VotingPlaceID
			existing.CircuitID = req.CircuitID
			if req.Electors != nil {
				existing.Electors = req.Electors
			}
			existing.IsWitness = req.IsWitness
			if req.RecordURL != "" {
				existing.RecordURL = req.RecordURL
			}
			if req.LoadOrder > 0 {
				existing.LoadOrder = req.LoadOrder
			}
			existing.UpdatedAt = now
			if err := s.repo.UpdateAttributes(ctx, tx, existing); err != nil {
				return fmt.Errorf("update mesa: %w", err)
			}
			saved = *existing
		}

		if err := s.counters.RecomputeElectors(ctx, tx, saved.ID); err != nil {
			return err
		}
		if previousPlace != nil && (saved.VotingPlaceID == nil || *saved.VotingPlaceID != *previousPlace) {
			return s.counters.RecomputePlaceElectors(ctx, tx, *previousPlace)
		}
		return nil
	})
	if err != nil {
		return domain.Mesa{}, err
	}
	return saved, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (domain.Mesa, error) {
	if id == 0 {
		return domain.Mesa{}, domain.ErrInvalidID
	}
	mesa, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Mesa{}, err
	}
	if mesa == nil {
		return domain.Mesa{}, domain.ErrNotFound
	}
	return *mesa, nil
}

func (s *Service) AddElection(ctx context.Context, mesaID, electionID snowflake.ID) (domain.MesaElection, error) {
	if mesaID == 0 || electionID == 0 {
		return domain.MesaElection{}, domain.ErrInvalidID
	}

	var association domain.MesaElection
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		mesa, err := s.repo.FindByID(ctx, tx, mesaID)
		if err != nil {
			return err
		}
		if mesa == nil {
			return domain.ErrNotFound
		}
		election, err := s.electionRepo.FindByID(ctx, tx, electionID)
		if err != nil {
			return err
		}
		if election == nil {
			return electiondomain.ErrNotFound
		}

		if err := s.repo.InsertAssociation(ctx, tx, &domain.MesaElection{
			ID:         s.genID.Generate(),
			MesaID:     mesaID,
			ElectionID: electionID,
		}); err != nil {
			return fmt.Errorf("insert mesa election: %w", err)
		}
		found, err := s.repo.FindAssociation(ctx, tx, mesaID, electionID)
		if err != nil {
			return err
		}
		if found == nil {
			return fmt.Errorf("mesa election %s/%s missing after insert", mesaID, electionID)
		}
		association = *found
		return nil
	})
	if err != nil {
		return domain.MesaElection{}, err
	}
	return association, nil
}

func (s *Service) AdvanceState(ctx context.Context, mesaID snowflake.ID) (domain.Mesa, error) {
	if mesaID == 0 {
		return domain.Mesa{}, domain.ErrInvalidID
	}

	var advanced domain.Mesa
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		mesa, err := s.repo.LockByID(ctx, tx, mesaID)
		if err != nil {
			return err
		}
		if mesa == nil {
			return domain.ErrNotFound
		}
		advanced = *mesa
		if mesa.State.Terminal() {
			return nil
		}

		now := s.clock.Now()
		next := mesa.State.Next()
		var talliedAt *time.Time
		if next == domain.StateTallied {
			talliedAt = &now
			advanced.TalliedAt = talliedAt
		}
		if err := s.repo.UpdateState(ctx, tx, mesaID, next, talliedAt, now); err != nil {
			return fmt.Errorf("update mesa state: %w", err)
		}
		advanced.State = next
		advanced.UpdatedAt = now
		return nil
	})
	if err != nil {
		return domain.Mesa{}, err
	}

	s.metrics.RecordStateAdvance(ctx, advanced.State.String())
	s.log.Info("mesa state advanced",
		zap.String("mesa_id", mesaID.String()),
		zap.String("state", advanced.State.String()),
	)
	return advanced, nil
}

func (s *Service) NextElectionPendingReport(ctx context.Context, mesaID snowflake.ID) (*electiondomain.Election, error) {
	if err := s.ensureMesa(ctx, mesaID); err != nil {
		return nil, err
	}
	return s.repo.NextElectionPendingReport(ctx, s.db, mesaID)
}

func (s *Service) NextElectionPendingConfirmation(ctx context.Context, mesaID snowflake.ID) (*electiondomain.Election, error) {
	if err := s.ensureMesa(ctx, mesaID); err != nil {
		return nil, err
	}
	return s.repo.NextElectionPendingConfirmation(ctx, s.db, mesaID)
}

func (s *Service) Confirm(ctx context.Context, mesaID, electionID snowflake.ID) (domain.MesaElection, error) {
	association, err := s.setConfirmed(ctx, mesaID, electionID, true)
	if err != nil {
		return domain.MesaElection{}, err
	}
	s.metrics.RecordConfirmation(ctx, true)
	return association, nil
}

func (s *Service) Unconfirm(ctx context.Context, mesaID, electionID snowflake.ID) (domain.MesaElection, error) {
	association, err := s.setConfirmed(ctx, mesaID, electionID, false)
	if err != nil {
		return domain.MesaElection{}, err
	}
	s.metrics.RecordConfirmation(ctx, false)
	return association, nil
}

func (s *Service) setConfirmed(ctx context.Context, mesaID, electionID snowflake.ID, confirmed bool) (domain.MesaElection, error) {
	if mesaID == 0 || electionID == 0 {
		return domain.MesaElection{}, domain.ErrInvalidID
	}

	var association domain.MesaElection
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		mesa, err := s.repo.LockByID(ctx, tx, mesaID)
		if err != nil {
			return err
		}
		if mesa == nil {
			return domain.ErrNotFound
		}
		found, err := s.repo.FindAssociation(ctx, tx, mesaID, electionID)
		if err != nil {
			return err
		}
		if found == nil {
			return domain.ErrMesaNotInElection
		}

		if confirmed {
			election, err := s.electionRepo.FindByID(ctx, tx, electionID)
			if err != nil {
				return err
			}
			if election == nil || !election.Active {
				return domain.ErrElectionInactive
			}
			reports, err := s.repo.CountReports(ctx, tx, mesaID, electionID)
			if err != nil {
				return fmt.Errorf("count vote reports: %w", err)
			}
			if reports == 0 {
				return domain.ErrNothingToConfirm
			}
		}

		if found.Confirmed != confirmed {
			if err := s.repo.SetConfirmed(ctx, tx, mesaID, electionID, confirmed); err != nil {
				return fmt.Errorf("set confirmed: %w", err)
			}
			found.Confirmed = confirmed
		}
		association = *found
		return s.counters.RecomputeConfirmed(ctx, tx, mesaID)
	})
	if err != nil {
		return domain.MesaElection{}, err
	}
	return association, nil
}

func (s *Service) Claim(ctx context.Context, mesaID snowflake.ID, window time.Duration) (bool, error) {
	if err := s.ensureMesa(ctx, mesaID); err != nil {
		return false, err
	}
	if window <= 0 {
		window = s.engine.Get().StalenessWindow
	}

	now := s.clock.Now()
	claimed, err := s.repo.Claim(ctx, s.db, mesaID, now, now.Add(-window))
	if err != nil {
		return false, fmt.Errorf("claim mesa: %w", err)
	}
	s.metrics.RecordClaim(ctx, claimed)
	return claimed, nil
}

func (s *Service) Release(ctx context.Context, mesaID snowflake.ID) error {
	if err := s.ensureMesa(ctx, mesaID); err != nil {
		return err
	}
	return s.repo.Release(ctx, s.db, mesaID, s.clock.Now())
}

func (s *Service) ensureMesa(ctx context.Context, mesaID snowflake.ID) error {
	if mesaID == 0 {
		return domain.ErrInvalidID
	}
	mesa, err := s.repo.FindByID(ctx, s.db, mesaID)
	if err != nil {
		return err
	}
	if mesa == nil {
		return domain.ErrNotFound
	}
	return nil
}
