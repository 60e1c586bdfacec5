package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/escrutinio/internal/config"
	"github.com/smallbiznis/escrutinio/internal/election/domain"
	progressdomain "github.com/smallbiznis/escrutinio/internal/progress/domain"
	"github.com/smallbiznis/escrutinio/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultColor     = "black"
	defaultBackColor = "white"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Engine   *config.EngineConfigHolder
	Repo     domain.Repository
	Counters progressdomain.Counters
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	engine   *config.EngineConfigHolder
	repo     domain.Repository
	counters progressdomain.Counters

	parties repository.Repository[domain.Party]
	options repository.Repository[domain.Option]
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("election.service"),
		genID:    p.GenID,
		engine:   p.Engine,
		repo:     p.Repo,
		counters: p.Counters,
		parties:  repository.ProvideStore[domain.Party](p.DB),
		options:  repository.ProvideStore[domain.Option](p.DB),
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateElectionRequest) (domain.Election, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Election{}, domain.ErrInvalidName
	}
	electionSlug := strings.TrimSpace(req.Slug)
	if electionSlug == "" {
		electionSlug = slug.Make(name)
	}
	if !slug.IsSlug(electionSlug) {
		return domain.Election{}, domain.ErrInvalidSlug
	}

	election := domain.Election{
		ID:        s.genID.Generate(),
		Slug:      electionSlug,
		Name:      name,
		HeldAt:    req.HeldAt,
		Active:    !req.Inactive,
		Color:     valueOr(req.Color, defaultColor),
		BackColor: valueOr(req.BackColor, defaultBackColor),
	}
	if election.HeldAt != nil {
		heldAt := election.HeldAt.UTC()
		election.HeldAt = &heldAt
	}

	if err := s.repo.InsertElection(ctx, s.db, &election); err != nil {
		return domain.Election{}, fmt.Errorf("insert election: %w", err)
	}

	stored, err := s.repo.FindBySlug(ctx, s.db, electionSlug)
	if err != nil {
		return domain.Election{}, err
	}
	if stored == nil {
		return domain.Election{}, domain.ErrNotFound
	}
	return *stored, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (domain.Election, error) {
	if id == 0 {
		return domain.Election{}, domain.ErrInvalidID
	}
	election, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Election{}, err
	}
	if election == nil {
		return domain.Election{}, domain.ErrNotFound
	}
	return *election, nil
}

func (s *Service) Current(ctx context.Context) (domain.Election, error) {
	current := s.engine.Get().CurrentElection
	if current == "" {
		return domain.Election{}, domain.ErrNoCurrentElection
	}
	election, err := s.repo.FindBySlug(ctx, s.db, current)
	if err != nil {
		return domain.Election{}, err
	}
	if election == nil {
		s.log.Warn("configured current election does not exist", zap.String("slug", current))
		return domain.Election{}, domain.ErrNoCurrentElection
	}
	return *election, nil
}

func (s *Service) ActiveElections(ctx context.Context) ([]domain.Election, error) {
	return s.repo.ListActive(ctx, s.db)
}

func (s *Service) SetActive(ctx context.Context, id snowflake.ID, active bool) (domain.Election, error) {
	if id == 0 {
		return domain.Election{}, domain.ErrInvalidID
	}

	var updated domain.Election
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		election, err := s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if election == nil {
			return domain.ErrNotFound
		}
		updated = *election
		if election.Active == active {
			return nil
		}
		if err := s.repo.SetActive(ctx, tx, id, active); err != nil {
			return fmt.Errorf("set election active: %w", err)
		}
		updated.Active = active

		// loaded and confirmed counts only consider active elections
		mesaIDs, err := s.repo.AssociatedMesaIDs(ctx, tx, id)
		if err != nil {
			return fmt.Errorf("list election mesas: %w", err)
		}
		for _, mesaID := range mesaIDs {
			if err := s.counters.RecomputeLoaded(ctx, tx, mesaID); err != nil {
				return err
			}
			if err := s.counters.RecomputeConfirmed(ctx, tx, mesaID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.Election{}, err
	}

	s.log.Info("election activation changed",
		zap.String("election_id", id.String()),
		zap.Bool("active", active),
	)
	return updated, nil
}

func (s *Service) CreateParty(ctx context.Context, req domain.CreatePartyRequest) (domain.Party, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Party{}, domain.ErrInvalidName
	}
	party := domain.Party{
		ID:        s.genID.Generate(),
		SortOrder: req.Order,
		Number:    req.Number,
		Code:      req.Code,
		Name:      name,
		ShortName: strings.TrimSpace(req.ShortName),
		Color:     strings.TrimSpace(req.Color),
	}
	if err := s.parties.Create(ctx, &party); err != nil {
		return domain.Party{}, fmt.Errorf("insert party: %w", err)
	}
	return party, nil
}

func (s *Service) CreateOption(ctx context.Context, req domain.CreateOptionRequest) (domain.Option, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Option{}, domain.ErrInvalidName
	}
	if req.PartyID != nil {
		party, err := s.parties.FindOne(ctx, &domain.Party{ID: *req.PartyID})
		if err != nil {
			return domain.Option{}, err
		}
		if party == nil {
			return domain.Option{}, domain.ErrPartyNotFound
		}
	}

	option := domain.Option{
		ID:           s.genID.Generate(),
		PartyID:      req.PartyID,
		Name:         name,
		ShortName:    strings.TrimSpace(req.ShortName),
		SortOrder:    req.Order,
		Mandatory:    req.Mandatory,
		IsCountable:  !req.Metadata,
		IsMetadata:   req.Metadata,
		OfficialCode: req.OfficialCode,
	}
	if err := s.options.Create(ctx, &option); err != nil {
		return domain.Option{}, fmt.Errorf("insert option: %w", err)
	}
	return option, nil
}

func (s *Service) AddOption(ctx context.Context, electionID, optionID snowflake.ID) error {
	if electionID == 0 || optionID == 0 {
		return domain.ErrInvalidID
	}
	if _, err := s.Get(ctx, electionID); err != nil {
		return err
	}
	option, err := s.options.FindOne(ctx, &domain.Option{ID: optionID})
	if err != nil {
		return err
	}
	if option == nil {
		return domain.ErrOptionNotFound
	}
	return s.repo.InsertElectionOption(ctx, s.db, electionID, optionID)
}

func (s *Service) OptionsFor(ctx context.Context, electionID snowflake.ID) ([]domain.Option, error) {
	if _, err := s.Get(ctx, electionID); err != nil {
		return nil, err
	}
	return s.repo.ListOptions(ctx, s.db, electionID)
}

func (s *Service) CommonTo(ctx context.Context, mesaIDs []snowflake.ID) ([]domain.Election, error) {
	unique := dedupe(mesaIDs)
	if len(unique) == 0 {
		return []domain.Election{}, nil
	}
	elections, err := s.repo.CommonTo(ctx, s.db, unique)
	if err != nil {
		return nil, fmt.Errorf("common elections: %w", err)
	}
	if elections == nil {
		elections = []domain.Election{}
	}
	return elections, nil
}

func (s *Service) Electors(ctx context.Context, electionID snowflake.ID) (int64, error) {
	if _, err := s.Get(ctx, electionID); err != nil {
		return 0, err
	}
	return s.repo.SumElectors(ctx, s.db, electionID)
}

func dedupe(ids []snowflake.ID) []snowflake.ID {
	seen := make(map[snowflake.ID]struct{}, len(ids))
	out := make([]snowflake.ID, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func valueOr(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}
