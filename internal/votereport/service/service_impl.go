package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/escrutinio/internal/clock"
	"github.com/smallbiznis/escrutinio/internal/observability/metrics"
	progressdomain "github.com/smallbiznis/escrutinio/internal/progress/domain"
	"github.com/smallbiznis/escrutinio/internal/votereport/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     domain.Repository
	Counters progressdomain.Counters
	Metrics  *metrics.Metrics `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     domain.Repository
	counters progressdomain.Counters
	metrics  *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("votereport.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		counters: p.Counters,
		metrics:  p.Metrics,
	}
}

func (s *Service) Record(ctx context.Context, req domain.RecordRequest) (domain.VoteReport, error) {
	reports, err := s.RecordBatch(ctx, []domain.RecordRequest{req})
	if err != nil {
		return domain.VoteReport{}, err
	}
	return reports[0], nil
}

func (s *Service) RecordBatch(ctx context.Context, reqs []domain.RecordRequest) ([]domain.VoteReport, error) {
	if len(reqs) == 0 {
		return nil, domain.ErrEmptyBatch
	}
	for _, req := range reqs {
		if err := validate(req); err != nil {
			return nil, err
		}
	}

	reports := make([]domain.VoteReport, 0, len(reqs))
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		touched := make([]snowflake.ID, 0, 1)
		seen := make(map[snowflake.ID]struct{})

		for _, req := range reqs {
			report, err := s.upsert(ctx, tx, req)
			if err != nil {
				return err
			}
			reports = append(reports, report)
			if _, ok := seen[req.MesaID]; !ok {
				seen[req.MesaID] = struct{}{}
				touched = append(touched, req.MesaID)
			}
		}

		for _, mesaID := range touched {
			if err := s.counters.RecomputeLoaded(ctx, tx, mesaID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, report := range reports {
		s.metrics.RecordVoteReport(ctx, report.ElectionID.String())
	}
	return reports, nil
}

func (s *Service) upsert(ctx context.Context, tx *gorm.DB, req domain.RecordRequest) (domain.VoteReport, error) {
	associated, err := s.repo.AssociationExists(ctx, tx, req.MesaID, req.ElectionID)
	if err != nil {
		return domain.VoteReport{}, fmt.Errorf("check mesa election: %w", err)
	}
	if !associated {
		return domain.VoteReport{}, domain.ErrMesaNotInElection
	}
	listed, err := s.repo.OptionInElection(ctx, tx, req.ElectionID, req.OptionID)
	if err != nil {
		return domain.VoteReport{}, fmt.Errorf("check election option: %w", err)
	}
	if !listed {
		return domain.VoteReport{}, domain.ErrOptionNotInElection
	}

	now := s.clock.Now()
	report := domain.VoteReport{
		ID:         s.genID.Generate(),
		MesaID:     req.MesaID,
		ElectionID: req.ElectionID,
		OptionID:   req.OptionID,
		Votes:      req.Votes,
		ReporterID: req.ReporterID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.Upsert(ctx, tx, &report); err != nil {
		return domain.VoteReport{}, fmt.Errorf("upsert vote report: %w", err)
	}

	stored, err := s.repo.Find(ctx, tx, req.MesaID, req.ElectionID, req.OptionID)
	if err != nil {
		return domain.VoteReport{}, err
	}
	if stored == nil {
		return domain.VoteReport{}, fmt.Errorf("vote report for mesa %s missing after upsert", req.MesaID)
	}
	return *stored, nil
}

func (s *Service) ListForMesa(ctx context.Context, mesaID, electionID snowflake.ID) ([]domain.VoteReport, error) {
	if mesaID == 0 || electionID == 0 {
		return nil, domain.ErrInvalidID
	}
	return s.repo.ListForMesa(ctx, s.db, mesaID, electionID)
}

func (s *Service) TotalReported(ctx context.Context, mesaID snowflake.ID) (*int64, error) {
	if mesaID == 0 {
		return nil, domain.ErrInvalidID
	}
	return s.repo.TotalVotes(ctx, s.db, mesaID)
}

func validate(req domain.RecordRequest) error {
	if req.MesaID == 0 || req.ElectionID == 0 || req.OptionID == 0 {
		return domain.ErrInvalidID
	}
	if req.Votes != nil && *req.Votes < 0 {
		return domain.ErrInvalidVotes
	}
	return nil
}
