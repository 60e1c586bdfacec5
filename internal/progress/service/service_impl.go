package service

import (
	"context"
	"fmt"
	"time"

	"github.com/smallbiznis/escrutinio/internal/clock"
	"github.com/smallbiznis/escrutinio/internal/config"
	mesadomain "github.com/smallbiznis/escrutinio/internal/mesa/domain"
	"github.com/smallbiznis/escrutinio/internal/progress/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Clock       clock.Clock
	Engine      *config.EngineConfigHolder
	Repo        domain.Repository
	Attachments domain.AttachmentCounter
	Problems    domain.ProblemChecker
	Cache       domain.SummaryCache `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	clock       clock.Clock
	engine      *config.EngineConfigHolder
	repo        domain.Repository
	attachments domain.AttachmentCounter
	problems    domain.ProblemChecker
	cache       domain.SummaryCache
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("progress.service"),
		clock:       p.Clock,
		engine:      p.Engine,
		repo:        p.Repo,
		attachments: p.Attachments,
		problems:    p.Problems,
		cache:       p.Cache,
	}
}

func (s *Service) PendingDataEntry(ctx context.Context, window time.Duration) ([]mesadomain.Mesa, error) {
	if window <= 0 {
		window = s.engine.Get().StalenessWindow
	}
	staleBefore := s.clock.Now().Add(-window)

	candidates, err := s.repo.DataEntryCandidates(ctx, s.db, staleBefore)
	if err != nil {
		return nil, fmt.Errorf("list data entry candidates: %w", err)
	}

	mesas := make([]mesadomain.Mesa, 0, len(candidates))
	for _, mesa := range candidates {
		attachments, err := s.attachments.AttachmentCount(ctx, mesa.ID)
		if err != nil {
			return nil, fmt.Errorf("count attachments: %w", err)
		}
		if attachments == 0 {
			continue
		}
		blocked, err := s.problems.HasUnresolvedProblem(ctx, mesa.ID)
		if err != nil {
			return nil, fmt.Errorf("check problems: %w", err)
		}
		if blocked {
			continue
		}
		mesas = append(mesas, mesa)
	}
	return mesas, nil
}

func (s *Service) PendingConfirmation(ctx context.Context) ([]mesadomain.Mesa, error) {
	mesas, err := s.repo.PendingConfirmation(ctx, s.db)
	if err != nil {
		return nil, fmt.Errorf("list pending confirmation: %w", err)
	}
	return mesas, nil
}

func (s *Service) Summary(ctx context.Context) (domain.Summary, error) {
	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx)
		if err != nil {
			s.log.Warn("summary cache read failed", zap.Error(err))
		} else if ok {
			return cached, nil
		}
	}

	unassigned, err := s.attachments.UnassignedCount(ctx)
	if err != nil {
		return domain.Summary{}, fmt.Errorf("count unassigned attachments: %w", err)
	}
	pendingEntry, err := s.PendingDataEntry(ctx, 0)
	if err != nil {
		return domain.Summary{}, err
	}
	pendingConfirmation, err := s.PendingConfirmation(ctx)
	if err != nil {
		return domain.Summary{}, err
	}

	summary := domain.Summary{
		UnassignedAttachments: unassigned,
		PendingDataEntry:      int64(len(pendingEntry)),
		PendingConfirmation:   int64(len(pendingConfirmation)),
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, summary, s.engine.Get().SummaryTTL); err != nil {
			s.log.Warn("summary cache write failed", zap.Error(err))
		}
	}
	return summary, nil
}
