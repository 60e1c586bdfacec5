package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/escrutinio/internal/votereport/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, report *domain.VoteReport) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "mesa_id"}, {Name: "election_id"}, {Name: "option_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"votes", "reporter_id", "updated_at"}),
		}).
		Create(report).Error
}

func (r *repo) Find(ctx context.Context, db *gorm.DB, mesaID, electionID, optionID snowflake.ID) (*domain.VoteReport, error) {
	var report domain.VoteReport
	err := db.WithContext(ctx).Raw(
		`SELECT id, mesa_id, election_id, option_id, votes, reporter_id, created_at, updated_at
		 FROM vote_reports
		 WHERE mesa_id = ? AND election_id = ? AND option_id = ?`,
		mesaID,
		electionID,
		optionID,
	).Scan(&report).Error
	if err != nil {
		return nil, err
	}
	if report.ID == 0 {
		return nil, nil
	}
	return &report, nil
}

func (r *repo) ListForMesa(ctx context.Context, db *gorm.DB, mesaID, electionID snowflake.ID) ([]domain.VoteReport, error) {
	var reports []domain.VoteReport
	err := db.WithContext(ctx).Raw(
		`SELECT id, mesa_id, election_id, option_id, votes, reporter_id, created_at, updated_at
		 FROM vote_reports
		 WHERE mesa_id = ? AND election_id = ?
		 ORDER BY option_id`,
		mesaID,
		electionID,
	).Scan(&reports).Error
	if err != nil {
		return nil, err
	}
	return reports, nil
}

func (r *repo) TotalVotes(ctx context.Context, db *gorm.DB, mesaID snowflake.ID) (*int64, error) {
	var row struct {
		Total *int64
	}
	err := db.WithContext(ctx).Raw(
		`SELECT SUM(votes) AS total FROM vote_reports WHERE mesa_id = ?`,
		mesaID,
	).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	return row.Total, nil
}

func (r *repo) AssociationExists(ctx context.Context, db *gorm.DB, mesaID, electionID snowflake.ID) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM mesa_elections WHERE mesa_id = ? AND election_id = ?`,
		mesaID,
		electionID,
	).Scan(&count).Error
	return count > 0, err
}

func (r *repo) OptionInElection(ctx context.Context, db *gorm.DB, electionID, optionID snowflake.ID) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM election_options WHERE election_id = ? AND option_id = ?`,
		electionID,
		optionID,
	).Scan(&count).Error
	return count > 0, err
}
