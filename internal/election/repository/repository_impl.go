package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/escrutinio/internal/election/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const electionColumns = `e.id, e.slug, e.name, e.held_at, e.active, e.color, e.back_color`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertElection(ctx context.Context, db *gorm.DB, election *domain.Election) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "slug"}}, DoNothing: true}).
		Create(election).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Election, error) {
	var election domain.Election
	err := db.WithContext(ctx).Raw(
		`SELECT `+electionColumns+` FROM elections e WHERE e.id = ?`,
		id,
	).Scan(&election).Error
	if err != nil {
		return nil, err
	}
	if election.ID == 0 {
		return nil, nil
	}
	return &election, nil
}

func (r *repo) FindBySlug(ctx context.Context, db *gorm.DB, slug string) (*domain.Election, error) {
	var election domain.Election
	err := db.WithContext(ctx).Raw(
		`SELECT `+electionColumns+` FROM elections e WHERE e.slug = ?`,
		slug,
	).Scan(&election).Error
	if err != nil {
		return nil, err
	}
	if election.ID == 0 {
		return nil, nil
	}
	return &election, nil
}

func (r *repo) ListActive(ctx context.Context, db *gorm.DB) ([]domain.Election, error) {
	var elections []domain.Election
	err := db.WithContext(ctx).Raw(
		`SELECT `+electionColumns+` FROM elections e WHERE e.active = ? ORDER BY e.id`,
		true,
	).Scan(&elections).Error
	if err != nil {
		return nil, err
	}
	return elections, nil
}

func (r *repo) SetActive(ctx context.Context, db *gorm.DB, id snowflake.ID, active bool) error {
	return db.WithContext(ctx).Exec(
		`UPDATE elections SET active = ? WHERE id = ?`,
		active,
		id,
	).Error
}

func (r *repo) InsertElectionOption(ctx context.Context, db *gorm.DB, electionID, optionID snowflake.ID) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&domain.ElectionOption{ElectionID: electionID, OptionID: optionID}).Error
}

func (r *repo) ListOptions(ctx context.Context, db *gorm.DB, electionID snowflake.ID) ([]domain.Option, error) {
	var options []domain.Option
	err := db.WithContext(ctx).Raw(
		`SELECT o.id, o.party_id, o.name, o.short_name, o.sort_order, o.mandatory,
		        o.is_countable, o.is_metadata, o.official_code
		 FROM options o
		 JOIN election_options eo ON eo.option_id = o.id
		 WHERE eo.election_id = ?
		 ORDER BY CASE WHEN o.sort_order IS NULL THEN 1 ELSE 0 END, o.sort_order, o.id`,
		electionID,
	).Scan(&options).Error
	if err != nil {
		return nil, err
	}
	return options, nil
}

func (r *repo) CommonTo(ctx context.Context, db *gorm.DB, mesaIDs []snowflake.ID) ([]domain.Election, error) {
	var elections []domain.Election
	err := db.WithContext(ctx).Raw(
		`SELECT `+electionColumns+`
		 FROM elections e
		 JOIN mesa_elections me ON me.election_id = e.id
		 WHERE e.active = ? AND me.mesa_id IN ?
		 GROUP BY `+electionColumns+`
		 HAVING COUNT(DISTINCT me.mesa_id) = ?
		 ORDER BY e.id`,
		true,
		mesaIDs,
		len(mesaIDs),
	).Scan(&elections).Error
	if err != nil {
		return nil, err
	}
	return elections, nil
}

func (r *repo) SumElectors(ctx context.Context, db *gorm.DB, electionID snowflake.ID) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(m.electors), 0)
		 FROM mesas m
		 JOIN mesa_elections me ON me.mesa_id = m.id
		 WHERE me.election_id = ?`,
		electionID,
	).Scan(&total).Error
	return total, err
}

func (r *repo) AssociatedMesaIDs(ctx context.Context, db *gorm.DB, electionID snowflake.ID) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	err := db.WithContext(ctx).Raw(
		`SELECT mesa_id FROM mesa_elections WHERE election_id = ? ORDER BY mesa_id`,
		electionID,
	).Scan(&ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
