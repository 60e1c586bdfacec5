package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	mesadomain "github.com/smallbiznis/escrutinio/internal/mesa/domain"
	"github.com/smallbiznis/escrutinio/internal/progress/domain"
	pkgdb "github.com/smallbiznis/escrutinio/pkg/db"
	"gorm.io/gorm"
)

const mesaColumns = `m.id, m.number, m.state, m.voting_place_id, m.circuit_id, m.electors, m.is_witness,
	m.record_url, m.taken_at, m.tallied_at, m.load_order, m.load_confirmed, m.loaded_count,
	m.confirmed_count, m.created_at, m.updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) DataEntryCandidates(ctx context.Context, db *gorm.DB, staleBefore time.Time) ([]mesadomain.Mesa, error) {
	var mesas []mesadomain.Mesa
	err := db.WithContext(ctx).Raw(
		`SELECT `+mesaColumns+`
		 FROM mesas m
		 WHERE m.load_order >= 1
		   AND (m.taken_at IS NULL OR m.taken_at < ?)
		   AND m.loaded_count < (
		     SELECT COUNT(1) FROM mesa_elections me
		     JOIN elections e ON e.id = me.election_id
		     WHERE me.mesa_id = m.id AND e.active = ?
		   )
		 ORDER BY m.load_order, m.id`,
		staleBefore,
		true,
	).Scan(&mesas).Error
	if err != nil {
		return nil, err
	}
	return mesas, nil
}

func (r *repo) PendingConfirmation(ctx context.Context, db *gorm.DB) ([]mesadomain.Mesa, error) {
	var mesas []mesadomain.Mesa
	err := db.WithContext(ctx).Raw(
		`SELECT `+mesaColumns+`
		 FROM mesas m
		 WHERE m.loaded_count >= 1
		   AND m.confirmed_count < m.loaded_count
		   AND EXISTS (
		     SELECT 1 FROM mesa_elections me
		     JOIN elections e ON e.id = me.election_id
		     WHERE me.mesa_id = m.id AND me.confirmed = ? AND e.active = ?
		   )
		 ORDER BY m.id`,
		false,
		true,
	).Scan(&mesas).Error
	if err != nil {
		return nil, err
	}
	return mesas, nil
}

func (r *repo) CountLoaded(ctx context.Context, db *gorm.DB, mesaID snowflake.ID) (int, error) {
	var count int
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(DISTINCT vr.election_id)
		 FROM vote_reports vr
		 JOIN elections e ON e.id = vr.election_id
		 WHERE vr.mesa_id = ? AND e.active = ?`,
		mesaID,
		true,
	).Scan(&count).Error
	return count, err
}

func (r *repo) CountConfirmed(ctx context.Context, db *gorm.DB, mesaID snowflake.ID) (int, error) {
	var count int
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1)
		 FROM mesa_elections me
		 JOIN elections e ON e.id = me.election_id
		 WHERE me.mesa_id = ? AND me.confirmed = ? AND e.active = ?`,
		mesaID,
		true,
		true,
	).Scan(&count).Error
	return count, err
}

func (r *repo) SetLoadedCount(ctx context.Context, db *gorm.DB, mesaID snowflake.ID, count int, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE mesas SET loaded_count = ?, updated_at = ? WHERE id = ?`,
		count,
		now,
		mesaID,
	).Error
}

func (r *repo) SetConfirmedCount(ctx context.Context, db *gorm.DB, mesaID snowflake.ID, count int, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE mesas SET confirmed_count = ?, updated_at = ? WHERE id = ?`,
		count,
		now,
		mesaID,
	).Error
}

func (r *repo) MesaGeography(ctx context.Context, db *gorm.DB, mesaID snowflake.ID) (snowflake.ID, snowflake.ID, bool, error) {
	var row struct {
		CircuitID snowflake.ID
		SectionID snowflake.ID
	}
	err := db.WithContext(ctx).Raw(
		`SELECT c.id AS circuit_id, c.section_id AS section_id
		 FROM mesas m
		 JOIN voting_places vp ON vp.id = m.voting_place_id
		 JOIN circuits c ON c.id = vp.circuit_id
		 WHERE m.id = ?`,
		mesaID,
	).Scan(&row).Error
	if err != nil {
		return 0, 0, false, err
	}
	if row.CircuitID == 0 {
		return 0, 0, false, nil
	}
	return row.CircuitID, row.SectionID, true, nil
}

func (r *repo) PlaceGeography(ctx context.Context, db *gorm.DB, votingPlaceID snowflake.ID) (snowflake.ID, snowflake.ID, bool, error) {
	var row struct {
		CircuitID snowflake.ID
		SectionID snowflake.ID
	}
	err := db.WithContext(ctx).Raw(
		`SELECT c.id AS circuit_id, c.section_id AS section_id
		 FROM voting_places vp
		 JOIN circuits c ON c.id = vp.circuit_id
		 WHERE vp.id = ?`,
		votingPlaceID,
	).Scan(&row).Error
	if err != nil {
		return 0, 0, false, err
	}
	if row.CircuitID == 0 {
		return 0, 0, false, nil
	}
	return row.CircuitID, row.SectionID, true, nil
}

func (r *repo) SumCircuitElectors(ctx context.Context, db *gorm.DB, circuitID snowflake.ID) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(m.electors), 0)
		 FROM mesas m
		 JOIN voting_places vp ON vp.id = m.voting_place_id
		 WHERE vp.circuit_id = ?`,
		circuitID,
	).Scan(&total).Error
	return total, err
}

func (r *repo) SumSectionElectors(ctx context.Context, db *gorm.DB, sectionID snowflake.ID) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(m.electors), 0)
		 FROM mesas m
		 JOIN voting_places vp ON vp.id = m.voting_place_id
		 JOIN circuits c ON c.id = vp.circuit_id
		 WHERE c.section_id = ?`,
		sectionID,
	).Scan(&total).Error
	return total, err
}

func (r *repo) CurrentElectors(ctx context.Context, db *gorm.DB, circuitID, sectionID snowflake.ID) (int64, int64, error) {
	var row struct {
		CircuitCount int64
		SectionCount int64
	}
	err := db.WithContext(ctx).Raw(
		`SELECT c.elector_count AS circuit_count, s.elector_count AS section_count
		 FROM circuits c
		 JOIN sections s ON s.id = c.section_id
		 WHERE c.id = ? AND s.id = ?`+pkgdb.ForUpdate(db),
		circuitID,
		sectionID,
	).Scan(&row).Error
	return row.CircuitCount, row.SectionCount, err
}

func (r *repo) SetCircuitElectors(ctx context.Context, db *gorm.DB, circuitID snowflake.ID, total int64) error {
	return db.WithContext(ctx).Exec(
		`UPDATE circuits SET elector_count = ? WHERE id = ?`,
		total,
		circuitID,
	).Error
}

func (r *repo) SetSectionElectors(ctx context.Context, db *gorm.DB, sectionID snowflake.ID, total int64) error {
	return db.WithContext(ctx).Exec(
		`UPDATE sections SET elector_count = ? WHERE id = ?`,
		total,
		sectionID,
	).Error
}
