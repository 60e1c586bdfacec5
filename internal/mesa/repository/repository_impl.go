package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	electiondomain "github.com/smallbiznis/escrutinio/internal/election/domain"
	"github.com/smallbiznis/escrutinio/internal/mesa/domain"
	"github.com/smallbiznis/escrutinio/pkg/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const mesaColumns = `id, number, state, voting_place_id, circuit_id, electors, is_witness, record_url,
	taken_at, tallied_at, load_order, load_confirmed, loaded_count, confirmed_count, created_at, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, conn *gorm.DB, mesa *domain.Mesa) error {
	return conn.WithContext(ctx).Create(mesa).Error
}

func (r *repo) UpdateAttributes(ctx context.Context, conn *gorm.DB, mesa *domain.Mesa) error {
	return conn.WithContext(ctx).Exec(
		`UPDATE mesas
		 SET voting_place_id = ?, circuit_id = ?, electors = ?, is_witness = ?, record_url = ?,
		     load_order = ?, updated_at = ?
		 WHERE id = ?`,
		mesa.VotingPlaceID,
		mesa.CircuitID,
		mesa.Electors,
		mesa.IsWitness,
		mesa.RecordURL,
		mesa.LoadOrder,
		mesa.UpdatedAt,
		mesa.ID,
	).Error
}

func (r *repo) FindByID(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*domain.Mesa, error) {
	return r.scanOne(ctx, conn, `SELECT `+mesaColumns+` FROM mesas WHERE id = ?`, id)
}

func (r *repo) FindByNumber(ctx context.Context, conn *gorm.DB, number int) (*domain.Mesa, error) {
	return r.scanOne(ctx, conn, `SELECT `+mesaColumns+` FROM mesas WHERE number = ?`, number)
}

func (r *repo) LockByID(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*domain.Mesa, error) {
	return r.scanOne(ctx, conn, `SELECT `+mesaColumns+` FROM mesas WHERE id = ?`+db.ForUpdate(conn), id)
}

func (r *repo) scanOne(ctx context.Context, conn *gorm.DB, query string, args ...any) (*domain.Mesa, error) {
	var mesa domain.Mesa
	if err := conn.WithContext(ctx).Raw(query, args...).Scan(&mesa).Error; err != nil {
		return nil, err
	}
	if mesa.ID == 0 {
		return nil, nil
	}
	return &mesa, nil
}

func (r *repo) SetLoadOrder(ctx context.Context, conn *gorm.DB, id snowflake.ID, loadOrder int, now time.Time) error {
	return conn.WithContext(ctx).Exec(
		`UPDATE mesas SET load_order = ?, updated_at = ? WHERE id = ?`,
		loadOrder,
		now,
		id,
	).Error
}

func (r *repo) UpdateState(ctx context.Context, conn *gorm.DB, id snowflake.ID, state domain.State, talliedAt *time.Time, now time.Time) error {
	return conn.WithContext(ctx).Exec(
		`UPDATE mesas SET state = ?, tallied_at = COALESCE(?, tallied_at), updated_at = ? WHERE id = ?`,
		state,
		talliedAt,
		now,
		id,
	).Error
}

func (r *repo) Claim(ctx context.Context, conn *gorm.DB, id snowflake.ID, now, staleBefore time.Time) (bool, error) {
	result := conn.WithContext(ctx).Exec(
		`UPDATE mesas SET taken_at = ?, updated_at = ?
		 WHERE id = ? AND (taken_at IS NULL OR taken_at < ?)`,
		now,
		now,
		id,
		staleBefore,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repo) Release(ctx context.Context, conn *gorm.DB, id snowflake.ID, now time.Time) error {
	return conn.WithContext(ctx).Exec(
		`UPDATE mesas SET taken_at = NULL, updated_at = ? WHERE id = ?`,
		now,
		id,
	).Error
}

func (r *repo) InsertAssociation(ctx context.Context, conn *gorm.DB, association *domain.MesaElection) error {
	return conn.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "mesa_id"}, {Name: "election_id"}},
			DoNothing: true,
		}).
		Create(association).Error
}

func (r *repo) FindAssociation(ctx context.Context, conn *gorm.DB, mesaID, electionID snowflake.ID) (*domain.MesaElection, error) {
	var association domain.MesaElection
	err := conn.WithContext(ctx).Raw(
		`SELECT id, mesa_id, election_id, confirmed FROM mesa_elections
		 WHERE mesa_id = ? AND election_id = ?`,
		mesaID,
		electionID,
	).Scan(&association).Error
	if err != nil {
		return nil, err
	}
	if association.ID == 0 {
		return nil, nil
	}
	return &association, nil
}

func (r *repo) SetConfirmed(ctx context.Context, conn *gorm.DB, mesaID, electionID snowflake.ID, confirmed bool) error {
	return conn.WithContext(ctx).Exec(
		`UPDATE mesa_elections SET confirmed = ? WHERE mesa_id = ? AND election_id = ?`,
		confirmed,
		mesaID,
		electionID,
	).Error
}

func (r *repo) CountReports(ctx context.Context, conn *gorm.DB, mesaID, electionID snowflake.ID) (int64, error) {
	var count int64
	err := conn.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM vote_reports WHERE mesa_id = ? AND election_id = ?`,
		mesaID,
		electionID,
	).Scan(&count).Error
	return count, err
}

func (r *repo) NextElectionPendingReport(ctx context.Context, conn *gorm.DB, mesaID snowflake.ID) (*electiondomain.Election, error) {
	return r.firstElection(ctx, conn,
		`SELECT e.id, e.slug, e.name, e.held_at, e.active, e.color, e.back_color
		 FROM elections e
		 JOIN mesa_elections me ON me.election_id = e.id
		 WHERE me.mesa_id = ? AND e.active = ?
		   AND NOT EXISTS (
		     SELECT 1 FROM vote_reports vr WHERE vr.mesa_id = me.mesa_id AND vr.election_id = e.id
		   )
		 ORDER BY e.id
		 LIMIT 1`,
		mesaID,
		true,
	)
}

func (r *repo) NextElectionPendingConfirmation(ctx context.Context, conn *gorm.DB, mesaID snowflake.ID) (*electiondomain.Election, error) {
	return r.firstElection(ctx, conn,
		`SELECT e.id, e.slug, e.name, e.held_at, e.active, e.color, e.back_color
		 FROM elections e
		 JOIN mesa_elections me ON me.election_id = e.id
		 WHERE me.mesa_id = ? AND e.active = ? AND me.confirmed = ?
		   AND EXISTS (
		     SELECT 1 FROM vote_reports vr WHERE vr.mesa_id = me.mesa_id AND vr.election_id = e.id
		   )
		 ORDER BY e.id
		 LIMIT 1`,
		mesaID,
		true,
		false,
	)
}

func (r *repo) firstElection(ctx context.Context, conn *gorm.DB, query string, args ...any) (*electiondomain.Election, error) {
	var election electiondomain.Election
	if err := conn.WithContext(ctx).Raw(query, args...).Scan(&election).Error; err != nil {
		return nil, err
	}
	if election.ID == 0 {
		return nil, nil
	}
	return &election, nil
}
