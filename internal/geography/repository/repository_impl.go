package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/escrutinio/internal/geography/domain"
	mesadomain "github.com/smallbiznis/escrutinio/internal/mesa/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	sectionColumns = `id, number, name, elector_count, weighted_projection`
	circuitColumns = `id, section_id, number, name, head_town, elector_count`
	placeColumns   = `id, circuit_id, name, address, neighborhood, city, geo_quality, geo_confidence,
		latitude, longitude, elector_count`
	mesaColumns = `m.id, m.number, m.state, m.voting_place_id, m.circuit_id, m.electors, m.is_witness,
		m.record_url, m.taken_at, m.tallied_at, m.load_order, m.load_confirmed, m.loaded_count,
		m.confirmed_count, m.created_at, m.updated_at`
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertSection(ctx context.Context, db *gorm.DB, section *domain.Section) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(section).Error
}

func (r *repo) FindSection(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Section, error) {
	var section domain.Section
	err := db.WithContext(ctx).Raw(
		`SELECT `+sectionColumns+` FROM sections WHERE id = ?`,
		id,
	).Scan(&section).Error
	if err != nil {
		return nil, err
	}
	if section.ID == 0 {
		return nil, nil
	}
	return &section, nil
}

func (r *repo) FindSectionByIdentity(ctx context.Context, db *gorm.DB, number *int, name string) (*domain.Section, error) {
	var section domain.Section
	stmt := db.WithContext(ctx).Model(&domain.Section{}).Where("name = ?", name)
	if number == nil {
		stmt = stmt.Where("number IS NULL")
	} else {
		stmt = stmt.Where("number = ?", *number)
	}
	if err := stmt.Order("id").Limit(1).Scan(&section).Error; err != nil {
		return nil, err
	}
	if section.ID == 0 {
		return nil, nil
	}
	return &section, nil
}

func (r *repo) SetWeightedProjection(ctx context.Context, db *gorm.DB, number int) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE sections SET weighted_projection = ? WHERE number = ? AND weighted_projection = ?`,
		true,
		number,
		false,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) InsertCircuit(ctx context.Context, db *gorm.DB, circuit *domain.Circuit) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(circuit).Error
}

func (r *repo) FindCircuit(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Circuit, error) {
	var circuit domain.Circuit
	err := db.WithContext(ctx).Raw(
		`SELECT `+circuitColumns+` FROM circuits WHERE id = ?`,
		id,
	).Scan(&circuit).Error
	if err != nil {
		return nil, err
	}
	if circuit.ID == 0 {
		return nil, nil
	}
	return &circuit, nil
}

func (r *repo) FindCircuitByIdentity(ctx context.Context, db *gorm.DB, sectionID snowflake.ID, number, name string) (*domain.Circuit, error) {
	var circuit domain.Circuit
	err := db.WithContext(ctx).Raw(
		`SELECT `+circuitColumns+` FROM circuits WHERE section_id = ? AND number = ? AND name = ?`,
		sectionID,
		number,
		name,
	).Scan(&circuit).Error
	if err != nil {
		return nil, err
	}
	if circuit.ID == 0 {
		return nil, nil
	}
	return &circuit, nil
}

func (r *repo) ListCircuits(ctx context.Context, db *gorm.DB, sectionID snowflake.ID) ([]domain.Circuit, error) {
	var circuits []domain.Circuit
	err := db.WithContext(ctx).Raw(
		`SELECT `+circuitColumns+` FROM circuits WHERE section_id = ? ORDER BY id`,
		sectionID,
	).Scan(&circuits).Error
	if err != nil {
		return nil, err
	}
	return circuits, nil
}

func (r *repo) InsertVotingPlace(ctx context.Context, db *gorm.DB, place *domain.VotingPlace) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(place).Error
}

func (r *repo) UpdateVotingPlace(ctx context.Context, db *gorm.DB, place *domain.VotingPlace) error {
	return db.WithContext(ctx).Exec(
		`UPDATE voting_places
		 SET elector_count = ?, latitude = ?, longitude = ?, geo_confidence = ?, geo_quality = ?
		 WHERE id = ?`,
		place.ElectorCount,
		place.Latitude,
		place.Longitude,
		place.GeoConfidence,
		place.GeoQuality,
		place.ID,
	).Error
}

func (r *repo) FindVotingPlace(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.VotingPlace, error) {
	var place domain.VotingPlace
	err := db.WithContext(ctx).Raw(
		`SELECT `+placeColumns+` FROM voting_places WHERE id = ?`,
		id,
	).Scan(&place).Error
	if err != nil {
		return nil, err
	}
	if place.ID == 0 {
		return nil, nil
	}
	return &place, nil
}

func (r *repo) FindVotingPlaceByIdentity(ctx context.Context, db *gorm.DB, identity domain.VotingPlace) (*domain.VotingPlace, error) {
	var place domain.VotingPlace
	err := db.WithContext(ctx).Raw(
		`SELECT `+placeColumns+` FROM voting_places
		 WHERE circuit_id = ? AND name = ? AND address = ? AND city = ? AND neighborhood = ?`,
		identity.CircuitID,
		identity.Name,
		identity.Address,
		identity.City,
		identity.Neighborhood,
	).Scan(&place).Error
	if err != nil {
		return nil, err
	}
	if place.ID == 0 {
		return nil, nil
	}
	return &place, nil
}

func (r *repo) ListVotingPlaces(ctx context.Context, db *gorm.DB, circuitID snowflake.ID) ([]domain.VotingPlace, error) {
	var places []domain.VotingPlace
	err := db.WithContext(ctx).Raw(
		`SELECT `+placeColumns+` FROM voting_places WHERE circuit_id = ? ORDER BY id`,
		circuitID,
	).Scan(&places).Error
	if err != nil {
		return nil, err
	}
	return places, nil
}

func (r *repo) MesasOfPlace(ctx context.Context, db *gorm.DB, placeID, electionID snowflake.ID) ([]mesadomain.Mesa, error) {
	return r.scanMesas(ctx, db,
		`SELECT `+mesaColumns+`
		 FROM mesas m
		 JOIN mesa_elections me ON me.mesa_id = m.id
		 WHERE m.voting_place_id = ? AND me.election_id = ?
		 ORDER BY m.number`,
		placeID, electionID,
	)
}

func (r *repo) MesasOfCircuit(ctx context.Context, db *gorm.DB, circuitID, electionID snowflake.ID) ([]mesadomain.Mesa, error) {
	return r.scanMesas(ctx, db,
		`SELECT `+mesaColumns+`
		 FROM mesas m
		 JOIN voting_places vp ON vp.id = m.voting_place_id
		 JOIN mesa_elections me ON me.mesa_id = m.id
		 WHERE vp.circuit_id = ? AND me.election_id = ?
		 ORDER BY m.number`,
		circuitID, electionID,
	)
}

func (r *repo) MesasOfSection(ctx context.Context, db *gorm.DB, sectionID, electionID snowflake.ID) ([]mesadomain.Mesa, error) {
	return r.scanMesas(ctx, db,
		`SELECT `+mesaColumns+`
		 FROM mesas m
		 JOIN voting_places vp ON vp.id = m.voting_place_id
		 JOIN circuits c ON c.id = vp.circuit_id
		 JOIN mesa_elections me ON me.mesa_id = m.id
		 WHERE c.section_id = ? AND me.election_id = ?
		 ORDER BY m.number`,
		sectionID, electionID,
	)
}

func (r *repo) scanMesas(ctx context.Context, db *gorm.DB, query string, args ...any) ([]mesadomain.Mesa, error) {
	var mesas []mesadomain.Mesa
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&mesas).Error; err != nil {
		return nil, err
	}
	return mesas, nil
}

func (r *repo) MesaNumberRange(ctx context.Context, db *gorm.DB, placeID snowflake.ID) (*int, *int, error) {
	var row struct {
		FirstNumber *int
		LastNumber  *int
	}
	err := db.WithContext(ctx).Raw(
		`SELECT MIN(number) AS first_number, MAX(number) AS last_number FROM mesas WHERE voting_place_id = ?`,
		placeID,
	).Scan(&row).Error
	return row.FirstNumber, row.LastNumber, err
}

func (r *repo) PlaceHasReports(ctx context.Context, db *gorm.DB, placeID snowflake.ID) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM vote_reports vr
		 JOIN mesas m ON m.id = vr.mesa_id
		 WHERE m.voting_place_id = ?`,
		placeID,
	).Scan(&count).Error
	return count > 0, err
}

func (r *repo) MaxLoadOrder(ctx context.Context, db *gorm.DB, circuitID, excludeMesaID snowflake.ID) (int, error) {
	var highest int
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(MAX(m.load_order), 0)
		 FROM mesas m
		 JOIN voting_places vp ON vp.id = m.voting_place_id
		 WHERE vp.circuit_id = ? AND m.id <> ?`,
		circuitID,
		excludeMesaID,
	).Scan(&highest).Error
	return highest, err
}
