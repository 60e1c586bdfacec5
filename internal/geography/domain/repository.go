package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	mesadomain "github.com/smallbiznis/escrutinio/internal/mesa/domain"
	"gorm.io/gorm"
)

type Repository interface {
	InsertSection(ctx context.Context, db *gorm.DB, section *Section) error
	FindSection(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Section, error)
	FindSectionByIdentity(ctx context.Context, db *gorm.DB, number *int, name string) (*Section, error)
	SetWeightedProjection(ctx context.Context, db *gorm.DB, number int) (int64, error)

	InsertCircuit(ctx context.Context, db *gorm.DB, circuit *Circuit) error
	FindCircuit(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Circuit, error)
	FindCircuitByIdentity(ctx context.Context, db *gorm.DB, sectionID snowflake.ID, number, name string) (*Circuit, error)
	ListCircuits(ctx context.Context, db *gorm.DB, sectionID snowflake.ID) ([]Circuit, error)

	InsertVotingPlace(ctx context.Context, db *gorm.DB, place *VotingPlace) error
	UpdateVotingPlace(ctx context.Context, db *gorm.DB, place *VotingPlace) error
	FindVotingPlace(ctx context.Context, db *gorm.DB, id snowflake.ID) (*VotingPlace, error)
	FindVotingPlaceByIdentity(ctx context.Context, db *gorm.DB, place VotingPlace) (*VotingPlace, error)
	ListVotingPlaces(ctx context.Context, db *gorm.DB, circuitID snowflake.ID) ([]VotingPlace, error)

	MesasOfPlace(ctx context.Context, db *gorm.DB, placeID, electionID snowflake.ID) ([]mesadomain.Mesa, error)
	MesasOfCircuit(ctx context.Context, db *gorm.DB, circuitID, electionID snowflake.ID) ([]mesadomain.Mesa, error)
	MesasOfSection(ctx context.Context, db *gorm.DB, sectionID, electionID snowflake.ID) ([]mesadomain.Mesa, error)
	MesaNumberRange(ctx context.Context, db *gorm.DB, placeID snowflake.ID) (first, last *int, err error)
	PlaceHasReports(ctx context.Context, db *gorm.DB, placeID snowflake.ID) (bool, error)
	// MaxLoadOrder ignores excludeMesaID so a mesa never counts against itself.
	MaxLoadOrder(ctx context.Context, db *gorm.DB, circuitID, excludeMesaID snowflake.ID) (int, error)
}
