package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	mesadomain "github.com/smallbiznis/escrutinio/internal/mesa/domain"
	"gorm.io/gorm"
)

type Repository interface {
	// DataEntryCandidates applies the SQL side of the pending-entry filter.
	DataEntryCandidates(ctx context.Context, db *gorm.DB, staleBefore time.Time) ([]mesadomain.Mesa, error)
	PendingConfirmation(ctx context.Context, db *gorm.DB) ([]mesadomain.Mesa, error)

	CountLoaded(ctx context.Context, db *gorm.DB, mesaID snowflake.ID) (int, error)
	CountConfirmed(ctx context.Context, db *gorm.DB, mesaID snowflake.ID) (int, error)
	SetLoadedCount(ctx context.Context, db *gorm.DB, mesaID snowflake.ID, count int, now time.Time) error
	SetConfirmedCount(ctx context.Context, db *gorm.DB, mesaID snowflake.ID, count int, now time.Time) error

	// MesaGeography reports the circuit and section a mesa rolls up into via
	// its voting place. ok is false when the chain is incomplete.
	MesaGeography(ctx context.Context, db *gorm.DB, mesaID snowflake.ID) (circuitID, sectionID snowflake.ID, ok bool, err error)
	PlaceGeography(ctx context.Context, db *gorm.DB, votingPlaceID snowflake.ID) (circuitID, sectionID snowflake.ID, ok bool, err error)
	SumCircuitElectors(ctx context.Context, db *gorm.DB, circuitID snowflake.ID) (int64, error)
	SumSectionElectors(ctx context.Context, db *gorm.DB, sectionID snowflake.ID) (int64, error)
	// CurrentElectors locks the circuit and section rows.
	CurrentElectors(ctx context.Context, db *gorm.DB, circuitID, sectionID snowflake.ID) (circuit, section int64, err error)
	SetCircuitElectors(ctx context.Context, db *gorm.DB, circuitID snowflake.ID, total int64) error
	SetSectionElectors(ctx context.Context, db *gorm.DB, sectionID snowflake.ID, total int64) error
}
