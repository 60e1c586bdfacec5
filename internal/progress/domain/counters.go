package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Counters keeps the denormalized progress columns in step with their
// sources. Every method expects to run inside the caller's transaction and
// locks the mesa row before reading.
type Counters interface {
	RecomputeLoaded(ctx context.Context, tx *gorm.DB, mesaID snowflake.ID) error
	RecomputeConfirmed(ctx context.Context, tx *gorm.DB, mesaID snowflake.ID) error
	// RecomputeElectors refreshes the circuit and section the mesa belongs to.
	RecomputeElectors(ctx context.Context, tx *gorm.DB, mesaID snowflake.ID) error
	// RecomputePlaceElectors refreshes the circuit and section of a voting
	// place, used for the place a mesa moved away from.
	RecomputePlaceElectors(ctx context.Context, tx *gorm.DB, votingPlaceID snowflake.ID) error
}
