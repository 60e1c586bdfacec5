package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertElection(ctx context.Context, db *gorm.DB, election *Election) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Election, error)
	FindBySlug(ctx context.Context, db *gorm.DB, slug string) (*Election, error)
	ListActive(ctx context.Context, db *gorm.DB) ([]Election, error)
	SetActive(ctx context.Context, db *gorm.DB, id snowflake.ID, active bool) error

	InsertElectionOption(ctx context.Context, db *gorm.DB, electionID, optionID snowflake.ID) error
	ListOptions(ctx context.Context, db *gorm.DB, electionID snowflake.ID) ([]Option, error)

	CommonTo(ctx context.Context, db *gorm.DB, mesaIDs []snowflake.ID) ([]Election, error)
	SumElectors(ctx context.Context, db *gorm.DB, electionID snowflake.ID) (int64, error)
	AssociatedMesaIDs(ctx context.Context, db *gorm.DB, electionID snowflake.ID) ([]snowflake.ID, error)
}
