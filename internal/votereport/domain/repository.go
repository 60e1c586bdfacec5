package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// Upsert overwrites votes and reporter when the key already exists.
	Upsert(ctx context.Context, db *gorm.DB, report *VoteReport) error
	Find(ctx context.Context, db *gorm.DB, mesaID, electionID, optionID snowflake.ID) (*VoteReport, error)
	ListForMesa(ctx context.Context, db *gorm.DB, mesaID, electionID snowflake.ID) ([]VoteReport, error)
	// TotalVotes returns nil when the mesa has no reports.
	TotalVotes(ctx context.Context, db *gorm.DB, mesaID snowflake.ID) (*int64, error)
	AssociationExists(ctx context.Context, db *gorm.DB, mesaID, electionID snowflake.ID) (bool, error)
	OptionInElection(ctx context.Context, db *gorm.DB, electionID, optionID snowflake.ID) (bool, error)
}
