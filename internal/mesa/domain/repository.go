package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	electiondomain "github.com/smallbiznis/escrutinio/internal/election/domain"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, mesa *Mesa) error
	UpdateAttributes(ctx context.Context, db *gorm.DB, mesa *Mesa) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Mesa, error)
	FindByNumber(ctx context.Context, db *gorm.DB, number int) (*Mesa, error)
	// LockByID reads the mesa holding its row lock for the rest of the transaction.
	LockByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Mesa, error)
	SetLoadOrder(ctx context.Context, db *gorm.DB, id snowflake.ID, loadOrder int, now time.Time) error
	UpdateState(ctx context.Context, db *gorm.DB, id snowflake.ID, state State, talliedAt *time.Time, now time.Time) error

	// Claim stamps taken_at when the mesa is free or its claim is older than staleBefore.
	Claim(ctx context.Context, db *gorm.DB, id snowflake.ID, now, staleBefore time.Time) (bool, error)
	Release(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) error

	InsertAssociation(ctx context.Context, db *gorm.DB, association *MesaElection) error
	FindAssociation(ctx context.Context, db *gorm.DB, mesaID, electionID snowflake.ID) (*MesaElection, error)
	SetConfirmed(ctx context.Context, db *gorm.DB, mesaID, electionID snowflake.ID, confirmed bool) error
	CountReports(ctx context.Context, db *gorm.DB, mesaID, electionID snowflake.ID) (int64, error)

	NextElectionPendingReport(ctx context.Context, db *gorm.DB, mesaID snowflake.ID) (*electiondomain.Election, error)
	NextElectionPendingConfirmation(ctx context.Context, db *gorm.DB, mesaID snowflake.ID) (*electiondomain.Election, error)
}
