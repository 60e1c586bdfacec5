package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	electiondomain "github.com/smallbiznis/escrutinio/internal/election/domain"
)

type SaveMesaRequest struct {
	Number        int
	VotingPlaceID *snowflake.ID
	CircuitID     *snowflake.ID
	Electors      *int
	IsWitness     bool
	RecordURL     string
	LoadOrder     int
}

type Service interface {
	// Save creates or updates the mesa identified by number. A nil Electors or
	// empty RecordURL keeps the stored value.
	Save(ctx context.Context, req SaveMesaRequest) (Mesa, error)
	Get(ctx context.Context, id snowflake.ID) (Mesa, error)
	AddElection(ctx context.Context, mesaID, electionID snowflake.ID) (MesaElection, error)
	AdvanceState(ctx context.Context, mesaID snowflake.ID) (Mesa, error)

	// NextElectionPendingReport returns nil when every active election has reports.
	NextElectionPendingReport(ctx context.Context, mesaID snowflake.ID) (*electiondomain.Election, error)
	NextElectionPendingConfirmation(ctx context.Context, mesaID snowflake.ID) (*electiondomain.Election, error)
	Confirm(ctx context.Context, mesaID, electionID snowflake.ID) (MesaElection, error)
	Unconfirm(ctx context.Context, mesaID, electionID snowflake.ID) (MesaElection, error)

	// Claim reserves the mesa for data entry. A window of zero uses the configured default.
	Claim(ctx context.Context, mesaID snowflake.ID, window time.Duration) (bool, error)
	Release(ctx context.Context, mesaID snowflake.ID) error
}

var (
	ErrInvalidID         = errors.New("invalid_id")
	ErrInvalidNumber     = errors.New("invalid_mesa_number")
	ErrInvalidElectors   = errors.New("invalid_electors")
	ErrNotFound          = errors.New("mesa_not_found")
	ErrMesaNotInElection = errors.New("mesa_not_in_election")
	ErrElectionInactive  = errors.New("election_inactive")
	ErrNothingToConfirm  = errors.New("nothing_to_confirm")
)
