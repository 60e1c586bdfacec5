package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type CreateElectionRequest struct {
	Slug      string
	Name      string
	HeldAt    *time.Time
	Inactive  bool
	Color     string
	BackColor string
}

type CreatePartyRequest struct {
	Order     int
	Number    *int
	Code      *string
	Name      string
	ShortName string
	Color     string
}

type CreateOptionRequest struct {
	PartyID      *snowflake.ID
	Name         string
	ShortName    string
	Order        *int
	Mandatory    bool
	Metadata     bool
	OfficialCode *int
}

type Service interface {
	Create(ctx context.Context, req CreateElectionRequest) (Election, error)
	Get(ctx context.Context, id snowflake.ID) (Election, error)
	// Current resolves the election configured as the default for operators.
	Current(ctx context.Context) (Election, error)
	ActiveElections(ctx context.Context) ([]Election, error)
	SetActive(ctx context.Context, id snowflake.ID, active bool) (Election, error)

	CreateParty(ctx context.Context, req CreatePartyRequest) (Party, error)
	CreateOption(ctx context.Context, req CreateOptionRequest) (Option, error)
	AddOption(ctx context.Context, electionID, optionID snowflake.ID) error
	OptionsFor(ctx context.Context, electionID snowflake.ID) ([]Option, error)

	// CommonTo returns the active elections every given mesa takes part in.
	CommonTo(ctx context.Context, mesaIDs []snowflake.ID) ([]Election, error)
	Electors(ctx context.Context, electionID snowflake.ID) (int64, error)
}

var (
	ErrInvalidID         = errors.New("invalid_id")
	ErrInvalidName       = errors.New("invalid_name")
	ErrInvalidSlug       = errors.New("invalid_slug")
	ErrNotFound          = errors.New("election_not_found")
	ErrOptionNotFound    = errors.New("option_not_found")
	ErrPartyNotFound     = errors.New("party_not_found")
	ErrNoCurrentElection = errors.New("no_current_election")
)
