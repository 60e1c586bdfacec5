package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type RecordRequest struct {
	MesaID     snowflake.ID
	ElectionID snowflake.ID
	OptionID   snowflake.ID
	Votes      *int
	ReporterID *snowflake.ID
}

type Service interface {
	Record(ctx context.Context, req RecordRequest) (VoteReport, error)
	// RecordBatch stores a whole tally sheet in one transaction.
	RecordBatch(ctx context.Context, reqs []RecordRequest) ([]VoteReport, error)
	ListForMesa(ctx context.Context, mesaID, electionID snowflake.ID) ([]VoteReport, error)
	TotalReported(ctx context.Context, mesaID snowflake.ID) (*int64, error)
}

var (
	ErrInvalidID           = errors.New("invalid_id")
	ErrInvalidVotes        = errors.New("invalid_votes")
	ErrMesaNotInElection   = errors.New("mesa_not_in_election")
	ErrOptionNotInElection = errors.New("option_not_in_election")
	ErrEmptyBatch          = errors.New("empty_batch")
)
