package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	mesadomain "github.com/smallbiznis/escrutinio/internal/mesa/domain"
)

type EnsureSectionRequest struct {
	Number *int
	Name   string
}

type EnsureCircuitRequest struct {
	SectionID snowflake.ID
	Number    string
	Name      string
	HeadTown  *string
}

type EnsureVotingPlaceRequest struct {
	CircuitID    snowflake.ID
	Name         string
	Address      string
	Neighborhood string
	City         string
}

// LocateVotingPlaceRequest replaces the place's electors and geolocation.
// A nil Point clears the coordinates and resets confidence to zero.
type LocateVotingPlaceRequest struct {
	Electors   *int
	Point      *GeoPoint
	Confidence int
	Quality    string
}

type Service interface {
	EnsureSection(ctx context.Context, req EnsureSectionRequest) (Section, error)
	EnsureCircuit(ctx context.Context, req EnsureCircuitRequest) (Circuit, error)
	EnsureVotingPlace(ctx context.Context, req EnsureVotingPlaceRequest) (VotingPlace, error)
	LocateVotingPlace(ctx context.Context, placeID snowflake.ID, req LocateVotingPlaceRequest) (VotingPlace, error)
	// SetWeightedProjection flags the sections with the given number.
	SetWeightedProjection(ctx context.Context, sectionNumber int) (int64, error)

	GetSection(ctx context.Context, id snowflake.ID) (Section, error)
	GetCircuit(ctx context.Context, id snowflake.ID) (Circuit, error)
	GetVotingPlace(ctx context.Context, id snowflake.ID) (VotingPlace, error)

	CircuitsOf(ctx context.Context, sectionID snowflake.ID) ([]Circuit, error)
	VotingPlacesOf(ctx context.Context, circuitID snowflake.ID) ([]VotingPlace, error)
	MesasOf(ctx context.Context, placeID, electionID snowflake.ID) ([]mesadomain.Mesa, error)
	SectionMesas(ctx context.Context, sectionID, electionID snowflake.ID) ([]mesadomain.Mesa, error)
	CircuitMesas(ctx context.Context, circuitID, electionID snowflake.ID) ([]mesadomain.Mesa, error)

	NextLoadOrder(ctx context.Context, circuitID snowflake.ID) (int, error)
	// AssignLoadOrder queues the mesa behind the others in its circuit. A mesa
	// already holding a load order keeps it.
	AssignLoadOrder(ctx context.Context, mesaID snowflake.ID) (mesadomain.Mesa, error)
	MesaRange(ctx context.Context, placeID snowflake.ID) (string, error)
	PlaceColor(ctx context.Context, placeID snowflake.ID) (string, error)
	ProjectionGroup(ctx context.Context, mesaID snowflake.ID) (ProjectionGroup, error)
}

var (
	ErrInvalidID            = errors.New("invalid_id")
	ErrInvalidName          = errors.New("invalid_name")
	ErrInvalidNumber        = errors.New("invalid_number")
	ErrInvalidPoint         = errors.New("invalid_point")
	ErrSectionNotFound      = errors.New("section_not_found")
	ErrCircuitNotFound      = errors.New("circuit_not_found")
	ErrVotingPlaceNotFound  = errors.New("voting_place_not_found")
	ErrMesaWithoutGeography = errors.New("mesa_without_geography")
)
