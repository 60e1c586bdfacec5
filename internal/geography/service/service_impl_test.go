package service_test

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/escrutinio/internal/geography/domain"
	mesadomain "github.com/smallbiznis/escrutinio/internal/mesa/domain"
	"github.com/smallbiznis/escrutinio/internal/testutil/dbtest"
	"github.com/smallbiznis/escrutinio/internal/testutil/enginetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	e       *enginetest.Engine
	section domain.Section
	circuit domain.Circuit
	place   domain.VotingPlace
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	e := enginetest.New(t)

	number := 1
	section, err := e.Geography.EnsureSection(ctx, domain.EnsureSectionRequest{Number: &number, Name: "Capital"})
	require.NoError(t, err)
	circuit, err := e.Geography.EnsureCircuit(ctx, domain.EnsureCircuitRequest{SectionID: section.ID, Number: "1A", Name: "Centro"})
	require.NoError(t, err)
	place, err := e.Geography.EnsureVotingPlace(ctx, domain.EnsureVotingPlaceRequest{
		CircuitID: circuit.ID,
		Name:      "Escuela Alberdi",
		Address:   "Av. Colón 123",
		City:      "Córdoba",
	})
	require.NoError(t, err)
	return fixture{e: e, section: section, circuit: circuit, place: place}
}

func (f fixture) mesa(t *testing.T, number int) mesadomain.Mesa {
	t.Helper()
	mesa, err := f.e.Mesas.Save(context.Background(), mesadomain.SaveMesaRequest{
		Number:        number,
		VotingPlaceID: &f.place.ID,
		CircuitID:     &f.circuit.ID,
	})
	require.NoError(t, err)
	return mesa
}

func TestEnsureIsGetOrCreate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	number := 1
	section, err := f.e.Geography.EnsureSection(ctx, domain.EnsureSectionRequest{Number: &number, Name: " Capital "})
	require.NoError(t, err)
	assert.Equal(t, f.section.ID, section.ID)

	circuit, err := f.e.Geography.EnsureCircuit(ctx, domain.EnsureCircuitRequest{SectionID: section.ID, Number: "1A", Name: "Centro"})
	require.NoError(t, err)
	assert.Equal(t, f.circuit.ID, circuit.ID)

	place, err := f.e.Geography.EnsureVotingPlace(ctx, domain.EnsureVotingPlaceRequest{
		CircuitID: circuit.ID,
		Name:      "Escuela Alberdi",
		Address:   "Av. Colón 123",
		City:      "Córdoba",
	})
	require.NoError(t, err)
	assert.Equal(t, f.place.ID, place.ID)

	assert.EqualValues(t, 1, dbtest.Count(t, f.e.DB, `SELECT COUNT(1) FROM sections`))
	assert.EqualValues(t, 1, dbtest.Count(t, f.e.DB, `SELECT COUNT(1) FROM circuits`))
	assert.EqualValues(t, 1, dbtest.Count(t, f.e.DB, `SELECT COUNT(1) FROM voting_places`))

	circuits, err := f.e.Geography.CircuitsOf(ctx, section.ID)
	require.NoError(t, err)
	assert.Len(t, circuits, 1)
	places, err := f.e.Geography.VotingPlacesOf(ctx, circuit.ID)
	require.NoError(t, err)
	assert.Len(t, places, 1)
}

func TestEnsureRejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	zero := 0
	_, err := f.e.Geography.EnsureSection(ctx, domain.EnsureSectionRequest{Number: &zero, Name: "Norte"})
	assert.ErrorIs(t, err, domain.ErrInvalidNumber)
	_, err = f.e.Geography.EnsureSection(ctx, domain.EnsureSectionRequest{Name: ""})
	assert.ErrorIs(t, err, domain.ErrInvalidName)

	_, err = f.e.Geography.EnsureCircuit(ctx, domain.EnsureCircuitRequest{SectionID: f.e.Node.Generate(), Number: "2", Name: "Sur"})
	assert.ErrorIs(t, err, domain.ErrSectionNotFound)
	_, err = f.e.Geography.EnsureCircuit(ctx, domain.EnsureCircuitRequest{SectionID: f.section.ID, Number: " ", Name: "Sur"})
	assert.ErrorIs(t, err, domain.ErrInvalidNumber)

	_, err = f.e.Geography.EnsureVotingPlace(ctx, domain.EnsureVotingPlaceRequest{CircuitID: f.e.Node.Generate(), Name: "Escuela"})
	assert.ErrorIs(t, err, domain.ErrCircuitNotFound)
}

func TestLocateVotingPlace(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	electors := 1200

	place, err := f.e.Geography.LocateVotingPlace(ctx, f.place.ID, domain.LocateVotingPlaceRequest{
		Electors:   &electors,
		Point:      &domain.GeoPoint{Latitude: -31.4135, Longitude: -64.1811},
		Confidence: 14,
		Quality:    "exact",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.MaxGeoConfidence, place.GeoConfidence)
	require.NotNil(t, place.Latitude)
	assert.InDelta(t, -31.4135, *place.Latitude, 1e-9)

	stored, err := f.e.Geography.GetVotingPlace(ctx, f.place.ID)
	require.NoError(t, err)
	assert.Equal(t, "exact", stored.GeoQuality)
	require.NotNil(t, stored.ElectorCount)
	assert.Equal(t, 1200, *stored.ElectorCount)

	cleared, err := f.e.Geography.LocateVotingPlace(ctx, f.place.ID, domain.LocateVotingPlaceRequest{Confidence: 8})
	require.NoError(t, err)
	assert.Nil(t, cleared.Latitude)
	assert.Nil(t, cleared.Longitude)
	assert.Equal(t, domain.MinGeoConfidence, cleared.GeoConfidence)

	_, err = f.e.Geography.LocateVotingPlace(ctx, f.place.ID, domain.LocateVotingPlaceRequest{
		Point: &domain.GeoPoint{Latitude: 120, Longitude: 0},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidPoint)

	_, err = f.e.Geography.LocateVotingPlace(ctx, f.e.Node.Generate(), domain.LocateVotingPlaceRequest{})
	assert.ErrorIs(t, err, domain.ErrVotingPlaceNotFound)
}

func TestAssignLoadOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	first := f.mesa(t, 10)
	second := f.mesa(t, 11)

	next, err := f.e.Geography.NextLoadOrder(ctx, f.circuit.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, next)

	assigned, err := f.e.Geography.AssignLoadOrder(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, assigned.LoadOrder)

	assigned, err = f.e.Geography.AssignLoadOrder(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, assigned.LoadOrder)

	// a queued mesa keeps its place
	assigned, err = f.e.Geography.AssignLoadOrder(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, assigned.LoadOrder)
	assert.Equal(t, 1, f.e.Reload(t, first.ID).LoadOrder)

	loose := f.e.Mesa(t, 99)
	_, err = f.e.Geography.AssignLoadOrder(ctx, loose.ID)
	assert.ErrorIs(t, err, domain.ErrMesaWithoutGeography)

	_, err = f.e.Geography.AssignLoadOrder(ctx, f.e.Node.Generate())
	assert.ErrorIs(t, err, mesadomain.ErrNotFound)
}

func TestMesaRangeAndColor(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	label, err := f.e.Geography.MesaRange(ctx, f.place.ID)
	require.NoError(t, err)
	assert.Equal(t, "", label)

	single := f.mesa(t, 7)
	label, err = f.e.Geography.MesaRange(ctx, f.place.ID)
	require.NoError(t, err)
	assert.Equal(t, "7", label)

	f.mesa(t, 9)
	label, err = f.e.Geography.MesaRange(ctx, f.place.ID)
	require.NoError(t, err)
	assert.Equal(t, "7 - 9", label)

	color, err := f.e.Geography.PlaceColor(ctx, f.place.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PlaceColorPending, color)

	election, option := f.e.Election(t, "Gobernador")
	_, err = f.e.Mesas.AddElection(ctx, single.ID, election.ID)
	require.NoError(t, err)
	f.e.Report(t, single.ID, election.ID, option.ID, 40)

	color, err = f.e.Geography.PlaceColor(ctx, f.place.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PlaceColorReported, color)

	mesas, err := f.e.Geography.MesasOf(ctx, f.place.ID, election.ID)
	require.NoError(t, err)
	require.Len(t, mesas, 1)
	assert.Equal(t, single.ID, mesas[0].ID)

	mesas, err = f.e.Geography.SectionMesas(ctx, f.section.ID, election.ID)
	require.NoError(t, err)
	assert.Len(t, mesas, 1)
	mesas, err = f.e.Geography.CircuitMesas(ctx, f.circuit.ID, election.ID)
	require.NoError(t, err)
	assert.Len(t, mesas, 1)
}

func TestProjectionGroup(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	mesa := f.mesa(t, 1)

	group, err := f.e.Geography.ProjectionGroup(ctx, mesa.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ProjectionGroup{Kind: domain.ProjectionBySection, ID: f.section.ID, Name: "Capital"}, group)

	updated, err := f.e.Geography.SetWeightedProjection(ctx, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 1, updated)

	// already flagged
	updated, err = f.e.Geography.SetWeightedProjection(ctx, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 0, updated)

	group, err = f.e.Geography.ProjectionGroup(ctx, mesa.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ProjectionGroup{Kind: domain.ProjectionByCircuit, ID: f.circuit.ID, Name: "Centro"}, group)

	loose := f.e.Mesa(t, 50)
	_, err = f.e.Geography.ProjectionGroup(ctx, loose.ID)
	assert.ErrorIs(t, err, domain.ErrMesaWithoutGeography)

	var unknown snowflake.ID
	_, err = f.e.Geography.ProjectionGroup(ctx, unknown)
	assert.ErrorIs(t, err, domain.ErrInvalidID)
}
