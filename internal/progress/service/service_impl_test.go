package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	geographydomain "github.com/smallbiznis/escrutinio/internal/geography/domain"
	mesadomain "github.com/smallbiznis/escrutinio/internal/mesa/domain"
	"github.com/smallbiznis/escrutinio/internal/progress/adapters"
	"github.com/smallbiznis/escrutinio/internal/testutil/dbtest"
	"github.com/smallbiznis/escrutinio/internal/testutil/enginetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mesaIDs(mesas []mesadomain.Mesa) []snowflake.ID {
	ids := make([]snowflake.ID, 0, len(mesas))
	for _, mesa := range mesas {
		ids = append(ids, mesa.ID)
	}
	return ids
}

func pendingEntry(t *testing.T, e *enginetest.Engine) []snowflake.ID {
	t.Helper()
	mesas, err := e.Progress.PendingDataEntry(context.Background(), 0)
	require.NoError(t, err)
	return mesaIDs(mesas)
}

func pendingConfirmation(t *testing.T, e *enginetest.Engine) []snowflake.ID {
	t.Helper()
	mesas, err := e.Progress.PendingConfirmation(context.Background())
	require.NoError(t, err)
	return mesaIDs(mesas)
}

func TestPendingDataEntryLifecycle(t *testing.T) {
	e := enginetest.New(t)
	election, option := e.Election(t, "Gobernador")
	mesa := e.Mesa(t, 100, election)
	e.SetLoadOrder(t, mesa.ID, 1)

	// nothing to read yet
	assert.Empty(t, pendingEntry(t, e))

	e.Attach(t, &mesa.ID)
	assert.Equal(t, []snowflake.ID{mesa.ID}, pendingEntry(t, e))

	e.Report(t, mesa.ID, election.ID, option.ID, 50)
	assert.Equal(t, 1, e.Reload(t, mesa.ID).LoadedCount)
	assert.Empty(t, pendingEntry(t, e))
}

func TestPendingDataEntryFilters(t *testing.T) {
	e := enginetest.New(t)
	election, _ := e.Election(t, "Gobernador")

	unordered := e.Mesa(t, 1, election)
	e.Attach(t, &unordered.ID)

	blocked := e.Mesa(t, 2, election)
	e.SetLoadOrder(t, blocked.ID, 1)
	e.Attach(t, &blocked.ID)
	e.Problem(t, blocked.ID, "reported")

	settled := e.Mesa(t, 3, election)
	e.SetLoadOrder(t, settled.ID, 2)
	e.Attach(t, &settled.ID)
	e.Problem(t, settled.ID, adapters.ProblemStateResolved)

	first := e.Mesa(t, 4, election)
	e.SetLoadOrder(t, first.ID, 1)
	e.Attach(t, &first.ID)

	noElections := e.Mesa(t, 5)
	e.SetLoadOrder(t, noElections.ID, 1)
	e.Attach(t, &noElections.ID)

	assert.Equal(t, []snowflake.ID{first.ID, settled.ID}, pendingEntry(t, e))
}

func TestPendingDataEntryHonoursClaims(t *testing.T) {
	ctx := context.Background()
	e := enginetest.New(t)
	election, _ := e.Election(t, "Gobernador")
	mesa := e.Mesa(t, 9, election)
	e.SetLoadOrder(t, mesa.ID, 1)
	e.Attach(t, &mesa.ID)

	claimed, err := e.Mesas.Claim(ctx, mesa.ID, 0)
	require.NoError(t, err)
	require.True(t, claimed)
	assert.Empty(t, pendingEntry(t, e))

	e.Clock.Advance(90 * time.Second)
	assert.Empty(t, pendingEntry(t, e))

	// an abandoned claim goes stale after the window
	e.Clock.Advance(31 * time.Second)
	assert.Equal(t, []snowflake.ID{mesa.ID}, pendingEntry(t, e))

	mesas, err := e.Progress.PendingDataEntry(ctx, 5*time.Minute)
	require.NoError(t, err)
	assert.Empty(t, mesas)
}

func TestPendingDataEntryIgnoresInactiveElections(t *testing.T) {
	ctx := context.Background()
	e := enginetest.New(t)
	gobernador, option := e.Election(t, "Gobernador")
	intendente, _ := e.Election(t, "Intendente")
	mesa := e.Mesa(t, 12, gobernador, intendente)
	e.SetLoadOrder(t, mesa.ID, 1)
	e.Attach(t, &mesa.ID)

	e.Report(t, mesa.ID, gobernador.ID, option.ID, 20)
	assert.Equal(t, []snowflake.ID{mesa.ID}, pendingEntry(t, e))

	_, err := e.Elections.SetActive(ctx, intendente.ID, false)
	require.NoError(t, err)
	assert.Empty(t, pendingEntry(t, e))
}

func TestPendingConfirmation(t *testing.T) {
	ctx := context.Background()
	e := enginetest.New(t)
	gobernador, gobernadorOption := e.Election(t, "Gobernador")
	intendente, intendenteOption := e.Election(t, "Intendente")
	mesa := e.Mesa(t, 20, gobernador, intendente)
	idle := e.Mesa(t, 21, gobernador)

	assert.Empty(t, pendingConfirmation(t, e))

	e.Report(t, mesa.ID, gobernador.ID, gobernadorOption.ID, 3)
	assert.Equal(t, []snowflake.ID{mesa.ID}, pendingConfirmation(t, e))

	_, err := e.Mesas.Confirm(ctx, mesa.ID, gobernador.ID)
	require.NoError(t, err)
	assert.Empty(t, pendingConfirmation(t, e))

	e.Report(t, mesa.ID, intendente.ID, intendenteOption.ID, 4)
	assert.Equal(t, []snowflake.ID{mesa.ID}, pendingConfirmation(t, e))

	_, err = e.Mesas.Confirm(ctx, mesa.ID, intendente.ID)
	require.NoError(t, err)
	assert.Empty(t, pendingConfirmation(t, e))

	reloaded := e.Reload(t, mesa.ID)
	assert.Equal(t, 2, reloaded.LoadedCount)
	assert.Equal(t, 2, reloaded.ConfirmedCount)
	assert.LessOrEqual(t, reloaded.ConfirmedCount, reloaded.LoadedCount)
	assert.NotContains(t, pendingConfirmation(t, e), idle.ID)
}

func TestSummaryCountsEveryQueue(t *testing.T) {
	ctx := context.Background()
	e := enginetest.New(t)
	election, option := e.Election(t, "Gobernador")

	ready := e.Mesa(t, 1, election)
	e.SetLoadOrder(t, ready.ID, 1)
	e.Attach(t, &ready.ID)

	loaded := e.Mesa(t, 2, election)
	e.Report(t, loaded.ID, election.ID, option.ID, 8)

	e.Attach(t, nil)
	e.Attach(t, nil)

	summary, err := e.Progress.Summary(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, summary.UnassignedAttachments)
	assert.EqualValues(t, 1, summary.PendingDataEntry)
	assert.EqualValues(t, 1, summary.PendingConfirmation)
}

func TestSaveRecomputesElectorTotals(t *testing.T) {
	ctx := context.Background()
	e := enginetest.New(t)

	number := 1
	section, err := e.Geography.EnsureSection(ctx, geographydomain.EnsureSectionRequest{Number: &number, Name: "Capital"})
	require.NoError(t, err)
	north, err := e.Geography.EnsureCircuit(ctx, geographydomain.EnsureCircuitRequest{SectionID: section.ID, Number: "1", Name: "Norte"})
	require.NoError(t, err)
	south, err := e.Geography.EnsureCircuit(ctx, geographydomain.EnsureCircuitRequest{SectionID: section.ID, Number: "2", Name: "Sur"})
	require.NoError(t, err)
	northPlace, err := e.Geography.EnsureVotingPlace(ctx, geographydomain.EnsureVotingPlaceRequest{CircuitID: north.ID, Name: "Escuela 1"})
	require.NoError(t, err)
	southPlace, err := e.Geography.EnsureVotingPlace(ctx, geographydomain.EnsureVotingPlaceRequest{CircuitID: south.ID, Name: "Escuela 2"})
	require.NoError(t, err)

	save := func(number, electors int, placeID, circuitID snowflake.ID) {
		t.Helper()
		_, err := e.Mesas.Save(ctx, mesadomain.SaveMesaRequest{
			Number:        number,
			Electors:      &electors,
			VotingPlaceID: &placeID,
			CircuitID:     &circuitID,
		})
		require.NoError(t, err)
	}

	save(1, 300, northPlace.ID, north.ID)
	save(2, 250, northPlace.ID, north.ID)
	save(3, 100, southPlace.ID, south.ID)

	circuitElectors := func(id snowflake.ID) int64 {
		circuit, err := e.Geography.GetCircuit(ctx, id)
		require.NoError(t, err)
		return circuit.ElectorCount
	}
	sectionElectors := func() int64 {
		stored, err := e.Geography.GetSection(ctx, section.ID)
		require.NoError(t, err)
		return stored.ElectorCount
	}

	assert.EqualValues(t, 550, circuitElectors(north.ID))
	assert.EqualValues(t, 100, circuitElectors(south.ID))
	assert.EqualValues(t, 650, sectionElectors())

	save(2, 200, northPlace.ID, north.ID)
	assert.EqualValues(t, 500, circuitElectors(north.ID))
	assert.EqualValues(t, 600, sectionElectors())
}

func TestSaveWithoutGeographyLeavesTotals(t *testing.T) {
	e := enginetest.New(t)
	electors := 400
	_, err := e.Mesas.Save(context.Background(), mesadomain.SaveMesaRequest{Number: 77, Electors: &electors})
	require.NoError(t, err)

	assert.EqualValues(t, 0, dbtest.Count(t, e.DB, `SELECT COUNT(1) FROM circuits`))
}

func TestSaveMovingMesaRecomputesPreviousCircuit(t *testing.T) {
	ctx := context.Background()
	e := enginetest.New(t)

	capitalNumber, otherNumber := 1, 2
	capital, err := e.Geography.EnsureSection(ctx, geographydomain.EnsureSectionRequest{Number: &capitalNumber, Name: "Capital"})
	require.NoError(t, err)
	calamuchita, err := e.Geography.EnsureSection(ctx, geographydomain.EnsureSectionRequest{Number: &otherNumber, Name: "Calamuchita"})
	require.NoError(t, err)
	north, err := e.Geography.EnsureCircuit(ctx, geographydomain.EnsureCircuitRequest{SectionID: capital.ID, Number: "1", Name: "Norte"})
	require.NoError(t, err)
	south, err := e.Geography.EnsureCircuit(ctx, geographydomain.EnsureCircuitRequest{SectionID: capital.ID, Number: "2", Name: "Sur"})
	require.NoError(t, err)
	santaRosa, err := e.Geography.EnsureCircuit(ctx, geographydomain.EnsureCircuitRequest{SectionID: calamuchita.ID, Number: "101", Name: "Santa Rosa"})
	require.NoError(t, err)
	northPlace, err := e.Geography.EnsureVotingPlace(ctx, geographydomain.EnsureVotingPlaceRequest{CircuitID: north.ID, Name: "Escuela 1"})
	require.NoError(t, err)
	southPlace, err := e.Geography.EnsureVotingPlace(ctx, geographydomain.EnsureVotingPlaceRequest{CircuitID: south.ID, Name: "Escuela 2"})
	require.NoError(t, err)
	santaRosaPlace, err := e.Geography.EnsureVotingPlace(ctx, geographydomain.EnsureVotingPlaceRequest{CircuitID: santaRosa.ID, Name: "Colegio Nacional"})
	require.NoError(t, err)

	electors := 300
	save := func(placeID, circuitID *snowflake.ID) {
		t.Helper()
		_, err := e.Mesas.Save(ctx, mesadomain.SaveMesaRequest{
			Number:        1,
			Electors:      &electors,
			VotingPlaceID: placeID,
			CircuitID:     circuitID,
		})
		require.NoError(t, err)
	}
	circuitElectors := func(id snowflake.ID) int64 {
		circuit, err := e.Geography.GetCircuit(ctx, id)
		require.NoError(t, err)
		return circuit.ElectorCount
	}
	sectionElectors := func(id snowflake.ID) int64 {
		section, err := e.Geography.GetSection(ctx, id)
		require.NoError(t, err)
		return section.ElectorCount
	}

	save(&northPlace.ID, &north.ID)
	assert.EqualValues(t, 300, circuitElectors(north.ID))

	save(&southPlace.ID, &south.ID)
	assert.EqualValues(t, 0, circuitElectors(north.ID))
	assert.EqualValues(t, 300, circuitElectors(south.ID))
	assert.EqualValues(t, 300, sectionElectors(capital.ID))

	save(&santaRosaPlace.ID, &santaRosa.ID)
	assert.EqualValues(t, 0, circuitElectors(south.ID))
	assert.EqualValues(t, 0, sectionElectors(capital.ID))
	assert.EqualValues(t, 300, circuitElectors(santaRosa.ID))
	assert.EqualValues(t, 300, sectionElectors(calamuchita.ID))

	save(nil, nil)
	assert.EqualValues(t, 0, circuitElectors(santaRosa.ID))
	assert.EqualValues(t, 0, sectionElectors(calamuchita.ID))
}
