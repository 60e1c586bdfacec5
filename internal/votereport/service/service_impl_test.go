package service_test

import (
	"context"
	"testing"

	"github.com/smallbiznis/escrutinio/internal/testutil/dbtest"
	"github.com/smallbiznis/escrutinio/internal/testutil/enginetest"
	"github.com/smallbiznis/escrutinio/internal/votereport/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestRecordOverwritesSameKey(t *testing.T) {
	ctx := context.Background()
	e := enginetest.New(t)
	election, option := e.Election(t, "Gobernador")
	mesa := e.Mesa(t, 1, election)

	req := domain.RecordRequest{MesaID: mesa.ID, ElectionID: election.ID, OptionID: option.ID, Votes: intPtr(10)}
	first, err := e.Votes.Record(ctx, req)
	require.NoError(t, err)
	second, err := e.Votes.Record(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.EqualValues(t, 1, dbtest.Count(t, e.DB,
		`SELECT COUNT(1) FROM vote_reports WHERE mesa_id = ? AND election_id = ? AND option_id = ?`,
		mesa.ID, election.ID, option.ID))

	total, err := e.Votes.TotalReported(ctx, mesa.ID)
	require.NoError(t, err)
	require.NotNil(t, total)
	assert.EqualValues(t, 10, *total)

	req.Votes = intPtr(12)
	updated, err := e.Votes.Record(ctx, req)
	require.NoError(t, err)
	require.NotNil(t, updated.Votes)
	assert.Equal(t, 12, *updated.Votes)
}

func TestLoadedCountFollowsActiveElections(t *testing.T) {
	ctx := context.Background()
	e := enginetest.New(t)
	gobernador, gobernadorOption := e.Election(t, "Gobernador")
	intendente, intendenteOption := e.Election(t, "Intendente")
	mesa := e.Mesa(t, 2, gobernador, intendente)

	e.Report(t, mesa.ID, gobernador.ID, gobernadorOption.ID, 5)
	e.Report(t, mesa.ID, gobernador.ID, gobernadorOption.ID, 6)
	assert.Equal(t, 1, e.Reload(t, mesa.ID).LoadedCount)

	e.Report(t, mesa.ID, intendente.ID, intendenteOption.ID, 1)
	assert.Equal(t, 2, e.Reload(t, mesa.ID).LoadedCount)

	_, err := e.Elections.SetActive(ctx, intendente.ID, false)
	require.NoError(t, err)
	assert.Equal(t, 1, e.Reload(t, mesa.ID).LoadedCount)

	_, err = e.Elections.SetActive(ctx, intendente.ID, true)
	require.NoError(t, err)
	assert.Equal(t, 2, e.Reload(t, mesa.ID).LoadedCount)
}

func TestRecordBlankLineCountsAsLoaded(t *testing.T) {
	e := enginetest.New(t)
	election, option := e.Election(t, "Gobernador")
	mesa := e.Mesa(t, 3, election)

	_, err := e.Votes.Record(context.Background(), domain.RecordRequest{
		MesaID: mesa.ID, ElectionID: election.ID, OptionID: option.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, e.Reload(t, mesa.ID).LoadedCount)

	total, err := e.Votes.TotalReported(context.Background(), mesa.ID)
	require.NoError(t, err)
	assert.Nil(t, total)
}

func TestRecordRejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	e := enginetest.New(t)
	election, option := e.Election(t, "Gobernador")
	other, otherOption := e.Election(t, "Intendente")
	mesa := e.Mesa(t, 4, election)

	_, err := e.Votes.Record(ctx, domain.RecordRequest{MesaID: mesa.ID, ElectionID: election.ID, OptionID: option.ID, Votes: intPtr(-1)})
	assert.ErrorIs(t, err, domain.ErrInvalidVotes)

	_, err = e.Votes.Record(ctx, domain.RecordRequest{MesaID: mesa.ID, ElectionID: other.ID, OptionID: otherOption.ID, Votes: intPtr(1)})
	assert.ErrorIs(t, err, domain.ErrMesaNotInElection)

	_, err = e.Votes.Record(ctx, domain.RecordRequest{MesaID: mesa.ID, ElectionID: election.ID, OptionID: otherOption.ID, Votes: intPtr(1)})
	assert.ErrorIs(t, err, domain.ErrOptionNotInElection)

	_, err = e.Votes.Record(ctx, domain.RecordRequest{ElectionID: election.ID, OptionID: option.ID})
	assert.ErrorIs(t, err, domain.ErrInvalidID)

	_, err = e.Votes.RecordBatch(ctx, nil)
	assert.ErrorIs(t, err, domain.ErrEmptyBatch)

	assert.Equal(t, 0, e.Reload(t, mesa.ID).LoadedCount)
}

func TestRecordBatchIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	e := enginetest.New(t)
	election, option := e.Election(t, "Gobernador")
	_, otherOption := e.Election(t, "Intendente")
	mesa := e.Mesa(t, 5, election)

	_, err := e.Votes.RecordBatch(ctx, []domain.RecordRequest{
		{MesaID: mesa.ID, ElectionID: election.ID, OptionID: option.ID, Votes: intPtr(8)},
		{MesaID: mesa.ID, ElectionID: election.ID, OptionID: otherOption.ID, Votes: intPtr(2)},
	})
	require.ErrorIs(t, err, domain.ErrOptionNotInElection)

	assert.EqualValues(t, 0, dbtest.Count(t, e.DB, `SELECT COUNT(1) FROM vote_reports`))
	assert.Equal(t, 0, e.Reload(t, mesa.ID).LoadedCount)

	reports, err := e.Votes.ListForMesa(ctx, mesa.ID, election.ID)
	require.NoError(t, err)
	assert.Empty(t, reports)
}
