package importer_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/smallbiznis/escrutinio/internal/config"
	"github.com/smallbiznis/escrutinio/internal/importer"
	"github.com/smallbiznis/escrutinio/internal/testutil/dbtest"
	"github.com/smallbiznis/escrutinio/internal/testutil/enginetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const mapCSV = "Seccion,Nombre Seccion,Circuito,Nombre Circuito,Establecimiento,Direccion,Ciudad,Barrio,electores,Mesa desde,Mesa Hasta,Latitud,Longitud,Estado Geolocalizacion\n" +
	`1,Capital,1,Centro,Escuela Alberdi,Colón 100,Córdoba,Centro,700,1,3,-31.4135,-64.1810,Match` + "\n" +
	`2,Calamuchita,101,Santa Rosa,Colegio Nacional,San Martín 5,Santa Rosa,,350,4,4,,,` + "\n"

func newImporter(e *enginetest.Engine) *importer.Importer {
	return importer.New(importer.Params{
		Log:       zap.NewNop(),
		Engine:    e.Config,
		Geography: e.Geography,
		Elections: e.Elections,
		Mesas:     e.Mesas,
	})
}

func TestRunImportsElectoralMap(t *testing.T) {
	ctx := context.Background()
	e := enginetest.New(t)
	rows, err := importer.ReadRows(strings.NewReader(mapCSV))
	require.NoError(t, err)

	report, err := newImporter(e).Run(ctx, importer.DefaultPlan(), rows)
	require.NoError(t, err)
	assert.NotEmpty(t, report.PassID)
	assert.Equal(t, 2, report.Rows)
	assert.Equal(t, 4, report.Mesas)
	// capital mesas join four elections, the other section three
	assert.Equal(t, 3*4+1*3, report.Associations)
	assert.True(t, report.WeightedProjection)

	assert.EqualValues(t, 4, dbtest.Count(t, e.DB, `SELECT COUNT(1) FROM mesas`))
	assert.EqualValues(t, 5, dbtest.Count(t, e.DB, `SELECT COUNT(1) FROM elections`))
	assert.EqualValues(t, 2, dbtest.Count(t, e.DB, `SELECT COUNT(1) FROM elections WHERE active = ?`, false))
	assert.EqualValues(t, 1, dbtest.Count(t, e.DB,
		`SELECT COUNT(1) FROM elections WHERE slug = ?`, "legisladores-departamento-calamuchita-2019"))
	assert.EqualValues(t, 1, dbtest.Count(t, e.DB,
		`SELECT COUNT(1) FROM sections WHERE weighted_projection = ?`, true))
	assert.EqualValues(t, 1, dbtest.Count(t, e.DB,
		`SELECT COUNT(1) FROM mesa_elections me
		 JOIN mesas m ON m.id = me.mesa_id
		 JOIN elections e ON e.id = me.election_id
		 WHERE m.number = ? AND e.slug = ?`, 1, "intendente-cordoba-2019"))
	assert.EqualValues(t, 0, dbtest.Count(t, e.DB,
		`SELECT COUNT(1) FROM mesa_elections me
		 JOIN mesas m ON m.id = me.mesa_id
		 JOIN elections e ON e.id = me.election_id
		 WHERE m.number = ? AND e.slug = ?`, 4, "intendente-cordoba-2019"))
	assert.EqualValues(t, 9, dbtest.Count(t, e.DB,
		`SELECT geo_confidence FROM voting_places WHERE name = ?`, "Escuela Alberdi"))
	assert.EqualValues(t, 700, dbtest.Count(t, e.DB,
		`SELECT elector_count FROM voting_places WHERE name = ?`, "Escuela Alberdi"))
}

func TestRunIsIdempotent(t *testing.T) {
	ctx := context.Background()
	e := enginetest.New(t)
	rows, err := importer.ReadRows(strings.NewReader(mapCSV))
	require.NoError(t, err)
	im := newImporter(e)

	first, err := im.Run(ctx, importer.DefaultPlan(), rows)
	require.NoError(t, err)
	second, err := im.Run(ctx, importer.DefaultPlan(), rows)
	require.NoError(t, err)

	assert.NotEqual(t, first.PassID, second.PassID)
	assert.EqualValues(t, 4, dbtest.Count(t, e.DB, `SELECT COUNT(1) FROM mesas`))
	assert.EqualValues(t, 5, dbtest.Count(t, e.DB, `SELECT COUNT(1) FROM elections`))
	assert.EqualValues(t, 15, dbtest.Count(t, e.DB, `SELECT COUNT(1) FROM mesa_elections`))
	assert.EqualValues(t, 2, dbtest.Count(t, e.DB, `SELECT COUNT(1) FROM voting_places`))
}

func TestRunUsesEngineCapitalWhenPlanOmitsIt(t *testing.T) {
	ctx := context.Background()
	cfg := config.DefaultEngineConfig()
	cfg.CapitalSectionNumber = 2
	e := enginetest.NewWithConfig(t, cfg)
	rows, err := importer.ReadRows(strings.NewReader(mapCSV))
	require.NoError(t, err)

	_, err = newImporter(e).Run(ctx, importer.DefaultPlan(), rows)
	require.NoError(t, err)

	assert.EqualValues(t, 1, dbtest.Count(t, e.DB,
		`SELECT COUNT(1) FROM sections WHERE weighted_projection = ? AND number = ?`, true, 2))
	assert.EqualValues(t, 1, dbtest.Count(t, e.DB,
		`SELECT COUNT(1) FROM mesa_elections me
		 JOIN mesas m ON m.id = me.mesa_id
		 JOIN elections e ON e.id = me.election_id
		 WHERE m.number = ? AND e.slug = ?`, 4, "intendente-cordoba-2019"))
}

func TestRunStopsOnInvalidRow(t *testing.T) {
	e := enginetest.New(t)
	rows := []importer.Row{{SectionNumber: 1, SectionName: "Capital", MesaFrom: 5, MesaTo: 2}}

	_, err := newImporter(e).Run(context.Background(), importer.DefaultPlan(), rows)
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "row 1"))
	assert.False(t, errors.Is(err, importer.ErrImportRunning))
	assert.EqualValues(t, 0, dbtest.Count(t, e.DB, `SELECT COUNT(1) FROM mesas`))
}

func TestRunsRecordsEveryPass(t *testing.T) {
	ctx := context.Background()
	e := enginetest.New(t)
	im := importer.New(importer.Params{
		Log:       zap.NewNop(),
		Engine:    e.Config,
		Geography: e.Geography,
		Elections: e.Elections,
		Mesas:     e.Mesas,
		DB:        e.DB,
		Clock:     e.Clock,
	})
	rows, err := importer.ReadRows(strings.NewReader(mapCSV))
	require.NoError(t, err)

	report, err := im.Run(ctx, importer.DefaultPlan(), rows)
	require.NoError(t, err)

	e.Clock.Advance(time.Minute)
	invalid := []importer.Row{{SectionNumber: 1, SectionName: "Capital", MesaFrom: 5, MesaTo: 2}}
	_, err = im.Run(ctx, importer.DefaultPlan(), invalid)
	require.Error(t, err)

	runs, err := im.Runs(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, importer.RunStatusFailed, runs[0].Status)
	require.NotNil(t, runs[0].Error)
	assert.Contains(t, *runs[0].Error, "row 1")

	assert.Equal(t, report.PassID, runs[1].PassID)
	assert.Equal(t, importer.RunStatusSucceeded, runs[1].Status)
	assert.Nil(t, runs[1].Error)
	assert.Equal(t, json.Number("4"), runs[1].Report["mesas"])
	assert.Equal(t, true, runs[1].Report["weighted_projection"])

	limited, err := im.Runs(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestRunsWithoutDatabaseIsEmpty(t *testing.T) {
	e := enginetest.New(t)
	runs, err := newImporter(e).Runs(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, runs)
	assert.NotNil(t, runs)
}
