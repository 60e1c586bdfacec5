package server

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/escrutinio/internal/config"
	"github.com/smallbiznis/escrutinio/internal/importer"
	"github.com/smallbiznis/escrutinio/internal/observability"
	"github.com/smallbiznis/escrutinio/internal/testutil/enginetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *errorPayload   `json:"error"`
}

func newTestServer(t *testing.T) (*enginetest.Engine, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	e := enginetest.New(t)
	r := gin.New()
	r.Use(ErrorHandlingMiddleware())
	srv := NewServer(ServerParams{
		Gin:          r,
		Log:          zap.NewNop(),
		MesaSvc:      e.Mesas,
		ElectionSvc:  e.Elections,
		VoteSvc:      e.Votes,
		ProgressSvc:  e.Progress,
		GeographySvc: e.Geography,
	})
	srv.RegisterRoutes()
	return e, r
}

func do(t *testing.T, r http.Handler, method, path string, body any) (int, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec.Code, env
}

func decodeIDs(t *testing.T, raw json.RawMessage) []string {
	t.Helper()
	var items []struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(raw, &items))
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	return ids
}

func TestDataEntryFlow(t *testing.T) {
	e, r := newTestServer(t)
	election, option := e.Election(t, "Gobernador")
	mesa := e.Mesa(t, 101, election)
	e.SetLoadOrder(t, mesa.ID, 1)
	e.Attach(t, &mesa.ID)
	base := "/v1/mesas/" + mesa.ID.String()

	status, env := do(t, r, http.MethodGet, "/v1/mesas/pending-entry", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []string{mesa.ID.String()}, decodeIDs(t, env.Data))

	status, env = do(t, r, http.MethodPost, base+"/claim", nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"mesa_id":"`+mesa.ID.String()+`","claimed":true}`, string(env.Data))

	status, env = do(t, r, http.MethodPost, base+"/claim", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(env.Data), `"claimed":false`)

	status, env = do(t, r, http.MethodGet, base+"/next-election/entry", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(env.Data), election.Slug)

	status, _ = do(t, r, http.MethodPost, base+"/elections/"+election.ID.String()+"/votes", map[string]any{
		"option_id": option.ID.String(),
		"votes":     120,
	})
	require.Equal(t, http.StatusOK, status)

	status, env = do(t, r, http.MethodGet, base+"/next-election/entry", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "null", string(env.Data))

	// released claims and loaded elections both drop out of the entry queue
	status, _ = do(t, r, http.MethodDelete, base+"/claim", nil)
	require.Equal(t, http.StatusNoContent, status)
	status, env = do(t, r, http.MethodGet, "/v1/mesas/pending-entry", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, decodeIDs(t, env.Data))

	status, env = do(t, r, http.MethodGet, "/v1/mesas/pending-confirmation", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []string{mesa.ID.String()}, decodeIDs(t, env.Data))

	status, _ = do(t, r, http.MethodPost, base+"/elections/"+election.ID.String()+"/confirm", nil)
	require.Equal(t, http.StatusOK, status)

	status, env = do(t, r, http.MethodGet, "/v1/mesas/pending-confirmation", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, decodeIDs(t, env.Data))

	status, env = do(t, r, http.MethodGet, "/v1/summary", nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"unassigned_attachments":0,"pending_data_entry":0,"pending_confirmation":0}`, string(env.Data))
}

func TestRecordTallySheet(t *testing.T) {
	e, r := newTestServer(t)
	election, option := e.Election(t, "Intendente")
	mesa := e.Mesa(t, 7, election)
	path := "/v1/mesas/" + mesa.ID.String() + "/elections/" + election.ID.String() + "/votes"

	status, _ := do(t, r, http.MethodPut, path, map[string]any{
		"reporter_id": "42",
		"votes": []map[string]any{
			{"option_id": option.ID.String(), "votes": 10},
		},
	})
	require.Equal(t, http.StatusOK, status)

	status, env := do(t, r, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(env.Data), `"votes":10`)
	assert.Contains(t, string(env.Data), `"reporter_id":"42"`)

	status, env = do(t, r, http.MethodPut, path, map[string]any{"votes": []any{}})
	require.Equal(t, http.StatusBadRequest, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "empty_batch", env.Error.Errors[0].Code)
}

func TestErrorMapping(t *testing.T) {
	e, r := newTestServer(t)
	election, _ := e.Election(t, "Gobernador")
	other, otherOption := e.Election(t, "Legisladores")
	mesa := e.Mesa(t, 1, election)

	status, env := do(t, r, http.MethodPost, "/v1/mesas/abc/advance", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "validation_error", env.Error.Type)

	status, env = do(t, r, http.MethodPost, "/v1/mesas/999/advance", nil)
	assert.Equal(t, http.StatusNotFound, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "mesa_not_found", env.Error.Code)

	status, env = do(t, r, http.MethodGet, "/v1/mesas/pending-entry?window=soon", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "invalid_window", env.Error.Errors[0].Code)

	status, env = do(t, r, http.MethodPost,
		"/v1/mesas/"+mesa.ID.String()+"/elections/"+other.ID.String()+"/votes",
		map[string]any{"option_id": otherOption.ID.String(), "votes": 3})
	assert.Equal(t, http.StatusConflict, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "mesa_not_in_election", env.Error.Code)

	status, env = do(t, r, http.MethodPost,
		"/v1/mesas/"+mesa.ID.String()+"/elections/"+election.ID.String()+"/confirm", nil)
	assert.Equal(t, http.StatusConflict, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "nothing_to_confirm", env.Error.Code)

	status, env = do(t, r, http.MethodGet, "/v1/elections/current", nil)
	assert.Equal(t, http.StatusNotFound, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "no_current_election", env.Error.Code)
}

func TestAdvanceAndCommonElections(t *testing.T) {
	e, r := newTestServer(t)
	gobernador, _ := e.Election(t, "Gobernador")
	intendente, _ := e.Election(t, "Intendente")
	first := e.Mesa(t, 1, gobernador, intendente)
	second := e.Mesa(t, 2, gobernador)

	for _, want := range []string{"OPEN", "CLOSED", "TALLIED", "TALLIED"} {
		status, env := do(t, r, http.MethodPost, "/v1/mesas/"+first.ID.String()+"/advance", nil)
		require.Equal(t, http.StatusOK, status)
		assert.Contains(t, string(env.Data), `"state":"`+want+`"`)
	}

	status, env := do(t, r, http.MethodGet, "/v1/elections/common?mesa_ids="+first.ID.String()+","+second.ID.String(), nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []string{gobernador.ID.String()}, decodeIDs(t, env.Data))

	status, env = do(t, r, http.MethodGet, "/v1/elections/common?mesa_ids=", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "[]", string(env.Data))

	status, _ = do(t, r, http.MethodGet, "/v1/elections/common?mesa_ids=1,x", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, env = do(t, r, http.MethodPatch, "/v1/elections/"+intendente.ID.String(), map[string]any{"active": false})
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(env.Data), `"active":false`)

	status, env = do(t, r, http.MethodGet, "/v1/elections", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []string{gobernador.ID.String()}, decodeIDs(t, env.Data))
}

func TestHealthPingsDatabase(t *testing.T) {
	gin.SetMode(gin.TestMode)
	e := enginetest.New(t)
	r := NewEngine(config.Config{}, observability.Config{Environment: "test"}, nil, e.DB)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestImportUploadIsRecorded(t *testing.T) {
	gin.SetMode(gin.TestMode)
	e := enginetest.New(t)
	r := gin.New()
	r.Use(ErrorHandlingMiddleware())
	srv := NewServer(ServerParams{
		Gin:          r,
		Log:          zap.NewNop(),
		MesaSvc:      e.Mesas,
		ElectionSvc:  e.Elections,
		VoteSvc:      e.Votes,
		ProgressSvc:  e.Progress,
		GeographySvc: e.Geography,
		Importer: importer.New(importer.Params{
			Log:       zap.NewNop(),
			Engine:    e.Config,
			Geography: e.Geography,
			Elections: e.Elections,
			Mesas:     e.Mesas,
			DB:        e.DB,
			Clock:     e.Clock,
		}),
	})
	srv.RegisterRoutes()

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("map", "mapa.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte("Seccion,Nombre Seccion,Circuito,Nombre Circuito,Establecimiento,Direccion,Ciudad,Barrio,electores,Mesa desde,Mesa Hasta,Latitud,Longitud,Estado Geolocalizacion\n" +
		"2,Calamuchita,101,Santa Rosa,Colegio Nacional,San Martín 5,Santa Rosa,,350,4,5,,,\n"))
	require.NoError(t, err)
	require.NoError(t, form.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/imports", &body)
	req.Header.Set("Content-Type", form.FormDataContentType())
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"mesas":2`)

	status, env := do(t, r, http.MethodGet, "/v1/imports", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(env.Data), `"status":"succeeded"`)

	status, env = do(t, r, http.MethodGet, "/v1/imports?limit=x", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "invalid_limit", env.Error.Errors[0].Code)
}

func TestCORSPreflightForConfiguredOrigin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	e := enginetest.New(t)
	r := NewEngine(config.Config{CORSAllowedOrigins: []string{"https://carga.example.org"}}, observability.Config{Environment: "test"}, nil, e.DB)

	req := httptest.NewRequest(http.MethodOptions, "/health", nil)
	req.Header.Set("Origin", "https://carga.example.org")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://carga.example.org", rec.Header().Get("Access-Control-Allow-Origin"))
}
