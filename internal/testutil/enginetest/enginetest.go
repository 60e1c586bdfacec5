// Package enginetest wires the engine services over an in-memory database.
package enginetest

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/escrutinio/internal/clock"
	"github.com/smallbiznis/escrutinio/internal/config"
	electiondomain "github.com/smallbiznis/escrutinio/internal/election/domain"
	electionrepo "github.com/smallbiznis/escrutinio/internal/election/repository"
	electionservice "github.com/smallbiznis/escrutinio/internal/election/service"
	geographydomain "github.com/smallbiznis/escrutinio/internal/geography/domain"
	geographyrepo "github.com/smallbiznis/escrutinio/internal/geography/repository"
	geographyservice "github.com/smallbiznis/escrutinio/internal/geography/service"
	mesadomain "github.com/smallbiznis/escrutinio/internal/mesa/domain"
	mesarepo "github.com/smallbiznis/escrutinio/internal/mesa/repository"
	mesaservice "github.com/smallbiznis/escrutinio/internal/mesa/service"
	"github.com/smallbiznis/escrutinio/internal/progress/adapters"
	progressdomain "github.com/smallbiznis/escrutinio/internal/progress/domain"
	progressrepo "github.com/smallbiznis/escrutinio/internal/progress/repository"
	progressservice "github.com/smallbiznis/escrutinio/internal/progress/service"
	"github.com/smallbiznis/escrutinio/internal/testutil/dbtest"
	votereportdomain "github.com/smallbiznis/escrutinio/internal/votereport/domain"
	votereportrepo "github.com/smallbiznis/escrutinio/internal/votereport/repository"
	votereportservice "github.com/smallbiznis/escrutinio/internal/votereport/service"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Start is the fake clock's initial instant.
var Start = time.Date(2019, time.May, 12, 18, 0, 0, 0, time.UTC)

type Engine struct {
	DB        *gorm.DB
	Node      *snowflake.Node
	Clock     *clock.FakeClock
	Config    *config.EngineConfigHolder
	Counters  progressdomain.Counters
	Mesas     mesadomain.Service
	Elections electiondomain.Service
	Votes     votereportdomain.Service
	Progress  progressdomain.Service
	Geography geographydomain.Service
}

// New builds every service with the default engine config. The summary is
// never cached.
func New(t *testing.T) *Engine {
	t.Helper()
	return NewWithConfig(t, config.DefaultEngineConfig())
}

func NewWithConfig(t *testing.T, cfg config.EngineConfig) *Engine {
	t.Helper()

	conn := dbtest.Open(t)
	node := dbtest.Node(t)
	log := zap.NewNop()
	fake := clock.NewFakeClock(Start)
	holder := config.NewStaticEngineConfigHolder(cfg)

	mesaRepo := mesarepo.Provide()
	electionRepo := electionrepo.Provide()
	progressRepo := progressrepo.Provide()

	counters := progressservice.NewCounters(progressservice.CountersParams{
		Log:      log,
		Clock:    fake,
		Repo:     progressRepo,
		MesaRepo: mesaRepo,
	})

	return &Engine{
		DB:       conn,
		Node:     node,
		Clock:    fake,
		Config:   holder,
		Counters: counters,
		Mesas: mesaservice.New(mesaservice.Params{
			DB:           conn,
			Log:          log,
			GenID:        node,
			Clock:        fake,
			Engine:       holder,
			Repo:         mesaRepo,
			ElectionRepo: electionRepo,
			Counters:     counters,
		}),
		Elections: electionservice.New(electionservice.Params{
			DB:       conn,
			Log:      log,
			GenID:    node,
			Engine:   holder,
			Repo:     electionRepo,
			Counters: counters,
		}),
		Votes: votereportservice.New(votereportservice.Params{
			DB:       conn,
			Log:      log,
			GenID:    node,
			Clock:    fake,
			Repo:     votereportrepo.Provide(),
			Counters: counters,
		}),
		Progress: progressservice.New(progressservice.Params{
			DB:          conn,
			Log:         log,
			Clock:       fake,
			Engine:      holder,
			Repo:        progressRepo,
			Attachments: adapters.NewAttachmentCounter(conn),
			Problems:    adapters.NewProblemChecker(conn),
		}),
		Geography: geographyservice.New(geographyservice.Params{
			DB:       conn,
			Log:      log,
			GenID:    node,
			Clock:    fake,
			Repo:     geographyrepo.Provide(),
			MesaRepo: mesaRepo,
		}),
	}
}

// Election creates an active election with one option attached.
func (e *Engine) Election(t *testing.T, name string) (electiondomain.Election, electiondomain.Option) {
	t.Helper()
	ctx := context.Background()

	election, err := e.Elections.Create(ctx, electiondomain.CreateElectionRequest{Name: name})
	if err != nil {
		t.Fatalf("create election %q: %v", name, err)
	}
	option, err := e.Elections.CreateOption(ctx, electiondomain.CreateOptionRequest{Name: name + " lista 1"})
	if err != nil {
		t.Fatalf("create option: %v", err)
	}
	if err := e.Elections.AddOption(ctx, election.ID, option.ID); err != nil {
		t.Fatalf("add option: %v", err)
	}
	return election, option
}

// Mesa creates a mesa with the given number attached to elections.
func (e *Engine) Mesa(t *testing.T, number int, elections ...electiondomain.Election) mesadomain.Mesa {
	t.Helper()
	ctx := context.Background()

	mesa, err := e.Mesas.Save(ctx, mesadomain.SaveMesaRequest{Number: number})
	if err != nil {
		t.Fatalf("save mesa %d: %v", number, err)
	}
	for _, election := range elections {
		if _, err := e.Mesas.AddElection(ctx, mesa.ID, election.ID); err != nil {
			t.Fatalf("add election %s to mesa %d: %v", election.Slug, number, err)
		}
	}
	return mesa
}

// Report records votes for one option of a mesa.
func (e *Engine) Report(t *testing.T, mesaID, electionID, optionID snowflake.ID, votes int) {
	t.Helper()
	_, err := e.Votes.Record(context.Background(), votereportdomain.RecordRequest{
		MesaID:     mesaID,
		ElectionID: electionID,
		OptionID:   optionID,
		Votes:      &votes,
	})
	if err != nil {
		t.Fatalf("record votes: %v", err)
	}
}

// Attach stores an attachment, optionally bound to a mesa.
func (e *Engine) Attach(t *testing.T, mesaID *snowflake.ID) {
	t.Helper()
	dbtest.Exec(t, e.DB,
		`INSERT INTO attachments (id, mesa_id, created_at) VALUES (?, ?, ?)`,
		e.Node.Generate(), mesaID, e.Clock.Now(),
	)
}

// Problem files a problem report on a mesa in the given state.
func (e *Engine) Problem(t *testing.T, mesaID snowflake.ID, state string) snowflake.ID {
	t.Helper()
	id := e.Node.Generate()
	dbtest.Exec(t, e.DB,
		`INSERT INTO problems (id, mesa_id, state, created_at) VALUES (?, ?, ?, ?)`,
		id, mesaID, state, e.Clock.Now(),
	)
	return id
}

// SetLoadOrder places the mesa in the data entry queue directly.
func (e *Engine) SetLoadOrder(t *testing.T, mesaID snowflake.ID, order int) {
	t.Helper()
	dbtest.Exec(t, e.DB, `UPDATE mesas SET load_order = ? WHERE id = ?`, order, mesaID)
}

// Reload reads the mesa back from the database.
func (e *Engine) Reload(t *testing.T, mesaID snowflake.ID) mesadomain.Mesa {
	t.Helper()
	mesa, err := e.Mesas.Get(context.Background(), mesaID)
	if err != nil {
		t.Fatalf("get mesa: %v", err)
	}
	return mesa
}
