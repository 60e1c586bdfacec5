package importer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPlanIsValid(t *testing.T) {
	plan := DefaultPlan()
	require.NoError(t, plan.Validate())
	assert.Len(t, plan.Elections, 4)
	assert.False(t, plan.Elections[3].active())
	assert.True(t, plan.Elections[0].active())
}

func TestLoadPlanDecodesTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.toml")
	content := `
capital_section = 3

[[elections]]
slug = "gobernador-2023"
name = "Gobernador 2023"
date = 2023-06-25T08:00:00Z
scope = "all"

[[elections]]
name = "Concejales {section}"
scope = "section"
active = false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	plan, err := LoadPlan(path)
	require.NoError(t, err)
	assert.Equal(t, 3, plan.CapitalSection)
	require.Len(t, plan.Elections, 2)
	assert.Equal(t, "gobernador-2023", plan.Elections[0].Slug)
	assert.Equal(t, 2023, plan.Elections[0].Date.Year())
	assert.False(t, plan.Elections[1].active())

	electionSlug, name := plan.Elections[1].resolve("Río Cuarto")
	assert.Equal(t, "Concejales Río Cuarto", name)
	assert.Equal(t, "concejales-rio-cuarto", electionSlug)
}

func TestPlanValidateRejectsUnknownScope(t *testing.T) {
	plan := Plan{Elections: []PlanElection{{Name: "x", Scope: "province"}}}
	assert.Error(t, plan.Validate())

	plan = Plan{Elections: []PlanElection{{Name: "x {section}", Slug: "x-{section}", Scope: ScopeAll}}}
	assert.Error(t, plan.Validate())

	assert.Error(t, Plan{}.Validate())
}

func TestSectionScopedKeysDifferPerSection(t *testing.T) {
	election := PlanElection{Slug: "depto-{section}", Name: "Depto {section}", Scope: ScopeSection}
	assert.NotEqual(t, election.key(1), election.key(2))

	global := PlanElection{Slug: "gobernador", Name: "Gobernador", Scope: ScopeAll}
	assert.Equal(t, global.key(1), global.key(2))
}
