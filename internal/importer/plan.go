package importer

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/gosimple/slug"
)

// Election scopes decide which mesas of a row are attached to an election.
const (
	ScopeAll     = "all"
	ScopeCapital = "capital"
	ScopeSection = "section"
)

// sectionPlaceholder is replaced by the row's section name in section scoped
// slug and name templates.
const sectionPlaceholder = "{section}"

// Plan lists the elections an import pass creates and how mesas join them.
type Plan struct {
	// CapitalSection is the section number projected by circuit. Zero uses
	// the engine default.
	CapitalSection int            `toml:"capital_section"`
	Elections      []PlanElection `toml:"elections"`
}

type PlanElection struct {
	Slug   string    `toml:"slug"`
	Name   string    `toml:"name"`
	Date   time.Time `toml:"date"`
	Active *bool     `toml:"active"`
	Scope  string    `toml:"scope"`
}

func (e PlanElection) active() bool {
	return e.Active == nil || *e.Active
}

// DefaultPlan mirrors the 2019 Córdoba provincial election.
func DefaultPlan() Plan {
	date := time.Date(2019, time.May, 12, 8, 0, 0, 0, time.UTC)
	inactive := false
	return Plan{
		Elections: []PlanElection{
			{Slug: "gobernador-cordoba-2019", Name: "Gobernador Córdoba 2019", Date: date, Scope: ScopeAll},
			{Slug: "legisladores-dist-unico-cordoba-2019", Name: "Legisladores Distrito Único Córdoba 2019", Date: date, Scope: ScopeAll},
			{Slug: "intendente-cordoba-2019", Name: "Intendente Córdoba 2019", Date: date, Scope: ScopeCapital},
			{
				Slug:   "legisladores-departamento-{section}-2019",
				Name:   "Legisladores Depto {section} Córdoba 2019",
				Date:   date,
				Active: &inactive,
				Scope:  ScopeSection,
			},
		},
	}
}

// LoadPlan decodes a TOML import plan.
func LoadPlan(path string) (Plan, error) {
	var plan Plan
	if _, err := toml.DecodeFile(path, &plan); err != nil {
		return Plan{}, fmt.Errorf("load import plan: %w", err)
	}
	if err := plan.Validate(); err != nil {
		return Plan{}, err
	}
	return plan, nil
}

// DecodePlan reads a TOML import plan from r.
func DecodePlan(r io.Reader) (Plan, error) {
	var plan Plan
	if _, err := toml.NewDecoder(r).Decode(&plan); err != nil {
		return Plan{}, fmt.Errorf("decode import plan: %w", err)
	}
	if err := plan.Validate(); err != nil {
		return Plan{}, err
	}
	return plan, nil
}

func (p Plan) Validate() error {
	if p.CapitalSection < 0 {
		return errors.New("capital_section cannot be negative")
	}
	if len(p.Elections) == 0 {
		return errors.New("import plan has no elections")
	}
	for i, election := range p.Elections {
		if strings.TrimSpace(election.Name) == "" {
			return fmt.Errorf("elections[%d]: name is required", i)
		}
		switch election.Scope {
		case ScopeAll, ScopeCapital:
			if strings.Contains(election.Slug, sectionPlaceholder) {
				return fmt.Errorf("elections[%d]: %s only allowed in section scope", i, sectionPlaceholder)
			}
		case ScopeSection:
		default:
			return fmt.Errorf("elections[%d]: unknown scope %q", i, election.Scope)
		}
	}
	return nil
}

// resolve fills the section placeholders for a row.
func (e PlanElection) resolve(sectionName string) (string, string) {
	electionSlug := strings.TrimSpace(e.Slug)
	name := strings.TrimSpace(e.Name)
	if e.Scope != ScopeSection {
		return electionSlug, name
	}
	name = strings.ReplaceAll(name, sectionPlaceholder, sectionName)
	if electionSlug == "" {
		return slug.Make(name), name
	}
	return slug.Make(strings.ReplaceAll(electionSlug, sectionPlaceholder, sectionName)), name
}

func (e PlanElection) key(sectionNumber int) string {
	if e.Scope != ScopeSection {
		return e.Slug + "|" + e.Name
	}
	return e.Slug + "|" + e.Name + "|" + strconv.Itoa(sectionNumber)
}
