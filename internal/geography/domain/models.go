package domain

import (
	"github.com/bwmarrin/snowflake"
)

// Section is the top electoral district (departamento).
type Section struct {
	ID                 snowflake.ID `gorm:"primaryKey" json:"id"`
	Number             *int         `json:"number,omitempty"`
	Name               string       `gorm:"not null" json:"name"`
	ElectorCount       int64        `gorm:"not null;default:0" json:"elector_count"`
	WeightedProjection bool         `json:"weighted_projection"`
}

func (Section) TableName() string { return "sections" }

type Circuit struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	SectionID    snowflake.ID `gorm:"not null" json:"section_id"`
	Number       string       `gorm:"not null" json:"number"`
	Name         string       `gorm:"not null" json:"name"`
	HeadTown     *string      `json:"head_town,omitempty"`
	ElectorCount int64        `gorm:"not null;default:0" json:"elector_count"`
}

func (Circuit) TableName() string { return "circuits" }

// VotingPlace is a school or building hosting one or more mesas.
type VotingPlace struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	CircuitID     snowflake.ID `gorm:"not null" json:"circuit_id"`
	Name          string       `gorm:"not null" json:"name"`
	Address       string       `gorm:"not null" json:"address"`
	Neighborhood  string       `json:"neighborhood"`
	City          string       `json:"city"`
	GeoQuality    string       `json:"geo_quality,omitempty"`
	GeoConfidence int          `json:"geo_confidence"`
	Latitude      *float64     `json:"latitude,omitempty"`
	Longitude     *float64     `json:"longitude,omitempty"`
	ElectorCount  *int         `json:"elector_count,omitempty"`
}

func (VotingPlace) TableName() string { return "voting_places" }

// GeoPoint is a WGS84 coordinate.
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

const (
	ProjectionByCircuit = "circuit"
	ProjectionBySection = "section"

	PlaceColorReported = "green"
	PlaceColorPending  = "orange"

	MinGeoConfidence = 0
	MaxGeoConfidence = 10
)

// ProjectionGroup is the unit results are weighted by when projecting a mesa.
type ProjectionGroup struct {
	Kind string       `json:"kind"`
	ID   snowflake.ID `json:"id"`
	Name string       `json:"name"`
}
