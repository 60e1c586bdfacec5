package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Party struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	SortOrder int          `gorm:"column:sort_order;not null" json:"order"`
	Number    *int         `json:"number,omitempty"`
	Code      *string      `json:"code,omitempty"`
	Name      string       `gorm:"not null" json:"name"`
	ShortName string       `json:"short_name"`
	Color     string       `json:"color"`
	Reference string       `json:"reference,omitempty"`
}

func (Party) TableName() string { return "parties" }

// Option is a ballot line. Metadata options (blank, null, totals) are not countable.
type Option struct {
	ID           snowflake.ID  `gorm:"primaryKey" json:"id"`
	PartyID      *snowflake.ID `gorm:"index" json:"party_id,omitempty"`
	Name         string        `gorm:"not null" json:"name"`
	ShortName    string        `json:"short_name"`
	SortOrder    *int          `gorm:"column:sort_order" json:"order,omitempty"`
	Mandatory    bool          `json:"mandatory"`
	IsCountable  bool          `json:"is_countable"`
	IsMetadata   bool          `json:"is_metadata"`
	OfficialCode *int          `json:"official_code,omitempty"`
}

func (Option) TableName() string { return "options" }

type Election struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Slug      string       `gorm:"not null;uniqueIndex" json:"slug"`
	Name      string       `gorm:"not null" json:"name"`
	HeldAt    *time.Time   `json:"date,omitempty"`
	Active    bool         `json:"active"`
	Color     string       `json:"color"`
	BackColor string       `json:"back_color"`
}

func (Election) TableName() string { return "elections" }

type ElectionOption struct {
	ElectionID snowflake.ID `gorm:"primaryKey;autoIncrement:false"`
	OptionID   snowflake.ID `gorm:"primaryKey;autoIncrement:false"`
}

func (ElectionOption) TableName() string { return "election_options" }
