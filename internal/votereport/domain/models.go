package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// VoteReport is the count an operator entered for one option on one mesa's
// tally sheet. Votes is nil when the line was left blank.
type VoteReport struct {
	ID         snowflake.ID  `gorm:"primaryKey" json:"id"`
	MesaID     snowflake.ID  `gorm:"not null" json:"mesa_id"`
	ElectionID snowflake.ID  `gorm:"not null" json:"election_id"`
	OptionID   snowflake.ID  `gorm:"not null" json:"option_id"`
	Votes      *int          `json:"votes"`
	ReporterID *snowflake.ID `json:"reporter_id,omitempty"`
	CreatedAt  time.Time     `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time     `gorm:"not null" json:"updated_at"`
}

func (VoteReport) TableName() string { return "vote_reports" }
