package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Mesa struct {
	ID             snowflake.ID  `gorm:"primaryKey" json:"id"`
	Number         int           `gorm:"not null;uniqueIndex" json:"number"`
	State          State         `gorm:"not null" json:"state"`
	VotingPlaceID  *snowflake.ID `json:"voting_place_id,omitempty"`
	CircuitID      *snowflake.ID `json:"circuit_id,omitempty"`
	Electors       *int          `json:"electors,omitempty"`
	IsWitness      bool          `json:"is_witness"`
	RecordURL      string        `json:"record_url,omitempty"`
	TakenAt        *time.Time    `json:"taken_at,omitempty"`
	TalliedAt      *time.Time    `json:"tallied_at,omitempty"`
	LoadOrder      int           `gorm:"not null;default:0" json:"load_order"`
	LoadConfirmed  bool          `json:"load_confirmed"`
	LoadedCount    int           `gorm:"not null;default:0" json:"loaded_count"`
	ConfirmedCount int           `gorm:"not null;default:0" json:"confirmed_count"`
	CreatedAt      time.Time     `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time     `gorm:"not null" json:"updated_at"`
}

func (Mesa) TableName() string { return "mesas" }

// MesaElection marks a mesa as taking part in an election.
type MesaElection struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	MesaID     snowflake.ID `gorm:"not null" json:"mesa_id"`
	ElectionID snowflake.ID `gorm:"not null" json:"election_id"`
	Confirmed  bool         `json:"confirmed"`
}

func (MesaElection) TableName() string { return "mesa_elections" }
