package models

import (
	"time"

	"github.com/google/uuid"
)

// RosterContract is a rostered player together with its contract terms.
type RosterContract struct {
	ID              uuid.UUID       `json:"id"`
	MemberID        uuid.UUID       `json:"member_id"`
	PlayerID        uuid.UUID       `json:"player_id"`
	PlayerName      string          `json:"player_name"`
	Salary          int             `json:"salary"`
	Duration        int             `json:"duration"`
	Clause          int             `json:"clause"`
	AcquiredAt      time.Time       `json:"acquired_at"`
	AcquisitionType AcquisitionType `json:"acquisition_type"`
}

// AcquisitionType represents how a player was acquired
type AcquisitionType string

const (
	AcquisitionTypeAuction   AcquisitionType = "AUCTION"
	AcquisitionTypeTrade     AcquisitionType = "TRADE"
	AcquisitionTypeFreeAgent AcquisitionType = "FREE_AGENT"
	AcquisitionTypeRubata    AcquisitionType = "RUBATA"
)
