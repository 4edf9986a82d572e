package models

import "github.com/google/uuid"

// Member is a league member taking part in the rubata.
// Connected is advisory only.
type Member struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	TeamBudget int       `json:"team_budget"`
	Connected  bool      `json:"connected"`
}
