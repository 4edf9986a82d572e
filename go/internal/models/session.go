package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SessionRecord is the persisted shape of a rubata session: one row per market cycle
// with nullable blobs for whatever sub-state is active.
type SessionRecord struct {
	ID           uuid.UUID       `json:"id"`
	LeagueID     uuid.UUID       `json:"league_id"`
	Phase        Phase           `json:"phase"`
	CurrentIndex int             `json:"current_index"`
	Version      int64           `json:"version"`
	Board        json.RawMessage `json:"board"`
	State        json.RawMessage `json:"state"`
	Auction      json.RawMessage `json:"auction,omitempty"`
	ReadyCheck   json.RawMessage `json:"ready_check,omitempty"`
	Appeal       json.RawMessage `json:"appeal,omitempty"`
	Paused       json.RawMessage `json:"paused,omitempty"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// StealCommit is everything the persistence layer needs to apply a won auction
// atomically: transfer the roster, debit the winner, record the steal.
// AuctionID identifies the won auction; the same entry can be stolen again
// after goBack or a regenerated board, but an auction commits at most once.
type StealCommit struct {
	AuctionID   uuid.UUID `json:"auction_id"`
	SessionID   uuid.UUID `json:"session_id"`
	LeagueID    uuid.UUID `json:"league_id"`
	EntryIndex  int       `json:"entry_index"`
	RosterID    uuid.UUID `json:"roster_id"`
	PlayerID    uuid.UUID `json:"player_id"`
	SellerID    uuid.UUID `json:"seller_id"`
	WinnerID    uuid.UUID `json:"winner_id"`
	Price       int       `json:"price"`
	CommittedAt time.Time `json:"committed_at"`
}
