package events

import (
	"time"
)

// Event payload types that are shared between the coordinator, the outbox relay
// and the gateway.

const (
	TypeRubataStarted   = "RubataStarted"
	TypeOfferOpened     = "OfferOpened"
	TypeEntrySkipped    = "EntrySkipped"
	TypeAuctionOpened   = "AuctionOpened"
	TypeBidPlaced       = "BidPlaced"
	TypeAuctionClosed   = "AuctionClosed"
	TypeAppealSubmitted = "AppealSubmitted"
	TypeAppealDecided   = "AppealDecided"
	TypeRubataPaused    = "RubataPaused"
	TypeRubataResumed   = "RubataResumed"
	TypeStealCommitted  = "StealCommitted"
	TypeRubataWentBack  = "RubataWentBack"
	TypeRubataCompleted = "RubataCompleted"
	TypeRubataAborted   = "RubataAborted"
)

// Known reports whether eventType is one of the rubata event types.
func Known(eventType string) bool {
	switch eventType {
	case TypeRubataStarted, TypeOfferOpened, TypeEntrySkipped, TypeAuctionOpened,
		TypeBidPlaced, TypeAuctionClosed, TypeAppealSubmitted, TypeAppealDecided,
		TypeRubataPaused, TypeRubataResumed, TypeStealCommitted, TypeRubataWentBack,
		TypeRubataCompleted, TypeRubataAborted:
		return true
	}
	return false
}

// RubataStartedPayload is the payload for a RubataStarted event
type RubataStartedPayload struct {
	SessionID    string    `json:"session_id"`
	LeagueID     string    `json:"league_id"`
	TotalEntries int       `json:"total_entries"`
	StartedAt    time.Time `json:"started_at"`
}

// OfferOpenedPayload is the payload for an OfferOpened event
type OfferOpenedPayload struct {
	SessionID  string    `json:"session_id"`
	EntryIndex int       `json:"entry_index"`
	PlayerID   string    `json:"player_id"`
	OwnerID    string    `json:"owner_id"`
	BasePrice  int       `json:"base_price"`
	TimeoutAt  time.Time `json:"timeout_at"`
}

// EntrySkippedPayload is the payload for an EntrySkipped event
type EntrySkippedPayload struct {
	SessionID  string    `json:"session_id"`
	EntryIndex int       `json:"entry_index"`
	PlayerID   string    `json:"player_id"`
	Reason     string    `json:"reason"`
	SkippedAt  time.Time `json:"skipped_at"`
}

// AuctionOpenedPayload is the payload for an AuctionOpened event
type AuctionOpenedPayload struct {
	SessionID  string    `json:"session_id"`
	EntryIndex int       `json:"entry_index"`
	PlayerID   string    `json:"player_id"`
	SellerID   string    `json:"seller_id"`
	OfferedBy  string    `json:"offered_by,omitempty"`
	Price      int       `json:"price"`
	Reopened   bool      `json:"reopened"`
	TimeoutAt  time.Time `json:"timeout_at"`
}

// BidPlacedPayload is the payload for a BidPlaced event
type BidPlacedPayload struct {
	SessionID      string    `json:"session_id"`
	EntryIndex     int       `json:"entry_index"`
	BidderID       string    `json:"bidder_id"`
	Amount         int       `json:"amount"`
	SequenceNumber int64     `json:"sequence_number"`
	TimeoutAt      time.Time `json:"timeout_at"`
}

// AuctionClosedPayload is the payload for an AuctionClosed event
type AuctionClosedPayload struct {
	SessionID  string    `json:"session_id"`
	EntryIndex int       `json:"entry_index"`
	WinnerID   string    `json:"winner_id,omitempty"`
	Price      int       `json:"price"`
	Reason     string    `json:"reason"`
	ClosedAt   time.Time `json:"closed_at"`
}

// AppealSubmittedPayload is the payload for an AppealSubmitted event
type AppealSubmittedPayload struct {
	SessionID   string    `json:"session_id"`
	AppealID    string    `json:"appeal_id"`
	EntryIndex  int       `json:"entry_index"`
	SubmittedBy string    `json:"submitted_by"`
	Reason      string    `json:"reason"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// AppealDecidedPayload is the payload for an AppealDecided event
type AppealDecidedPayload struct {
	SessionID string    `json:"session_id"`
	AppealID  string    `json:"appeal_id"`
	Decision  string    `json:"decision"`
	Notes     string    `json:"notes,omitempty"`
	DecidedAt time.Time `json:"decided_at"`
}

// RubataPausedPayload is the payload for a RubataPaused event
type RubataPausedPayload struct {
	SessionID        string    `json:"session_id"`
	FromPhase        string    `json:"from_phase"`
	RemainingSeconds int       `json:"remaining_seconds"`
	PausedAt         time.Time `json:"paused_at"`
}

// RubataResumedPayload is the payload for a RubataResumed event
type RubataResumedPayload struct {
	SessionID string    `json:"session_id"`
	Phase     string    `json:"phase"`
	TimeoutAt time.Time `json:"timeout_at"`
	ResumedAt time.Time `json:"resumed_at"`
}

// StealCommittedPayload is the payload for a StealCommitted event. It is written
// in the same transaction as the roster transfer.
type StealCommittedPayload struct {
	SessionID   string    `json:"session_id"`
	EntryIndex  int       `json:"entry_index"`
	RosterID    string    `json:"roster_id"`
	PlayerID    string    `json:"player_id"`
	SellerID    string    `json:"seller_id"`
	WinnerID    string    `json:"winner_id"`
	Price       int       `json:"price"`
	CommittedAt time.Time `json:"committed_at"`
}

// RubataWentBackPayload is the payload for a RubataWentBack event
type RubataWentBackPayload struct {
	SessionID string    `json:"session_id"`
	FromIndex int       `json:"from_index"`
	ToIndex   int       `json:"to_index"`
	At        time.Time `json:"at"`
}

// RubataCompletedPayload is the payload for a RubataCompleted event
type RubataCompletedPayload struct {
	SessionID   string    `json:"session_id"`
	Steals      int       `json:"steals"`
	Skipped     int       `json:"skipped"`
	CompletedAt time.Time `json:"completed_at"`
}

// RubataAbortedPayload is the payload for a RubataAborted event
type RubataAbortedPayload struct {
	SessionID  string    `json:"session_id"`
	EntryIndex int       `json:"entry_index"`
	Reason     string    `json:"reason"`
	AbortedAt  time.Time `json:"aborted_at"`
}
