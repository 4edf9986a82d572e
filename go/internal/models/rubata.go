package models

import (
	"time"

	"github.com/google/uuid"
)

// Phase defines the phase of a rubata session.
type Phase string

const (
	PhaseWaiting           Phase = "WAITING"
	PhasePreview           Phase = "PREVIEW"
	PhaseReadyCheck        Phase = "READY_CHECK"
	PhaseOffering          Phase = "OFFERING"
	PhaseAuctionReadyCheck Phase = "AUCTION_READY_CHECK"
	PhaseAuction           Phase = "AUCTION"
	PhasePendingAck        Phase = "PENDING_ACK"
	PhaseAppealReview      Phase = "APPEAL_REVIEW"
	PhaseAwaitingAppealAck Phase = "AWAITING_APPEAL_ACK"
	PhaseAwaitingResume    Phase = "AWAITING_RESUME"
	PhasePaused            Phase = "PAUSED"
	PhaseCompleted         Phase = "COMPLETED"
	PhaseAborted           Phase = "ABORTED"
)

// Terminal reports whether no further commands can move the session.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted
}

// GatePurpose tags what a ready gate is waiting for.
type GatePurpose string

const (
	PurposeReadyCheck        GatePurpose = "READY_CHECK"
	PurposeAuctionReadyCheck GatePurpose = "AUCTION_READY_CHECK"
	PurposePendingAck        GatePurpose = "PENDING_ACK"
	PurposeAwaitingAppealAck GatePurpose = "AWAITING_APPEAL_ACK"
	PurposeAwaitingResume    GatePurpose = "AWAITING_RESUME"
)

// CloseReason records why an auction stopped accepting bids.
type CloseReason string

const (
	CloseReasonTimerExpired CloseReason = "TIMER_EXPIRED"
	CloseReasonAdminForced  CloseReason = "ADMIN_FORCED"
)

// AppealStatus defines the admin decision on an appeal.
type AppealStatus string

const (
	AppealStatusPending  AppealStatus = "PENDING"
	AppealStatusAccepted AppealStatus = "ACCEPTED"
	AppealStatusRejected AppealStatus = "REJECTED"
)

// BoardEntry is one contestable player on the rubata board.
type BoardEntry struct {
	RosterID         uuid.UUID  `json:"roster_id"`
	PlayerID         uuid.UUID  `json:"player_id"`
	PlayerName       string     `json:"player_name,omitempty"`
	OwnerMemberID    uuid.UUID  `json:"owner_member_id"`
	ContractSalary   int        `json:"contract_salary"`
	ContractDuration int        `json:"contract_duration"`
	ContractClause   int        `json:"contract_clause"`
	BasePrice        int        `json:"base_price"`
	StolenByMemberID *uuid.UUID `json:"stolen_by_member_id,omitempty"`
	StolenPrice      *int       `json:"stolen_price,omitempty"`
}

// CurrentHolder returns the member that owns the entry right now.
func (e BoardEntry) CurrentHolder() uuid.UUID {
	if e.StolenByMemberID != nil {
		return *e.StolenByMemberID
	}
	return e.OwnerMemberID
}

// Valid reports whether the entry can be played.
func (e BoardEntry) Valid() bool {
	return e.RosterID != uuid.Nil &&
		e.PlayerID != uuid.Nil &&
		e.OwnerMemberID != uuid.Nil &&
		e.BasePrice >= 0 &&
		e.BasePrice == e.ContractClause+e.ContractSalary
}

// Bid is an admitted bid. SequenceNumber is assigned by the server.
type Bid struct {
	BidderID       uuid.UUID `json:"bidder_id"`
	Amount         int       `json:"amount"`
	SequenceNumber int64     `json:"sequence_number"`
	PlacedAt       time.Time `json:"placed_at"`
}

// PausedSnapshot captures what a pause interrupted.
type PausedSnapshot struct {
	FromPhase        Phase         `json:"from_phase"`
	Remaining        time.Duration `json:"remaining"`
	RemainingSeconds int           `json:"remaining_seconds"`
	EntryIndex       int           `json:"entry_index"`
	PausedAt         time.Time     `json:"paused_at"`
}
