package service

import "github.com/pietro1412/fantacontratti/go/internal/rubata/coordinator"

// SessionCommand addresses a command to a session on behalf of an actor.
type SessionCommand struct {
	SessionID string `json:"session_id"`
	ActorID   string `json:"actor_id"`
}

type CreateSessionRequest struct {
	LeagueID string   `json:"league_id"`
	AdminIDs []string `json:"admin_ids"`
}

type GetStatusRequest struct {
	SessionID string `json:"session_id"`
	// ActorID is optional; admins also see commit diagnostics.
	ActorID string `json:"actor_id,omitempty"`
}

type SetOrderRequest struct {
	SessionCommand
	Order []string `json:"order"`
}

type UpdateTimersRequest struct {
	SessionCommand
	OfferTimerSeconds   int `json:"offer_timer_seconds"`
	AuctionTimerSeconds int `json:"auction_timer_seconds"`
}

type DecideAppealRequest struct {
	SessionCommand
	Decision string `json:"decision"`
	Notes    string `json:"notes,omitempty"`
}

type BidRequest struct {
	SessionCommand
	Amount int `json:"amount"`
}

type AcknowledgeRequest struct {
	SessionCommand
	Prophecy string `json:"prophecy,omitempty"`
}

type SubmitAppealRequest struct {
	SessionCommand
	Reason string `json:"reason"`
}

// StatusResponse is returned by every procedure.
type StatusResponse struct {
	Status *coordinator.Status `json:"status"`
}
