package coordinator

import (
	"time"

	"github.com/google/uuid"
	"github.com/pietro1412/fantacontratti/go/internal/models"
	"github.com/pietro1412/fantacontratti/go/internal/rubata/appeal"
	"github.com/pietro1412/fantacontratti/go/internal/rubata/auction"
	"github.com/pietro1412/fantacontratti/go/internal/rubata/gate"
	"github.com/pietro1412/fantacontratti/go/internal/rubata/timer"
)

// Status is the read-only snapshot served to clients. A published Status is
// never modified; GetStatus hands out shallow copies with a fresh timer view.
type Status struct {
	SessionID           uuid.UUID              `json:"session_id"`
	LeagueID            uuid.UUID              `json:"league_id"`
	Version             int64                  `json:"version"`
	Phase               models.Phase           `json:"phase"`
	CurrentIndex        int                    `json:"current_index"`
	TotalEntries        int                    `json:"total_entries"`
	Board               []models.BoardEntry    `json:"board"`
	CurrentEntry        *models.BoardEntry     `json:"current_entry,omitempty"`
	Members             []models.Member        `json:"members"`
	TurnOrder           []uuid.UUID            `json:"turn_order"`
	Admins              []uuid.UUID            `json:"admin_ids"`
	Auction             *auction.Auction       `json:"auction,omitempty"`
	Gate                *gate.Progress         `json:"gate,omitempty"`
	Appeal              *appeal.Appeal         `json:"appeal,omitempty"`
	Paused              *models.PausedSnapshot `json:"paused,omitempty"`
	Timer               *TimerView             `json:"timer,omitempty"`
	OfferedBy           *uuid.UUID             `json:"offered_by,omitempty"`
	OfferTimerSeconds   int                    `json:"offer_timer_seconds"`
	AuctionTimerSeconds int                    `json:"auction_timer_seconds"`
	LastCommitError     string                 `json:"last_commit_error,omitempty"`
	LastError           string                 `json:"last_error,omitempty"`
	UpdatedAt           time.Time              `json:"updated_at"`
}

// TimerView is the countdown clients display. Remaining values are derived
// from the deadline at read time; a frozen view carries the paused remainder.
type TimerView struct {
	Phase            models.Phase `json:"phase"`
	Deadline         *time.Time   `json:"deadline,omitempty"`
	Frozen           bool         `json:"frozen"`
	RemainingSeconds int          `json:"remaining_seconds"`
	RemainingMs      int64        `json:"remaining_ms"`
}

// Member looks up a member by id in the snapshot.
func (s *Status) Member(id uuid.UUID) *models.Member {
	for i := range s.Members {
		if s.Members[i].ID == id {
			return &s.Members[i]
		}
	}
	return nil
}

// publish builds a deep copy of the session and makes it the current view.
func (c *Coordinator) publish() *Status {
	s := c.s
	st := &Status{
		SessionID:           s.ID,
		LeagueID:            s.LeagueID,
		Version:             s.Version,
		Phase:               s.Phase,
		CurrentIndex:        s.CurrentIndex,
		TotalEntries:        len(s.Board),
		Board:               copyBoard(s.Board),
		Members:             append([]models.Member(nil), s.Members...),
		TurnOrder:           append([]uuid.UUID(nil), s.TurnOrder...),
		Admins:              append([]uuid.UUID(nil), s.Admins...),
		OfferTimerSeconds:   s.OfferTimerSeconds,
		AuctionTimerSeconds: s.AuctionTimerSeconds,
		LastCommitError:     s.LastCommitError,
		LastError:           s.LastError,
		UpdatedAt:           s.UpdatedAt,
	}

	if s.CurrentIndex >= 0 && s.CurrentIndex < len(st.Board) {
		e := st.Board[s.CurrentIndex]
		st.CurrentEntry = &e
	}
	if s.Ledger.Current != nil {
		st.Auction = copyAuction(s.Ledger.Current)
	}
	if s.ReadyCheck != nil {
		p := s.ReadyCheck.Progress()
		st.Gate = &p
	}
	if s.Appeal.Appeal != nil {
		a := *s.Appeal.Appeal
		a.Snapshot.Bids = append([]models.Bid(nil), a.Snapshot.Bids...)
		st.Appeal = &a
	}
	if s.Paused != nil {
		p := *s.Paused
		st.Paused = &p
	}
	if s.OfferedBy != nil {
		id := *s.OfferedBy
		st.OfferedBy = &id
	}

	switch {
	case s.Phase == models.PhasePaused && s.Paused != nil:
		st.Timer = &TimerView{
			Phase:            s.Paused.FromPhase,
			Frozen:           true,
			RemainingSeconds: timer.DisplaySeconds(s.Paused.Remaining),
			RemainingMs:      s.Paused.Remaining.Milliseconds(),
		}
	default:
		if deadline, ok := c.activeDeadline(); ok && s.Phase != models.PhasePendingAck {
			st.Timer = &TimerView{Phase: s.Phase, Deadline: &deadline}
		}
	}

	c.view.Store(st)
	return st
}

// GetStatus returns the latest published snapshot without taking the writer
// lock.
func (c *Coordinator) GetStatus() *Status {
	st := c.view.Load()
	if st == nil || st.Timer == nil || st.Timer.Frozen {
		return st
	}

	out := *st
	tv := *st.Timer
	remaining := c.timer.Remaining(*tv.Deadline)
	tv.RemainingSeconds = timer.DisplaySeconds(remaining)
	tv.RemainingMs = remaining.Milliseconds()
	out.Timer = &tv
	return &out
}

func copyBoard(board []models.BoardEntry) []models.BoardEntry {
	out := make([]models.BoardEntry, len(board))
	for i, e := range board {
		if e.StolenByMemberID != nil {
			id := *e.StolenByMemberID
			e.StolenByMemberID = &id
		}
		if e.StolenPrice != nil {
			p := *e.StolenPrice
			e.StolenPrice = &p
		}
		out[i] = e
	}
	return out
}

func copyAuction(a *auction.Auction) *auction.Auction {
	out := *a
	out.Bids = append([]models.Bid(nil), a.Bids...)
	if a.Winner != nil {
		w := *a.Winner
		out.Winner = &w
	}
	if a.ClosedAt != nil {
		t := *a.ClosedAt
		out.ClosedAt = &t
	}
	return &out
}
