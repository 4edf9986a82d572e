package coordinator

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pietro1412/fantacontratti/go/internal/models"
	"github.com/pietro1412/fantacontratti/go/internal/rubata/appeal"
	"github.com/pietro1412/fantacontratti/go/internal/rubata/auction"
	"github.com/pietro1412/fantacontratti/go/internal/rubata/gate"
)

// Session is the full state of one rubata market cycle. It is owned by exactly
// one Coordinator and only mutated under its lock.
type Session struct {
	ID                  uuid.UUID
	LeagueID            uuid.UUID
	Version             int64
	Phase               models.Phase
	Admins              []uuid.UUID
	Members             []models.Member
	TurnOrder           []uuid.UUID
	Board               []models.BoardEntry
	CurrentIndex        int
	Ledger              auction.Ledger
	ReadyCheck          *gate.Gate
	Appeal              appeal.Process
	Paused              *models.PausedSnapshot
	OfferDeadline       *time.Time
	OfferedBy           *uuid.UUID
	OfferTimerSeconds   int
	AuctionTimerSeconds int
	LastCommitError     string
	CommitRetryAt       *time.Time
	LastError           string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// sessionState is everything that does not get its own column or blob.
type sessionState struct {
	Admins              []uuid.UUID     `json:"admins"`
	Members             []models.Member `json:"members"`
	TurnOrder           []uuid.UUID     `json:"turn_order"`
	NextSeq             int64           `json:"next_seq"`
	OfferDeadline       *time.Time      `json:"offer_deadline,omitempty"`
	OfferedBy           *uuid.UUID      `json:"offered_by,omitempty"`
	OfferTimerSeconds   int             `json:"offer_timer_seconds"`
	AuctionTimerSeconds int             `json:"auction_timer_seconds"`
	LastCommitError     string          `json:"last_commit_error,omitempty"`
	CommitRetryAt       *time.Time      `json:"commit_retry_at,omitempty"`
	LastError           string          `json:"last_error,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
}

func (s *Session) memberIDs() []uuid.UUID {
	ids := make([]uuid.UUID, len(s.Members))
	for i, m := range s.Members {
		ids[i] = m.ID
	}
	return ids
}

func (s *Session) member(id uuid.UUID) *models.Member {
	for i := range s.Members {
		if s.Members[i].ID == id {
			return &s.Members[i]
		}
	}
	return nil
}

func (s *Session) isAdmin(id uuid.UUID) bool {
	for _, a := range s.Admins {
		if a == id {
			return true
		}
	}
	return false
}

// entry returns the board entry at the current index, or false when it is
// missing or cannot be played.
func (s *Session) entry() (*models.BoardEntry, bool) {
	if s.CurrentIndex < 0 || s.CurrentIndex >= len(s.Board) {
		return nil, false
	}
	e := &s.Board[s.CurrentIndex]
	if !e.Valid() {
		return nil, false
	}
	return e, true
}

func (s *Session) offerTimer() time.Duration {
	return time.Duration(s.OfferTimerSeconds) * time.Second
}

func (s *Session) auctionTimer() time.Duration {
	return time.Duration(s.AuctionTimerSeconds) * time.Second
}

// Record converts the session to its persisted shape.
func (s *Session) Record() (*models.SessionRecord, error) {
	rec := &models.SessionRecord{
		ID:           s.ID,
		LeagueID:     s.LeagueID,
		Phase:        s.Phase,
		CurrentIndex: s.CurrentIndex,
		Version:      s.Version,
		UpdatedAt:    s.UpdatedAt,
	}

	var err error
	board := s.Board
	if board == nil {
		board = []models.BoardEntry{}
	}
	if rec.Board, err = json.Marshal(board); err != nil {
		return nil, fmt.Errorf("failed to marshal board: %w", err)
	}

	state := sessionState{
		Admins:              s.Admins,
		Members:             s.Members,
		TurnOrder:           s.TurnOrder,
		NextSeq:             s.Ledger.NextSeq,
		OfferDeadline:       s.OfferDeadline,
		OfferedBy:           s.OfferedBy,
		OfferTimerSeconds:   s.OfferTimerSeconds,
		AuctionTimerSeconds: s.AuctionTimerSeconds,
		LastCommitError:     s.LastCommitError,
		CommitRetryAt:       s.CommitRetryAt,
		LastError:           s.LastError,
		CreatedAt:           s.CreatedAt,
	}
	if rec.State, err = json.Marshal(state); err != nil {
		return nil, fmt.Errorf("failed to marshal session state: %w", err)
	}

	if s.Ledger.Current != nil {
		if rec.Auction, err = json.Marshal(s.Ledger.Current); err != nil {
			return nil, fmt.Errorf("failed to marshal auction: %w", err)
		}
	}
	if s.ReadyCheck != nil {
		if rec.ReadyCheck, err = json.Marshal(s.ReadyCheck); err != nil {
			return nil, fmt.Errorf("failed to marshal ready check: %w", err)
		}
	}
	if s.Appeal.Appeal != nil {
		if rec.Appeal, err = json.Marshal(s.Appeal.Appeal); err != nil {
			return nil, fmt.Errorf("failed to marshal appeal: %w", err)
		}
	}
	if s.Paused != nil {
		if rec.Paused, err = json.Marshal(s.Paused); err != nil {
			return nil, fmt.Errorf("failed to marshal paused snapshot: %w", err)
		}
	}

	return rec, nil
}

// SessionFromRecord rebuilds a session from its persisted shape.
func SessionFromRecord(rec *models.SessionRecord) (*Session, error) {
	s := &Session{
		ID:           rec.ID,
		LeagueID:     rec.LeagueID,
		Version:      rec.Version,
		Phase:        rec.Phase,
		CurrentIndex: rec.CurrentIndex,
		UpdatedAt:    rec.UpdatedAt,
	}

	if len(rec.Board) > 0 {
		if err := json.Unmarshal(rec.Board, &s.Board); err != nil {
			return nil, fmt.Errorf("failed to unmarshal board: %w", err)
		}
	}

	var state sessionState
	if len(rec.State) > 0 {
		if err := json.Unmarshal(rec.State, &state); err != nil {
			return nil, fmt.Errorf("failed to unmarshal session state: %w", err)
		}
	}
	s.Admins = state.Admins
	s.Members = state.Members
	s.TurnOrder = state.TurnOrder
	s.Ledger.NextSeq = state.NextSeq
	s.OfferDeadline = state.OfferDeadline
	s.OfferedBy = state.OfferedBy
	s.OfferTimerSeconds = state.OfferTimerSeconds
	s.AuctionTimerSeconds = state.AuctionTimerSeconds
	s.LastCommitError = state.LastCommitError
	s.CommitRetryAt = state.CommitRetryAt
	s.LastError = state.LastError
	s.CreatedAt = state.CreatedAt

	if len(rec.Auction) > 0 {
		var a auction.Auction
		if err := json.Unmarshal(rec.Auction, &a); err != nil {
			return nil, fmt.Errorf("failed to unmarshal auction: %w", err)
		}
		s.Ledger.Current = &a
	}
	if len(rec.ReadyCheck) > 0 {
		var g gate.Gate
		if err := json.Unmarshal(rec.ReadyCheck, &g); err != nil {
			return nil, fmt.Errorf("failed to unmarshal ready check: %w", err)
		}
		if g.Acknowledged == nil {
			g.Acknowledged = make(map[uuid.UUID]string)
		}
		s.ReadyCheck = &g
	}
	if len(rec.Appeal) > 0 {
		var a appeal.Appeal
		if err := json.Unmarshal(rec.Appeal, &a); err != nil {
			return nil, fmt.Errorf("failed to unmarshal appeal: %w", err)
		}
		s.Appeal.Appeal = &a
	}
	if len(rec.Paused) > 0 {
		var p models.PausedSnapshot
		if err := json.Unmarshal(rec.Paused, &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal paused snapshot: %w", err)
		}
		s.Paused = &p
	}

	return s, nil
}
