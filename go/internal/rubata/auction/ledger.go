// Package auction owns bid admission for the single open auction of a session.
package auction

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pietro1412/fantacontratti/go/internal/models"
)

// State of the ledger's current auction.
type State string

const (
	StateOpen   State = "OPEN"
	StateClosed State = "CLOSED"
)

// Auction is the bidding state for one board entry.
type Auction struct {
	ID           uuid.UUID          `json:"id"`
	EntryIndex   int                `json:"entry_index"`
	RosterID     uuid.UUID          `json:"roster_id"`
	PlayerID     uuid.UUID          `json:"player_id"`
	SellerID     uuid.UUID          `json:"seller_id"`
	BasePrice    int                `json:"base_price"`
	CurrentPrice int                `json:"current_price"`
	Bids         []models.Bid       `json:"bids"`
	Deadline     time.Time          `json:"deadline"`
	Extension    time.Duration      `json:"extension"`
	State        State              `json:"state"`
	Winner       *models.Bid        `json:"winner,omitempty"`
	CloseReason  models.CloseReason `json:"close_reason,omitempty"`
	OpenedAt     time.Time          `json:"opened_at"`
	ClosedAt     *time.Time         `json:"closed_at,omitempty"`
}

// Snapshot is the bid state an appeal can revert to.
type Snapshot struct {
	CurrentPrice int          `json:"current_price"`
	Bids         []models.Bid `json:"bids"`
}

// Result of closing an auction. Winner is nil when nobody bid.
type Result struct {
	Winner *models.Bid
	Price  int
	Reason models.CloseReason
}

type OpenParams struct {
	EntryIndex int
	RosterID   uuid.UUID
	PlayerID   uuid.UUID
	SellerID   uuid.UUID
	BasePrice  int
	Deadline   time.Time
	Extension  time.Duration
	Now        time.Time
}

// Ledger holds at most one auction. NextSeq is shared by every auction the
// ledger ever runs so sequence numbers stay strictly increasing across
// reverts and replays.
type Ledger struct {
	Current *Auction `json:"current,omitempty"`
	NextSeq int64    `json:"next_seq"`
}

func (l *Ledger) IsOpen() bool {
	return l.Current != nil && l.Current.State == StateOpen
}

// Open starts bidding on an entry at its base price.
func (l *Ledger) Open(p OpenParams) error {
	if l.IsOpen() {
		return fmt.Errorf("%w: an auction is already open for entry %d", models.ErrConflict, l.Current.EntryIndex)
	}
	if p.BasePrice < 0 {
		return fmt.Errorf("%w: base price must not be negative", models.ErrInvalidInput)
	}
	if p.Extension <= 0 {
		return fmt.Errorf("%w: auction timer must be positive", models.ErrInvalidInput)
	}

	l.Current = &Auction{
		ID:           uuid.New(),
		EntryIndex:   p.EntryIndex,
		RosterID:     p.RosterID,
		PlayerID:     p.PlayerID,
		SellerID:     p.SellerID,
		BasePrice:    p.BasePrice,
		CurrentPrice: p.BasePrice,
		Bids:         []models.Bid{},
		Deadline:     p.Deadline,
		Extension:    p.Extension,
		State:        StateOpen,
		OpenedAt:     p.Now,
	}
	return nil
}

// AdmitBid validates and records a bid. On success the deadline restarts from
// now so a last-second bid always leaves the others a full window to answer.
func (l *Ledger) AdmitBid(bidderID uuid.UUID, amount, budget int, now time.Time) (models.Bid, error) {
	if !l.IsOpen() {
		return models.Bid{}, fmt.Errorf("%w: no auction is open", models.ErrValidation)
	}
	a := l.Current
	if bidderID == a.SellerID {
		return models.Bid{}, fmt.Errorf("%w: the seller cannot bid on their own player", models.ErrValidation)
	}
	if amount <= a.CurrentPrice {
		return models.Bid{}, fmt.Errorf("%w: bid %d must be greater than current price %d", models.ErrValidation, amount, a.CurrentPrice)
	}
	if amount > budget {
		return models.Bid{}, fmt.Errorf("%w: bid %d exceeds budget %d", models.ErrValidation, amount, budget)
	}

	l.NextSeq++
	bid := models.Bid{
		BidderID:       bidderID,
		Amount:         amount,
		SequenceNumber: l.NextSeq,
		PlacedAt:       now,
	}
	a.Bids = append(a.Bids, bid)
	a.CurrentPrice = amount
	a.Deadline = now.Add(a.Extension)

	return bid, nil
}

// Close stops bidding. The winner is the last admitted bid.
func (l *Ledger) Close(reason models.CloseReason, now time.Time) (Result, error) {
	if !l.IsOpen() {
		return Result{}, fmt.Errorf("%w: auction is already closed", models.ErrValidation)
	}
	a := l.Current
	a.State = StateClosed
	a.CloseReason = reason
	closedAt := now
	a.ClosedAt = &closedAt

	res := Result{Price: a.CurrentPrice, Reason: reason}
	if n := len(a.Bids); n > 0 {
		w := a.Bids[n-1]
		a.Winner = &w
		res.Winner = &w
	}
	return res, nil
}

// SnapshotBeforeClose returns the bid state as it was right before the final
// admitted bid. With no bids that is simply the base price.
func (l *Ledger) SnapshotBeforeClose() (Snapshot, error) {
	if l.Current == nil {
		return Snapshot{}, fmt.Errorf("%w: no auction to snapshot", models.ErrValidation)
	}
	a := l.Current

	keep := len(a.Bids) - 1
	if keep < 0 {
		keep = 0
	}
	snap := Snapshot{
		CurrentPrice: a.BasePrice,
		Bids:         make([]models.Bid, keep),
	}
	copy(snap.Bids, a.Bids[:keep])
	if keep > 0 {
		snap.CurrentPrice = snap.Bids[keep-1].Amount
	}
	return snap, nil
}

// Restore reverts a closed auction to snap. Bidding stays closed until Reopen.
func (l *Ledger) Restore(snap Snapshot) error {
	if l.Current == nil {
		return fmt.Errorf("%w: no auction to restore", models.ErrValidation)
	}
	if l.IsOpen() {
		return fmt.Errorf("%w: cannot restore an open auction", models.ErrValidation)
	}
	a := l.Current

	want := a.BasePrice
	if n := len(snap.Bids); n > 0 {
		want = snap.Bids[n-1].Amount
	}
	if snap.CurrentPrice != want {
		return fmt.Errorf("%w: snapshot price %d does not match its bids", models.ErrInvalidInput, snap.CurrentPrice)
	}

	a.Bids = make([]models.Bid, len(snap.Bids))
	copy(a.Bids, snap.Bids)
	a.CurrentPrice = snap.CurrentPrice
	a.Winner = nil
	a.CloseReason = ""
	a.ClosedAt = nil
	return nil
}

// Reopen resumes bidding on a restored auction with a fresh deadline.
func (l *Ledger) Reopen(deadline time.Time) error {
	if l.Current == nil {
		return fmt.Errorf("%w: no auction to reopen", models.ErrValidation)
	}
	if l.IsOpen() {
		return fmt.Errorf("%w: auction is already open", models.ErrConflict)
	}
	l.Current.State = StateOpen
	l.Current.Deadline = deadline
	return nil
}

// Discard drops the current auction without a result.
func (l *Ledger) Discard() {
	l.Current = nil
}
