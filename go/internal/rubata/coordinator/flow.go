package coordinator

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pietro1412/fantacontratti/go/internal/models"
	"github.com/pietro1412/fantacontratti/go/internal/rubata/appeal"
	"github.com/pietro1412/fantacontratti/go/internal/rubata/auction"
	"github.com/pietro1412/fantacontratti/go/internal/rubata/events"
	"github.com/pietro1412/fantacontratti/go/internal/rubata/gate"
	"github.com/rs/zerolog/log"
)

// Internal transitions. Every function here runs under c.mu.

// clearTurn drops all per-entry state.
func (c *Coordinator) clearTurn() {
	c.s.Ledger.Discard()
	c.s.ReadyCheck = nil
	c.s.Appeal = appeal.Process{}
	c.s.Paused = nil
	c.s.OfferDeadline = nil
	c.s.OfferedBy = nil
	c.s.LastCommitError = ""
	c.s.CommitRetryAt = nil
}

// abort is the only unrecoverable path: the entry at the current index is
// missing or corrupt and an admin has to regenerate the board.
func (c *Coordinator) abort(ctx context.Context) error {
	c.dirty = true
	idx := c.s.CurrentIndex
	c.clearTurn()
	c.s.LastError = fmt.Sprintf("board entry %d is missing or corrupt", idx)
	c.setPhase(models.PhaseAborted)

	log.Error().
		Str("session_id", c.s.ID.String()).
		Int("entry_index", idx).
		Int("board_size", len(c.s.Board)).
		Msg("rubata aborted")

	c.emit(ctx, events.TypeRubataAborted, events.RubataAbortedPayload{
		SessionID:  c.s.ID.String(),
		EntryIndex: idx,
		Reason:     c.s.LastError,
		AbortedAt:  c.timer.Now(),
	})
	return fmt.Errorf("%w: entry %d", models.ErrBoardCorrupt, idx)
}

// currentEntry returns the playable entry or aborts the session.
func (c *Coordinator) currentEntry(ctx context.Context) (*models.BoardEntry, error) {
	e, ok := c.s.entry()
	if !ok {
		return nil, c.abort(ctx)
	}
	return e, nil
}

// startOffering opens the offer window for the entry at the current index,
// or completes the rubata when the board is exhausted.
func (c *Coordinator) startOffering(ctx context.Context) error {
	if c.s.CurrentIndex >= len(c.s.Board) {
		return c.complete(ctx)
	}
	c.clearTurn()
	e, err := c.currentEntry(ctx)
	if err != nil {
		return err
	}

	deadline := c.timer.Start(c.s.offerTimer())
	c.s.OfferDeadline = &deadline
	c.setPhase(models.PhaseOffering)

	c.emit(ctx, events.TypeOfferOpened, events.OfferOpenedPayload{
		SessionID:  c.s.ID.String(),
		EntryIndex: c.s.CurrentIndex,
		PlayerID:   e.PlayerID.String(),
		OwnerID:    e.CurrentHolder().String(),
		BasePrice:  e.BasePrice,
		TimeoutAt:  deadline,
	})
	return nil
}

// skipEntry moves past the current entry without an auction.
func (c *Coordinator) skipEntry(ctx context.Context, reason string) error {
	e, ok := c.s.entry()
	payload := events.EntrySkippedPayload{
		SessionID:  c.s.ID.String(),
		EntryIndex: c.s.CurrentIndex,
		Reason:     reason,
		SkippedAt:  c.timer.Now(),
	}
	if ok {
		payload.PlayerID = e.PlayerID.String()
	}
	c.emit(ctx, events.TypeEntrySkipped, payload)

	return c.advanceIndex(ctx)
}

func (c *Coordinator) advanceIndex(ctx context.Context) error {
	c.s.CurrentIndex++
	return c.startOffering(ctx)
}

func (c *Coordinator) complete(ctx context.Context) error {
	c.clearTurn()
	skipped := 0
	steals := 0
	for _, e := range c.s.Board {
		if e.StolenByMemberID != nil {
			steals++
		} else {
			skipped++
		}
	}
	c.s.CurrentIndex = len(c.s.Board)
	c.setPhase(models.PhaseCompleted)

	c.emit(ctx, events.TypeRubataCompleted, events.RubataCompletedPayload{
		SessionID:   c.s.ID.String(),
		Steals:      steals,
		Skipped:     skipped,
		CompletedAt: c.timer.Now(),
	})
	return nil
}

// openAuction starts bidding at the entry's base price. The seller is
// whoever holds the player right now.
func (c *Coordinator) openAuction(ctx context.Context) error {
	e, err := c.currentEntry(ctx)
	if err != nil {
		return err
	}

	now := c.timer.Now()
	deadline := c.timer.Start(c.s.auctionTimer())
	if err := c.s.Ledger.Open(auction.OpenParams{
		EntryIndex: c.s.CurrentIndex,
		RosterID:   e.RosterID,
		PlayerID:   e.PlayerID,
		SellerID:   e.CurrentHolder(),
		BasePrice:  e.BasePrice,
		Deadline:   deadline,
		Extension:  c.s.auctionTimer(),
		Now:        now,
	}); err != nil {
		return err
	}
	c.s.ReadyCheck = nil
	c.setPhase(models.PhaseAuction)

	payload := events.AuctionOpenedPayload{
		SessionID:  c.s.ID.String(),
		EntryIndex: c.s.CurrentIndex,
		PlayerID:   e.PlayerID.String(),
		SellerID:   e.CurrentHolder().String(),
		Price:      e.BasePrice,
		TimeoutAt:  deadline,
	}
	if c.s.OfferedBy != nil {
		payload.OfferedBy = c.s.OfferedBy.String()
	}
	c.emit(ctx, events.TypeAuctionOpened, payload)
	return nil
}

// closeAuction resolves the open auction and waits for everybody to confirm
// the outcome before anything is committed.
func (c *Coordinator) closeAuction(ctx context.Context, reason models.CloseReason) error {
	res, err := c.s.Ledger.Close(reason, c.timer.Now())
	if err != nil {
		return err
	}
	c.dirty = true
	c.s.Appeal = appeal.Process{}
	c.s.LastCommitError = ""
	c.s.CommitRetryAt = nil
	if err := c.openGate(models.PurposePendingAck); err != nil {
		return err
	}
	c.setPhase(models.PhasePendingAck)

	payload := events.AuctionClosedPayload{
		SessionID:  c.s.ID.String(),
		EntryIndex: c.s.CurrentIndex,
		Price:      res.Price,
		Reason:     string(reason),
		ClosedAt:   c.timer.Now(),
	}
	if res.Winner != nil {
		payload.WinnerID = res.Winner.BidderID.String()
	}
	c.emit(ctx, events.TypeAuctionClosed, payload)

	log.Info().
		Str("session_id", c.s.ID.String()).
		Int("entry_index", c.s.CurrentIndex).
		Str("winner", payload.WinnerID).
		Int("price", res.Price).
		Str("reason", string(reason)).
		Msg("auction closed")
	return nil
}

// commitAndAdvance persists the closed auction's outcome and moves to the next
// entry. When the commit fails the session stays in PENDING_ACK with the
// index untouched and a retry scheduled.
func (c *Coordinator) commitAndAdvance(ctx context.Context) error {
	a := c.s.Ledger.Current
	if a != nil && a.Winner != nil {
		if err := c.commit(ctx); err != nil {
			c.dirty = true
			now := c.timer.Now()
			retryAt := now.Add(c.deps.Config.CommitRetryDelay)
			c.s.LastCommitError = err.Error()
			c.s.CommitRetryAt = &retryAt

			log.Error().
				Err(err).
				Str("session_id", c.s.ID.String()).
				Int("entry_index", c.s.CurrentIndex).
				Time("retry_at", retryAt).
				Msg("steal commit failed, staying in pending ack")
			return fmt.Errorf("%w: %v", models.ErrCommit, err)
		}
	}

	return c.advanceIndex(ctx)
}

func (c *Coordinator) commit(ctx context.Context) error {
	a := c.s.Ledger.Current
	e, ok := c.s.entry()
	if !ok || e.RosterID != a.RosterID {
		return fmt.Errorf("board entry %d no longer matches the closed auction", c.s.CurrentIndex)
	}
	winner := c.s.member(a.Winner.BidderID)
	if winner == nil {
		return fmt.Errorf("winner %s is not a member", a.Winner.BidderID)
	}
	price := a.Winner.Amount
	if winner.TeamBudget-price < 0 {
		return fmt.Errorf("%w: member %s has %d, needs %d", models.ErrInsufficientBudget, winner.ID, winner.TeamBudget, price)
	}

	if err := c.deps.Committer.CommitSteal(ctx, models.StealCommit{
		AuctionID:   a.ID,
		SessionID:   c.s.ID,
		LeagueID:    c.s.LeagueID,
		EntryIndex:  c.s.CurrentIndex,
		RosterID:    a.RosterID,
		PlayerID:    a.PlayerID,
		SellerID:    a.SellerID,
		WinnerID:    winner.ID,
		Price:       price,
		CommittedAt: c.timer.Now(),
	}); err != nil {
		return err
	}

	// durable now, mirror it in memory
	winner.TeamBudget -= price
	winnerID := winner.ID
	stolenPrice := price
	e.StolenByMemberID = &winnerID
	e.StolenPrice = &stolenPrice
	c.s.LastCommitError = ""
	c.s.CommitRetryAt = nil

	log.Info().
		Str("session_id", c.s.ID.String()).
		Int("entry_index", c.s.CurrentIndex).
		Str("winner", winnerID.String()).
		Str("seller", a.SellerID.String()).
		Int("price", price).
		Msg("steal committed")
	return nil
}

// onGateSatisfied advances the session once its current gate resolves.
func (c *Coordinator) onGateSatisfied(ctx context.Context) error {
	g := c.s.ReadyCheck
	if g == nil {
		return nil
	}

	switch g.Purpose {
	case models.PurposeReadyCheck:
		return c.startOffering(ctx)

	case models.PurposeAuctionReadyCheck:
		return c.openAuction(ctx)

	case models.PurposePendingAck:
		return c.commitAndAdvance(ctx)

	case models.PurposeAwaitingAppealAck:
		outcome, next, err := c.s.Appeal.AppealAckSatisfied(c.s.memberIDs(), c.timer.Now())
		if err != nil {
			return err
		}
		if outcome == appeal.OutcomeCommit {
			// everybody acknowledged the rejection, which stands in for the
			// outcome acknowledgments the appeal interrupted
			pending := gate.New(models.PurposePendingAck, c.s.memberIDs(), c.timer.Now())
			pending.ForceAll()
			c.s.ReadyCheck = pending
			c.setPhase(models.PhasePendingAck)
			return c.commitAndAdvance(ctx)
		}
		c.s.ReadyCheck = next
		c.setPhase(models.PhaseAwaitingResume)
		return nil

	case models.PurposeAwaitingResume:
		if c.s.Paused != nil {
			return c.restorePaused(ctx)
		}
		return c.reopenAfterAppeal(ctx)
	}

	return fmt.Errorf("unknown gate purpose %q", g.Purpose)
}

// reopenAfterAppeal puts a restored auction back on the clock.
func (c *Coordinator) reopenAfterAppeal(ctx context.Context) error {
	if _, err := c.s.Appeal.ResumeSatisfied(); err != nil {
		return err
	}
	deadline := c.timer.Start(c.s.auctionTimer())
	if err := c.s.Ledger.Reopen(deadline); err != nil {
		return err
	}
	c.s.ReadyCheck = nil
	c.setPhase(models.PhaseAuction)

	a := c.s.Ledger.Current
	c.emit(ctx, events.TypeAuctionOpened, events.AuctionOpenedPayload{
		SessionID:  c.s.ID.String(),
		EntryIndex: c.s.CurrentIndex,
		PlayerID:   a.PlayerID.String(),
		SellerID:   a.SellerID.String(),
		Price:      a.CurrentPrice,
		Reopened:   true,
		TimeoutAt:  deadline,
	})
	return nil
}

// restorePaused returns to the phase a pause interrupted with exactly the
// time that was left.
func (c *Coordinator) restorePaused(ctx context.Context) error {
	p := c.s.Paused
	if p.EntryIndex != c.s.CurrentIndex {
		return c.abort(ctx)
	}
	deadline := c.timer.Resume(p.Remaining)

	switch p.FromPhase {
	case models.PhaseOffering:
		c.s.OfferDeadline = &deadline
	case models.PhaseAuction:
		if c.s.Ledger.Current == nil {
			return c.abort(ctx)
		}
		c.s.Ledger.Current.Deadline = deadline
	default:
		return fmt.Errorf("cannot resume into %s", p.FromPhase)
	}

	c.s.Paused = nil
	c.s.ReadyCheck = nil
	c.setPhase(p.FromPhase)

	c.emit(ctx, events.TypeRubataResumed, events.RubataResumedPayload{
		SessionID: c.s.ID.String(),
		Phase:     string(p.FromPhase),
		TimeoutAt: deadline,
		ResumedAt: c.timer.Now(),
	})
	return nil
}

// forceGate is the single admin bypass behind every forceAll* command.
func (c *Coordinator) forceGate(ctx context.Context) error {
	if c.s.ReadyCheck == nil {
		return fmt.Errorf("%w: no gate is open", models.ErrValidation)
	}
	c.s.ReadyCheck.ForceAll()
	return c.onGateSatisfied(ctx)
}

// acknowledgeGate records a member on the current gate and advances when that
// completes it.
func (c *Coordinator) acknowledgeGate(ctx context.Context, memberID uuid.UUID, purpose models.GatePurpose, payload string) error {
	g := c.s.ReadyCheck
	if g == nil || g.Purpose != purpose {
		return fmt.Errorf("%w: no %s gate is open", models.ErrValidation, purpose)
	}
	if g.HasAcknowledged(memberID) {
		return errNoChange
	}
	satisfied, err := g.Acknowledge(memberID, payload)
	if err != nil {
		return err
	}
	if !satisfied {
		return nil
	}
	return c.onGateSatisfied(ctx)
}
