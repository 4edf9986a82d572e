package coordinator

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/pietro1412/fantacontratti/go/internal/models"
	"github.com/pietro1412/fantacontratti/go/internal/rubata/board"
	"github.com/pietro1412/fantacontratti/go/internal/rubata/events"
	"github.com/pietro1412/fantacontratti/go/internal/rubata/timer"
	"github.com/rs/zerolog/log"
)

// Admin commands

// SetOrder sets the member turn order. Changing it after a board was generated
// discards that board.
func (c *Coordinator) SetOrder(ctx context.Context, actor uuid.UUID, order []uuid.UUID) error {
	return c.exec(ctx, actor, CmdSetOrder, func(ctx context.Context) error {
		if len(order) == 0 {
			return fmt.Errorf("%w: turn order is empty", models.ErrInvalidInput)
		}
		seen := make(map[uuid.UUID]bool, len(order))
		for _, id := range order {
			if c.s.member(id) == nil {
				return fmt.Errorf("%w: unknown member %s", models.ErrInvalidInput, id)
			}
			if seen[id] {
				return fmt.Errorf("%w: member %s appears twice", models.ErrInvalidInput, id)
			}
			seen[id] = true
		}

		c.s.TurnOrder = append([]uuid.UUID(nil), order...)
		if c.s.Phase == models.PhasePreview {
			c.s.Board = nil
			c.s.CurrentIndex = 0
			c.setPhase(models.PhaseWaiting)
		}
		return nil
	})
}

// GenerateBoard loads the league's rosters and builds the board. It is also
// how an aborted session is recovered.
func (c *Coordinator) GenerateBoard(ctx context.Context, actor uuid.UUID) error {
	return c.exec(ctx, actor, CmdGenerateBoard, func(ctx context.Context) error {
		if len(c.s.TurnOrder) == 0 {
			return fmt.Errorf("%w: turn order is not set", models.ErrValidation)
		}
		if c.deps.League == nil {
			return fmt.Errorf("league reader is not configured")
		}

		members, err := c.deps.League.ListMembers(ctx, c.s.LeagueID)
		if err != nil {
			return fmt.Errorf("failed to list members: %w", err)
		}
		rosters, err := c.deps.League.ListRosterContracts(ctx, c.s.LeagueID)
		if err != nil {
			return fmt.Errorf("failed to list roster contracts: %w", err)
		}

		entries, err := board.Build(c.s.TurnOrder, members, rosters)
		if err != nil {
			return err
		}

		c.s.Members = mergeMembers(c.s.Members, members)
		c.clearTurn()
		c.s.Board = entries
		c.s.CurrentIndex = 0
		c.s.LastError = ""
		c.setPhase(models.PhasePreview)

		log.Info().
			Str("session_id", c.s.ID.String()).
			Int("entries", len(entries)).
			Msg("rubata board generated")
		return nil
	})
}

// mergeMembers refreshes budgets from the league while keeping the advisory
// connected flag the gateway maintains.
func mergeMembers(current, fresh []models.Member) []models.Member {
	connected := make(map[uuid.UUID]bool, len(current))
	for _, m := range current {
		connected[m.ID] = m.Connected
	}
	out := make([]models.Member, len(fresh))
	for i, m := range fresh {
		m.Connected = connected[m.ID]
		out[i] = m
	}
	return out
}

func (c *Coordinator) StartRubata(ctx context.Context, actor uuid.UUID) error {
	return c.exec(ctx, actor, CmdStartRubata, func(ctx context.Context) error {
		if len(c.s.Board) == 0 {
			return fmt.Errorf("%w: board is empty", models.ErrValidation)
		}
		if err := c.openGate(models.PurposeReadyCheck); err != nil {
			return err
		}
		c.setPhase(models.PhaseReadyCheck)

		c.emit(ctx, events.TypeRubataStarted, events.RubataStartedPayload{
			SessionID:    c.s.ID.String(),
			LeagueID:     c.s.LeagueID.String(),
			TotalEntries: len(c.s.Board),
			StartedAt:    c.timer.Now(),
		})
		return nil
	})
}

// UpdateTimers changes the offer and auction windows. New values apply to
// every countdown started afterwards, bid extensions included.
func (c *Coordinator) UpdateTimers(ctx context.Context, actor uuid.UUID, offerSeconds, auctionSeconds int) error {
	return c.exec(ctx, actor, CmdUpdateTimers, func(ctx context.Context) error {
		if offerSeconds <= 0 || auctionSeconds <= 0 {
			return fmt.Errorf("%w: timers must be positive, got offer=%d auction=%d", models.ErrInvalidInput, offerSeconds, auctionSeconds)
		}
		c.s.OfferTimerSeconds = offerSeconds
		c.s.AuctionTimerSeconds = auctionSeconds
		if c.s.Ledger.Current != nil {
			c.s.Ledger.Current.Extension = c.s.auctionTimer()
		}
		return nil
	})
}

// Pause freezes the offer or auction countdown.
func (c *Coordinator) Pause(ctx context.Context, actor uuid.UUID) error {
	return c.exec(ctx, actor, CmdPause, func(ctx context.Context) error {
		deadline, ok := c.activeDeadline()
		if !ok {
			return fmt.Errorf("%w: nothing to pause", models.ErrValidation)
		}
		remaining := c.timer.Pause(deadline)
		now := c.timer.Now()
		c.s.Paused = &models.PausedSnapshot{
			FromPhase:        c.s.Phase,
			Remaining:        remaining,
			RemainingSeconds: timer.DisplaySeconds(remaining),
			EntryIndex:       c.s.CurrentIndex,
			PausedAt:         now,
		}
		from := c.s.Phase
		c.setPhase(models.PhasePaused)

		c.emit(ctx, events.TypeRubataPaused, events.RubataPausedPayload{
			SessionID:        c.s.ID.String(),
			FromPhase:        string(from),
			RemainingSeconds: c.s.Paused.RemainingSeconds,
			PausedAt:         now,
		})
		return nil
	})
}

// Resume asks every member to mark ready; the countdown restarts once they have.
func (c *Coordinator) Resume(ctx context.Context, actor uuid.UUID) error {
	return c.exec(ctx, actor, CmdResume, func(ctx context.Context) error {
		if c.s.Paused == nil {
			return fmt.Errorf("%w: session has no paused snapshot", models.ErrValidation)
		}
		if err := c.openGate(models.PurposeAwaitingResume); err != nil {
			return err
		}
		c.setPhase(models.PhaseAwaitingResume)
		return nil
	})
}

// Advance cuts the current wait short.
func (c *Coordinator) Advance(ctx context.Context, actor uuid.UUID) error {
	return c.exec(ctx, actor, CmdAdvance, func(ctx context.Context) error {
		switch c.s.Phase {
		case models.PhaseOffering:
			return c.skipEntry(ctx, "admin advanced")
		case models.PhaseAuction:
			return c.closeAuction(ctx, models.CloseReasonAdminForced)
		default:
			return c.forceGate(ctx)
		}
	})
}

// GoBack returns to the previous entry's offer window, throwing away whatever
// was in flight for the current one. Committed steals stay committed.
func (c *Coordinator) GoBack(ctx context.Context, actor uuid.UUID) error {
	return c.exec(ctx, actor, CmdGoBack, func(ctx context.Context) error {
		if c.s.CurrentIndex <= 0 {
			return fmt.Errorf("%w: already at the first entry", models.ErrValidation)
		}
		from := c.s.CurrentIndex
		c.clearTurn()
		c.s.CurrentIndex--

		c.emit(ctx, events.TypeRubataWentBack, events.RubataWentBackPayload{
			SessionID: c.s.ID.String(),
			FromIndex: from,
			ToIndex:   c.s.CurrentIndex,
			At:        c.timer.Now(),
		})
		return c.startOffering(ctx)
	})
}

func (c *Coordinator) CloseAuction(ctx context.Context, actor uuid.UUID) error {
	return c.exec(ctx, actor, CmdCloseAuction, func(ctx context.Context) error {
		return c.closeAuction(ctx, models.CloseReasonAdminForced)
	})
}

// CompleteRubata skips every remaining entry and ends the session. Outcomes
// not yet committed are dropped.
func (c *Coordinator) CompleteRubata(ctx context.Context, actor uuid.UUID) error {
	return c.exec(ctx, actor, CmdCompleteRubata, func(ctx context.Context) error {
		return c.complete(ctx)
	})
}

func (c *Coordinator) ForceAllReady(ctx context.Context, actor uuid.UUID) error {
	return c.exec(ctx, actor, CmdForceAllReady, c.forceGate)
}

func (c *Coordinator) ForceAllAcknowledge(ctx context.Context, actor uuid.UUID) error {
	return c.exec(ctx, actor, CmdForceAllAcknowledge, c.forceGate)
}

func (c *Coordinator) ForceAllAppealAcks(ctx context.Context, actor uuid.UUID) error {
	return c.exec(ctx, actor, CmdForceAllAppealAcks, c.forceGate)
}

func (c *Coordinator) ForceAllReadyToResume(ctx context.Context, actor uuid.UUID) error {
	return c.exec(ctx, actor, CmdForceAllReadyToResume, c.forceGate)
}

// DecideAppeal records the admin decision. An accepted appeal reverts the
// auction to its snapshot right away; bidding only reopens after the
// acknowledgment and resume gates.
func (c *Coordinator) DecideAppeal(ctx context.Context, actor uuid.UUID, decision models.AppealStatus, notes string) error {
	return c.exec(ctx, actor, CmdDecideAppeal, func(ctx context.Context) error {
		ackGate, changed, err := c.s.Appeal.Decide(decision, notes, c.s.memberIDs(), c.timer.Now())
		if err != nil {
			return err
		}
		if !changed {
			return errNoChange
		}

		ap := c.s.Appeal.Appeal
		if decision == models.AppealStatusAccepted {
			if err := c.s.Ledger.Restore(ap.Snapshot); err != nil {
				return err
			}
		}
		c.s.ReadyCheck = ackGate
		c.setPhase(models.PhaseAwaitingAppealAck)

		c.emit(ctx, events.TypeAppealDecided, events.AppealDecidedPayload{
			SessionID: c.s.ID.String(),
			AppealID:  ap.ID.String(),
			Decision:  string(decision),
			Notes:     notes,
			DecidedAt: c.timer.Now(),
		})
		return nil
	})
}

// Member commands

// SetReady acknowledges the session or auction ready check.
func (c *Coordinator) SetReady(ctx context.Context, actor uuid.UUID) error {
	return c.exec(ctx, actor, CmdSetReady, func(ctx context.Context) error {
		purpose := models.PurposeReadyCheck
		if c.s.Phase == models.PhaseAuctionReadyCheck {
			purpose = models.PurposeAuctionReadyCheck
		}
		return c.acknowledgeGate(ctx, actor, purpose, "")
	})
}

// MakeOffer puts the current entry up for bidding.
func (c *Coordinator) MakeOffer(ctx context.Context, actor uuid.UUID) error {
	return c.exec(ctx, actor, CmdMakeOffer, func(ctx context.Context) error {
		if _, err := c.currentEntry(ctx); err != nil {
			return err
		}
		if c.s.OfferDeadline != nil && c.timer.Expired(*c.s.OfferDeadline) {
			c.dirty = true
			if err := c.skipEntry(ctx, "offer window expired"); err != nil {
				return err
			}
			return fmt.Errorf("%w: offer window already expired", models.ErrValidation)
		}

		if err := c.openGate(models.PurposeAuctionReadyCheck); err != nil {
			return err
		}
		offeredBy := actor
		c.s.OfferedBy = &offeredBy
		c.s.OfferDeadline = nil
		c.setPhase(models.PhaseAuctionReadyCheck)
		return nil
	})
}

// Bid places a bid on the open auction. A bid that arrives after the deadline
// first lets the expiry close the auction and is then rejected.
func (c *Coordinator) Bid(ctx context.Context, actor uuid.UUID, amount int) error {
	return c.exec(ctx, actor, CmdBid, func(ctx context.Context) error {
		if c.s.Ledger.IsOpen() && c.timer.Expired(c.s.Ledger.Current.Deadline) {
			if err := c.closeAuction(ctx, models.CloseReasonTimerExpired); err != nil {
				return err
			}
			return fmt.Errorf("%w: auction closed at its deadline", models.ErrValidation)
		}

		bidder := c.s.member(actor)
		bid, err := c.s.Ledger.AdmitBid(actor, amount, bidder.TeamBudget, c.timer.Now())
		if err != nil {
			return err
		}

		c.emit(ctx, events.TypeBidPlaced, events.BidPlacedPayload{
			SessionID:      c.s.ID.String(),
			EntryIndex:     c.s.CurrentIndex,
			BidderID:       actor.String(),
			Amount:         bid.Amount,
			SequenceNumber: bid.SequenceNumber,
			TimeoutAt:      c.s.Ledger.Current.Deadline,
		})
		return nil
	})
}

// Acknowledge confirms the closed auction's outcome, optionally with a
// prophecy. A commit failure triggered by the last acknowledgment is not the
// member's error: it is kept on the session for admins and retried.
func (c *Coordinator) Acknowledge(ctx context.Context, actor uuid.UUID, prophecy string) error {
	return c.exec(ctx, actor, CmdAcknowledge, func(ctx context.Context) error {
		err := c.acknowledgeGate(ctx, actor, models.PurposePendingAck, prophecy)
		if errors.Is(err, models.ErrCommit) {
			return nil
		}
		return err
	})
}

// SubmitAppeal disputes the closed auction instead of acknowledging it.
func (c *Coordinator) SubmitAppeal(ctx context.Context, actor uuid.UUID, reason string) error {
	return c.exec(ctx, actor, CmdSubmitAppeal, func(ctx context.Context) error {
		if c.s.Appeal.Appeal != nil {
			return fmt.Errorf("%w: an appeal was already submitted for this auction", models.ErrConflict)
		}
		if c.s.Phase != models.PhasePendingAck {
			return fmt.Errorf("%w: appeals are only accepted while confirming an outcome", models.ErrValidation)
		}
		g := c.s.ReadyCheck
		if g == nil || g.IsSatisfied() {
			return fmt.Errorf("%w: outcome already confirmed", models.ErrValidation)
		}
		if g.HasAcknowledged(actor) {
			return fmt.Errorf("%w: member already acknowledged the outcome", models.ErrValidation)
		}

		snap, err := c.s.Ledger.SnapshotBeforeClose()
		if err != nil {
			return err
		}
		now := c.timer.Now()
		if err := c.s.Appeal.Submit(actor, reason, snap, now); err != nil {
			return err
		}
		c.setPhase(models.PhaseAppealReview)

		ap := c.s.Appeal.Appeal
		c.emit(ctx, events.TypeAppealSubmitted, events.AppealSubmittedPayload{
			SessionID:   c.s.ID.String(),
			AppealID:    ap.ID.String(),
			EntryIndex:  c.s.CurrentIndex,
			SubmittedBy: actor.String(),
			Reason:      reason,
			SubmittedAt: now,
		})
		return nil
	})
}

func (c *Coordinator) AcknowledgeAppealDecision(ctx context.Context, actor uuid.UUID) error {
	return c.exec(ctx, actor, CmdAcknowledgeAppealDecision, func(ctx context.Context) error {
		err := c.acknowledgeGate(ctx, actor, models.PurposeAwaitingAppealAck, "")
		if errors.Is(err, models.ErrCommit) {
			return nil
		}
		return err
	})
}

func (c *Coordinator) MarkReadyToResume(ctx context.Context, actor uuid.UUID) error {
	return c.exec(ctx, actor, CmdMarkReadyToResume, func(ctx context.Context) error {
		return c.acknowledgeGate(ctx, actor, models.PurposeAwaitingResume, "")
	})
}

// SetConnected records advisory presence. It never affects invariants.
func (c *Coordinator) SetConnected(memberID uuid.UUID, connected bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.s.member(memberID)
	if m == nil || m.Connected == connected {
		return
	}
	m.Connected = connected
	status := c.publish()
	c.deps.Notifier.NotifyStatus(c.s.ID, status)
}

// HandleTimeout is called by the scheduler once the active deadline may have
// passed. The clock is checked again here; stale wakeups only reschedule.
func (c *Coordinator) HandleTimeout(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.dirty = false
	var err error
	switch c.s.Phase {
	case models.PhaseOffering:
		if c.s.OfferDeadline != nil && c.timer.Expired(*c.s.OfferDeadline) {
			c.dirty = true
			err = c.skipEntry(ctx, "offer window expired")
		}
	case models.PhaseAuction:
		if c.s.Ledger.IsOpen() && c.timer.Expired(c.s.Ledger.Current.Deadline) {
			err = c.closeAuction(ctx, models.CloseReasonTimerExpired)
		}
	case models.PhasePendingAck:
		g := c.s.ReadyCheck
		if c.s.CommitRetryAt != nil && !c.timer.Now().Before(*c.s.CommitRetryAt) && g != nil && g.IsSatisfied() {
			c.dirty = true
			log.Info().
				Str("session_id", c.s.ID.String()).
				Int("entry_index", c.s.CurrentIndex).
				Msg("retrying steal commit")
			err = c.commitAndAdvance(ctx)
		}
	}

	if !c.dirty {
		c.reschedule()
		return err
	}
	c.afterMutation(ctx)
	return err
}
