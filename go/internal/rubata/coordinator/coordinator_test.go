package coordinator

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pietro1412/fantacontratti/go/internal/models"
	"github.com/pietro1412/fantacontratti/go/internal/rubata/auction"
	"github.com/pietro1412/fantacontratti/go/internal/rubata/events"
	"github.com/pietro1412/fantacontratti/go/internal/rubata/timer"
	"github.com/stretchr/testify/require"
)

func TestAuctionWonAndCommitted(t *testing.T) {
	h := newHarness(t)
	h.toOffering()
	h.toAuction()

	st := h.status()
	require.Equal(t, 8, st.Auction.CurrentPrice)
	require.Equal(t, h.a, st.Auction.SellerID)

	require.NoError(t, h.c.Bid(h.ctx, h.b, 9))
	require.Equal(t, 9, h.status().Auction.CurrentPrice)
	require.NoError(t, h.c.Bid(h.ctx, h.c2, 11))
	require.Equal(t, 11, h.status().Auction.CurrentPrice)
	require.ErrorIs(t, h.c.Bid(h.ctx, h.b, 11), models.ErrValidation)

	h.clock.Advance(31 * time.Second)
	require.NoError(t, h.c.HandleTimeout(h.ctx))

	st = h.status()
	require.Equal(t, models.PhasePendingAck, st.Phase)
	require.Equal(t, auction.StateClosed, st.Auction.State)
	require.Equal(t, h.c2, st.Auction.Winner.BidderID)
	require.Equal(t, models.CloseReasonTimerExpired, st.Auction.CloseReason)

	for _, m := range h.members() {
		require.NoError(t, h.c.Acknowledge(h.ctx, m, ""))
	}

	st = h.status()
	require.Equal(t, models.PhaseOffering, st.Phase)
	require.Equal(t, 1, st.CurrentIndex)
	require.Equal(t, 89, h.budget(h.c2))
	require.Equal(t, 100, h.budget(h.a), "the seller receives nothing")
	require.Equal(t, 100, h.budget(h.b))

	stolen := st.Board[0]
	require.NotNil(t, stolen.StolenByMemberID)
	require.Equal(t, h.c2, *stolen.StolenByMemberID)
	require.Equal(t, 11, *stolen.StolenPrice)

	require.Len(t, h.committer.commits, 1)
	commit := h.committer.commits[0]
	require.Equal(t, h.a, commit.SellerID)
	require.Equal(t, h.c2, commit.WinnerID)
	require.Equal(t, 11, commit.Price)
	require.Equal(t, stolen.RosterID, commit.RosterID)
}

func TestAuctionWithoutBidsCommitsNothing(t *testing.T) {
	h := newHarness(t)
	h.toOffering()
	h.toAuction()

	require.NoError(t, h.c.CloseAuction(h.ctx, h.admin))
	require.NoError(t, h.c.ForceAllAcknowledge(h.ctx, h.admin))

	st := h.status()
	require.Equal(t, models.PhaseOffering, st.Phase)
	require.Equal(t, 1, st.CurrentIndex)
	require.Nil(t, st.Board[0].StolenByMemberID)
	require.Empty(t, h.committer.commits)
}

func TestAcceptedAppealRestoresAndReopens(t *testing.T) {
	h := newHarness(t)
	h.toOffering()
	h.toAuction()

	require.NoError(t, h.c.Bid(h.ctx, h.b, 9))
	require.NoError(t, h.c.Bid(h.ctx, h.c2, 11))
	require.NoError(t, h.c.CloseAuction(h.ctx, h.admin))

	require.NoError(t, h.c.Acknowledge(h.ctx, h.a, ""))
	require.NoError(t, h.c.Acknowledge(h.ctx, h.c2, "Kvara will regret this"))
	require.NoError(t, h.c.SubmitAppeal(h.ctx, h.b, "bid landed after I saw the timer at zero"))

	st := h.status()
	require.Equal(t, models.PhaseAppealReview, st.Phase)
	require.NotNil(t, st.Appeal)
	require.Equal(t, models.AppealStatusPending, st.Appeal.Status)
	require.Equal(t, 9, st.Appeal.Snapshot.CurrentPrice)
	require.Equal(t, "Kvara will regret this", st.Gate.Payloads[h.c2])

	require.NoError(t, h.c.DecideAppeal(h.ctx, h.admin, models.AppealStatusAccepted, "late bid"))

	st = h.status()
	require.Equal(t, models.PhaseAwaitingAppealAck, st.Phase)
	require.Equal(t, 9, st.Auction.CurrentPrice)
	require.Len(t, st.Auction.Bids, 1)
	require.Equal(t, h.b, st.Auction.Bids[0].BidderID)

	for _, m := range h.members() {
		require.NoError(t, h.c.AcknowledgeAppealDecision(h.ctx, m))
	}
	require.Equal(t, models.PhaseAwaitingResume, h.status().Phase)

	h.clock.Advance(10 * time.Second)
	for _, m := range h.members() {
		require.NoError(t, h.c.MarkReadyToResume(h.ctx, m))
	}

	st = h.status()
	require.Equal(t, models.PhaseAuction, st.Phase)
	require.Equal(t, auction.StateOpen, st.Auction.State)
	require.Equal(t, 9, st.Auction.CurrentPrice)
	require.Len(t, st.Auction.Bids, 1)
	require.Equal(t, 30, st.Timer.RemainingSeconds, "reopened auction gets a fresh deadline")
	require.Empty(t, h.committer.commits)

	require.NoError(t, h.c.Bid(h.ctx, h.c2, 10))
	st = h.status()
	require.Equal(t, int64(3), st.Auction.Bids[1].SequenceNumber, "sequence numbers survive the revert")
}

func TestRejectedAppealCommitsOriginalOutcome(t *testing.T) {
	h := newHarness(t)
	h.toOffering()
	h.toAuction()

	require.NoError(t, h.c.Bid(h.ctx, h.b, 9))
	require.NoError(t, h.c.Bid(h.ctx, h.c2, 11))
	require.NoError(t, h.c.CloseAuction(h.ctx, h.admin))
	require.NoError(t, h.c.SubmitAppeal(h.ctx, h.b, "unfair"))

	// a second appeal for the same close is a conflict
	require.ErrorIs(t, h.c.SubmitAppeal(h.ctx, h.a, "me too"), models.ErrConflict)

	require.NoError(t, h.c.DecideAppeal(h.ctx, h.admin, models.AppealStatusRejected, "bid was in time"))
	version := h.status().Version
	require.NoError(t, h.c.DecideAppeal(h.ctx, h.admin, models.AppealStatusRejected, "again"))
	require.Equal(t, version, h.status().Version, "deciding twice changes nothing")

	require.NoError(t, h.c.ForceAllAppealAcks(h.ctx, h.admin))

	st := h.status()
	require.Equal(t, models.PhaseOffering, st.Phase)
	require.Equal(t, 1, st.CurrentIndex)
	require.Equal(t, 89, h.budget(h.c2))
	require.Len(t, h.committer.commits, 1)
}

func TestAppealRejectedAfterAcknowledging(t *testing.T) {
	h := newHarness(t)
	h.toOffering()
	h.toAuction()
	require.NoError(t, h.c.Bid(h.ctx, h.b, 9))
	require.NoError(t, h.c.CloseAuction(h.ctx, h.admin))

	require.NoError(t, h.c.Acknowledge(h.ctx, h.c2, ""))
	require.ErrorIs(t, h.c.SubmitAppeal(h.ctx, h.c2, "changed my mind"), models.ErrValidation)
	require.Equal(t, models.PhasePendingAck, h.status().Phase)
}

func TestPauseKeepsRemainingTime(t *testing.T) {
	h := newHarness(t)
	h.toOffering()
	h.toAuction()

	h.clock.Advance(23 * time.Second)
	require.Equal(t, 7, h.status().Timer.RemainingSeconds)

	require.NoError(t, h.c.Pause(h.ctx, h.admin))
	_, scheduled := h.scheduler.at(h.c.ID())
	require.False(t, scheduled, "a paused session has no deadline")

	h.clock.Advance(60 * time.Second)
	st := h.status()
	require.Equal(t, models.PhasePaused, st.Phase)
	require.True(t, st.Timer.Frozen)
	require.Equal(t, 7, st.Timer.RemainingSeconds)
	require.ErrorIs(t, h.c.Bid(h.ctx, h.b, 9), models.ErrValidation)

	require.NoError(t, h.c.Resume(h.ctx, h.admin))
	require.Equal(t, models.PhaseAwaitingResume, h.status().Phase)
	require.NoError(t, h.c.ForceAllReadyToResume(h.ctx, h.admin))

	st = h.status()
	require.Equal(t, models.PhaseAuction, st.Phase)
	require.Equal(t, 7, st.Timer.RemainingSeconds)
	require.Equal(t, int64(7000), st.Timer.RemainingMs)

	require.NoError(t, h.c.HandleTimeout(h.ctx))
	require.Equal(t, models.PhaseAuction, h.status().Phase, "resumed auction must not expire early")
}

func TestPauseDuringOffering(t *testing.T) {
	h := newHarness(t)
	h.toOffering()

	h.clock.Advance(12 * time.Second)
	require.NoError(t, h.c.Pause(h.ctx, h.admin))
	h.clock.Advance(5 * time.Minute)
	require.NoError(t, h.c.Resume(h.ctx, h.admin))
	for _, m := range h.members() {
		require.NoError(t, h.c.MarkReadyToResume(h.ctx, m))
	}

	st := h.status()
	require.Equal(t, models.PhaseOffering, st.Phase)
	require.Equal(t, 18, st.Timer.RemainingSeconds)
}

func TestRejectedBidLeavesStateUntouched(t *testing.T) {
	h := newHarness(t)
	h.toOffering()
	h.toAuction()
	require.NoError(t, h.c.Bid(h.ctx, h.b, 9))

	before := h.status()
	notified := h.notifier.count()

	require.ErrorIs(t, h.c.Bid(h.ctx, h.c2, 5), models.ErrValidation)

	after := h.status()
	require.Equal(t, 9, after.Auction.CurrentPrice)
	require.Equal(t, before.Version, after.Version)
	require.Len(t, after.Auction.Bids, 1)
	require.Equal(t, notified, h.notifier.count())
}

func TestBidRules(t *testing.T) {
	h := newHarness(t)
	h.toOffering()
	h.toAuction()

	require.ErrorIs(t, h.c.Bid(h.ctx, h.a, 20), models.ErrValidation, "seller")
	require.ErrorIs(t, h.c.Bid(h.ctx, h.b, 8), models.ErrValidation, "equal to base")
	require.ErrorIs(t, h.c.Bid(h.ctx, h.b, 101), models.ErrValidation, "over budget")
	require.ErrorIs(t, h.c.Bid(h.ctx, uuid.New(), 20), models.ErrForbidden, "not a member")
	require.Empty(t, h.status().Auction.Bids)
}

func TestBidAfterDeadlineClosesFirst(t *testing.T) {
	h := newHarness(t)
	h.toOffering()
	h.toAuction()
	require.NoError(t, h.c.Bid(h.ctx, h.b, 9))

	h.clock.Advance(30*time.Second + timer.Tick/2)
	require.NoError(t, h.c.Bid(h.ctx, h.c2, 10), "a bid in the same tick as the deadline is in time")

	h.clock.Advance(30*time.Second + timer.Tick)
	require.ErrorIs(t, h.c.Bid(h.ctx, h.b, 12), models.ErrValidation)

	st := h.status()
	require.Equal(t, models.PhasePendingAck, st.Phase)
	require.Equal(t, h.c2, st.Auction.Winner.BidderID)
	require.Equal(t, 10, st.Auction.CurrentPrice)
}

func TestBidExtendsDeadline(t *testing.T) {
	h := newHarness(t)
	h.toOffering()
	h.toAuction()

	h.clock.Advance(25 * time.Second)
	require.NoError(t, h.c.Bid(h.ctx, h.b, 9))
	require.Equal(t, 30, h.status().Timer.RemainingSeconds)

	at, ok := h.scheduler.at(h.c.ID())
	require.True(t, ok)
	require.Equal(t, h.clock.Now().Add(30*time.Second+100*time.Millisecond), at)
}

func TestOfferExpirySkipsEntry(t *testing.T) {
	h := newHarness(t)
	h.toOffering()

	h.clock.Advance(10 * time.Second)
	version := h.status().Version
	require.NoError(t, h.c.HandleTimeout(h.ctx))
	require.Equal(t, version, h.status().Version, "early wakeups do nothing")

	h.clock.Advance(21 * time.Second)
	require.NoError(t, h.c.HandleTimeout(h.ctx))

	st := h.status()
	require.Equal(t, models.PhaseOffering, st.Phase)
	require.Equal(t, 1, st.CurrentIndex)
	require.Contains(t, h.events.types(), events.TypeEntrySkipped)
}

func TestGoBack(t *testing.T) {
	h := newHarness(t)
	h.toOffering()

	require.ErrorIs(t, h.c.GoBack(h.ctx, h.admin), models.ErrValidation, "nothing before the first entry")

	require.NoError(t, h.c.Advance(h.ctx, h.admin))
	require.Equal(t, 1, h.status().CurrentIndex)

	require.NoError(t, h.c.MakeOffer(h.ctx, h.b))
	require.NoError(t, h.c.ForceAllReady(h.ctx, h.admin))
	require.NoError(t, h.c.Bid(h.ctx, h.a, 7))

	require.NoError(t, h.c.GoBack(h.ctx, h.admin))

	st := h.status()
	require.Equal(t, 0, st.CurrentIndex)
	require.Equal(t, models.PhaseOffering, st.Phase)
	require.Nil(t, st.Auction)
	require.Nil(t, st.Gate)
	require.Nil(t, st.Appeal)
	require.Equal(t, 30, st.Timer.RemainingSeconds)
	require.Contains(t, h.events.types(), events.TypeRubataWentBack)
}

func TestCommitFailureStaysPending(t *testing.T) {
	h := newHarness(t)
	h.toOffering()
	h.toAuction()
	require.NoError(t, h.c.Bid(h.ctx, h.c2, 20))
	require.NoError(t, h.c.CloseAuction(h.ctx, h.admin))

	h.committer.failWith(errDiskFull)
	for _, m := range h.members() {
		require.NoError(t, h.c.Acknowledge(h.ctx, m, ""))
	}

	st := h.status()
	require.Equal(t, models.PhasePendingAck, st.Phase)
	require.Equal(t, 0, st.CurrentIndex)
	require.Contains(t, st.LastCommitError, "disk full")
	require.Equal(t, 100, h.budget(h.c2))
	require.Nil(t, st.Board[0].StolenByMemberID)

	require.ErrorIs(t, h.c.Advance(h.ctx, h.admin), models.ErrCommit)
	require.Equal(t, 0, h.status().CurrentIndex)

	h.committer.failWith(nil)
	h.clock.Advance(5 * time.Second)
	require.NoError(t, h.c.HandleTimeout(h.ctx))

	st = h.status()
	require.Equal(t, models.PhaseOffering, st.Phase)
	require.Equal(t, 1, st.CurrentIndex)
	require.Empty(t, st.LastCommitError)
	require.Equal(t, 80, h.budget(h.c2))

	require.Len(t, h.committer.attempts, 3)
	for _, attempt := range h.committer.attempts {
		require.Equal(t, h.committer.attempts[0].AuctionID, attempt.AuctionID, "retries commit the same auction")
	}
	require.Len(t, h.committer.commits, 1)
}

func TestStealAgainAfterGoBack(t *testing.T) {
	h := newHarness(t)
	h.toOffering()
	h.toAuction()
	require.NoError(t, h.c.Bid(h.ctx, h.c2, 11))
	require.NoError(t, h.c.CloseAuction(h.ctx, h.admin))
	require.NoError(t, h.c.ForceAllAcknowledge(h.ctx, h.admin))
	require.Equal(t, 1, h.status().CurrentIndex)

	require.NoError(t, h.c.GoBack(h.ctx, h.admin))
	require.Equal(t, 0, h.status().CurrentIndex)

	h.toAuction()
	require.Equal(t, h.c2, h.status().Auction.SellerID, "the first thief now holds the player")
	require.NoError(t, h.c.Bid(h.ctx, h.b, 12))
	require.NoError(t, h.c.CloseAuction(h.ctx, h.admin))
	require.NoError(t, h.c.ForceAllAcknowledge(h.ctx, h.admin))

	require.Len(t, h.committer.commits, 2, "both steals of entry 0 are durable")
	first, second := h.committer.commits[0], h.committer.commits[1]
	require.Equal(t, 0, first.EntryIndex)
	require.Equal(t, 0, second.EntryIndex)
	require.NotEqual(t, first.AuctionID, second.AuctionID)
	require.Equal(t, h.c2, second.SellerID)
	require.Equal(t, h.b, second.WinnerID)

	st := h.status()
	require.Equal(t, h.b, *st.Board[0].StolenByMemberID)
	require.Equal(t, 12, *st.Board[0].StolenPrice)
	require.Equal(t, 88, h.budget(h.b))
	require.Equal(t, 89, h.budget(h.c2))
}

func TestCorruptEntryAbortsUntilRegenerated(t *testing.T) {
	h := newHarness(t)
	h.toOffering()

	h.c.mu.Lock()
	h.c.s.Board[1].BasePrice = 999
	h.c.mu.Unlock()

	require.ErrorIs(t, h.c.Advance(h.ctx, h.admin), models.ErrBoardCorrupt)

	st := h.status()
	require.Equal(t, models.PhaseAborted, st.Phase)
	require.NotEmpty(t, st.LastError)
	require.ErrorIs(t, h.c.MakeOffer(h.ctx, h.a), models.ErrValidation)

	require.NoError(t, h.c.GenerateBoard(h.ctx, h.admin))
	st = h.status()
	require.Equal(t, models.PhasePreview, st.Phase)
	require.Equal(t, 0, st.CurrentIndex)
	require.Empty(t, st.LastError)
}

func TestCompleteRubata(t *testing.T) {
	h := newHarness(t)
	h.toOffering()
	h.toAuction()
	require.NoError(t, h.c.Bid(h.ctx, h.b, 9))

	require.NoError(t, h.c.CompleteRubata(h.ctx, h.admin))

	st := h.status()
	require.Equal(t, models.PhaseCompleted, st.Phase)
	require.Equal(t, 3, st.CurrentIndex)
	require.Nil(t, st.Auction)
	require.Empty(t, h.committer.commits)
	require.ErrorIs(t, h.c.Bid(h.ctx, h.c2, 10), models.ErrValidation)
	require.ErrorIs(t, h.c.GoBack(h.ctx, h.admin), models.ErrValidation)
}

func TestBoardExhaustionCompletes(t *testing.T) {
	h := newHarness(t)
	h.toOffering()
	for i := 0; i < 3; i++ {
		require.NoError(t, h.c.Advance(h.ctx, h.admin))
	}
	require.Equal(t, models.PhaseCompleted, h.status().Phase)
	require.Contains(t, h.events.types(), events.TypeRubataCompleted)
}

func TestAuthorization(t *testing.T) {
	h := newHarness(t)

	require.ErrorIs(t, h.c.SetOrder(h.ctx, h.a, h.members()), models.ErrForbidden)
	require.ErrorIs(t, h.c.SetReady(h.ctx, h.admin), models.ErrForbidden, "admin is not a member")
	require.ErrorIs(t, h.c.StartRubata(h.ctx, h.admin), models.ErrValidation, "no board yet")
	require.ErrorIs(t, h.c.GenerateBoard(h.ctx, h.admin), models.ErrValidation, "no turn order yet")
}

func TestSetOrderValidation(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name  string
		order []uuid.UUID
	}{
		{name: "empty"},
		{name: "unknown member", order: []uuid.UUID{h.a, uuid.New()}},
		{name: "duplicate", order: []uuid.UUID{h.a, h.b, h.a}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.ErrorIs(t, h.c.SetOrder(h.ctx, h.admin, tt.order), models.ErrInvalidInput)
		})
	}

	require.NoError(t, h.c.SetOrder(h.ctx, h.admin, h.members()))
	require.NoError(t, h.c.GenerateBoard(h.ctx, h.admin))
	require.Equal(t, models.PhasePreview, h.status().Phase)
	require.Len(t, h.status().Board, 3)

	require.NoError(t, h.c.SetOrder(h.ctx, h.admin, []uuid.UUID{h.c2, h.b, h.a}))
	st := h.status()
	require.Equal(t, models.PhaseWaiting, st.Phase)
	require.Empty(t, st.Board)
}

func TestUpdateTimers(t *testing.T) {
	h := newHarness(t)
	require.ErrorIs(t, h.c.UpdateTimers(h.ctx, h.admin, 0, 10), models.ErrInvalidInput)

	h.toOffering()
	require.NoError(t, h.c.UpdateTimers(h.ctx, h.admin, 20, 15))
	h.toAuction()

	st := h.status()
	require.Equal(t, 15, st.Timer.RemainingSeconds)
	require.NoError(t, h.c.Bid(h.ctx, h.b, 9))
	require.Equal(t, 15, h.status().Timer.RemainingSeconds)
}

func TestReadyCheckIsIdempotent(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.c.SetOrder(h.ctx, h.admin, h.members()))
	require.NoError(t, h.c.GenerateBoard(h.ctx, h.admin))
	require.NoError(t, h.c.StartRubata(h.ctx, h.admin))

	require.NoError(t, h.c.SetReady(h.ctx, h.a))
	version := h.status().Version
	require.NoError(t, h.c.SetReady(h.ctx, h.a))
	require.Equal(t, version, h.status().Version)

	st := h.status()
	require.Equal(t, models.PhaseReadyCheck, st.Phase)
	require.Equal(t, 1, st.Gate.Acknowledged)
	require.ElementsMatch(t, []uuid.UUID{h.b, h.c2}, st.Gate.Pending)
}

func TestRestoreFromStore(t *testing.T) {
	h := newHarness(t)
	h.toOffering()
	h.toAuction()
	require.NoError(t, h.c.Bid(h.ctx, h.b, 9))

	fresh := NewRegistry(h.deps())
	n, err := fresh.Restore(h.ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	st, err := fresh.Status(h.c.ID())
	require.NoError(t, err)
	require.Equal(t, models.PhaseAuction, st.Phase)
	require.Equal(t, 9, st.Auction.CurrentPrice)
	require.Equal(t, h.status().Version, st.Version)

	c, err := fresh.Get(h.c.ID())
	require.NoError(t, err)
	require.NoError(t, c.Bid(h.ctx, h.c2, 10))
	require.Equal(t, int64(2), c.GetStatus().Auction.Bids[1].SequenceNumber)
}

func TestRegistryOneSessionPerLeague(t *testing.T) {
	h := newHarness(t)
	st := h.status()

	_, err := h.registry.Create(h.ctx, st.LeagueID, []uuid.UUID{h.admin})
	require.ErrorIs(t, err, models.ErrConflict)

	_, err = h.registry.Get(uuid.New())
	require.ErrorIs(t, err, models.ErrNotFound)

	h.toOffering()
	require.NoError(t, h.c.CompleteRubata(h.ctx, h.admin))

	next, err := h.registry.Create(h.ctx, st.LeagueID, []uuid.UUID{h.admin})
	require.NoError(t, err)
	require.NotEqual(t, h.c.ID(), next.ID())
}

func TestRegistryCreateDoesNotBlockReads(t *testing.T) {
	h := newHarness(t)
	slow := &blockingLeague{fakeLeague: h.league, entered: make(chan struct{}), release: make(chan struct{})}
	h.registry.deps.League = slow

	leagueID := uuid.New()
	created := make(chan error, 1)
	go func() {
		_, err := h.registry.Create(h.ctx, leagueID, []uuid.UUID{h.admin})
		created <- err
	}()
	<-slow.entered

	read := make(chan error, 1)
	go func() {
		_, err := h.registry.Get(h.c.ID())
		read <- err
	}()
	select {
	case err := <-read:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Get blocked behind a Create")
	}

	_, err := h.registry.Create(h.ctx, leagueID, []uuid.UUID{h.admin})
	require.ErrorIs(t, err, models.ErrConflict, "one Create per league at a time")

	close(slow.release)
	require.NoError(t, <-created)
}

func TestRegistryPrune(t *testing.T) {
	h := newHarness(t)
	require.Zero(t, h.registry.Prune())

	h.toOffering()
	require.NoError(t, h.c.CompleteRubata(h.ctx, h.admin))
	require.Equal(t, 1, h.registry.Prune())

	_, err := h.registry.Get(h.c.ID())
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestPhaseTable(t *testing.T) {
	require.True(t, Allowed(models.PhaseAuction, CmdBid))
	require.False(t, Allowed(models.PhaseOffering, CmdBid))
	require.False(t, Allowed(models.PhasePaused, CmdBid))
	require.True(t, Allowed(models.PhaseAborted, CmdGenerateBoard))
	require.False(t, Allowed(models.PhaseCompleted, CmdGenerateBoard))

	for phase, cmds := range phaseCommands {
		for _, cmd := range cmds {
			require.True(t, Allowed(phase, cmd), "%s in %s", cmd, phase)
		}
	}
}
