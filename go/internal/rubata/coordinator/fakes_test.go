package coordinator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pietro1412/fantacontratti/go/internal/models"
	"github.com/stretchr/testify/require"
)

type fakeLeague struct {
	members []models.Member
	rosters []models.RosterContract
}

func (f *fakeLeague) ListMembers(context.Context, uuid.UUID) ([]models.Member, error) {
	return append([]models.Member(nil), f.members...), nil
}

func (f *fakeLeague) ListRosterContracts(context.Context, uuid.UUID) ([]models.RosterContract, error) {
	return append([]models.RosterContract(nil), f.rosters...), nil
}

// blockingLeague holds ListMembers until release is closed.
type blockingLeague struct {
	*fakeLeague
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (b *blockingLeague) ListMembers(ctx context.Context, leagueID uuid.UUID) ([]models.Member, error) {
	b.once.Do(func() { close(b.entered) })
	<-b.release
	return b.fakeLeague.ListMembers(ctx, leagueID)
}

// fakeCommitter applies each auction at most once, like the UNIQUE auction_id
// on rubata_steals. attempts records every call, commits only applied ones.
type fakeCommitter struct {
	mu       sync.Mutex
	err      error
	attempts []models.StealCommit
	commits  []models.StealCommit
}

func (f *fakeCommitter) CommitSteal(_ context.Context, commit models.StealCommit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts = append(f.attempts, commit)
	if f.err != nil {
		return f.err
	}
	for _, c := range f.commits {
		if c.AuctionID == commit.AuctionID {
			return nil
		}
	}
	f.commits = append(f.commits, commit)
	return nil
}

func (f *fakeCommitter) failWith(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

type memoryStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]models.SessionRecord
}

func newMemoryStore() *memoryStore {
	return &memoryStore{records: make(map[uuid.UUID]models.SessionRecord)}
}

func (m *memoryStore) SaveSession(_ context.Context, rec *models.SessionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.records[rec.ID]; ok && rec.Version <= prev.Version {
		return models.ErrConflict
	}
	m.records[rec.ID] = *rec
	return nil
}

func (m *memoryStore) LoadSession(_ context.Context, id uuid.UUID) (*models.SessionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &rec, nil
}

func (m *memoryStore) ListActiveSessions(context.Context) ([]models.SessionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.SessionRecord
	for _, rec := range m.records {
		if rec.Phase != models.PhaseCompleted {
			out = append(out, rec)
		}
	}
	return out, nil
}

type recordingNotifier struct {
	mu       sync.Mutex
	statuses []*Status
}

func (r *recordingNotifier) NotifyStatus(_ uuid.UUID, status *Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, status)
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.statuses)
}

type recordedEvent struct {
	eventType string
	payload   []byte
}

type recordingEvents struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *recordingEvents) InsertEvent(_ context.Context, _ uuid.UUID, eventType string, payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{eventType: eventType, payload: payload})
	return nil
}

func (r *recordingEvents) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.eventType
	}
	return out
}

type fakeScheduler struct {
	mu        sync.Mutex
	scheduled map[uuid.UUID]time.Time
}

func (f *fakeScheduler) Schedule(id uuid.UUID, at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scheduled[id] = at
}

func (f *fakeScheduler) Cancel(id uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.scheduled, id)
}

func (f *fakeScheduler) at(id uuid.UUID) (time.Time, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	at, ok := f.scheduled[id]
	return at, ok
}

// harness is a three member league: A, B and C each own one contract and
// take turns in that order. The admin is not a member.
type harness struct {
	t         *testing.T
	ctx       context.Context
	clock     *clockwork.FakeClock
	league    *fakeLeague
	committer *fakeCommitter
	store     *memoryStore
	notifier  *recordingNotifier
	events    *recordingEvents
	scheduler *fakeScheduler
	registry  *Registry
	c         *Coordinator

	admin, a, b, c2 uuid.UUID
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		t:         t,
		ctx:       context.Background(),
		clock:     clockwork.NewFakeClock(),
		committer: &fakeCommitter{},
		store:     newMemoryStore(),
		notifier:  &recordingNotifier{},
		events:    &recordingEvents{},
		scheduler: &fakeScheduler{scheduled: make(map[uuid.UUID]time.Time)},
		admin:     uuid.New(),
		a:         uuid.New(),
		b:         uuid.New(),
		c2:        uuid.New(),
	}
	h.league = &fakeLeague{
		members: []models.Member{
			{ID: h.a, Name: "Alpha", TeamBudget: 100},
			{ID: h.b, Name: "Bravo", TeamBudget: 100},
			{ID: h.c2, Name: "Charlie", TeamBudget: 100},
		},
		rosters: []models.RosterContract{
			{ID: uuid.New(), MemberID: h.a, PlayerID: uuid.New(), PlayerName: "Barella", Salary: 2, Duration: 3, Clause: 6},
			{ID: uuid.New(), MemberID: h.b, PlayerID: uuid.New(), PlayerName: "Dimarco", Salary: 1, Duration: 2, Clause: 4},
			{ID: uuid.New(), MemberID: h.c2, PlayerID: uuid.New(), PlayerName: "Kvara", Salary: 3, Duration: 4, Clause: 3},
		},
	}
	h.registry = NewRegistry(h.deps())

	c, err := h.registry.Create(h.ctx, uuid.New(), []uuid.UUID{h.admin})
	require.NoError(t, err)
	h.c = c
	return h
}

func (h *harness) deps() Deps {
	return Deps{
		League:    h.league,
		Committer: h.committer,
		Store:     h.store,
		Notifier:  h.notifier,
		Events:    h.events,
		Scheduler: h.scheduler,
		Clock:     h.clock,
		Config: Config{
			OfferTimerSeconds:   30,
			AuctionTimerSeconds: 30,
			CommitRetryDelay:    5 * time.Second,
		},
	}
}

func (h *harness) members() []uuid.UUID {
	return []uuid.UUID{h.a, h.b, h.c2}
}

func (h *harness) status() *Status {
	return h.c.GetStatus()
}

// toOffering drives the session to the first entry's offer window.
func (h *harness) toOffering() {
	h.t.Helper()
	require.NoError(h.t, h.c.SetOrder(h.ctx, h.admin, h.members()))
	require.NoError(h.t, h.c.GenerateBoard(h.ctx, h.admin))
	require.NoError(h.t, h.c.StartRubata(h.ctx, h.admin))
	for _, m := range h.members() {
		require.NoError(h.t, h.c.SetReady(h.ctx, m))
	}
	require.Equal(h.t, models.PhaseOffering, h.status().Phase)
}

// toAuction opens bidding on the current entry.
func (h *harness) toAuction() {
	h.t.Helper()
	require.NoError(h.t, h.c.MakeOffer(h.ctx, h.a))
	require.Equal(h.t, models.PhaseAuctionReadyCheck, h.status().Phase)
	for _, m := range h.members() {
		require.NoError(h.t, h.c.SetReady(h.ctx, m))
	}
	require.Equal(h.t, models.PhaseAuction, h.status().Phase)
}

func (h *harness) budget(id uuid.UUID) int {
	h.t.Helper()
	m := h.status().Member(id)
	require.NotNil(h.t, m)
	return m.TeamBudget
}

var errDiskFull = errors.New("disk full")
