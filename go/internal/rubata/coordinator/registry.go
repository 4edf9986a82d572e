package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pietro1412/fantacontratti/go/internal/models"
	"github.com/rs/zerolog/log"
)

// Registry owns every live coordinator in the process.
type Registry struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Coordinator
	byLeague map[uuid.UUID]uuid.UUID
	// creating holds leagues whose Create is doing I/O outside the lock.
	creating map[uuid.UUID]bool
	deps     Deps
}

func NewRegistry(deps Deps) *Registry {
	return &Registry{
		sessions: make(map[uuid.UUID]*Coordinator),
		byLeague: make(map[uuid.UUID]uuid.UUID),
		creating: make(map[uuid.UUID]bool),
		deps:     deps.withDefaults(),
	}
}

// Create opens a new rubata session for a league. A league has at most one
// session that is not COMPLETED.
func (r *Registry) Create(ctx context.Context, leagueID uuid.UUID, admins []uuid.UUID) (*Coordinator, error) {
	if leagueID == uuid.Nil {
		return nil, fmt.Errorf("%w: league id is required", models.ErrInvalidInput)
	}
	if len(admins) == 0 {
		return nil, fmt.Errorf("%w: at least one admin is required", models.ErrInvalidInput)
	}
	if r.deps.League == nil {
		return nil, fmt.Errorf("league reader is not configured")
	}

	if err := r.reserve(leagueID); err != nil {
		return nil, err
	}
	defer r.unreserve(leagueID)

	members, err := r.deps.League.ListMembers(ctx, leagueID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	if len(members) == 0 {
		return nil, fmt.Errorf("%w: league %s has no members", models.ErrValidation, leagueID)
	}

	now := r.deps.Clock.Now()
	s := &Session{
		ID:                  uuid.New(),
		LeagueID:            leagueID,
		Phase:               models.PhaseWaiting,
		Admins:              append([]uuid.UUID(nil), admins...),
		Members:             members,
		OfferTimerSeconds:   r.deps.Config.OfferTimerSeconds,
		AuctionTimerSeconds: r.deps.Config.AuctionTimerSeconds,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	rec, err := s.Record()
	if err != nil {
		return nil, err
	}
	if err := r.deps.Store.SaveSession(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	c := New(s, r.deps)
	r.mu.Lock()
	r.sessions[s.ID] = c
	r.byLeague[leagueID] = s.ID
	r.mu.Unlock()

	log.Info().
		Str("session_id", s.ID.String()).
		Str("league_id", leagueID.String()).
		Int("members", len(members)).
		Msg("rubata session created")
	return c, nil
}

// reserve claims leagueID for one Create at a time, so members can be read
// and the first snapshot saved without holding the registry lock.
func (r *Registry) reserve(leagueID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pruneLocked()

	if id, ok := r.byLeague[leagueID]; ok {
		return fmt.Errorf("%w: league %s already has rubata session %s", models.ErrConflict, leagueID, id)
	}
	if r.creating[leagueID] {
		return fmt.Errorf("%w: a rubata session for league %s is being created", models.ErrConflict, leagueID)
	}
	r.creating[leagueID] = true
	return nil
}

func (r *Registry) unreserve(leagueID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.creating, leagueID)
}

func (r *Registry) Get(sessionID uuid.UUID) (*Coordinator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: rubata session %s", models.ErrNotFound, sessionID)
	}
	return c, nil
}

// Status returns the published snapshot of a session.
func (r *Registry) Status(sessionID uuid.UUID) (*Status, error) {
	c, err := r.Get(sessionID)
	if err != nil {
		return nil, err
	}
	return c.GetStatus(), nil
}

// HandleTimeout routes a scheduler wakeup to its session.
func (r *Registry) HandleTimeout(ctx context.Context, sessionID uuid.UUID) error {
	c, err := r.Get(sessionID)
	if err != nil {
		return err
	}
	return c.HandleTimeout(ctx)
}

func (r *Registry) SetConnected(sessionID, memberID uuid.UUID, connected bool) {
	c, err := r.Get(sessionID)
	if err != nil {
		return
	}
	c.SetConnected(memberID, connected)
}

// Restore loads every active session from the store and puts its deadline
// back on the scheduler. Deadlines that passed while the process was down
// fire right away.
func (r *Registry) Restore(ctx context.Context) (int, error) {
	recs, err := r.deps.Store.ListActiveSessions(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list active sessions: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	restored := 0
	for i := range recs {
		s, err := SessionFromRecord(&recs[i])
		if err != nil {
			log.Error().Err(err).Str("session_id", recs[i].ID.String()).Msg("failed to restore session")
			continue
		}
		if s.Phase == models.PhaseCompleted {
			continue
		}
		if _, ok := r.sessions[s.ID]; ok {
			continue
		}

		c := New(s, r.deps)
		c.Reschedule()
		r.sessions[s.ID] = c
		r.byLeague[s.LeagueID] = s.ID
		restored++

		log.Info().
			Str("session_id", s.ID.String()).
			Str("phase", string(s.Phase)).
			Int("entry_index", s.CurrentIndex).
			Msg("rubata session restored")
	}
	return restored, nil
}

// Prune drops completed sessions; their final state is already in the store.
func (r *Registry) Prune() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pruneLocked()
}

// PruneEvery calls Prune on every tick until ctx is done.
func (r *Registry) PruneEvery(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Prune(); n > 0 {
				log.Info().Int("sessions", n).Msg("pruned completed rubata sessions")
			}
		}
	}
}

func (r *Registry) pruneLocked() int {
	n := 0
	for id, c := range r.sessions {
		st := c.GetStatus()
		if st == nil || st.Phase != models.PhaseCompleted {
			continue
		}
		delete(r.sessions, id)
		if r.byLeague[st.LeagueID] == id {
			delete(r.byLeague, st.LeagueID)
		}
		n++
	}
	return n
}

// Reschedule puts the session's active deadline on the scheduler.
func (c *Coordinator) Reschedule() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reschedule()
}
