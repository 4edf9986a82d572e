// Package coordinator runs the rubata phase state machine. Each session is
// owned by one Coordinator which serializes every command, timer expiry and
// commit behind a single lock and publishes an immutable status view after
// each mutation.
package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pietro1412/fantacontratti/go/internal/models"
	"github.com/pietro1412/fantacontratti/go/internal/rubata/gate"
	"github.com/pietro1412/fantacontratti/go/internal/rubata/timer"
	"github.com/rs/zerolog/log"
)

// LeagueReader defines what the coordinator needs to know about the league.
type LeagueReader interface {
	ListMembers(ctx context.Context, leagueID uuid.UUID) ([]models.Member, error)
	ListRosterContracts(ctx context.Context, leagueID uuid.UUID) ([]models.RosterContract, error)
}

// Committer applies a won auction atomically. It must either do all of the
// roster transfer, budget debit and steal record, or none of them.
type Committer interface {
	CommitSteal(ctx context.Context, commit models.StealCommit) error
}

// SessionStore defines what the coordinator needs from session persistence
type SessionStore interface {
	SaveSession(ctx context.Context, rec *models.SessionRecord) error
	LoadSession(ctx context.Context, id uuid.UUID) (*models.SessionRecord, error)
	ListActiveSessions(ctx context.Context) ([]models.SessionRecord, error)
}

// Notifier pushes status snapshots to clients. Implementations must not block.
type Notifier interface {
	NotifyStatus(sessionID uuid.UUID, status *Status)
}

// EventSink records domain events for the outbox relay.
type EventSink interface {
	InsertEvent(ctx context.Context, sessionID uuid.UUID, eventType string, payload []byte) error
}

// DeadlineScheduler calls back into the registry once a deadline passes.
type DeadlineScheduler interface {
	Schedule(sessionID uuid.UUID, at time.Time)
	Cancel(sessionID uuid.UUID)
}

// Config holds session defaults.
type Config struct {
	OfferTimerSeconds   int
	AuctionTimerSeconds int
	CommitRetryDelay    time.Duration
}

func DefaultConfig() Config {
	return Config{
		OfferTimerSeconds:   30,
		AuctionTimerSeconds: 30,
		CommitRetryDelay:    5 * time.Second,
	}
}

// Deps are the collaborators shared by every coordinator. Nil collaborators
// are replaced with no-ops, except League and Committer.
type Deps struct {
	League    LeagueReader
	Committer Committer
	Store     SessionStore
	Notifier  Notifier
	Events    EventSink
	Scheduler DeadlineScheduler
	Clock     timer.Clock
	Config    Config
}

func (d Deps) withDefaults() Deps {
	if d.Store == nil {
		d.Store = noopStore{}
	}
	if d.Notifier == nil {
		d.Notifier = noopNotifier{}
	}
	if d.Events == nil {
		d.Events = noopEvents{}
	}
	if d.Scheduler == nil {
		d.Scheduler = noopScheduler{}
	}
	if d.Clock == nil {
		d.Clock = clockwork.NewRealClock()
	}
	def := DefaultConfig()
	if d.Config.OfferTimerSeconds <= 0 {
		d.Config.OfferTimerSeconds = def.OfferTimerSeconds
	}
	if d.Config.AuctionTimerSeconds <= 0 {
		d.Config.AuctionTimerSeconds = def.AuctionTimerSeconds
	}
	if d.Config.CommitRetryDelay <= 0 {
		d.Config.CommitRetryDelay = def.CommitRetryDelay
	}
	return d
}

// errNoChange marks an accepted command that left the session as it was
// (re-acknowledging, deciding an appeal twice).
var errNoChange = errors.New("no change")

type Coordinator struct {
	mu    sync.Mutex
	s     *Session
	deps  Deps
	timer *timer.Service

	// dirty is set by flows that mutate the session and still return an error
	dirty bool

	view atomic.Pointer[Status]
}

// New wraps a session. The caller must not touch s afterwards.
func New(s *Session, deps Deps) *Coordinator {
	deps = deps.withDefaults()
	c := &Coordinator{
		s:     s,
		deps:  deps,
		timer: timer.NewService(deps.Clock),
	}
	c.publish()
	return c
}

func (c *Coordinator) ID() uuid.UUID {
	return c.s.ID
}

// exec runs fn as one serialized mutation.
func (c *Coordinator) exec(ctx context.Context, actor uuid.UUID, cmd Command, fn func(ctx context.Context) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.authorize(actor, cmd); err != nil {
		return err
	}

	c.dirty = false
	err := fn(ctx)
	if errors.Is(err, errNoChange) {
		return nil
	}
	if err != nil && !c.dirty {
		log.Debug().
			Err(err).
			Str("session_id", c.s.ID.String()).
			Str("command", string(cmd)).
			Str("phase", string(c.s.Phase)).
			Msg("command rejected")
		return err
	}

	c.afterMutation(ctx)
	return err
}

func (c *Coordinator) authorize(actor uuid.UUID, cmd Command) error {
	if cmd.IsAdmin() {
		if !c.s.isAdmin(actor) {
			return fmt.Errorf("%w: %s requires a league admin", models.ErrForbidden, cmd)
		}
	} else if c.s.member(actor) == nil {
		return fmt.Errorf("%w: %s is not a member of this rubata", models.ErrForbidden, actor)
	}
	if !Allowed(c.s.Phase, cmd) {
		return fmt.Errorf("%w: %s is not allowed during %s", models.ErrValidation, cmd, c.s.Phase)
	}
	return nil
}

// afterMutation bumps the version, persists, reschedules the active deadline
// and publishes the new status.
func (c *Coordinator) afterMutation(ctx context.Context) {
	c.s.Version++
	c.s.UpdatedAt = c.timer.Now()

	c.persist(ctx)
	c.reschedule()
	status := c.publish()
	c.deps.Notifier.NotifyStatus(c.s.ID, status)
}

func (c *Coordinator) persist(ctx context.Context) {
	rec, err := c.s.Record()
	if err != nil {
		log.Error().Err(err).Str("session_id", c.s.ID.String()).Msg("failed to build session record")
		return
	}
	if err := c.deps.Store.SaveSession(ctx, rec); err != nil {
		log.Error().
			Err(err).
			Str("session_id", c.s.ID.String()).
			Int64("version", c.s.Version).
			Msg("failed to save session")
	}
}

// activeDeadline is the deadline the scheduler must watch, if any.
func (c *Coordinator) activeDeadline() (time.Time, bool) {
	switch c.s.Phase {
	case models.PhaseOffering:
		if c.s.OfferDeadline != nil {
			return *c.s.OfferDeadline, true
		}
	case models.PhaseAuction:
		if c.s.Ledger.IsOpen() {
			return c.s.Ledger.Current.Deadline, true
		}
	case models.PhasePendingAck:
		if c.s.CommitRetryAt != nil {
			return *c.s.CommitRetryAt, true
		}
	}
	return time.Time{}, false
}

func (c *Coordinator) reschedule() {
	if deadline, ok := c.activeDeadline(); ok {
		c.deps.Scheduler.Schedule(c.s.ID, deadline.Add(timer.Tick))
		return
	}
	c.deps.Scheduler.Cancel(c.s.ID)
}

func (c *Coordinator) setPhase(p models.Phase) {
	if c.s.Phase == p {
		return
	}
	log.Info().
		Str("session_id", c.s.ID.String()).
		Str("from", string(c.s.Phase)).
		Str("to", string(p)).
		Int("entry_index", c.s.CurrentIndex).
		Msg("rubata phase changed")
	c.s.Phase = p
}

// openGate starts a ready gate over every member. No gate outside the appeal
// flow may start while an appeal waits for its decision.
func (c *Coordinator) openGate(purpose models.GatePurpose) error {
	if c.s.Appeal.Unresolved() && !appealPurposes[purpose] {
		return fmt.Errorf("cannot open %s gate while appeal %s is unresolved", purpose, c.s.Appeal.Appeal.ID)
	}
	c.s.ReadyCheck = gate.New(purpose, c.s.memberIDs(), c.timer.Now())
	return nil
}

func (c *Coordinator) emit(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("event_type", eventType).Msg("failed to marshal event payload")
		return
	}
	if err := c.deps.Events.InsertEvent(ctx, c.s.ID, eventType, data); err != nil {
		// Don't fail the command, just log the error
		log.Error().
			Err(err).
			Str("session_id", c.s.ID.String()).
			Str("event_type", eventType).
			Msg("failed to insert outbox event")
	}
}

type noopStore struct{}

func (noopStore) SaveSession(context.Context, *models.SessionRecord) error { return nil }
func (noopStore) LoadSession(context.Context, uuid.UUID) (*models.SessionRecord, error) {
	return nil, models.ErrNotFound
}
func (noopStore) ListActiveSessions(context.Context) ([]models.SessionRecord, error) {
	return nil, nil
}

type noopNotifier struct{}

func (noopNotifier) NotifyStatus(uuid.UUID, *Status) {}

type noopEvents struct{}

func (noopEvents) InsertEvent(context.Context, uuid.UUID, string, []byte) error { return nil }

type noopScheduler struct{}

func (noopScheduler) Schedule(uuid.UUID, time.Time) {}
func (noopScheduler) Cancel(uuid.UUID)              {}
