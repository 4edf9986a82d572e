package outbox

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/pietro1412/fantacontratti/go/internal/models"
)

type fakeRepo struct {
	mu     sync.Mutex
	events map[uuid.UUID]*OutboxEvent
	order  []uuid.UUID
	sent   []uuid.UUID
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{events: make(map[uuid.UUID]*OutboxEvent)}
}

func (f *fakeRepo) InsertOutboxEvent(_ context.Context, sessionID uuid.UUID, eventType string, payload []byte) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := uuid.New()
	f.events[id] = &OutboxEvent{ID: id, SessionID: sessionID, EventType: eventType, Payload: payload}
	f.order = append(f.order, id)
	return id, nil
}

func (f *fakeRepo) FetchUnsentOutbox(_ context.Context, limit int32) ([]OutboxEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []OutboxEvent
	for _, id := range f.order {
		e := f.events[id]
		if e.SentAt == nil && int32(len(out)) < limit {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (f *fakeRepo) MarkOutboxSent(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.events[id]
	if !ok {
		return models.ErrNotFound
	}
	now := e.CreatedAt
	e.SentAt = &now
	f.sent = append(f.sent, id)
	return nil
}

func (f *fakeRepo) FetchOutboxByID(_ context.Context, id uuid.UUID) (*OutboxEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.events[id]
	if !ok || e.SentAt != nil {
		return nil, models.ErrNotFound
	}
	out := *e
	return &out, nil
}

func (f *fakeRepo) sentIDs() []uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uuid.UUID(nil), f.sent...)
}

var errBusDown = errors.New("bus down")

// flakyPublisher fails the first failures publishes of every event.
type flakyPublisher struct {
	mu        sync.Mutex
	failures  int
	attempts  map[uuid.UUID]int
	published []OutboxEvent
}

func (p *flakyPublisher) Publish(_ context.Context, event OutboxEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.attempts == nil {
		p.attempts = make(map[uuid.UUID]int)
	}
	p.attempts[event.ID]++
	if p.failures < 0 || p.attempts[event.ID] <= p.failures {
		return errBusDown
	}
	p.published = append(p.published, event)
	return nil
}
