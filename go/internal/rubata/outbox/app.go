package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/pietro1412/fantacontratti/go/internal/models"
	"github.com/pietro1412/fantacontratti/go/internal/rubata/events"
	"github.com/rs/zerolog/log"
)

// OutboxRepository defines what the app layer needs from the repository
type OutboxRepository interface {
	InsertOutboxEvent(ctx context.Context, sessionID uuid.UUID, eventType string, payload []byte) (uuid.UUID, error)
	FetchUnsentOutbox(ctx context.Context, limit int32) ([]OutboxEvent, error)
	MarkOutboxSent(ctx context.Context, id uuid.UUID) error
	FetchOutboxByID(ctx context.Context, id uuid.UUID) (*OutboxEvent, error)
}

// App handles outbox business logic
type App struct {
	repo OutboxRepository
}

func NewApp(repo OutboxRepository) *App {
	return &App{
		repo: repo,
	}
}

// InsertEvent records a rubata domain event. Only known event types with a
// JSON object payload are accepted.
func (a *App) InsertEvent(ctx context.Context, sessionID uuid.UUID, eventType string, payload []byte) error {
	if !events.Known(eventType) {
		return fmt.Errorf("%w: unknown event type %q", models.ErrInvalidInput, eventType)
	}
	if err := validateEventPayload(payload); err != nil {
		return fmt.Errorf("invalid %s payload: %w", eventType, err)
	}

	id, err := a.repo.InsertOutboxEvent(ctx, sessionID, eventType, payload)
	if err != nil {
		return err
	}

	log.Debug().
		Str("session_id", sessionID.String()).
		Str("event_id", id.String()).
		Str("event_type", eventType).
		Msg("outbox event inserted")
	return nil
}

func (a *App) FetchUnsentEvents(ctx context.Context, limit int32) ([]OutboxEvent, error) {
	return a.repo.FetchUnsentOutbox(ctx, limit)
}

func (a *App) MarkEventSent(ctx context.Context, id uuid.UUID) error {
	return a.repo.MarkOutboxSent(ctx, id)
}

func (a *App) GetEventByID(ctx context.Context, id uuid.UUID) (*OutboxEvent, error) {
	return a.repo.FetchOutboxByID(ctx, id)
}

func validateEventPayload(payload []byte) error {
	if len(payload) == 0 {
		return fmt.Errorf("%w: event payload cannot be empty", models.ErrInvalidInput)
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(payload, &obj); err != nil {
		return fmt.Errorf("%w: event payload must be a JSON object: %v", models.ErrInvalidInput, err)
	}
	return nil
}
