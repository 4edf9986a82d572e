package outbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/pietro1412/fantacontratti/go/internal/models"
	"github.com/pietro1412/fantacontratti/go/internal/rubata/db"
	"github.com/pietro1412/fantacontratti/go/internal/sqlutil"
)

type Repository struct {
	queries *db.Queries
}

func NewRepository(queries *db.Queries) *Repository {
	return &Repository{
		queries: queries,
	}
}

func (r *Repository) InsertOutboxEvent(ctx context.Context, sessionID uuid.UUID, eventType string, payload []byte) (uuid.UUID, error) {
	id := uuid.New()
	err := r.queries.InsertOutboxEvent(ctx, db.InsertOutboxEventParams{
		ID:        id,
		SessionID: sessionID,
		EventType: eventType,
		Payload:   payload,
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to insert %s outbox event: %w", eventType, err)
	}
	return id, nil
}

func (r *Repository) FetchUnsentOutbox(ctx context.Context, limit int32) ([]OutboxEvent, error) {
	rows, err := r.queries.FetchUnsentOutbox(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch unsent outbox events: %w", err)
	}

	events := make([]OutboxEvent, len(rows))
	for i, row := range rows {
		events[i] = fromRow(row)
	}
	return events, nil
}

func (r *Repository) MarkOutboxSent(ctx context.Context, id uuid.UUID) error {
	if err := r.queries.MarkOutboxSent(ctx, id); err != nil {
		return fmt.Errorf("failed to mark outbox event as sent: %w", err)
	}
	return nil
}

// FetchOutboxByID returns ErrNotFound for unknown or already sent events.
func (r *Repository) FetchOutboxByID(ctx context.Context, id uuid.UUID) (*OutboxEvent, error) {
	row, err := r.queries.FetchOutboxByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: outbox event %s not found or already sent", models.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to fetch outbox event by ID: %w", err)
	}
	event := fromRow(row)
	return &event, nil
}

func fromRow(row db.RubataOutbox) OutboxEvent {
	return OutboxEvent{
		ID:        row.ID,
		SessionID: row.SessionID,
		EventType: row.EventType,
		Payload:   row.Payload,
		CreatedAt: row.CreatedAt,
		SentAt:    sqlutil.FromSqlTime(row.SentAt),
	}
}
