package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type RubataOutbox struct {
	ID        uuid.UUID
	SessionID uuid.UUID
	EventType string
	Payload   json.RawMessage
	CreatedAt time.Time
	SentAt    sql.NullTime
}

const insertOutboxEvent = `-- name: InsertOutboxEvent :exec
INSERT INTO rubata_outbox (id, session_id, event_type, payload)
VALUES ($1, $2, $3, $4)
`

type InsertOutboxEventParams struct {
	ID        uuid.UUID
	SessionID uuid.UUID
	EventType string
	Payload   json.RawMessage
}

func (q *Queries) InsertOutboxEvent(ctx context.Context, arg InsertOutboxEventParams) error {
	_, err := q.db.ExecContext(ctx, insertOutboxEvent,
		arg.ID,
		arg.SessionID,
		arg.EventType,
		arg.Payload,
	)
	return err
}

const fetchUnsentOutbox = `-- name: FetchUnsentOutbox :many
SELECT id, session_id, event_type, payload, created_at, sent_at
FROM rubata_outbox
WHERE sent_at IS NULL
ORDER BY created_at
LIMIT $1
`

func (q *Queries) FetchUnsentOutbox(ctx context.Context, limit int32) ([]RubataOutbox, error) {
	rows, err := q.db.QueryContext(ctx, fetchUnsentOutbox, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []RubataOutbox
	for rows.Next() {
		var i RubataOutbox
		if err := rows.Scan(
			&i.ID,
			&i.SessionID,
			&i.EventType,
			&i.Payload,
			&i.CreatedAt,
			&i.SentAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const fetchOutboxByID = `-- name: FetchOutboxByID :one
SELECT id, session_id, event_type, payload, created_at, sent_at
FROM rubata_outbox
WHERE id = $1 AND sent_at IS NULL
`

func (q *Queries) FetchOutboxByID(ctx context.Context, id uuid.UUID) (RubataOutbox, error) {
	row := q.db.QueryRowContext(ctx, fetchOutboxByID, id)
	var i RubataOutbox
	err := row.Scan(
		&i.ID,
		&i.SessionID,
		&i.EventType,
		&i.Payload,
		&i.CreatedAt,
		&i.SentAt,
	)
	return i, err
}

const markOutboxSent = `-- name: MarkOutboxSent :exec
UPDATE rubata_outbox
SET sent_at = now()
WHERE id = $1
`

func (q *Queries) MarkOutboxSent(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.ExecContext(ctx, markOutboxSent, id)
	return err
}
