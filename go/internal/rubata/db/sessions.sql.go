package db

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

type RubataSession struct {
	ID           uuid.UUID
	LeagueID     uuid.UUID
	Phase        string
	CurrentIndex int32
	Version      int64
	Board        json.RawMessage
	State        json.RawMessage
	Auction      pqtype.NullRawMessage
	ReadyCheck   pqtype.NullRawMessage
	Appeal       pqtype.NullRawMessage
	Paused       pqtype.NullRawMessage
	UpdatedAt    time.Time
}

const upsertSession = `-- name: UpsertSession :execrows
INSERT INTO rubata_sessions (
    id, league_id, phase, current_index, version, board, state,
    auction, ready_check, appeal, paused, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (id) DO UPDATE SET
    phase = EXCLUDED.phase,
    current_index = EXCLUDED.current_index,
    version = EXCLUDED.version,
    board = EXCLUDED.board,
    state = EXCLUDED.state,
    auction = EXCLUDED.auction,
    ready_check = EXCLUDED.ready_check,
    appeal = EXCLUDED.appeal,
    paused = EXCLUDED.paused,
    updated_at = EXCLUDED.updated_at
WHERE rubata_sessions.version < EXCLUDED.version
`

type UpsertSessionParams struct {
	ID           uuid.UUID
	LeagueID     uuid.UUID
	Phase        string
	CurrentIndex int32
	Version      int64
	Board        json.RawMessage
	State        json.RawMessage
	Auction      pqtype.NullRawMessage
	ReadyCheck   pqtype.NullRawMessage
	Appeal       pqtype.NullRawMessage
	Paused       pqtype.NullRawMessage
	UpdatedAt    time.Time
}

// UpsertSession returns 0 rows affected when a newer version is already stored.
func (q *Queries) UpsertSession(ctx context.Context, arg UpsertSessionParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, upsertSession,
		arg.ID,
		arg.LeagueID,
		arg.Phase,
		arg.CurrentIndex,
		arg.Version,
		arg.Board,
		arg.State,
		arg.Auction,
		arg.ReadyCheck,
		arg.Appeal,
		arg.Paused,
		arg.UpdatedAt,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const getSession = `-- name: GetSession :one
SELECT id, league_id, phase, current_index, version, board, state,
       auction, ready_check, appeal, paused, updated_at
FROM rubata_sessions
WHERE id = $1
`

func (q *Queries) GetSession(ctx context.Context, id uuid.UUID) (RubataSession, error) {
	row := q.db.QueryRowContext(ctx, getSession, id)
	var i RubataSession
	err := row.Scan(
		&i.ID,
		&i.LeagueID,
		&i.Phase,
		&i.CurrentIndex,
		&i.Version,
		&i.Board,
		&i.State,
		&i.Auction,
		&i.ReadyCheck,
		&i.Appeal,
		&i.Paused,
		&i.UpdatedAt,
	)
	return i, err
}

const listActiveSessions = `-- name: ListActiveSessions :many
SELECT id, league_id, phase, current_index, version, board, state,
       auction, ready_check, appeal, paused, updated_at
FROM rubata_sessions
WHERE phase <> 'COMPLETED'
ORDER BY updated_at
`

func (q *Queries) ListActiveSessions(ctx context.Context) ([]RubataSession, error) {
	rows, err := q.db.QueryContext(ctx, listActiveSessions)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []RubataSession
	for rows.Next() {
		var i RubataSession
		if err := rows.Scan(
			&i.ID,
			&i.LeagueID,
			&i.Phase,
			&i.CurrentIndex,
			&i.Version,
			&i.Board,
			&i.State,
			&i.Auction,
			&i.ReadyCheck,
			&i.Appeal,
			&i.Paused,
			&i.UpdatedAt,
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
