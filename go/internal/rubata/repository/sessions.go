package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/pietro1412/fantacontratti/go/internal/models"
	"github.com/pietro1412/fantacontratti/go/internal/rubata/coordinator"
	"github.com/pietro1412/fantacontratti/go/internal/rubata/db"
	"github.com/pietro1412/fantacontratti/go/internal/sqlutil"
)

var _ coordinator.SessionStore = (*SessionRepository)(nil)

// SessionRepository persists session snapshots. Writes never move a row to an
// older version.
type SessionRepository struct {
	db *sql.DB
}

func NewSessionRepository(sqlDB *sql.DB) *SessionRepository {
	return &SessionRepository{db: sqlDB}
}

func (r *SessionRepository) SaveSession(ctx context.Context, rec *models.SessionRecord) error {
	return sqlutil.Run(ctx, r.db, func(tx *sql.Tx) *db.Queries { return db.New(tx) }, func(q *db.Queries) error {
		n, err := q.UpsertSession(ctx, toUpsertParams(rec))
		if err != nil {
			return fmt.Errorf("failed to save session %s: %w", rec.ID, err)
		}
		if n == 0 {
			return fmt.Errorf("%w: session %s already stored at version >= %d", models.ErrConflict, rec.ID, rec.Version)
		}
		return nil
	})
}

func (r *SessionRepository) LoadSession(ctx context.Context, id uuid.UUID) (*models.SessionRecord, error) {
	row, err := db.New(r.db).GetSession(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: session %s", models.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	rec := fromSessionRow(row)
	return &rec, nil
}

func (r *SessionRepository) ListActiveSessions(ctx context.Context) ([]models.SessionRecord, error) {
	rows, err := db.New(r.db).ListActiveSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active sessions: %w", err)
	}
	out := make([]models.SessionRecord, len(rows))
	for i, row := range rows {
		out[i] = fromSessionRow(row)
	}
	return out, nil
}

func toUpsertParams(rec *models.SessionRecord) db.UpsertSessionParams {
	return db.UpsertSessionParams{
		ID:           rec.ID,
		LeagueID:     rec.LeagueID,
		Phase:        string(rec.Phase),
		CurrentIndex: int32(rec.CurrentIndex),
		Version:      rec.Version,
		Board:        rec.Board,
		State:        rec.State,
		Auction:      sqlutil.ToNullRawMessage(rec.Auction),
		ReadyCheck:   sqlutil.ToNullRawMessage(rec.ReadyCheck),
		Appeal:       sqlutil.ToNullRawMessage(rec.Appeal),
		Paused:       sqlutil.ToNullRawMessage(rec.Paused),
		UpdatedAt:    rec.UpdatedAt,
	}
}

func fromSessionRow(row db.RubataSession) models.SessionRecord {
	return models.SessionRecord{
		ID:           row.ID,
		LeagueID:     row.LeagueID,
		Phase:        models.Phase(row.Phase),
		CurrentIndex: int(row.CurrentIndex),
		Version:      row.Version,
		Board:        row.Board,
		State:        row.State,
		Auction:      sqlutil.FromNullRawMessage(row.Auction),
		ReadyCheck:   sqlutil.FromNullRawMessage(row.ReadyCheck),
		Appeal:       sqlutil.FromNullRawMessage(row.Appeal),
		Paused:       sqlutil.FromNullRawMessage(row.Paused),
		UpdatedAt:    row.UpdatedAt,
	}
}
