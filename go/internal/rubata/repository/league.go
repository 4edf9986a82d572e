// Package repository is the Postgres side of the rubata: league reads and the
// atomic steal commit go through pgx, session snapshots through database/sql.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pietro1412/fantacontratti/go/internal/models"
	"github.com/pietro1412/fantacontratti/go/internal/rubata/coordinator"
	"github.com/pietro1412/fantacontratti/go/internal/rubata/events"
	"github.com/rs/zerolog/log"
)

var (
	_ coordinator.LeagueReader = (*LeagueRepository)(nil)
	_ coordinator.Committer    = (*LeagueRepository)(nil)
)

// Pool is the subset of *pgxpool.Pool used here.
type Pool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

type LeagueRepository struct {
	pool Pool
}

func NewLeagueRepository(pool Pool) *LeagueRepository {
	return &LeagueRepository{pool: pool}
}

const listMembers = `
SELECT id, name, team_budget
FROM league_members
WHERE league_id = $1
ORDER BY created_at, id
`

func (r *LeagueRepository) ListMembers(ctx context.Context, leagueID uuid.UUID) ([]models.Member, error) {
	rows, err := r.pool.Query(ctx, listMembers, leagueID)
	if err != nil {
		return nil, fmt.Errorf("failed to list league members: %w", err)
	}
	members, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Member, error) {
		var m models.Member
		err := row.Scan(&m.ID, &m.Name, &m.TeamBudget)
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan league members: %w", err)
	}
	return members, nil
}

const listRosterContracts = `
SELECT id, member_id, player_id, player_name, salary, duration, clause, acquired_at, acquisition_type
FROM roster_contracts
WHERE league_id = $1
ORDER BY member_id, acquired_at, id
`

func (r *LeagueRepository) ListRosterContracts(ctx context.Context, leagueID uuid.UUID) ([]models.RosterContract, error) {
	rows, err := r.pool.Query(ctx, listRosterContracts, leagueID)
	if err != nil {
		return nil, fmt.Errorf("failed to list roster contracts: %w", err)
	}
	contracts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.RosterContract, error) {
		var (
			c   models.RosterContract
			acq string
		)
		err := row.Scan(&c.ID, &c.MemberID, &c.PlayerID, &c.PlayerName,
			&c.Salary, &c.Duration, &c.Clause, &c.AcquiredAt, &acq)
		c.AcquisitionType = models.AcquisitionType(acq)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan roster contracts: %w", err)
	}
	return contracts, nil
}

const insertSteal = `
INSERT INTO rubata_steals (auction_id, session_id, entry_index, roster_id, player_id, seller_id, winner_id, price, committed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (auction_id) DO NOTHING
`

const debitBudget = `
UPDATE league_members
SET team_budget = team_budget - $2
WHERE id = $1 AND league_id = $3 AND team_budget >= $2
`

const transferContract = `
UPDATE roster_contracts
SET member_id = $2, acquired_at = $4, acquisition_type = $5
WHERE id = $1 AND member_id = $3
`

const insertStealEvent = `
INSERT INTO rubata_outbox (id, session_id, event_type, payload)
VALUES ($1, $2, $3, $4)
`

// CommitSteal transfers the roster, debits the winner and records the steal in
// one transaction, together with its StealCommitted outbox row. A retry of an
// auction that already committed is a no-op.
func (r *LeagueRepository) CommitSteal(ctx context.Context, commit models.StealCommit) (err error) {
	payload, err := stealPayload(commit)
	if err != nil {
		return err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", models.ErrCommit, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	tag, err := tx.Exec(ctx, insertSteal,
		commit.AuctionID, commit.SessionID, commit.EntryIndex, commit.RosterID, commit.PlayerID,
		commit.SellerID, commit.WinnerID, commit.Price, commit.CommittedAt)
	if err != nil {
		return commitError("record steal", err)
	}
	if tag.RowsAffected() == 0 {
		log.Warn().
			Str("session_id", commit.SessionID.String()).
			Str("auction_id", commit.AuctionID.String()).
			Int("entry_index", commit.EntryIndex).
			Msg("steal already committed")
		return tx.Rollback(ctx)
	}

	tag, err = tx.Exec(ctx, debitBudget, commit.WinnerID, commit.Price, commit.LeagueID)
	if err != nil {
		return commitError("debit budget", err)
	}
	if tag.RowsAffected() == 0 {
		err = fmt.Errorf("%w: member %s cannot pay %d", models.ErrInsufficientBudget, commit.WinnerID, commit.Price)
		return err
	}

	tag, err = tx.Exec(ctx, transferContract,
		commit.RosterID, commit.WinnerID, commit.SellerID, commit.CommittedAt, string(models.AcquisitionTypeRubata))
	if err != nil {
		return commitError("transfer contract", err)
	}
	if tag.RowsAffected() == 0 {
		err = fmt.Errorf("%w: roster %s is no longer held by %s", models.ErrOwnershipChanged, commit.RosterID, commit.SellerID)
		return err
	}

	if _, err = tx.Exec(ctx, insertStealEvent, uuid.New(), commit.SessionID, events.TypeStealCommitted, payload); err != nil {
		return commitError("insert outbox event", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return commitError("commit", err)
	}
	return nil
}

func stealPayload(commit models.StealCommit) ([]byte, error) {
	committedAt := commit.CommittedAt
	if committedAt.IsZero() {
		committedAt = time.Now()
	}
	payload, err := json.Marshal(events.StealCommittedPayload{
		SessionID:   commit.SessionID.String(),
		EntryIndex:  commit.EntryIndex,
		RosterID:    commit.RosterID.String(),
		PlayerID:    commit.PlayerID.String(),
		SellerID:    commit.SellerID.String(),
		WinnerID:    commit.WinnerID.String(),
		Price:       commit.Price,
		CommittedAt: committedAt.UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal steal payload: %w", err)
	}
	return payload, nil
}

// commitError wraps err in ErrCommit. Check violations on the budget column
// surface as ErrInsufficientBudget.
func commitError(step string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23514" {
		return fmt.Errorf("%w: %s: %s", models.ErrInsufficientBudget, step, pgErr.Message)
	}
	return fmt.Errorf("%w: %s: %v", models.ErrCommit, step, err)
}
