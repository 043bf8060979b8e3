package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"premium-activation/internal/domain"
	"premium-activation/internal/domain/model"
	"premium-activation/internal/domain/ports/repository"
)

var _ repository.ActivationAttemptRepository = (*attemptRepo)(nil)

// Schema is the DDL of the attempt ledger. At most one pending attempt per account.
const Schema = `
CREATE TABLE IF NOT EXISTS activation_attempts (
  id           TEXT PRIMARY KEY,
  user_id      TEXT NOT NULL,
  session_id   TEXT NULL,
  started_at   TIMESTAMPTZ NOT NULL,
  finished_at  TIMESTAMPTZ NULL,
  outcome      TEXT NOT NULL DEFAULT 'pending',
  error_detail TEXT NULL
);
CREATE INDEX IF NOT EXISTS idx_activation_attempts_user ON activation_attempts (user_id, started_at DESC);
CREATE UNIQUE INDEX IF NOT EXISTS uq_activation_attempts_pending ON activation_attempts (user_id) WHERE outcome = 'pending';`

type attemptRepo struct{ pool *pgxpool.Pool }

func NewActivationAttemptRepo(pool *pgxpool.Pool) *attemptRepo {
	return &attemptRepo{pool: pool}
}

// EnsureSchema creates the ledger table when it does not exist yet.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, Schema)
	return err
}

const attemptColumns = `id, user_id, session_id, started_at, finished_at, outcome, error_detail`

func (r *attemptRepo) Save(ctx context.Context, tx repository.Tx, a *model.ActivationAttempt) error {
	if a == nil || a.ID == "" || a.UserID == "" {
		return domain.ErrInvalidArgument
	}
	const q = `
INSERT INTO activation_attempts (` + attemptColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (id) DO UPDATE SET
  session_id=$3, finished_at=$5, outcome=$6, error_detail=$7;`
	_, err := execSQL(ctx, r.pool, tx, q, a.ID, a.UserID, a.SessionID, a.StartedAt, a.FinishedAt, string(a.Outcome), a.ErrorDetail)
	return err
}

func (r *attemptRepo) Finish(ctx context.Context, tx repository.Tx, a *model.ActivationAttempt) error {
	if a == nil || a.ID == "" {
		return domain.ErrInvalidArgument
	}
	const q = `
UPDATE activation_attempts SET finished_at=$2, outcome=$3, error_detail=$4
WHERE id=$1 AND outcome='pending';`
	_, err := execSQL(ctx, r.pool, tx, q, a.ID, a.FinishedAt, string(a.Outcome), a.ErrorDetail)
	return err
}

func (r *attemptRepo) FindPendingByUser(ctx context.Context, tx repository.Tx, userID string) (*model.ActivationAttempt, error) {
	q := `SELECT ` + attemptColumns + ` FROM activation_attempts WHERE user_id=$1 AND outcome='pending'`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q, userID)
	if err != nil {
		return nil, err
	}
	a, err := scanAttempt(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

func (r *attemptRepo) FailPendingByUser(ctx context.Context, tx repository.Tx, userID, detail string, now time.Time) (int, error) {
	const q = `
UPDATE activation_attempts SET finished_at=$2, outcome='failed', error_detail=$3
WHERE user_id=$1 AND outcome='pending';`
	tag, err := execSQL(ctx, r.pool, tx, q, userID, now, detail)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *attemptRepo) FailPendingOlderThan(ctx context.Context, tx repository.Tx, cutoff time.Time, detail string, now time.Time) (int, error) {
	const q = `
UPDATE activation_attempts SET finished_at=$2, outcome='failed', error_detail=$3
WHERE outcome='pending' AND started_at < $1;`
	tag, err := execSQL(ctx, r.pool, tx, q, cutoff, now, detail)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *attemptRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string, limit int) ([]*model.ActivationAttempt, error) {
	const q = `SELECT ` + attemptColumns + ` FROM activation_attempts WHERE user_id=$1 ORDER BY started_at DESC LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.ActivationAttempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanAttempt(row pgx.Row) (*model.ActivationAttempt, error) {
	a := &model.ActivationAttempt{}
	var outcome string
	if err := row.Scan(&a.ID, &a.UserID, &a.SessionID, &a.StartedAt, &a.FinishedAt, &outcome, &a.ErrorDetail); err != nil {
		return nil, err
	}
	a.Outcome = model.AttemptOutcome(outcome)
	return a, nil
}
