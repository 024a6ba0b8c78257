package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/tallyhq/tally/internal/errs"
	"github.com/tallyhq/tally/internal/model"
)

// TimerRepo implements TimerRepository using PostgreSQL. The user_id primary
// key plus ON CONFLICT upsert is what serializes concurrent starts from
// multiple devices.
type TimerRepo struct{ db *DB }

// NewTimerRepo constructs a timer repository.
func NewTimerRepo(db *DB) *TimerRepo { return &TimerRepo{db: db} }

// Upsert creates or replaces the user's timer row.
func (r *TimerRepo) Upsert(ctx context.Context, t *model.ActiveTimer) error {
	const q = `
INSERT INTO active_timers (user_id, task_id, started_at)
VALUES ($1,$2,$3)
ON CONFLICT (user_id)
DO UPDATE SET task_id=EXCLUDED.task_id, started_at=EXCLUDED.started_at`
	_, err := r.db.Pool.Exec(ctx, q, t.UserID, t.TaskID, t.StartedAt)
	return err
}

// Get loads the user's timer row.
func (r *TimerRepo) Get(ctx context.Context, userID uuid.UUID) (*model.ActiveTimer, error) {
	const q = `SELECT user_id, task_id, started_at FROM active_timers WHERE user_id=$1`
	row := r.db.Pool.QueryRow(ctx, q, userID)
	var t model.ActiveTimer
	if err := row.Scan(&t.UserID, &t.TaskID, &t.StartedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// UpdateStart rewrites started_at.
func (r *TimerRepo) UpdateStart(ctx context.Context, userID uuid.UUID, startedAt time.Time) error {
	const q = `UPDATE active_timers SET started_at=$2 WHERE user_id=$1`
	tag, err := r.db.Pool.Exec(ctx, q, userID, startedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// Delete removes the row; absent rows report errs.ErrNotFound so stop() can
// be idempotent at the service layer.
func (r *TimerRepo) Delete(ctx context.Context, userID uuid.UUID) error {
	const q = `DELETE FROM active_timers WHERE user_id=$1`
	tag, err := r.db.Pool.Exec(ctx, q, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// ListAll returns every timer row for startup recovery.
func (r *TimerRepo) ListAll(ctx context.Context) ([]model.ActiveTimer, error) {
	const q = `SELECT user_id, task_id, started_at FROM active_timers ORDER BY user_id`
	rows, err := r.db.Pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ActiveTimer
	for rows.Next() {
		var t model.ActiveTimer
		if err = rows.Scan(&t.UserID, &t.TaskID, &t.StartedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
