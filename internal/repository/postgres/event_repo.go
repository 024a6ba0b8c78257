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

// EventRepo implements EventRepository using PostgreSQL.
type EventRepo struct{ db *DB }

// NewEventRepo constructs an event repository.
func NewEventRepo(db *DB) *EventRepo { return &EventRepo{db: db} }

// Create inserts a new event.
func (r *EventRepo) Create(ctx context.Context, e *model.Event) error {
	const q = `
INSERT INTO events (id, task_id, user_id, name, start_at, end_at)
VALUES ($1,$2,$3,$4,$5,$6)`
	_, err := r.db.Pool.Exec(ctx, q, e.ID, e.TaskID, e.UserID, e.Name, e.StartAt, e.EndAt)
	return err
}

// Get returns a single event by id.
func (r *EventRepo) Get(ctx context.Context, userID, eventID uuid.UUID) (*model.Event, error) {
	const q = `
SELECT id, task_id, user_id, name, start_at, end_at
FROM events WHERE user_id=$1 AND id=$2`
	row := r.db.Pool.QueryRow(ctx, q, userID, eventID)
	var e model.Event
	if err := row.Scan(&e.ID, &e.TaskID, &e.UserID, &e.Name, &e.StartAt, &e.EndAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

// ListStartingBefore returns events with start_at < before, ordered by start_at.
func (r *EventRepo) ListStartingBefore(ctx context.Context, userID uuid.UUID, before time.Time) ([]model.Event, error) {
	const q = `
SELECT id, task_id, user_id, name, start_at, end_at
FROM events
WHERE user_id=$1 AND start_at < $2
ORDER BY start_at ASC`
	return r.list(ctx, q, userID, before)
}

// ListAll returns every event for a user ordered by start_at.
func (r *EventRepo) ListAll(ctx context.Context, userID uuid.UUID) ([]model.Event, error) {
	const q = `
SELECT id, task_id, user_id, name, start_at, end_at
FROM events
WHERE user_id=$1
ORDER BY start_at ASC`
	return r.list(ctx, q, userID)
}

func (r *EventRepo) list(ctx context.Context, q string, args ...any) ([]model.Event, error) {
	rows, err := r.db.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Event
	for rows.Next() {
		var e model.Event
		if err = rows.Scan(&e.ID, &e.TaskID, &e.UserID, &e.Name, &e.StartAt, &e.EndAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListUserIDs returns every distinct event owner.
func (r *EventRepo) ListUserIDs(ctx context.Context) ([]uuid.UUID, error) {
	const q = `SELECT DISTINCT user_id FROM events ORDER BY user_id`
	rows, err := r.db.Pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err = rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// UpdateInterval rewrites an event's name and interval.
func (r *EventRepo) UpdateInterval(ctx context.Context, userID, eventID uuid.UUID, name string, iv model.Interval) error {
	const q = `UPDATE events SET name=$3, start_at=$4, end_at=$5 WHERE user_id=$1 AND id=$2`
	tag, err := r.db.Pool.Exec(ctx, q, userID, eventID, name, iv.Start, iv.End)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// ApplyIntervals rewrites several events' intervals atomically.
func (r *EventRepo) ApplyIntervals(ctx context.Context, userID uuid.UUID, updates []model.Event) error {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const q = `UPDATE events SET name=$3, start_at=$4, end_at=$5 WHERE user_id=$1 AND id=$2`
	for _, e := range updates {
		tag, err := tx.Exec(ctx, q, userID, e.ID, e.Name, e.StartAt, e.EndAt)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return errs.ErrNotFound
		}
	}
	return tx.Commit(ctx)
}

// Delete removes an event permanently.
func (r *EventRepo) Delete(ctx context.Context, userID, eventID uuid.UUID) error {
	const q = `DELETE FROM events WHERE user_id=$1 AND id=$2`
	tag, err := r.db.Pool.Exec(ctx, q, userID, eventID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}
