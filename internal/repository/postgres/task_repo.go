package postgres

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/tallyhq/tally/internal/errs"
	"github.com/tallyhq/tally/internal/model"
)

// TaskRepo implements TaskRepository using PostgreSQL.
type TaskRepo struct{ db *DB }

// NewTaskRepo constructs a task repository.
func NewTaskRepo(db *DB) *TaskRepo { return &TaskRepo{db: db} }

// Create inserts a new task.
func (r *TaskRepo) Create(ctx context.Context, t *model.Task) error {
	const q = `INSERT INTO tasks (id, user_id, name, hidden) VALUES ($1,$2,$3,$4)`
	_, err := r.db.Pool.Exec(ctx, q, t.ID, t.UserID, t.Name, t.Hidden)
	return err
}

// Get returns a single task by id.
func (r *TaskRepo) Get(ctx context.Context, userID, taskID uuid.UUID) (*model.Task, error) {
	const q = `
SELECT id, user_id, name, hidden, created_at
FROM tasks WHERE user_id=$1 AND id=$2`
	row := r.db.Pool.QueryRow(ctx, q, userID, taskID)
	var t model.Task
	if err := row.Scan(&t.ID, &t.UserID, &t.Name, &t.Hidden, &t.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// List returns the user's tasks ordered by creation time.
func (r *TaskRepo) List(ctx context.Context, userID uuid.UUID, includeHidden bool) ([]model.Task, error) {
	const q = `
SELECT id, user_id, name, hidden, created_at
FROM tasks
WHERE user_id=$1 AND (hidden=false OR $2)
ORDER BY created_at ASC`
	rows, err := r.db.Pool.Query(ctx, q, userID, includeHidden)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Task
	for rows.Next() {
		var t model.Task
		if err = rows.Scan(&t.ID, &t.UserID, &t.Name, &t.Hidden, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Rename updates the display name.
func (r *TaskRepo) Rename(ctx context.Context, userID, taskID uuid.UUID, name string) error {
	const q = `UPDATE tasks SET name=$3 WHERE user_id=$1 AND id=$2`
	tag, err := r.db.Pool.Exec(ctx, q, userID, taskID, name)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// Hide soft-deletes a task. Idempotent: hiding a hidden task succeeds.
func (r *TaskRepo) Hide(ctx context.Context, userID, taskID uuid.UUID) error {
	const q = `UPDATE tasks SET hidden=true WHERE user_id=$1 AND id=$2`
	tag, err := r.db.Pool.Exec(ctx, q, userID, taskID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}
