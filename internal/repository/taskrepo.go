// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/tallyhq/tally/internal/model"
)

// TaskRepository provides access to tasks. Tasks are soft-deleted only.
type TaskRepository interface {
	// Create inserts a new task.
	Create(ctx context.Context, t *model.Task) error
	// Get loads a task by id scoped to its owner.
	Get(ctx context.Context, userID, taskID uuid.UUID) (*model.Task, error)
	// List returns the user's tasks; hidden ones only when includeHidden is set.
	List(ctx context.Context, userID uuid.UUID, includeHidden bool) ([]model.Task, error)
	// Rename updates the display name.
	Rename(ctx context.Context, userID, taskID uuid.UUID, name string) error
	// Hide soft-deletes the task. Events are untouched.
	Hide(ctx context.Context, userID, taskID uuid.UUID) error
}
