package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofrs/uuid/v5"

	"github.com/tallyhq/tally/internal/errs"
	"github.com/tallyhq/tally/internal/model"
	"github.com/tallyhq/tally/internal/repository"
)

// TaskService handles task CRUD. Hiding a task also discards any timer
// running against it, through the coordinator so every device hears about it.
type TaskService struct {
	tasks       repository.TaskRepository
	coordinator *TimerCoordinator
}

// NewTaskService constructs the service.
func NewTaskService(tasks repository.TaskRepository, coordinator *TimerCoordinator) *TaskService {
	return &TaskService{tasks: tasks, coordinator: coordinator}
}

// Create adds a new visible task.
func (s *TaskService) Create(ctx context.Context, userID uuid.UUID, name string) (*model.Task, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: empty task name", errs.ErrValidation)
	}
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	t := &model.Task{ID: id, UserID: userID, Name: name}
	if err := s.tasks.Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Rename updates the display name.
func (s *TaskService) Rename(ctx context.Context, userID, taskID uuid.UUID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: empty task name", errs.ErrValidation)
	}
	return s.tasks.Rename(ctx, userID, taskID, name)
}

// Hide soft-deletes the task, then discards its running timer if one exists.
// The hide is durable before the discard so a crash in between is repaired
// by recovery (the orphaned timer row is dropped on next start).
func (s *TaskService) Hide(ctx context.Context, userID, taskID uuid.UUID) error {
	if err := s.tasks.Hide(ctx, userID, taskID); err != nil {
		return err
	}
	if err := s.coordinator.DiscardForTask(ctx, userID, taskID); err != nil {
		return fmt.Errorf("hide task: %w", err)
	}
	return nil
}

// Get returns a single task.
func (s *TaskService) Get(ctx context.Context, userID, taskID uuid.UUID) (*model.Task, error) {
	return s.tasks.Get(ctx, userID, taskID)
}

// List returns the user's tasks.
func (s *TaskService) List(ctx context.Context, userID uuid.UUID, includeHidden bool) ([]model.Task, error) {
	tasks, err := s.tasks.List(ctx, userID, includeHidden)
	if err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	return tasks, nil
}
