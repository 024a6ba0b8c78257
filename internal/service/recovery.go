package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/tallyhq/tally/internal/errs"
	"github.com/tallyhq/tally/internal/model"
	"github.com/tallyhq/tally/internal/repository"
)

// RecoveryLoader rebuilds active-timer state from durable storage at process
// start. Timers whose task has been hidden (or no longer exists) are
// orphans: their rows are deleted and they are not loaded. Runs exactly once
// before any connection is accepted; not safe against concurrent mutation.
type RecoveryLoader struct {
	timers repository.TimerRepository
	tasks  repository.TaskRepository
	log    *zap.Logger
}

// NewRecoveryLoader constructs a loader over the given repositories.
func NewRecoveryLoader(timers repository.TimerRepository, tasks repository.TaskRepository, log *zap.Logger) *RecoveryLoader {
	return &RecoveryLoader{timers: timers, tasks: tasks, log: log}
}

// Load returns the timers that survive recovery, with orphan rows repaired
// (deleted) in storage. Feed the result to ActiveTimerRegistry.Prime.
func (l *RecoveryLoader) Load(ctx context.Context) ([]model.ActiveTimer, error) {
	rows, err := l.timers.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("recovery: list timers: %w", err)
	}

	var alive []model.ActiveTimer
	for _, t := range rows {
		task, err := l.tasks.Get(ctx, t.UserID, t.TaskID)
		switch {
		case errors.Is(err, errs.ErrNotFound) || (err == nil && task.Hidden):
			if derr := l.timers.Delete(ctx, t.UserID); derr != nil && !errors.Is(derr, errs.ErrNotFound) {
				return nil, fmt.Errorf("recovery: delete orphan timer: %w", derr)
			}
			l.log.Info("discarded orphaned timer",
				zap.String("user_id", t.UserID.String()),
				zap.String("task_id", t.TaskID.String()),
			)
		case err != nil:
			return nil, fmt.Errorf("recovery: load task: %w", err)
		default:
			alive = append(alive, t)
		}
	}

	l.log.Info("recovered active timers",
		zap.Int("loaded", len(alive)),
		zap.Int("discarded", len(rows)-len(alive)),
	)
	return alive, nil
}
