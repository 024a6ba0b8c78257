package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/tallyhq/tally/internal/errs"
	"github.com/tallyhq/tally/internal/model"
	"github.com/tallyhq/tally/internal/repository"
)

// ActiveTimerRegistry tracks the one running timer per user. The in-memory
// map is a cache of the active_timers table, never primary state: every
// mutation writes durable storage first and touches memory only after the
// write committed. A failed durable write leaves memory unchanged, so the
// map is always re-derivable from storage (see RecoveryLoader).
type ActiveTimerRegistry struct {
	repo repository.TimerRepository
	now  func() time.Time

	mu     sync.RWMutex
	timers map[uuid.UUID]model.ActiveTimer
}

// NewActiveTimerRegistry constructs an empty registry. Call Prime with the
// output of RecoveryLoader before serving traffic.
func NewActiveTimerRegistry(repo repository.TimerRepository) *ActiveTimerRegistry {
	return &ActiveTimerRegistry{
		repo:   repo,
		now:    time.Now,
		timers: make(map[uuid.UUID]model.ActiveTimer),
	}
}

// Prime replaces the in-memory map with recovered state. Runs before any
// connection is accepted; not safe against concurrent mutation.
func (r *ActiveTimerRegistry) Prime(timers []model.ActiveTimer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timers = make(map[uuid.UUID]model.ActiveTimer, len(timers))
	for _, t := range timers {
		r.timers[t.UserID] = t
	}
}

// Start creates or replaces the user's timer. The durable upsert keyed on
// user_id is the serialization point for devices racing to start; the caller
// is responsible for finalizing any prior timer first.
func (r *ActiveTimerRegistry) Start(ctx context.Context, userID, taskID uuid.UUID, startedAt time.Time) error {
	t := model.ActiveTimer{UserID: userID, TaskID: taskID, StartedAt: startedAt}
	if err := r.repo.Upsert(ctx, &t); err != nil {
		return fmt.Errorf("start timer: %w", err)
	}
	r.mu.Lock()
	r.timers[userID] = t
	r.mu.Unlock()
	return nil
}

// Stop removes the user's timer and returns what was running. Duplicate stop
// signals arrive on reconnect races, so an absent timer is a no-op reporting
// errs.ErrNotFound.
func (r *ActiveTimerRegistry) Stop(ctx context.Context, userID uuid.UUID) (*model.ActiveTimer, error) {
	r.mu.RLock()
	prev, ok := r.timers[userID]
	r.mu.RUnlock()

	err := r.repo.Delete(ctx, userID)
	switch {
	case err == nil:
	case errors.Is(err, errs.ErrNotFound):
		// Row already gone (duplicate stop); clear any stale memory entry.
		ok = false
	default:
		return nil, fmt.Errorf("stop timer: %w", err)
	}

	r.mu.Lock()
	delete(r.timers, userID)
	r.mu.Unlock()

	if !ok {
		return nil, errs.ErrNotFound
	}
	return &prev, nil
}

// AdjustStart moves the running timer's start instant. taskID is the
// caller's belief about which task is running; a mismatch means another
// device switched tasks underneath it.
func (r *ActiveTimerRegistry) AdjustStart(ctx context.Context, userID, taskID uuid.UUID, newStart time.Time) error {
	r.mu.RLock()
	cur, ok := r.timers[userID]
	r.mu.RUnlock()

	if !ok {
		return errs.ErrNotFound
	}
	if cur.TaskID != taskID {
		return errs.ErrTaskMismatch
	}
	if newStart.After(r.now()) {
		return errs.ErrFutureStart
	}

	if err := r.repo.UpdateStart(ctx, userID, newStart); err != nil {
		return fmt.Errorf("adjust start: %w", err)
	}

	r.mu.Lock()
	cur.StartedAt = newStart
	r.timers[userID] = cur
	r.mu.Unlock()
	return nil
}

// Get returns the user's running timer from memory.
func (r *ActiveTimerRegistry) Get(userID uuid.UUID) (model.ActiveTimer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.timers[userID]
	return t, ok
}
