package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/tallyhq/tally/internal/errs"
	"github.com/tallyhq/tally/internal/model"
	"github.com/tallyhq/tally/internal/repository"
)

// Broadcast message names on the realtime channel. Everything here fans out
// to all of the user's connections; errors are sent only to the originating
// connection by the transport and never appear as a broadcast.
const (
	EvtStarted      = "timer:started"
	EvtStopped      = "timer:stopped"
	EvtStartUpdated = "timer:start-updated"
	EvtState        = "timer:state"
	EvtDiscarded    = "timer:discarded"
)

// StartedPayload announces a freshly started timer.
type StartedPayload struct {
	TaskID    uuid.UUID `json:"taskId"`
	StartTime time.Time `json:"startTime"`
}

// StoppedPayload announces a finalized timer with the server-computed duration.
type StoppedPayload struct {
	TaskID          uuid.UUID `json:"taskId"`
	DurationSeconds int64     `json:"duration"`
}

// StartUpdatedPayload announces a shifted start instant.
type StartUpdatedPayload struct {
	TaskID    uuid.UUID `json:"taskId"`
	StartTime time.Time `json:"startTime"`
}

// StatePayload is the snapshot answer to a state request.
type StatePayload struct {
	TaskID    uuid.UUID `json:"taskId,omitempty"`
	StartTime time.Time `json:"startTime,omitzero"`
	Running   bool      `json:"running"`
}

// DiscardedPayload announces a timer dropped because its task was hidden.
// No event was stored, so clients must not render a finalized interval.
type DiscardedPayload struct {
	TaskID uuid.UUID `json:"taskId"`
}

// Broadcaster fans a message out to every live connection of one user,
// including the connection that originated the action. Implemented by the
// websocket hub.
type Broadcaster interface {
	Broadcast(userID uuid.UUID, event string, payload any)
}

// StopRetryConfig bounds the retry of event persistence during stop(). When
// attempts are exhausted the coordinator still clears the timer and
// broadcasts, trading a possibly lost event for UI liveness.
type StopRetryConfig struct {
	Attempts uint64
	Backoff  time.Duration
}

// TimerCoordinator is the per-user state machine (Idle/Running) behind every
// timer operation. All mutations for one user are serialized on a per-user
// lock; the durable write always precedes the matching broadcast, so every
// device observes effects in commit order.
type TimerCoordinator struct {
	registry  *ActiveTimerRegistry
	validator *OverlapValidator
	events    repository.EventRepository
	tasks     repository.TaskRepository
	hub       Broadcaster
	log       *zap.Logger
	now       func() time.Time
	stopRetry StopRetryConfig

	lockMu    sync.Mutex
	userLocks map[uuid.UUID]*sync.Mutex
}

// NewTimerCoordinator wires the coordinator.
func NewTimerCoordinator(
	registry *ActiveTimerRegistry,
	validator *OverlapValidator,
	events repository.EventRepository,
	tasks repository.TaskRepository,
	hub Broadcaster,
	log *zap.Logger,
	stopRetry StopRetryConfig,
) *TimerCoordinator {
	if stopRetry.Backoff <= 0 {
		stopRetry.Backoff = 100 * time.Millisecond
	}
	return &TimerCoordinator{
		registry:  registry,
		validator: validator,
		events:    events,
		tasks:     tasks,
		hub:       hub,
		log:       log,
		now:       time.Now,
		stopRetry: stopRetry,
		userLocks: make(map[uuid.UUID]*sync.Mutex),
	}
}

// userLock returns the mutex serializing one user's mutations. In a
// multi-instance deployment this is the spot that would need a distributed
// lock or single-writer partitioning.
func (c *TimerCoordinator) userLock(userID uuid.UUID) *sync.Mutex {
	c.lockMu.Lock()
	defer c.lockMu.Unlock()
	mu, ok := c.userLocks[userID]
	if !ok {
		mu = &sync.Mutex{}
		c.userLocks[userID] = mu
	}
	return mu
}

// Start begins tracking taskID for the user. A running timer is finalized
// into an event first, so switching tasks never silently drops elapsed time.
func (c *TimerCoordinator) Start(ctx context.Context, userID, taskID uuid.UUID) error {
	mu := c.userLock(userID)
	mu.Lock()
	defer mu.Unlock()

	task, err := c.tasks.Get(ctx, userID, taskID)
	if err != nil {
		return err
	}
	if task.Hidden {
		return errs.ErrNotFound
	}

	now := c.now()
	if prev, running := c.registry.Get(userID); running {
		if err := c.finalize(ctx, userID, prev, now); err != nil {
			return err
		}
	}

	if err := c.registry.Start(ctx, userID, taskID, now); err != nil {
		return err
	}
	c.hub.Broadcast(userID, EvtStarted, StartedPayload{TaskID: taskID, StartTime: now})
	return nil
}

// Stop finalizes the running timer into an event. The client-reported task
// or duration is advisory only; the server's own start instant is the
// authority. Idempotent: a second stop finds no timer and reports
// errs.ErrNotFound with no side effects.
func (c *TimerCoordinator) Stop(ctx context.Context, userID uuid.UUID) (*model.Event, error) {
	mu := c.userLock(userID)
	mu.Lock()
	defer mu.Unlock()

	prev, running := c.registry.Get(userID)
	if !running {
		return nil, errs.ErrNotFound
	}

	now := c.now()
	ev, err := c.finalizeEvent(ctx, userID, prev, now)
	if err != nil {
		return nil, err
	}

	if _, err := c.registry.Stop(ctx, userID); err != nil && !errors.Is(err, errs.ErrNotFound) {
		return nil, err
	}
	c.hub.Broadcast(userID, EvtStopped, StoppedPayload{
		TaskID:          prev.TaskID,
		DurationSeconds: int64(now.Sub(prev.StartedAt).Seconds()),
	})
	return ev, nil
}

// finalize persists the interval of a timer being replaced by a new start.
func (c *TimerCoordinator) finalize(ctx context.Context, userID uuid.UUID, prev model.ActiveTimer, now time.Time) error {
	if !prev.StartedAt.Before(now) {
		// Zero elapsed time; nothing worth storing.
		c.hub.Broadcast(userID, EvtStopped, StoppedPayload{TaskID: prev.TaskID})
		return nil
	}
	if _, err := c.finalizeEvent(ctx, userID, prev, now); err != nil {
		return err
	}
	c.hub.Broadcast(userID, EvtStopped, StoppedPayload{
		TaskID:          prev.TaskID,
		DurationSeconds: int64(now.Sub(prev.StartedAt).Seconds()),
	})
	return nil
}

// finalizeEvent validates and persists [prev.StartedAt, now) as an event.
// Validation failures return before any mutation. Persistence failures are
// retried with backoff; exhausting the budget logs the lost interval and
// reports success so the timer still clears (recorded trade-off: the UI must
// never stay stuck on a dead timer).
func (c *TimerCoordinator) finalizeEvent(ctx context.Context, userID uuid.UUID, prev model.ActiveTimer, now time.Time) (*model.Event, error) {
	iv := model.Interval{Start: prev.StartedAt, End: now}
	if iv.Duration() <= 0 {
		return nil, errs.ErrInvalidInterval
	}
	// The timer being finalized must not be checked against itself.
	if err := c.validator.Check(ctx, userID, iv, OverlapOptions{IncludeRunningTimer: false}); err != nil {
		return nil, err
	}

	name := ""
	if task, err := c.tasks.Get(ctx, userID, prev.TaskID); err == nil {
		name = task.Name
	}
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	ev := &model.Event{
		ID:      id,
		TaskID:  prev.TaskID,
		UserID:  userID,
		Name:    name,
		StartAt: iv.Start,
		EndAt:   iv.End,
	}

	backoff := retry.WithMaxRetries(c.stopRetry.Attempts, retry.NewExponential(c.stopRetry.Backoff))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if cerr := c.events.Create(ctx, ev); cerr != nil {
			return retry.RetryableError(cerr)
		}
		return nil
	})
	if err != nil {
		c.log.Error("event persistence failed, interval lost",
			zap.String("user_id", userID.String()),
			zap.String("task_id", prev.TaskID.String()),
			zap.Time("start", iv.Start),
			zap.Time("end", iv.End),
			zap.Error(err),
		)
		return nil, nil
	}
	return ev, nil
}

// AdjustStart shifts the running timer's start instant after re-validating
// the shifted interval [newStart, now). Nothing mutates on rejection.
func (c *TimerCoordinator) AdjustStart(ctx context.Context, userID, taskID uuid.UUID, newStart time.Time) error {
	mu := c.userLock(userID)
	mu.Lock()
	defer mu.Unlock()

	cur, running := c.registry.Get(userID)
	if !running {
		return errs.ErrNotFound
	}
	if cur.TaskID != taskID {
		return errs.ErrTaskMismatch
	}
	now := c.now()
	if newStart.After(now) {
		return errs.ErrFutureStart
	}
	if !newStart.Before(now) {
		return errs.ErrInvalidInterval
	}
	shifted := model.Interval{Start: newStart, End: now}
	if err := c.validator.Check(ctx, userID, shifted, OverlapOptions{IncludeRunningTimer: false}); err != nil {
		return err
	}

	if err := c.registry.AdjustStart(ctx, userID, taskID, newStart); err != nil {
		return err
	}
	c.hub.Broadcast(userID, EvtStartUpdated, StartUpdatedPayload{TaskID: taskID, StartTime: newStart})
	return nil
}

// State returns the snapshot for a reconnecting or polling client. Pure
// read; idempotent, callable any number of times.
func (c *TimerCoordinator) State(userID uuid.UUID) StatePayload {
	if t, ok := c.registry.Get(userID); ok {
		return StatePayload{TaskID: t.TaskID, StartTime: t.StartedAt, Running: true}
	}
	return StatePayload{Running: false}
}

// DiscardForTask drops the running timer when its task is hidden. No event
// is created; partial time on a deleted task is intentionally not salvaged.
func (c *TimerCoordinator) DiscardForTask(ctx context.Context, userID, taskID uuid.UUID) error {
	mu := c.userLock(userID)
	mu.Lock()
	defer mu.Unlock()

	cur, running := c.registry.Get(userID)
	if !running || cur.TaskID != taskID {
		return nil
	}
	if _, err := c.registry.Stop(ctx, userID); err != nil && !errors.Is(err, errs.ErrNotFound) {
		return fmt.Errorf("discard timer: %w", err)
	}
	c.hub.Broadcast(userID, EvtDiscarded, DiscardedPayload{TaskID: taskID})
	return nil
}
