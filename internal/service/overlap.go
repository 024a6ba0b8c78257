// Package service contains the timer coordination services: overlap
// validation, the active-timer registry, startup recovery, and the
// coordinator state machine that ties them to the connection hub.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/tallyhq/tally/internal/errs"
	"github.com/tallyhq/tally/internal/model"
	"github.com/tallyhq/tally/internal/repository"
)

// timerSource is the read side of the registry the validator consults when
// a candidate interval must also be checked against the running timer.
type timerSource interface {
	Get(userID uuid.UUID) (model.ActiveTimer, bool)
}

// OverlapOptions tune a single overlap check.
type OverlapOptions struct {
	// ExcludeEventID skips one stored event, used when updating that event.
	ExcludeEventID uuid.UUID
	// IncludeRunningTimer also tests the candidate against [started_at, now)
	// of the user's running timer, if any.
	IncludeRunningTimer bool
}

// OverlapValidator decides whether a candidate interval would overlap any of
// the user's stored events, and optionally the running timer. It only reads;
// it is safe for concurrent use. Both the socket path and the REST path run
// through this one routine so the invariant cannot diverge between them.
type OverlapValidator struct {
	events repository.EventRepository
	tasks  repository.TaskRepository
	timers timerSource
	now    func() time.Time
}

// NewOverlapValidator constructs a validator over the given repositories.
func NewOverlapValidator(events repository.EventRepository, tasks repository.TaskRepository, timers timerSource) *OverlapValidator {
	return &OverlapValidator{events: events, tasks: tasks, timers: timers, now: time.Now}
}

// Check returns nil when the candidate conflicts with nothing, or an
// *errs.OverlapError describing the first conflict found in storage order.
// Callers must have rejected start >= end already; which conflict is
// reported when several exist is unspecified.
func (v *OverlapValidator) Check(ctx context.Context, userID uuid.UUID, candidate model.Interval, opts OverlapOptions) error {
	stored, err := v.events.ListStartingBefore(ctx, userID, candidate.End)
	if err != nil {
		return fmt.Errorf("overlap check: %w", err)
	}
	for _, ev := range stored {
		if opts.ExcludeEventID != uuid.Nil && ev.ID == opts.ExcludeEventID {
			continue
		}
		if ev.Interval().Overlaps(candidate) {
			return v.conflict(ctx, userID, ev.TaskID, ev.Name, ev.Interval())
		}
	}

	if opts.IncludeRunningTimer {
		if t, ok := v.timers.Get(userID); ok {
			running := model.Interval{Start: t.StartedAt, End: v.now()}
			if running.Overlaps(candidate) {
				return v.conflict(ctx, userID, t.TaskID, "", running)
			}
		}
	}
	return nil
}

// conflict builds an OverlapError, resolving the task name best-effort.
func (v *OverlapValidator) conflict(ctx context.Context, userID, taskID uuid.UUID, eventName string, iv model.Interval) error {
	taskName := taskID.String()
	if t, err := v.tasks.Get(ctx, userID, taskID); err == nil {
		taskName = t.Name
	}
	return &errs.OverlapError{
		TaskName:  taskName,
		EventName: eventName,
		Start:     iv.Start,
		End:       iv.End,
	}
}
