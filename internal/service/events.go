package service

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/tallyhq/tally/internal/errs"
	"github.com/tallyhq/tally/internal/model"
	"github.com/tallyhq/tally/internal/repository"
)

// EventService handles direct event CRUD. Create and Update run through the
// same OverlapValidator as timer finalization, so the REST path and the
// socket path enforce one invariant, not two drifting copies.
type EventService struct {
	events    repository.EventRepository
	tasks     repository.TaskRepository
	validator *OverlapValidator
	now       func() time.Time
}

// NewEventService constructs the service.
func NewEventService(events repository.EventRepository, tasks repository.TaskRepository, validator *OverlapValidator) *EventService {
	return &EventService{events: events, tasks: tasks, validator: validator, now: time.Now}
}

// checkInterval requires end > start and end <= now.
func (s *EventService) checkInterval(iv model.Interval) error {
	if !iv.End.After(iv.Start) {
		return errs.ErrInvalidInterval
	}
	if iv.End.After(s.now()) {
		return errs.ErrFutureEnd
	}
	return nil
}

// Create validates and stores a new event for a visible task.
func (s *EventService) Create(ctx context.Context, userID, taskID uuid.UUID, name string, iv model.Interval) (*model.Event, error) {
	task, err := s.tasks.Get(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}
	if task.Hidden {
		return nil, errs.ErrNotFound
	}
	if err := s.checkInterval(iv); err != nil {
		return nil, err
	}
	if err := s.validator.Check(ctx, userID, iv, OverlapOptions{IncludeRunningTimer: true}); err != nil {
		return nil, err
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = task.Name
	}
	ev := &model.Event{ID: id, TaskID: taskID, UserID: userID, Name: name, StartAt: iv.Start, EndAt: iv.End}
	if err := s.events.Create(ctx, ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// Update rewrites an event's name and interval, excluding the event itself
// from the overlap check.
func (s *EventService) Update(ctx context.Context, userID, eventID uuid.UUID, name string, iv model.Interval) (*model.Event, error) {
	cur, err := s.events.Get(ctx, userID, eventID)
	if err != nil {
		return nil, err
	}
	if err := s.checkInterval(iv); err != nil {
		return nil, err
	}
	opts := OverlapOptions{ExcludeEventID: eventID, IncludeRunningTimer: true}
	if err := s.validator.Check(ctx, userID, iv, opts); err != nil {
		return nil, err
	}

	if name == "" {
		name = cur.Name
	}
	if err := s.events.UpdateInterval(ctx, userID, eventID, name, iv); err != nil {
		return nil, err
	}
	cur.Name, cur.StartAt, cur.EndAt = name, iv.Start, iv.End
	return cur, nil
}

// Delete removes an event permanently.
func (s *EventService) Delete(ctx context.Context, userID, eventID uuid.UUID) error {
	return s.events.Delete(ctx, userID, eventID)
}

// Get returns a single event.
func (s *EventService) Get(ctx context.Context, userID, eventID uuid.UUID) (*model.Event, error) {
	return s.events.Get(ctx, userID, eventID)
}

// List returns all of the user's events ordered by start.
func (s *EventService) List(ctx context.Context, userID uuid.UUID) ([]model.Event, error) {
	return s.events.ListAll(ctx, userID)
}
