package repository

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/tallyhq/tally/internal/model"
)

// EventRepository provides access to finalized intervals.
type EventRepository interface {
	// Create inserts a new event.
	Create(ctx context.Context, e *model.Event) error
	// Get loads an event by id scoped to its owner.
	Get(ctx context.Context, userID, eventID uuid.UUID) (*model.Event, error)
	// ListStartingBefore returns the user's events with start_at < before,
	// ordered by start_at. This is the pruned read the overlap check runs on.
	ListStartingBefore(ctx context.Context, userID uuid.UUID, before time.Time) ([]model.Event, error)
	// ListAll returns every event for a user ordered by start_at.
	ListAll(ctx context.Context, userID uuid.UUID) ([]model.Event, error)
	// UpdateInterval rewrites an event's name and interval.
	UpdateInterval(ctx context.Context, userID, eventID uuid.UUID, name string, iv model.Interval) error
	// ApplyIntervals rewrites several events' intervals in one transaction.
	// All updates land or none do.
	ApplyIntervals(ctx context.Context, userID uuid.UUID, updates []model.Event) error
	// Delete removes an event permanently.
	Delete(ctx context.Context, userID, eventID uuid.UUID) error
	// ListUserIDs returns every user that has at least one event. Used by
	// the offline repair job.
	ListUserIDs(ctx context.Context) ([]uuid.UUID, error)
}
