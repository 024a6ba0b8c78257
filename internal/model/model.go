// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// Interval is a half-open time range [Start, End) of work on a task.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Duration returns End - Start.
func (iv Interval) Duration() time.Duration { return iv.End.Sub(iv.Start) }

// Overlaps reports whether two half-open intervals overlap.
// Adjacent intervals (end == start) do not overlap.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && other.Start.Before(iv.End)
}

// Task is a named bucket that intervals are tracked against. Tasks are never
// hard-deleted; removing one sets Hidden, which preserves its event history.
type Task struct {
	ID        uuid.UUID // PK
	UserID    uuid.UUID
	Name      string
	Hidden    bool
	CreatedAt time.Time
}

// Event is a finalized, persisted interval. Events survive the hiding of
// their task.
type Event struct {
	ID      uuid.UUID // PK
	TaskID  uuid.UUID // FK -> tasks.id
	UserID  uuid.UUID // denormalized owner, keeps overlap scans join-free
	Name    string
	StartAt time.Time
	EndAt   time.Time
}

// Interval returns the event's time range.
func (e Event) Interval() Interval { return Interval{Start: e.StartAt, End: e.EndAt} }

// ActiveTimer is the one running, not-yet-finalized interval for a user.
// user_id is the primary key in storage, so at most one row can exist per
// user no matter how many devices race.
type ActiveTimer struct {
	UserID    uuid.UUID // PK
	TaskID    uuid.UUID
	StartedAt time.Time
}
