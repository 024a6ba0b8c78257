package repository

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/tallyhq/tally/internal/model"
)

// TimerRepository is the durable side of the active-timer registry. The
// user_id primary key makes the upsert the serialization point for devices
// racing to start timers.
type TimerRepository interface {
	// Upsert creates or replaces the user's timer row.
	Upsert(ctx context.Context, t *model.ActiveTimer) error
	// Get loads the user's timer row, errs.ErrNotFound if absent.
	Get(ctx context.Context, userID uuid.UUID) (*model.ActiveTimer, error)
	// UpdateStart rewrites started_at; errs.ErrNotFound if absent.
	UpdateStart(ctx context.Context, userID uuid.UUID, startedAt time.Time) error
	// Delete removes the row. Deleting an absent row returns errs.ErrNotFound.
	Delete(ctx context.Context, userID uuid.UUID) error
	// ListAll returns every timer row. Used only by recovery at startup.
	ListAll(ctx context.Context) ([]model.ActiveTimer, error)
}
