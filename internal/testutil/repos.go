// Package testutil provides in-memory repository implementations for tests.
// Failure injection fields let tests exercise durable-write error paths.
package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/tallyhq/tally/internal/errs"
	"github.com/tallyhq/tally/internal/model"
)

// MemTaskRepo is an in-memory TaskRepository.
type MemTaskRepo struct {
	mu    sync.Mutex
	Tasks map[uuid.UUID]model.Task
}

// NewMemTaskRepo returns an empty repo.
func NewMemTaskRepo() *MemTaskRepo {
	return &MemTaskRepo{Tasks: make(map[uuid.UUID]model.Task)}
}

// Seed inserts a task directly.
func (r *MemTaskRepo) Seed(t model.Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Tasks[t.ID] = t
}

func (r *MemTaskRepo) Create(_ context.Context, t *model.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Tasks[t.ID] = *t
	return nil
}

func (r *MemTaskRepo) Get(_ context.Context, userID, taskID uuid.UUID) (*model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.Tasks[taskID]
	if !ok || t.UserID != userID {
		return nil, errs.ErrNotFound
	}
	out := t
	return &out, nil
}

func (r *MemTaskRepo) List(_ context.Context, userID uuid.UUID, includeHidden bool) ([]model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Task
	for _, t := range r.Tasks {
		if t.UserID == userID && (includeHidden || !t.Hidden) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *MemTaskRepo) Rename(_ context.Context, userID, taskID uuid.UUID, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.Tasks[taskID]
	if !ok || t.UserID != userID {
		return errs.ErrNotFound
	}
	t.Name = name
	r.Tasks[taskID] = t
	return nil
}

func (r *MemTaskRepo) Hide(_ context.Context, userID, taskID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.Tasks[taskID]
	if !ok || t.UserID != userID {
		return errs.ErrNotFound
	}
	t.Hidden = true
	r.Tasks[taskID] = t
	return nil
}

// MemEventRepo is an in-memory EventRepository. Set CreateErr to make Create
// fail, for exercising the stop-persist retry path.
type MemEventRepo struct {
	mu        sync.Mutex
	Events    map[uuid.UUID]model.Event
	CreateErr error
}

// NewMemEventRepo returns an empty repo.
func NewMemEventRepo() *MemEventRepo {
	return &MemEventRepo{Events: make(map[uuid.UUID]model.Event)}
}

// Seed inserts an event directly.
func (r *MemEventRepo) Seed(e model.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events[e.ID] = e
}

func (r *MemEventRepo) Create(_ context.Context, e *model.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.CreateErr != nil {
		return r.CreateErr
	}
	r.Events[e.ID] = *e
	return nil
}

func (r *MemEventRepo) Get(_ context.Context, userID, eventID uuid.UUID) (*model.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.Events[eventID]
	if !ok || e.UserID != userID {
		return nil, errs.ErrNotFound
	}
	out := e
	return &out, nil
}

func (r *MemEventRepo) ListStartingBefore(_ context.Context, userID uuid.UUID, before time.Time) ([]model.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Event
	for _, e := range r.Events {
		if e.UserID == userID && e.StartAt.Before(before) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartAt.Before(out[j].StartAt) })
	return out, nil
}

func (r *MemEventRepo) ListAll(_ context.Context, userID uuid.UUID) ([]model.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Event
	for _, e := range r.Events {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartAt.Before(out[j].StartAt) })
	return out, nil
}

func (r *MemEventRepo) UpdateInterval(_ context.Context, userID, eventID uuid.UUID, name string, iv model.Interval) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.Events[eventID]
	if !ok || e.UserID != userID {
		return errs.ErrNotFound
	}
	e.Name, e.StartAt, e.EndAt = name, iv.Start, iv.End
	r.Events[eventID] = e
	return nil
}

func (r *MemEventRepo) ApplyIntervals(_ context.Context, userID uuid.UUID, updates []model.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	// All-or-nothing: verify every target exists before touching any.
	for _, u := range updates {
		e, ok := r.Events[u.ID]
		if !ok || e.UserID != userID {
			return errs.ErrNotFound
		}
	}
	for _, u := range updates {
		e := r.Events[u.ID]
		e.Name, e.StartAt, e.EndAt = u.Name, u.StartAt, u.EndAt
		r.Events[u.ID] = e
	}
	return nil
}

func (r *MemEventRepo) Delete(_ context.Context, userID, eventID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.Events[eventID]
	if !ok || e.UserID != userID {
		return errs.ErrNotFound
	}
	delete(r.Events, eventID)
	return nil
}

func (r *MemEventRepo) ListUserIDs(_ context.Context) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[uuid.UUID]struct{})
	var out []uuid.UUID
	for _, e := range r.Events {
		if _, ok := seen[e.UserID]; !ok {
			seen[e.UserID] = struct{}{}
			out = append(out, e.UserID)
		}
	}
	return out, nil
}

// Count returns the number of stored events.
func (r *MemEventRepo) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Events)
}

// MemTimerRepo is an in-memory TimerRepository. The error fields inject
// durable-write failures.
type MemTimerRepo struct {
	mu        sync.Mutex
	Timers    map[uuid.UUID]model.ActiveTimer
	UpsertErr error
	UpdateErr error
	DeleteErr error
}

// NewMemTimerRepo returns an empty repo.
func NewMemTimerRepo() *MemTimerRepo {
	return &MemTimerRepo{Timers: make(map[uuid.UUID]model.ActiveTimer)}
}

// Seed inserts a timer row directly.
func (r *MemTimerRepo) Seed(t model.ActiveTimer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Timers[t.UserID] = t
}

func (r *MemTimerRepo) Upsert(_ context.Context, t *model.ActiveTimer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.UpsertErr != nil {
		return r.UpsertErr
	}
	r.Timers[t.UserID] = *t
	return nil
}

func (r *MemTimerRepo) Get(_ context.Context, userID uuid.UUID) (*model.ActiveTimer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.Timers[userID]
	if !ok {
		return nil, errs.ErrNotFound
	}
	out := t
	return &out, nil
}

func (r *MemTimerRepo) UpdateStart(_ context.Context, userID uuid.UUID, startedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.UpdateErr != nil {
		return r.UpdateErr
	}
	t, ok := r.Timers[userID]
	if !ok {
		return errs.ErrNotFound
	}
	t.StartedAt = startedAt
	r.Timers[userID] = t
	return nil
}

func (r *MemTimerRepo) Delete(_ context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.DeleteErr != nil {
		return r.DeleteErr
	}
	if _, ok := r.Timers[userID]; !ok {
		return errs.ErrNotFound
	}
	delete(r.Timers, userID)
	return nil
}

func (r *MemTimerRepo) ListAll(_ context.Context) ([]model.ActiveTimer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.ActiveTimer
	for _, t := range r.Timers {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UserID.String() < out[j].UserID.String()
	})
	return out, nil
}

// Has reports whether a timer row exists for the user.
func (r *MemTimerRepo) Has(userID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.Timers[userID]
	return ok
}
