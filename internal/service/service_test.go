package service

import (
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/tallyhq/tally/internal/model"
	"github.com/tallyhq/tally/internal/testutil"
)

// fakeHub records broadcasts in order.
type fakeHub struct {
	mu   sync.Mutex
	msgs []recordedMsg
}

type recordedMsg struct {
	userID  uuid.UUID
	event   string
	payload any
}

func (h *fakeHub) Broadcast(userID uuid.UUID, event string, payload any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.msgs = append(h.msgs, recordedMsg{userID: userID, event: event, payload: payload})
}

func (h *fakeHub) events() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.msgs))
	for i, m := range h.msgs {
		out[i] = m.event
	}
	return out
}

// fixture wires the full service stack over in-memory repos with a
// controllable clock.
type fixture struct {
	userID uuid.UUID
	tasks  *testutil.MemTaskRepo
	events *testutil.MemEventRepo
	timers *testutil.MemTimerRepo

	registry    *ActiveTimerRegistry
	validator   *OverlapValidator
	coordinator *TimerCoordinator
	hub         *fakeHub

	now time.Time
}

func newFixture() *fixture {
	f := &fixture{
		userID: uuid.Must(uuid.NewV4()),
		tasks:  testutil.NewMemTaskRepo(),
		events: testutil.NewMemEventRepo(),
		timers: testutil.NewMemTimerRepo(),
		hub:    &fakeHub{},
		now:    time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return f.now }

	f.registry = NewActiveTimerRegistry(f.timers)
	f.registry.now = clock
	f.validator = NewOverlapValidator(f.events, f.tasks, f.registry)
	f.validator.now = clock
	f.coordinator = NewTimerCoordinator(
		f.registry, f.validator, f.events, f.tasks, f.hub, zap.NewNop(),
		StopRetryConfig{Attempts: 2, Backoff: time.Millisecond},
	)
	f.coordinator.now = clock
	return f
}

// at is shorthand for a clock instant on the fixture's day.
func (f *fixture) at(hour, minute int) time.Time {
	return time.Date(2024, 3, 1, hour, minute, 0, 0, time.UTC)
}

func (f *fixture) newTask(name string) model.Task {
	t := model.Task{ID: uuid.Must(uuid.NewV4()), UserID: f.userID, Name: name}
	f.tasks.Seed(t)
	return t
}

func (f *fixture) seedEvent(task model.Task, start, end time.Time) model.Event {
	e := model.Event{
		ID:      uuid.Must(uuid.NewV4()),
		TaskID:  task.ID,
		UserID:  f.userID,
		Name:    task.Name,
		StartAt: start,
		EndAt:   end,
	}
	f.events.Seed(e)
	return e
}
