package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tallyhq/tally/internal/errs"
)

func TestTaskService_CreateAndRename(t *testing.T) {
	f := newFixture()
	s := NewTaskService(f.tasks, f.coordinator)
	ctx := context.Background()

	_, err := s.Create(ctx, f.userID, "   ")
	require.ErrorIs(t, err, errs.ErrValidation)

	task, err := s.Create(ctx, f.userID, "  reading  ")
	require.NoError(t, err)
	require.Equal(t, "reading", task.Name)

	require.NoError(t, s.Rename(ctx, f.userID, task.ID, "books"))
	got, err := s.Get(ctx, f.userID, task.ID)
	require.NoError(t, err)
	require.Equal(t, "books", got.Name)
}

func TestTaskService_HideTerminatesRunningTimer(t *testing.T) {
	f := newFixture()
	s := NewTaskService(f.tasks, f.coordinator)
	task := f.newTask("doomed")
	ctx := context.Background()

	f.now = f.at(10, 0)
	require.NoError(t, f.coordinator.Start(ctx, f.userID, task.ID))

	require.NoError(t, s.Hide(ctx, f.userID, task.ID))

	got, err := s.Get(ctx, f.userID, task.ID)
	require.NoError(t, err)
	require.True(t, got.Hidden)

	_, running := f.registry.Get(f.userID)
	require.False(t, running)
	require.Equal(t, 0, f.events.Count(), "no partial-time salvage")
	require.Equal(t, []string{EvtStarted, EvtDiscarded}, f.hub.events())
}

func TestTaskService_ListFiltersHidden(t *testing.T) {
	f := newFixture()
	s := NewTaskService(f.tasks, f.coordinator)
	ctx := context.Background()

	visible := f.newTask("visible")
	hidden := f.newTask("hidden")
	require.NoError(t, s.Hide(ctx, f.userID, hidden.ID))

	tasks, err := s.List(ctx, f.userID, false)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	require.Equal(t, visible.ID, tasks[0].ID)

	all, err := s.List(ctx, f.userID, true)
	require.NoError(t, err)
	require.Len(t, all, 2)
}
