package service

import (
	"context"
	"testing"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tallyhq/tally/internal/model"
)

func TestRecovery_LoadsLiveTimers(t *testing.T) {
	f := newFixture()
	task := f.newTask("reading")
	f.timers.Seed(model.ActiveTimer{UserID: f.userID, TaskID: task.ID, StartedAt: f.at(9, 0)})

	loader := NewRecoveryLoader(f.timers, f.tasks, zap.NewNop())
	loaded, err := loader.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	require.Equal(t, task.ID, loaded[0].TaskID)
	require.Equal(t, f.at(9, 0), loaded[0].StartedAt, "elapsed time survives restart")
}

func TestRecovery_DiscardsOrphans(t *testing.T) {
	f := newFixture()

	hidden := f.newTask("gone")
	require.NoError(t, f.tasks.Hide(context.Background(), f.userID, hidden.ID))
	f.timers.Seed(model.ActiveTimer{UserID: f.userID, TaskID: hidden.ID, StartedAt: f.at(9, 0)})

	// A timer pointing at a task that no longer exists at all.
	ghostUser := uuid.Must(uuid.NewV4())
	f.timers.Seed(model.ActiveTimer{UserID: ghostUser, TaskID: uuid.Must(uuid.NewV4()), StartedAt: f.at(9, 0)})

	loader := NewRecoveryLoader(f.timers, f.tasks, zap.NewNop())
	loaded, err := loader.Load(context.Background())
	require.NoError(t, err)
	require.Empty(t, loaded)

	// Storage was repaired, not just filtered.
	require.False(t, f.timers.Has(f.userID))
	require.False(t, f.timers.Has(ghostUser))
}

func TestRecovery_PrimedRegistryServesState(t *testing.T) {
	f := newFixture()
	task := f.newTask("reading")
	f.timers.Seed(model.ActiveTimer{UserID: f.userID, TaskID: task.ID, StartedAt: f.at(9, 0)})

	loaded, err := NewRecoveryLoader(f.timers, f.tasks, zap.NewNop()).Load(context.Background())
	require.NoError(t, err)
	f.registry.Prime(loaded)

	state := f.coordinator.State(f.userID)
	require.True(t, state.Running)
	require.Equal(t, task.ID, state.TaskID)
}
