package report

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clusterreport/internal/sentinel"
)

func TestInMemoryRunStore(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryRunStore()

	t.Run("find missing run", func(t *testing.T) {
		_, err := store.FindByID(ctx, "nope")
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("save stores a snapshot, not the live run", func(t *testing.T) {
		run := &Run{ID: "r-1", State: RunStateRunning, Percent: 10}
		require.NoError(t, store.Save(ctx, run))

		run.Percent = 90
		run.Results = append(run.Results, CompanyResult{Login: "spa"})

		got, err := store.FindByID(ctx, "r-1")
		require.NoError(t, err)
		assert.Equal(t, 10, got.Percent)
		assert.Empty(t, got.Results)
	})

	t.Run("save overwrites by id", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, &Run{ID: "r-1", State: RunStateCompleted, Percent: 100}))

		got, err := store.FindByID(ctx, "r-1")
		require.NoError(t, err)
		assert.Equal(t, RunStateCompleted, got.State)
	})

	t.Run("list is ordered by start time", func(t *testing.T) {
		base := time.Date(2025, 3, 7, 9, 0, 0, 0, time.UTC)
		require.NoError(t, store.Save(ctx, &Run{ID: "r-3", StartedAt: base.Add(2 * time.Hour)}))
		require.NoError(t, store.Save(ctx, &Run{ID: "r-2", StartedAt: base.Add(time.Hour)}))

		runs, err := store.List(ctx)
		require.NoError(t, err)
		require.Len(t, runs, 3)
		for i := 1; i < len(runs); i++ {
			assert.False(t, runs[i].StartedAt.Before(runs[i-1].StartedAt))
		}
	})
}
