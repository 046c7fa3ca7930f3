package utils

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *ResultsStore {
	t.Helper()
	store, err := NewResultsStore(filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testRun(id string) *RunRecord {
	started := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	return &RunRecord{
		ID:           id,
		StartedAt:    started,
		FinishedAt:   started.Add(2 * time.Minute),
		NumObs:       100,
		NumLabelled:  60,
		ConsensusKey: "popv_prediction",
		Config:       "backend: exact\n",
	}
}

// TestResultsStoreRuns tests run persistence
func TestResultsStoreRuns(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	t.Run("save and load round trip", func(t *testing.T) {
		run := testRun("run-1")
		require.NoError(t, store.SaveRun(ctx, run))

		loaded, err := store.GetRun(ctx, "run-1")
		require.NoError(t, err)
		assert.Equal(t, run.ID, loaded.ID)
		assert.Equal(t, run.NumObs, loaded.NumObs)
		assert.Equal(t, run.NumLabelled, loaded.NumLabelled)
		assert.Equal(t, run.ConsensusKey, loaded.ConsensusKey)
		assert.Equal(t, run.Config, loaded.Config)
		assert.True(t, run.StartedAt.Equal(loaded.StartedAt))
	})

	t.Run("duplicate id rejected", func(t *testing.T) {
		require.Error(t, store.SaveRun(ctx, testRun("run-1")))
	})

	t.Run("unknown id rejected", func(t *testing.T) {
		_, err := store.GetRun(ctx, "nope")
		require.Error(t, err)
	})

	t.Run("list returns most recent first", func(t *testing.T) {
		later := testRun("run-2")
		later.StartedAt = later.StartedAt.Add(time.Hour)
		require.NoError(t, store.SaveRun(ctx, later))

		runs, err := store.ListRuns(ctx)
		require.NoError(t, err)
		require.Len(t, runs, 2)
		assert.Equal(t, "run-2", runs[0].ID)
		assert.Equal(t, "run-1", runs[1].ID)
	})
}

// TestResultsStorePredictions tests prediction persistence
func TestResultsStorePredictions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveRun(ctx, testRun("run-1")))

	prob := 0.85
	preds := []PredictionRecord{
		{ObsName: "c1", ResultKey: "popv_prediction", Label: "tcell", Probability: &prob},
		{ObsName: "c2", ResultKey: "popv_prediction", Label: "bcell"},
		{ObsName: "c1", ResultKey: "popv_knn_on_harmony_prediction", Label: "tcell"},
	}
	require.NoError(t, store.SavePredictions(ctx, "run-1", preds))

	t.Run("filters by result key", func(t *testing.T) {
		loaded, err := store.Predictions(ctx, "run-1", "popv_prediction")
		require.NoError(t, err)
		require.Len(t, loaded, 2)
		assert.Equal(t, "c1", loaded[0].ObsName)
		assert.Equal(t, "tcell", loaded[0].Label)
		require.NotNil(t, loaded[0].Probability)
		assert.Equal(t, 0.85, *loaded[0].Probability)
		assert.Nil(t, loaded[1].Probability)
	})

	t.Run("unknown key yields nothing", func(t *testing.T) {
		loaded, err := store.Predictions(ctx, "run-1", "nope")
		require.NoError(t, err)
		assert.Empty(t, loaded)
	})
}
