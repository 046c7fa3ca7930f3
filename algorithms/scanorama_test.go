package algorithms

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/popvote/popvote-go/knn"
)

// TestScanoramaComputeIntegration tests the panorama representation
func TestScanoramaComputeIntegration(t *testing.T) {
	t.Run("writes an aligned representation of dimred columns", func(t *testing.T) {
		ds := newAnnotatedDataset(t)
		alg, err := NewScanorama(Config{}, knn.BackendExact)
		require.NoError(t, err)

		require.NoError(t, alg.ComputeIntegration(ds))

		rep, ok := ds.Rep(ScanoramaRepKey)
		require.True(t, ok)
		rows, cols := rep.Dims()
		assert.Equal(t, 100, rows)
		assert.Equal(t, 50, cols)
	})

	t.Run("classification recovers the labelled subset", func(t *testing.T) {
		ds := newAnnotatedDataset(t)
		alg, err := NewScanorama(Config{Method: map[string]any{"dimred": 20}}, knn.BackendExact)
		require.NoError(t, err)
		require.NoError(t, alg.ComputeIntegration(ds))
		require.NoError(t, alg.Predict(ds, "", PredictOptions{}))

		assert.Greater(t, labelledAccuracy(t, ds, "popv_knn_on_scanorama_prediction"), 0.9)
	})

	t.Run("missing batch column rejected", func(t *testing.T) {
		ds := newAnnotatedDataset(t)
		alg, err := NewScanorama(Config{BatchKey: "nope"}, knn.BackendExact)
		require.NoError(t, err)
		require.Error(t, alg.ComputeIntegration(ds))
	})
}

// TestKNNOnPCABaseline tests the uncorrected baseline adapter
func TestKNNOnPCABaseline(t *testing.T) {
	ds := newAnnotatedDataset(t)
	alg, err := NewKNNOnPCA(Config{}, knn.BackendExact)
	require.NoError(t, err)

	require.NoError(t, alg.ComputeIntegration(ds))
	assert.True(t, ds.HasRep(PCAKey))

	require.NoError(t, alg.Predict(ds, "", PredictOptions{}))
	pred, ok := ds.Categorical("popv_knn_on_knn_on_pca_prediction")
	require.True(t, ok)
	assert.Equal(t, 100, pred.Len())
}
