package algorithms

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/popvote/popvote-go/anndata"
)

// newAnnotatedDataset builds the reference fixture: 100 observations in 2
// batches of 50, 3 cell types in well-separated blobs over 60 features, and
// 60 labelled training observations (the first 30 of each batch).
func newAnnotatedDataset(t *testing.T) *anndata.Dataset {
	t.Helper()

	const (
		nObs     = 100
		nFeat    = 60
		perBatch = 50
	)
	types := []string{"bcell", "nkcell", "tcell"}

	rng := rand.New(rand.NewSource(11))
	names := make([]string, nObs)
	batches := make([]string, nObs)
	labels := make([]string, nObs)
	mask := make([]bool, nObs)
	x := mat.NewDense(nObs, nFeat, nil)

	for i := 0; i < nObs; i++ {
		names[i] = fmt.Sprintf("cell%03d", i)
		batch := i / perBatch
		batches[i] = []string{"batchA", "batchB"}[batch]
		ct := i % len(types)
		labels[i] = types[ct]
		mask[i] = i%perBatch < 30

		for j := 0; j < nFeat; j++ {
			v := rng.NormFloat64()*0.4 + float64(ct)*5.0
			if batch == 1 {
				v += 1.5 // batch effect
			}
			x.Set(i, j, v)
		}
	}

	ds, err := anndata.NewDataset(names, x)
	require.NoError(t, err)
	require.NoError(t, ds.SetCategoricalValues(anndata.BatchKey, batches))
	require.NoError(t, ds.SetCategoricalValues(anndata.LabelsKey, labels))
	require.NoError(t, ds.SetBool(anndata.TrainMaskKey, mask))
	return ds
}

// labelledAccuracy scores a result column against ground truth over the
// train mask.
func labelledAccuracy(t *testing.T, ds *anndata.Dataset, resultKey string) float64 {
	t.Helper()
	labels, ok := ds.Categorical(anndata.LabelsKey)
	require.True(t, ok)
	pred, ok := ds.Categorical(resultKey)
	require.True(t, ok)
	idx, err := ds.TrainIndices()
	require.NoError(t, err)

	correct := 0
	for _, i := range idx {
		if labels.Value(i) == pred.Value(i) {
			correct++
		}
	}
	return float64(correct) / float64(len(idx))
}
