package eval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/popvote/popvote-go/anndata"
)

func evalDataset(t *testing.T, labels, predictions []string, mask []bool) *anndata.Dataset {
	t.Helper()
	n := len(labels)
	names := make([]string, n)
	for i := range names {
		names[i] = string(rune('a' + i))
	}
	ds, err := anndata.NewDataset(names, mat.NewDense(n, 2, nil))
	require.NoError(t, err)
	require.NoError(t, ds.SetCategoricalValues(anndata.LabelsKey, labels))
	require.NoError(t, ds.SetCategoricalValues("pred", predictions))
	require.NoError(t, ds.SetBool(anndata.TrainMaskKey, mask))
	return ds
}

// TestEvaluate tests metric computation over the labelled subset
func TestEvaluate(t *testing.T) {
	t.Run("perfect predictions", func(t *testing.T) {
		ds := evalDataset(t,
			[]string{"b", "t", "b", "t"},
			[]string{"b", "t", "b", "t"},
			[]bool{true, true, true, true})

		report, err := Evaluate(ds, anndata.LabelsKey, "pred")
		require.NoError(t, err)
		assert.Equal(t, 1.0, report.Accuracy)
		assert.Equal(t, 4, report.N)
		for _, m := range report.PerClass {
			assert.Equal(t, 1.0, m.Precision)
			assert.Equal(t, 1.0, m.Recall)
			assert.Equal(t, 1.0, m.F1)
		}
	})

	t.Run("mixed predictions score per class", func(t *testing.T) {
		// Truth:      b b b t
		// Predicted:  b b t t  -> accuracy 3/4
		ds := evalDataset(t,
			[]string{"b", "b", "b", "t"},
			[]string{"b", "b", "t", "t"},
			[]bool{true, true, true, true})

		report, err := Evaluate(ds, anndata.LabelsKey, "pred")
		require.NoError(t, err)
		assert.InDelta(t, 0.75, report.Accuracy, 1e-9)

		b := report.PerClass["b"]
		assert.InDelta(t, 1.0, b.Precision, 1e-9)
		assert.InDelta(t, 2.0/3, b.Recall, 1e-9)
		assert.Equal(t, 3, b.Support)

		tc := report.PerClass["t"]
		assert.InDelta(t, 0.5, tc.Precision, 1e-9)
		assert.InDelta(t, 1.0, tc.Recall, 1e-9)

		assert.Equal(t, 2, report.Confusion["b"]["b"])
		assert.Equal(t, 1, report.Confusion["b"]["t"])
	})

	t.Run("unlabelled observations excluded", func(t *testing.T) {
		ds := evalDataset(t,
			[]string{"b", "t", "b", "t"},
			[]string{"b", "t", "t", "b"},
			[]bool{true, true, false, false})

		report, err := Evaluate(ds, anndata.LabelsKey, "pred")
		require.NoError(t, err)
		assert.Equal(t, 2, report.N)
		assert.Equal(t, 1.0, report.Accuracy)
	})

	t.Run("missing columns rejected", func(t *testing.T) {
		ds := evalDataset(t,
			[]string{"b", "t"},
			[]string{"b", "t"},
			[]bool{true, true})

		_, err := Evaluate(ds, "nope", "pred")
		assert.Error(t, err)
		_, err = Evaluate(ds, anndata.LabelsKey, "nope")
		assert.Error(t, err)
	})

	t.Run("empty labelled subset rejected", func(t *testing.T) {
		ds := evalDataset(t,
			[]string{"b", "t"},
			[]string{"b", "t"},
			[]bool{false, false})

		_, err := Evaluate(ds, anndata.LabelsKey, "pred")
		require.Error(t, err)
	})
}
