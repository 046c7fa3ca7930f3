package anndata

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// TestLoadCSV tests dataset assembly from feature and obs CSVs
func TestLoadCSV(t *testing.T) {
	dir := t.TempDir()
	features := writeFile(t, dir, "features.csv",
		"g1,g2,g3\n1.0,2.0,3.0\n4.0,5.0,6.0\n7.0,8.0,9.0\n")
	obs := writeFile(t, dir, "obs.csv",
		"cell,batch,cell_type\nc1,b1,tcell\nc2,b2,unknown\nc3,b1,bcell\n")

	ds, err := LoadCSV(features, obs, LoadOptions{
		BatchColumn:    "batch",
		LabelsColumn:   "cell_type",
		UnlabeledToken: "unknown",
	})
	require.NoError(t, err)

	assert.Equal(t, 3, ds.NumObs())
	assert.Equal(t, []string{"c1", "c2", "c3"}, ds.ObsNames())

	rows, cols := ds.X().Dims()
	assert.Equal(t, 3, rows)
	assert.Equal(t, 3, cols)
	assert.Equal(t, 5.0, ds.X().At(1, 1))

	batch, ok := ds.Categorical(BatchKey)
	require.True(t, ok)
	assert.Equal(t, []string{"b1", "b2", "b1"}, batch.Values())

	labels, ok := ds.Categorical(LabelsKey)
	require.True(t, ok)
	assert.Equal(t, "tcell", labels.Value(0))

	mask, ok := ds.Bool(TrainMaskKey)
	require.True(t, ok)
	assert.Equal(t, []bool{true, false, true}, mask)
}

// TestLoadCSVErrors tests the failure modes of loading
func TestLoadCSVErrors(t *testing.T) {
	dir := t.TempDir()
	features := writeFile(t, dir, "features.csv", "g1,g2\n1.0,2.0\n3.0,4.0\n")

	t.Run("missing obs file", func(t *testing.T) {
		_, err := LoadCSV(features, filepath.Join(dir, "absent.csv"), LoadOptions{
			BatchColumn: "batch", LabelsColumn: "label",
		})
		require.Error(t, err)
	})

	t.Run("row count mismatch", func(t *testing.T) {
		obs := writeFile(t, dir, "short.csv", "cell,batch,label\nc1,b1,x\n")
		_, err := LoadCSV(features, obs, LoadOptions{BatchColumn: "batch", LabelsColumn: "label"})
		require.Error(t, err)
	})

	t.Run("unknown batch column", func(t *testing.T) {
		obs := writeFile(t, dir, "obs.csv", "cell,batch,label\nc1,b1,x\nc2,b1,y\n")
		_, err := LoadCSV(features, obs, LoadOptions{BatchColumn: "nope", LabelsColumn: "label"})
		require.Error(t, err)
	})

	t.Run("non-numeric feature value", func(t *testing.T) {
		bad := writeFile(t, dir, "bad.csv", "g1,g2\n1.0,oops\n2.0,3.0\n")
		obs := writeFile(t, dir, "obs2.csv", "cell,batch,label\nc1,b1,x\nc2,b1,y\n")
		_, err := LoadCSV(bad, obs, LoadOptions{BatchColumn: "batch", LabelsColumn: "label"})
		require.Error(t, err)
	})
}
