package integrate

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// syntheticBatches builds rows drawn from per-type Gaussian blobs with a
// constant per-batch offset, interleaving batches in row order.
func syntheticBatches(n, features int, seed int64) (*mat.Dense, []string) {
	rng := rand.New(rand.NewSource(seed))
	x := mat.NewDense(n, features, nil)
	batches := make([]string, n)
	for i := 0; i < n; i++ {
		batch := i % 2
		blob := i % 3
		batches[i] = []string{"b1", "b2"}[batch]
		for j := 0; j < features; j++ {
			v := rng.NormFloat64()*0.5 + float64(blob)*4.0
			if batch == 1 {
				v += 2.5 // batch effect
			}
			x.Set(i, j, v)
		}
	}
	return x, batches
}

func batchCentroidGap(z *mat.Dense, batches []string) float64 {
	_, cols := z.Dims()
	sums := map[string][]float64{}
	counts := map[string]int{}
	for i, b := range batches {
		if sums[b] == nil {
			sums[b] = make([]float64, cols)
		}
		for j := 0; j < cols; j++ {
			sums[b][j] += z.At(i, j)
		}
		counts[b]++
	}
	var names []string
	for b := range sums {
		names = append(names, b)
	}
	gap := 0.0
	for j := 0; j < cols; j++ {
		d := sums[names[0]][j]/float64(counts[names[0]]) - sums[names[1]][j]/float64(counts[names[1]])
		gap += d * d
	}
	return math.Sqrt(gap)
}

// TestPCA tests the projection shape and centering
func TestPCA(t *testing.T) {
	t.Run("projects to requested dimensions", func(t *testing.T) {
		x, _ := syntheticBatches(40, 10, 1)
		out, err := PCA(x, 3)
		require.NoError(t, err)
		rows, cols := out.Dims()
		assert.Equal(t, 40, rows)
		assert.Equal(t, 3, cols)

		// Projection of centered data stays centered.
		for j := 0; j < cols; j++ {
			sum := 0.0
			for i := 0; i < rows; i++ {
				sum += out.At(i, j)
			}
			assert.InDelta(t, 0.0, sum/float64(rows), 1e-8)
		}
	})

	t.Run("dimension capped at matrix size", func(t *testing.T) {
		x := mat.NewDense(5, 3, []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15})
		out, err := PCA(x, 50)
		require.NoError(t, err)
		_, cols := out.Dims()
		assert.Equal(t, 3, cols)
	})

	t.Run("invalid inputs rejected", func(t *testing.T) {
		_, err := PCA(mat.NewDense(3, 3, nil), 0)
		assert.Error(t, err)
	})
}

// TestKMeans tests clustering behavior
func TestKMeans(t *testing.T) {
	t.Run("separates obvious blobs", func(t *testing.T) {
		data := []float64{
			0.1, 0.0, 0.0, 0.2, 0.2, 0.1,
			9.9, 10.0, 10.1, 9.8, 10.0, 10.2,
		}
		x := mat.NewDense(6, 2, data)
		assign, centroids, err := KMeans(x, 2, 20, 7)
		require.NoError(t, err)

		// Rows 0-2 and 3-5 must land in different clusters.
		assert.Equal(t, assign[0], assign[1])
		assert.Equal(t, assign[0], assign[2])
		assert.Equal(t, assign[3], assign[4])
		assert.NotEqual(t, assign[0], assign[3])

		rows, cols := centroids.Dims()
		assert.Equal(t, 2, rows)
		assert.Equal(t, 2, cols)
	})

	t.Run("deterministic for a fixed seed", func(t *testing.T) {
		x, _ := syntheticBatches(30, 4, 2)
		a1, _, err := KMeans(x, 3, 10, 42)
		require.NoError(t, err)
		a2, _, err := KMeans(x, 3, 10, 42)
		require.NoError(t, err)
		assert.Equal(t, a1, a2)
	})

	t.Run("more clusters than rows rejected", func(t *testing.T) {
		_, _, err := KMeans(mat.NewDense(2, 2, nil), 5, 10, 0)
		require.Error(t, err)
	})
}

// TestHarmonize tests the cluster-based batch correction
func TestHarmonize(t *testing.T) {
	x, batches := syntheticBatches(120, 8, 3)

	t.Run("preserves shape and row order mapping", func(t *testing.T) {
		out, err := Harmonize(x, batches, HarmonyOptions{Seed: 1})
		require.NoError(t, err)
		rows, cols := out.Dims()
		assert.Equal(t, 120, rows)
		assert.Equal(t, 8, cols)
	})

	t.Run("reduces the batch centroid gap", func(t *testing.T) {
		out, err := Harmonize(x, batches, HarmonyOptions{Seed: 1})
		require.NoError(t, err)
		assert.Less(t, batchCentroidGap(out, batches), batchCentroidGap(x, batches))
	})

	t.Run("does not mutate the input", func(t *testing.T) {
		before := x.At(0, 0)
		_, err := Harmonize(x, batches, HarmonyOptions{Seed: 1})
		require.NoError(t, err)
		assert.Equal(t, before, x.At(0, 0))
	})

	t.Run("label count mismatch rejected", func(t *testing.T) {
		_, err := Harmonize(x, batches[:10], HarmonyOptions{})
		require.Error(t, err)
	})
}

// TestScanorama tests the panorama alignment
func TestScanorama(t *testing.T) {
	x, batches := syntheticBatches(100, 60, 4)

	t.Run("row count and reduction dimensionality", func(t *testing.T) {
		out, err := Scanorama(x, batches, ScanoramaOptions{DimRed: 50})
		require.NoError(t, err)
		rows, cols := out.Dims()
		assert.Equal(t, 100, rows)
		assert.Equal(t, 50, cols)
	})

	t.Run("reduces the batch centroid gap", func(t *testing.T) {
		out, err := Scanorama(x, batches, ScanoramaOptions{DimRed: 10})
		require.NoError(t, err)
		reduced, err := PCA(x, 10)
		require.NoError(t, err)

		// The batch offset (2.5) deliberately exceeds half the blob spacing
		// (4.0), so alignment must not latch onto neighboring blobs.
		assert.Less(t, batchCentroidGap(out, batches), 0.5*batchCentroidGap(reduced, batches))
	})

	t.Run("label count mismatch rejected", func(t *testing.T) {
		_, err := Scanorama(x, batches[:5], ScanoramaOptions{})
		require.Error(t, err)
	})
}
