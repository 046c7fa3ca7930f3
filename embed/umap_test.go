package embed

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func blobRep(n int, seed int64) *mat.Dense {
	rng := rand.New(rand.NewSource(seed))
	x := mat.NewDense(n, 5, nil)
	for i := 0; i < n; i++ {
		offset := float64(i%2) * 20.0
		for j := 0; j < 5; j++ {
			x.Set(i, j, offset+rng.NormFloat64())
		}
	}
	return x
}

// TestLayout tests the 2-D layout output
func TestLayout(t *testing.T) {
	rep := blobRep(60, 1)

	t.Run("produces an (n, 2) matrix", func(t *testing.T) {
		pos, err := Layout(rep, DefaultOptions())
		require.NoError(t, err)
		rows, cols := pos.Dims()
		assert.Equal(t, 60, rows)
		assert.Equal(t, 2, cols)
		for i := 0; i < rows; i++ {
			assert.False(t, math.IsNaN(pos.At(i, 0)))
			assert.False(t, math.IsNaN(pos.At(i, 1)))
		}
	})

	t.Run("deterministic for a fixed seed", func(t *testing.T) {
		opts := Options{NNeighbors: 10, MinDist: 0.1, Epochs: 50, Seed: 7}
		a, err := Layout(rep, opts)
		require.NoError(t, err)
		b, err := Layout(rep, opts)
		require.NoError(t, err)
		assert.True(t, mat.Equal(a, b))
	})

	t.Run("keeps separated blobs apart", func(t *testing.T) {
		pos, err := Layout(rep, Options{NNeighbors: 10, Epochs: 100, Seed: 3})
		require.NoError(t, err)

		// Centroid distance between the two blobs should dominate the
		// average within-blob spread.
		var cx, cy [2]float64
		var count [2]int
		for i := 0; i < 60; i++ {
			b := i % 2
			cx[b] += pos.At(i, 0)
			cy[b] += pos.At(i, 1)
			count[b]++
		}
		for b := 0; b < 2; b++ {
			cx[b] /= float64(count[b])
			cy[b] /= float64(count[b])
		}
		between := math.Hypot(cx[0]-cx[1], cy[0]-cy[1])
		assert.Greater(t, between, 1.0)
	})

	t.Run("too few observations rejected", func(t *testing.T) {
		_, err := Layout(mat.NewDense(1, 3, []float64{1, 2, 3}), DefaultOptions())
		require.Error(t, err)
	})
}
