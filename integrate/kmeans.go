package integrate

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// KMeans runs Lloyd's algorithm on the rows of x. It returns the per-row
// cluster assignment and the k centroid rows. Deterministic for a fixed seed.
func KMeans(x *mat.Dense, k, iters int, seed int64) ([]int, *mat.Dense, error) {
	rows, cols := x.Dims()
	if k <= 0 {
		return nil, nil, fmt.Errorf("cluster count must be positive, got %d", k)
	}
	if k > rows {
		return nil, nil, fmt.Errorf("cannot form %d clusters from %d observations", k, rows)
	}
	if iters <= 0 {
		iters = 20
	}

	rng := rand.New(rand.NewSource(seed))

	// Initialize centroids from distinct random rows.
	centroids := mat.NewDense(k, cols, nil)
	for i, r := range rng.Perm(rows)[:k] {
		centroids.SetRow(i, rowSlice(x, r))
	}

	assign := make([]int, rows)
	for iter := 0; iter < iters; iter++ {
		changed := false
		for i := 0; i < rows; i++ {
			row := rowSlice(x, i)
			best, bestDist := 0, sqDist(row, rowSlice(centroids, 0))
			for c := 1; c < k; c++ {
				if d := sqDist(row, rowSlice(centroids, c)); d < bestDist {
					best, bestDist = c, d
				}
			}
			if assign[i] != best {
				assign[i] = best
				changed = true
			}
		}

		counts := make([]int, k)
		sums := mat.NewDense(k, cols, nil)
		for i := 0; i < rows; i++ {
			c := assign[i]
			counts[c]++
			for j := 0; j < cols; j++ {
				sums.Set(c, j, sums.At(c, j)+x.At(i, j))
			}
		}
		for c := 0; c < k; c++ {
			if counts[c] == 0 {
				// Reseed an emptied cluster on a random row.
				centroids.SetRow(c, rowSlice(x, rng.Intn(rows)))
				changed = true
				continue
			}
			for j := 0; j < cols; j++ {
				centroids.Set(c, j, sums.At(c, j)/float64(counts[c]))
			}
		}

		if !changed && iter > 0 {
			break
		}
	}

	return assign, centroids, nil
}
