package integrate

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// HarmonyOptions tunes the iterative cluster-based batch correction.
// Zero values select defaults.
type HarmonyOptions struct {
	// Clusters is the k-means cluster count; default scales with dataset size.
	Clusters int
	// Iterations is the number of cluster-then-correct rounds.
	Iterations int
	// Seed fixes the clustering randomness.
	Seed int64
}

// Harmonize removes batch structure from a representation by repeatedly
// clustering observations and shifting each within-cluster batch group onto
// the cluster centroid. The output has the same shape and row order as rep;
// rep itself is not modified. batches carries one batch name per row.
func Harmonize(rep *mat.Dense, batches []string, opts HarmonyOptions) (*mat.Dense, error) {
	rows, cols := rep.Dims()
	if rows == 0 {
		return nil, fmt.Errorf("cannot harmonize an empty representation")
	}
	if len(batches) != rows {
		return nil, fmt.Errorf("representation has %d rows but %d batch labels given", rows, len(batches))
	}

	k := opts.Clusters
	if k <= 0 {
		k = rows / 30
		if k < 2 {
			k = 2
		}
		if k > 30 {
			k = 30
		}
	}
	if k > rows {
		k = rows
	}
	iters := opts.Iterations
	if iters <= 0 {
		iters = 10
	}

	z := mat.DenseCopyOf(rep)
	for iter := 0; iter < iters; iter++ {
		assign, _, err := KMeans(z, k, 20, opts.Seed+int64(iter))
		if err != nil {
			return nil, err
		}

		// Partition rows by (cluster, batch).
		clusterRows := make([][]int, k)
		groupRows := make(map[int]map[string][]int, k)
		for i := 0; i < rows; i++ {
			c := assign[i]
			clusterRows[c] = append(clusterRows[c], i)
			if groupRows[c] == nil {
				groupRows[c] = make(map[string][]int)
			}
			groupRows[c][batches[i]] = append(groupRows[c][batches[i]], i)
		}

		// Shift every within-cluster batch group onto the cluster centroid.
		for c := 0; c < k; c++ {
			if len(clusterRows[c]) == 0 {
				continue
			}
			center := meanRow(z, clusterRows[c])
			for _, idx := range groupRows[c] {
				groupMean := meanRow(z, idx)
				for _, i := range idx {
					for j := 0; j < cols; j++ {
						z.Set(i, j, z.At(i, j)+center[j]-groupMean[j])
					}
				}
			}
		}
	}

	return z, nil
}
