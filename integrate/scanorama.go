package integrate

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// ScanoramaOptions tunes the panorama-style batch alignment.
// Zero values select defaults.
type ScanoramaOptions struct {
	// DimRed is the dimensionality of the joint reduction; default 50.
	DimRed int
	// KNN is the neighborhood size for mutual-nearest-neighbor matching.
	KNN int
}

// Scanorama integrates batches by partitioning observations by batch,
// reducing all of them jointly to DimRed dimensions, then aligning each
// batch in turn onto the growing panorama through mutual-nearest-neighbor
// matching. The result is re-assembled in the original row order. Every
// batch must be non-empty.
func Scanorama(x *mat.Dense, batches []string, opts ScanoramaOptions) (*mat.Dense, error) {
	rows, _ := x.Dims()
	if len(batches) != rows {
		return nil, fmt.Errorf("matrix has %d rows but %d batch labels given", rows, len(batches))
	}

	dimred := opts.DimRed
	if dimred <= 0 {
		dimred = 50
	}
	knn := opts.KNN
	if knn <= 0 {
		knn = 20
	}

	names, groups := partitionByBatch(batches)
	for i, name := range names {
		if len(groups[i]) == 0 {
			return nil, fmt.Errorf("batch %q has no observations", name)
		}
	}

	reduced, err := PCA(x, dimred)
	if err != nil {
		return nil, err
	}
	_, cols := reduced.Dims()

	out := mat.NewDense(rows, cols, nil)

	// Seed the panorama with the first batch as-is.
	panorama := make([]int, 0, rows)
	for _, i := range groups[0] {
		out.SetRow(i, rowSlice(reduced, i))
		panorama = append(panorama, i)
	}

	for g := 1; g < len(groups); g++ {
		idx := groups[g]
		batch := gatherRows(reduced, idx)
		ref := gatherRows(out, panorama)

		shift := mnnShift(batch, ref, knn)
		for bi, i := range idx {
			row := rowSlice(batch, bi)
			for j := range row {
				row[j] += shift[j]
			}
			out.SetRow(i, row)
			panorama = append(panorama, i)
		}
	}

	return out, nil
}

// partitionByBatch groups row indices by batch name, names sorted.
func partitionByBatch(batches []string) ([]string, [][]int) {
	byName := make(map[string][]int)
	for i, b := range batches {
		byName[b] = append(byName[b], i)
	}
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)
	groups := make([][]int, len(names))
	for i, name := range names {
		groups[i] = byName[name]
	}
	return names, groups
}

// mnnShift computes the translation that moves batch onto ref: the batch is
// first centered onto the reference centroid, then refined by the mean
// residual over mutual-nearest-neighbor pairs of the centered batch.
// Matching on the centered batch keeps a neighborhood from pairing with the
// wrong reference neighborhood when the batch offset rivals the
// neighborhood spacing.
func mnnShift(batch, ref *mat.Dense, k int) []float64 {
	bn, cols := batch.Dims()
	rn, _ := ref.Dims()
	if k > rn {
		k = rn
	}
	if k > bn {
		k = bn
	}

	bMean := meanRow(batch, allRows(bn))
	rMean := meanRow(ref, allRows(rn))
	shift := make([]float64, cols)
	for j := 0; j < cols; j++ {
		shift[j] = rMean[j] - bMean[j]
	}

	centered := mat.NewDense(bn, cols, nil)
	for i := 0; i < bn; i++ {
		for j := 0; j < cols; j++ {
			centered.Set(i, j, batch.At(i, j)+shift[j])
		}
	}

	bToR := nearestSets(centered, ref, k)
	rToB := nearestSets(ref, centered, k)

	residual := make([]float64, cols)
	pairs := 0
	for bi := 0; bi < bn; bi++ {
		for _, ri := range bToR[bi] {
			if !contains(rToB[ri], bi) {
				continue
			}
			for j := 0; j < cols; j++ {
				residual[j] += ref.At(ri, j) - centered.At(bi, j)
			}
			pairs++
		}
	}

	if pairs > 0 {
		for j := range shift {
			shift[j] += residual[j] / float64(pairs)
		}
	}
	return shift
}

// nearestSets returns, for each row of from, the indices of its k nearest
// rows in to.
func nearestSets(from, to *mat.Dense, k int) [][]int {
	fn, _ := from.Dims()
	tn, _ := to.Dims()
	out := make([][]int, fn)
	for i := 0; i < fn; i++ {
		row := rowSlice(from, i)
		dists := make([]float64, tn)
		order := make([]int, tn)
		for t := 0; t < tn; t++ {
			dists[t] = sqDist(row, rowSlice(to, t))
			order[t] = t
		}
		sort.Slice(order, func(a, b int) bool { return dists[order[a]] < dists[order[b]] })
		out[i] = order[:k]
	}
	return out
}

func contains(s []int, v int) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

func allRows(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}
