// Package integrate holds the numeric routines the annotation adapters
// delegate to: dimensionality reduction and batch-effect correction. The
// routines are synchronous, preserve observation order, and report failures
// as plain errors with no recovery.
package integrate

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// PCA projects x onto its top dims principal components. The input is
// column-centered first; dims is capped at min(rows, cols).
func PCA(x *mat.Dense, dims int) (*mat.Dense, error) {
	rows, cols := x.Dims()
	if rows == 0 || cols == 0 {
		return nil, fmt.Errorf("cannot compute PCA of an empty %dx%d matrix", rows, cols)
	}
	if dims <= 0 {
		return nil, fmt.Errorf("PCA dimension must be positive, got %d", dims)
	}
	if dims > cols {
		dims = cols
	}
	if dims > rows {
		dims = rows
	}

	centered := centerColumns(x)

	var svd mat.SVD
	if ok := svd.Factorize(centered, mat.SVDThin); !ok {
		return nil, fmt.Errorf("SVD failed to converge on %dx%d matrix", rows, cols)
	}
	var v mat.Dense
	svd.VTo(&v)

	out := mat.NewDense(rows, dims, nil)
	out.Mul(centered, v.Slice(0, cols, 0, dims))
	return out, nil
}

// centerColumns returns a copy of x with every column shifted to zero mean.
func centerColumns(x *mat.Dense) *mat.Dense {
	rows, cols := x.Dims()
	out := mat.DenseCopyOf(x)
	for j := 0; j < cols; j++ {
		sum := 0.0
		for i := 0; i < rows; i++ {
			sum += x.At(i, j)
		}
		mean := sum / float64(rows)
		for i := 0; i < rows; i++ {
			out.Set(i, j, x.At(i, j)-mean)
		}
	}
	return out
}

// rowSlice returns a copy of row i of m.
func rowSlice(m *mat.Dense, i int) []float64 {
	_, cols := m.Dims()
	out := make([]float64, cols)
	for j := 0; j < cols; j++ {
		out[j] = m.At(i, j)
	}
	return out
}

// gatherRows builds a matrix from the given rows of m, in index order.
func gatherRows(m *mat.Dense, idx []int) *mat.Dense {
	_, cols := m.Dims()
	out := mat.NewDense(len(idx), cols, nil)
	for i, r := range idx {
		for j := 0; j < cols; j++ {
			out.Set(i, j, m.At(r, j))
		}
	}
	return out
}

// meanRow computes the column-wise mean of the given rows of m.
func meanRow(m *mat.Dense, idx []int) []float64 {
	_, cols := m.Dims()
	mean := make([]float64, cols)
	if len(idx) == 0 {
		return mean
	}
	for _, r := range idx {
		for j := 0; j < cols; j++ {
			mean[j] += m.At(r, j)
		}
	}
	for j := range mean {
		mean[j] /= float64(len(idx))
	}
	return mean
}

// sqDist returns the squared Euclidean distance between a and b.
func sqDist(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
