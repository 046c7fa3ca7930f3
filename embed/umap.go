// Package embed computes 2-D visualization layouts of integrated
// representations. The layout is a neighbor-graph force simulation in the
// spirit of UMAP: attraction along kNN edges, repulsion against sampled
// non-neighbors. It exists purely for visualization; nothing downstream
// consumes it.
package embed

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/popvote/popvote-go/integrate"
)

// Options tunes the layout. Zero values select defaults.
type Options struct {
	// NNeighbors is the kNN graph degree; default 15.
	NNeighbors int
	// MinDist is the minimum spacing preserved between close points; default 0.1.
	MinDist float64
	// Epochs is the number of refinement passes; default 200.
	Epochs int
	// Seed fixes the negative-sampling randomness.
	Seed int64
}

// DefaultOptions returns the embedding defaults.
func DefaultOptions() Options {
	return Options{NNeighbors: 15, MinDist: 0.1, Epochs: 200}
}

// Layout embeds the rows of rep into two dimensions. The output row order
// matches the input; the result is deterministic for a fixed seed.
func Layout(rep *mat.Dense, opts Options) (*mat.Dense, error) {
	rows, _ := rep.Dims()
	if rows < 2 {
		return nil, fmt.Errorf("layout needs at least 2 observations, got %d", rows)
	}
	if opts.NNeighbors <= 0 {
		opts.NNeighbors = 15
	}
	if opts.MinDist <= 0 {
		opts.MinDist = 0.1
	}
	if opts.Epochs <= 0 {
		opts.Epochs = 200
	}
	k := opts.NNeighbors
	if k > rows-1 {
		k = rows - 1
	}

	pos, err := initialPositions(rep)
	if err != nil {
		return nil, err
	}
	edges := neighborEdges(rep, k)
	rng := rand.New(rand.NewSource(opts.Seed))

	const learningRate = 0.1
	for epoch := 0; epoch < opts.Epochs; epoch++ {
		alpha := learningRate * (1.0 - float64(epoch)/float64(opts.Epochs))
		for _, e := range edges {
			attract(pos, e[0], e[1], alpha, opts.MinDist)
			// Two negative samples per edge keep clusters apart.
			repel(pos, e[0], rng.Intn(rows), alpha, opts.MinDist)
			repel(pos, e[0], rng.Intn(rows), alpha, opts.MinDist)
		}
	}

	return pos, nil
}

// initialPositions seeds the layout with a scaled 2-D PCA of the
// representation.
func initialPositions(rep *mat.Dense) (*mat.Dense, error) {
	pos, err := integrate.PCA(rep, 2)
	if err != nil {
		return nil, err
	}
	rows, cols := pos.Dims()
	if cols < 2 {
		// Degenerate one-column input; pad with zeros.
		padded := mat.NewDense(rows, 2, nil)
		for i := 0; i < rows; i++ {
			padded.Set(i, 0, pos.At(i, 0))
		}
		pos = padded
	}

	// Scale into a ~10x10 box so force constants behave across inputs.
	maxAbs := 0.0
	for i := 0; i < rows; i++ {
		for j := 0; j < 2; j++ {
			if a := math.Abs(pos.At(i, j)); a > maxAbs {
				maxAbs = a
			}
		}
	}
	if maxAbs > 0 {
		pos.Scale(10.0/maxAbs, pos)
	}
	return pos, nil
}

// neighborEdges builds the kNN edge list of the representation.
func neighborEdges(rep *mat.Dense, k int) [][2]int {
	rows, cols := rep.Dims()
	edges := make([][2]int, 0, rows*k)
	for i := 0; i < rows; i++ {
		dists := make([]float64, rows)
		order := make([]int, rows)
		for t := 0; t < rows; t++ {
			sum := 0.0
			for j := 0; j < cols; j++ {
				d := rep.At(i, j) - rep.At(t, j)
				sum += d * d
			}
			dists[t] = sum
			order[t] = t
		}
		sort.Slice(order, func(a, b int) bool { return dists[order[a]] < dists[order[b]] })
		// order[0] is i itself.
		for _, t := range order[1 : k+1] {
			edges = append(edges, [2]int{i, t})
		}
	}
	return edges
}

// attract pulls i toward j when they sit further apart than minDist.
func attract(pos *mat.Dense, i, j int, alpha, minDist float64) {
	dx := pos.At(j, 0) - pos.At(i, 0)
	dy := pos.At(j, 1) - pos.At(i, 1)
	d := math.Hypot(dx, dy)
	if d <= minDist {
		return
	}
	f := alpha * (d - minDist) / d
	pos.Set(i, 0, pos.At(i, 0)+f*dx)
	pos.Set(i, 1, pos.At(i, 1)+f*dy)
}

// repel pushes i away from a sampled point m.
func repel(pos *mat.Dense, i, m int, alpha, minDist float64) {
	if i == m {
		return
	}
	dx := pos.At(i, 0) - pos.At(m, 0)
	dy := pos.At(i, 1) - pos.At(m, 1)
	d2 := dx*dx + dy*dy
	f := alpha / (d2 + minDist)
	if f > alpha {
		f = alpha
	}
	pos.Set(i, 0, pos.At(i, 0)+f*dx)
	pos.Set(i, 1, pos.At(i, 1)+f*dy)
}
