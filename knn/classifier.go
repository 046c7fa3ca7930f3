// Package knn implements the k-nearest-neighbor classifier the annotation
// adapters fit on integrated representations. The neighbor search backend is
// a strategy chosen at construction: an exact brute-force search that
// supports class probabilities, or golearn's kd-tree search for plain label
// prediction.
package knn

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Weights selects the neighbor vote weighting scheme.
type Weights string

const (
	// WeightsUniform counts every neighbor equally.
	WeightsUniform Weights = "uniform"
	// WeightsDistance weights neighbors by inverse distance.
	WeightsDistance Weights = "distance"
)

// Backend selects the neighbor search implementation.
type Backend string

const (
	// BackendExact is a brute-force exact search. Supports probabilities.
	BackendExact Backend = "exact"
	// BackendKDTree delegates to golearn's kd-tree KNN. Labels only.
	BackendKDTree Backend = "kdtree"
)

// Options configures a Classifier.
type Options struct {
	NNeighbors int
	Weights    Weights
	Backend    Backend
}

// DefaultOptions returns the classifier defaults: 15 uniform-weighted
// neighbors on the exact backend.
func DefaultOptions() Options {
	return Options{NNeighbors: 15, Weights: WeightsUniform, Backend: BackendExact}
}

// Classifier predicts class codes by majority vote among the nearest
// labelled neighbors. Ties break toward the lowest class code.
type Classifier struct {
	opts     Options
	trainX   *mat.Dense
	trainY   []int
	nClasses int
	kdtree   *kdtreeBackend
	fitted   bool
}

// NewClassifier validates options and builds an unfitted classifier.
func NewClassifier(opts Options) (*Classifier, error) {
	if opts.NNeighbors <= 0 {
		opts.NNeighbors = 15
	}
	if opts.Weights == "" {
		opts.Weights = WeightsUniform
	}
	if opts.Backend == "" {
		opts.Backend = BackendExact
	}
	switch opts.Weights {
	case WeightsUniform, WeightsDistance:
	default:
		return nil, fmt.Errorf("unknown weighting scheme %q", opts.Weights)
	}
	switch opts.Backend {
	case BackendExact:
	case BackendKDTree:
		if opts.Weights != WeightsUniform {
			return nil, fmt.Errorf("kdtree backend supports uniform weights only, got %q", opts.Weights)
		}
	default:
		return nil, fmt.Errorf("unknown backend %q", opts.Backend)
	}
	return &Classifier{opts: opts}, nil
}

// Fit stores the labelled training rows. y holds class codes in
// [0, nClasses); every class code of later predictions comes from this range.
func (c *Classifier) Fit(x *mat.Dense, y []int, nClasses int) error {
	rows, _ := x.Dims()
	if rows == 0 {
		return fmt.Errorf("cannot fit on an empty training set")
	}
	if rows != len(y) {
		return fmt.Errorf("training matrix has %d rows but %d labels given", rows, len(y))
	}
	if nClasses <= 0 {
		return fmt.Errorf("class count must be positive, got %d", nClasses)
	}
	for i, code := range y {
		if code < 0 || code >= nClasses {
			return fmt.Errorf("label code %d at row %d out of range for %d classes", code, i, nClasses)
		}
	}

	c.trainX = x
	c.trainY = y
	c.nClasses = nClasses

	if c.opts.Backend == BackendKDTree {
		backend, err := newKDTreeBackend(c.effectiveK(), x, y, nClasses)
		if err != nil {
			return fmt.Errorf("failed to build kdtree backend: %w", err)
		}
		c.kdtree = backend
	}

	c.fitted = true
	return nil
}

// Predict returns one class code per row of x.
func (c *Classifier) Predict(x *mat.Dense) ([]int, error) {
	if !c.fitted {
		return nil, fmt.Errorf("classifier not fitted")
	}
	if err := c.checkWidth(x); err != nil {
		return nil, err
	}

	if c.opts.Backend == BackendKDTree {
		return c.kdtree.predict(x)
	}

	rows, _ := x.Dims()
	out := make([]int, rows)
	for i := 0; i < rows; i++ {
		votes := c.voteRow(x, i)
		out[i] = argmax(votes)
	}
	return out, nil
}

// PredictProba returns one row of class vote proportions per row of x.
// Rows sum to 1. The kd-tree backend does not expose neighbor votes and
// returns an error.
func (c *Classifier) PredictProba(x *mat.Dense) (*mat.Dense, error) {
	if !c.fitted {
		return nil, fmt.Errorf("classifier not fitted")
	}
	if c.opts.Backend == BackendKDTree {
		return nil, fmt.Errorf("kdtree backend does not support class probabilities")
	}
	if err := c.checkWidth(x); err != nil {
		return nil, err
	}

	rows, _ := x.Dims()
	out := mat.NewDense(rows, c.nClasses, nil)
	for i := 0; i < rows; i++ {
		votes := c.voteRow(x, i)
		total := 0.0
		for _, v := range votes {
			total += v
		}
		for class, v := range votes {
			out.Set(i, class, v/total)
		}
	}
	return out, nil
}

// NumClasses returns the class count the classifier was fitted with.
func (c *Classifier) NumClasses() int {
	return c.nClasses
}

// effectiveK caps the neighborhood at the training set size.
func (c *Classifier) effectiveK() int {
	k := c.opts.NNeighbors
	if rows, _ := c.trainX.Dims(); k > rows {
		k = rows
	}
	return k
}

func (c *Classifier) checkWidth(x *mat.Dense) error {
	_, want := c.trainX.Dims()
	if _, got := x.Dims(); got != want {
		return fmt.Errorf("query matrix has %d columns, training matrix has %d", got, want)
	}
	return nil
}

// voteRow accumulates the (possibly distance-weighted) neighbor votes for
// row i of x.
func (c *Classifier) voteRow(x *mat.Dense, i int) []float64 {
	const eps = 1e-10

	trainRows, cols := c.trainX.Dims()
	k := c.effectiveK()

	dists := make([]float64, trainRows)
	order := make([]int, trainRows)
	for t := 0; t < trainRows; t++ {
		sum := 0.0
		for j := 0; j < cols; j++ {
			d := x.At(i, j) - c.trainX.At(t, j)
			sum += d * d
		}
		dists[t] = sum
		order[t] = t
	}
	sort.Slice(order, func(a, b int) bool { return dists[order[a]] < dists[order[b]] })

	votes := make([]float64, c.nClasses)
	for _, t := range order[:k] {
		w := 1.0
		if c.opts.Weights == WeightsDistance {
			w = 1.0 / (math.Sqrt(dists[t]) + eps)
		}
		votes[c.trainY[t]] += w
	}
	return votes
}

// argmax returns the index of the largest vote, lowest index on ties.
func argmax(votes []float64) int {
	best := 0
	for i := 1; i < len(votes); i++ {
		if votes[i] > votes[best] {
			best = i
		}
	}
	return best
}
