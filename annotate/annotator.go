// Package annotate orchestrates annotation runs: it drives each algorithm
// adapter through its three operations in strict sequence on one shared
// dataset, owns result/embedding key assignment, and combines the per-
// algorithm predictions by popular vote.
package annotate

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/popvote/popvote-go/algorithms"
	"github.com/popvote/popvote-go/anndata"
	"github.com/popvote/popvote-go/utils"
)

// Default consensus column names.
const (
	ConsensusKey      = "popv_prediction"
	ConsensusScoreKey = "popv_prediction_score"
)

// Options configures an annotation run. The per-operation switches live here
// and are threaded into each adapter call explicitly.
type Options struct {
	// ReturnProbabilities writes a max-probability column per algorithm.
	ReturnProbabilities bool
	// ComputeEmbedding writes a 2-D embedding per algorithm.
	ComputeEmbedding bool
	// ConsensusKey overrides the consensus column name.
	ConsensusKey string
	// ScoreKey overrides the agreement score column name.
	ScoreKey string
}

// RunResult summarizes one completed annotation run.
type RunResult struct {
	ID           string
	StartedAt    time.Time
	FinishedAt   time.Time
	NumObs       int
	NumLabelled  int
	ResultKeys   []string
	ConsensusKey string
	ScoreKey     string
}

// Annotator runs a fixed set of algorithm adapters over a dataset.
type Annotator struct {
	algs []algorithms.Algorithm
	opts Options
	log  *utils.Logger
}

// New builds an Annotator, rejecting result or embedding key collisions
// between the given algorithms up front. Collisions would otherwise
// silently overwrite results at run time.
func New(algs []algorithms.Algorithm, opts Options) (*Annotator, error) {
	if len(algs) == 0 {
		return nil, fmt.Errorf("at least one algorithm required")
	}
	if opts.ConsensusKey == "" {
		opts.ConsensusKey = ConsensusKey
	}
	if opts.ScoreKey == "" {
		opts.ScoreKey = ConsensusScoreKey
	}

	used := map[string]string{
		opts.ConsensusKey: "consensus",
		opts.ScoreKey:     "consensus score",
	}
	for _, alg := range algs {
		for _, key := range []string{alg.ResultKey(), alg.ResultKey() + "_probabilities", alg.EmbeddingKey()} {
			if owner, taken := used[key]; taken {
				return nil, fmt.Errorf("algorithm %q writes key %q already claimed by %s", alg.Name(), key, owner)
			}
			used[key] = alg.Name()
		}
	}

	return &Annotator{
		algs: algs,
		opts: opts,
		log:  utils.GetLogger().WithComponent("annotate"),
	}, nil
}

// Run executes integrate, predict and (optionally) embed for every
// algorithm in order, then the consensus vote. The dataset is mutated in
// place; any adapter failure aborts the run and propagates unchanged.
func (a *Annotator) Run(ds *anndata.Dataset) (*RunResult, error) {
	started := time.Now().UTC()
	trainIdx, err := ds.TrainIndices()
	if err != nil {
		return nil, err
	}

	resultKeys := make([]string, 0, len(a.algs))
	for _, alg := range a.algs {
		a.log.Info("Running algorithm", utils.String("algorithm", alg.Name()))

		if err := alg.ComputeIntegration(ds); err != nil {
			return nil, fmt.Errorf("%s integration failed: %w", alg.Name(), err)
		}
		if err := alg.Predict(ds, alg.ResultKey(), algorithms.PredictOptions{
			ReturnProbabilities: a.opts.ReturnProbabilities,
		}); err != nil {
			return nil, fmt.Errorf("%s prediction failed: %w", alg.Name(), err)
		}
		if err := alg.ComputeEmbedding(ds, algorithms.EmbeddingOptions{
			Compute: a.opts.ComputeEmbedding,
		}); err != nil {
			return nil, fmt.Errorf("%s embedding failed: %w", alg.Name(), err)
		}
		resultKeys = append(resultKeys, alg.ResultKey())
	}

	if err := a.consensus(ds, resultKeys); err != nil {
		return nil, err
	}

	return &RunResult{
		ID:           uuid.New().String(),
		StartedAt:    started,
		FinishedAt:   time.Now().UTC(),
		NumObs:       ds.NumObs(),
		NumLabelled:  len(trainIdx),
		ResultKeys:   resultKeys,
		ConsensusKey: a.opts.ConsensusKey,
		ScoreKey:     a.opts.ScoreKey,
	}, nil
}

// consensus writes the per-observation majority vote over the result
// columns and the agreement fraction of the winning label. Ties break
// toward the lowest class code.
func (a *Annotator) consensus(ds *anndata.Dataset, resultKeys []string) error {
	if len(resultKeys) == 0 {
		return fmt.Errorf("no result columns to vote over")
	}

	cols := make([]*anndata.Categorical, len(resultKeys))
	var categories []string
	for i, key := range resultKeys {
		col, ok := ds.Categorical(key)
		if !ok {
			return fmt.Errorf("result column %q not found", key)
		}
		cols[i] = col
		if i == 0 {
			categories = col.Categories()
		} else if !equalCategories(col.Categories(), categories) {
			return fmt.Errorf("result column %q has a different category set", key)
		}
	}

	n := ds.NumObs()
	codes := make([]int, n)
	scores := make([]float64, n)
	for i := 0; i < n; i++ {
		votes := make([]int, len(categories))
		for _, col := range cols {
			if code := col.Code(i); code != anndata.MissingCode {
				votes[code]++
			}
		}
		best := 0
		for c := 1; c < len(votes); c++ {
			if votes[c] > votes[best] {
				best = c
			}
		}
		codes[i] = best
		scores[i] = float64(votes[best]) / float64(len(cols))
	}

	consensus, err := anndata.NewCategoricalCodes(codes, categories)
	if err != nil {
		return err
	}
	if err := ds.SetCategorical(a.opts.ConsensusKey, consensus); err != nil {
		return err
	}
	return ds.SetFloat(a.opts.ScoreKey, scores)
}

// equalCategories reports whether two category sets are identical, element
// by element. Voting across mismatched sets would mix code spaces.
func equalCategories(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
