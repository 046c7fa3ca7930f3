package algorithms

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/popvote/popvote-go/anndata"
	"github.com/popvote/popvote-go/embed"
	"github.com/popvote/popvote-go/integrate"
	"github.com/popvote/popvote-go/knn"
	"github.com/popvote/popvote-go/utils"
)

// PCAKey is the shared PCA basis representation adapters integrate from.
const PCAKey = "X_pca"

// knnAdapter carries the pieces every KNN-on-representation adapter shares:
// the resolved configuration, the key of the integrated representation, the
// neighbor search backend and the logger.
type knnAdapter struct {
	name    string
	cfg     Config
	repKey  string
	backend knn.Backend
	log     *utils.Logger
}

func newKNNAdapter(name, repKey string, cfg Config, backend knn.Backend) knnAdapter {
	return knnAdapter{
		name:    name,
		cfg:     cfg.withDefaults(name),
		repKey:  repKey,
		backend: backend,
		log:     utils.GetLogger().WithComponent(name),
	}
}

// Name returns the algorithm name.
func (a *knnAdapter) Name() string { return a.name }

// ResultKey returns the default prediction column.
func (a *knnAdapter) ResultKey() string { return a.cfg.ResultKey }

// EmbeddingKey returns the embedding representation key.
func (a *knnAdapter) EmbeddingKey() string { return a.cfg.EmbeddingKey }

// Predict fits a KNN classifier on the labelled rows of the integrated
// representation and writes predicted labels for all observations under
// resultKey, sharing the label column's category set. The ground-truth
// label column is never touched.
func (a *knnAdapter) Predict(ds *anndata.Dataset, resultKey string, opts PredictOptions) error {
	if resultKey == "" {
		resultKey = a.cfg.ResultKey
	}

	rep, ok := ds.Rep(a.repKey)
	if !ok {
		return fmt.Errorf("representation %q not found; run ComputeIntegration first", a.repKey)
	}
	labels, ok := ds.Categorical(a.cfg.LabelsKey)
	if !ok {
		return fmt.Errorf("labels column %q not found", a.cfg.LabelsKey)
	}
	trainIdx, err := ds.TrainIndices()
	if err != nil {
		return err
	}
	if len(trainIdx) == 0 {
		return fmt.Errorf("no labelled training observations")
	}

	a.log.Info(fmt.Sprintf("Saving knn on %s results to %q", a.name, resultKey),
		utils.Int("n_train", len(trainIdx)))

	_, cols := rep.Dims()
	trainX := mat.NewDense(len(trainIdx), cols, nil)
	trainY := make([]int, len(trainIdx))
	for i, r := range trainIdx {
		for j := 0; j < cols; j++ {
			trainX.Set(i, j, rep.At(r, j))
		}
		trainY[i] = labels.Code(r)
	}

	clf, err := knn.NewClassifier(knn.Options{
		NNeighbors: intParam(a.cfg.Classifier, "n_neighbors", 15),
		Weights:    knn.Weights(stringParam(a.cfg.Classifier, "weights", "uniform")),
		Backend:    a.backend,
	})
	if err != nil {
		return err
	}
	if err := clf.Fit(trainX, trainY, len(labels.Categories())); err != nil {
		return err
	}

	codes, err := clf.Predict(rep)
	if err != nil {
		return err
	}
	col, err := anndata.NewCategoricalCodes(codes, labels.Categories())
	if err != nil {
		return err
	}
	if err := ds.SetCategorical(resultKey, col); err != nil {
		return err
	}

	if opts.ReturnProbabilities {
		probs, err := clf.PredictProba(rep)
		if err != nil {
			return err
		}
		rows, nClasses := probs.Dims()
		maxProb := make([]float64, rows)
		for i := 0; i < rows; i++ {
			best := probs.At(i, 0)
			for c := 1; c < nClasses; c++ {
				if p := probs.At(i, c); p > best {
					best = p
				}
			}
			maxProb[i] = best
		}
		if err := ds.SetFloat(resultKey+"_probabilities", maxProb); err != nil {
			return err
		}
	}

	return nil
}

// ComputeEmbedding writes a 2-D layout of the integrated representation
// under the embedding key. A no-op unless opts.Compute is set.
func (a *knnAdapter) ComputeEmbedding(ds *anndata.Dataset, opts EmbeddingOptions) error {
	if !opts.Compute {
		return nil
	}

	rep, ok := ds.Rep(a.repKey)
	if !ok {
		return fmt.Errorf("representation %q not found; run ComputeIntegration first", a.repKey)
	}

	a.log.Info(fmt.Sprintf("Saving UMAP of %s results to %q", a.name, a.cfg.EmbeddingKey))

	layout, err := embed.Layout(rep, embed.Options{
		NNeighbors: intParam(a.cfg.Embedding, "n_neighbors", 15),
		MinDist:    floatParam(a.cfg.Embedding, "min_dist", 0.1),
		Epochs:     intParam(a.cfg.Embedding, "epochs", 0),
		Seed:       int64Param(a.cfg.Embedding, "seed", 0),
	})
	if err != nil {
		return err
	}
	return ds.SetRep(a.cfg.EmbeddingKey, layout)
}

// ensurePCA returns the shared PCA basis, computing and storing it when the
// loading step did not.
func ensurePCA(ds *anndata.Dataset, dims int) (*mat.Dense, error) {
	if rep, ok := ds.Rep(PCAKey); ok {
		return rep, nil
	}
	rep, err := integrate.PCA(ds.X(), dims)
	if err != nil {
		return nil, err
	}
	if err := ds.SetRep(PCAKey, rep); err != nil {
		return nil, err
	}
	return rep, nil
}

// batchValues validates the batch column and returns the per-row batch names.
func batchValues(ds *anndata.Dataset, batchKey string) ([]string, error) {
	names, groups, err := ds.BatchGroups(batchKey)
	if err != nil {
		return nil, err
	}
	for i, name := range names {
		if len(groups[i]) == 0 {
			return nil, fmt.Errorf("batch %q has no observations", name)
		}
	}
	col, _ := ds.Categorical(batchKey)
	return col.Values(), nil
}
