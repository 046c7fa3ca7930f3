package algorithms

import (
	"github.com/popvote/popvote-go/anndata"
	"github.com/popvote/popvote-go/knn"
)

// KNNOnPCA is the uncorrected baseline: a KNN classifier fitted directly on
// the shared PCA basis, with no batch correction. Useful as a reference
// point for the integrating adapters in the consensus vote.
type KNNOnPCA struct {
	knnAdapter
}

// NewKNNOnPCA constructs the adapter. Recognized method parameters: dimred.
func NewKNNOnPCA(cfg Config, backend knn.Backend) (Algorithm, error) {
	a := &KNNOnPCA{knnAdapter: newKNNAdapter("knn_on_pca", PCAKey, cfg, backend)}
	return a, nil
}

// ComputeIntegration ensures the shared PCA basis exists; the baseline
// applies no correction of its own.
func (a *KNNOnPCA) ComputeIntegration(ds *anndata.Dataset) error {
	a.log.Info("Computing PCA basis")

	if _, err := batchValues(ds, a.cfg.BatchKey); err != nil {
		return err
	}
	_, err := ensurePCA(ds, intParam(a.cfg.Method, "dimred", 50))
	return err
}
