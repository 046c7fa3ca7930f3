package algorithms

import (
	"github.com/popvote/popvote-go/anndata"
	"github.com/popvote/popvote-go/integrate"
	"github.com/popvote/popvote-go/knn"
)

// HarmonyRepKey is the representation Harmony integration writes.
const HarmonyRepKey = "X_harmony"

// Harmony computes a KNN classifier after Harmony-style integration of the
// PCA basis.
type Harmony struct {
	knnAdapter
}

// NewHarmony constructs the adapter. Recognized method parameters: dimred
// (PCA basis dimensionality), clusters, iterations, seed.
func NewHarmony(cfg Config, backend knn.Backend) (Algorithm, error) {
	h := &Harmony{knnAdapter: newKNNAdapter("harmony", HarmonyRepKey, cfg, backend)}
	return h, nil
}

// ComputeIntegration harmonizes the PCA basis across batches and stores the
// corrected representation under HarmonyRepKey.
func (h *Harmony) ComputeIntegration(ds *anndata.Dataset) error {
	h.log.Info("Integrating data with harmony")

	batches, err := batchValues(ds, h.cfg.BatchKey)
	if err != nil {
		return err
	}
	basis, err := ensurePCA(ds, intParam(h.cfg.Method, "dimred", 50))
	if err != nil {
		return err
	}

	corrected, err := integrate.Harmonize(basis, batches, integrate.HarmonyOptions{
		Clusters:   intParam(h.cfg.Method, "clusters", 0),
		Iterations: intParam(h.cfg.Method, "iterations", 0),
		Seed:       int64Param(h.cfg.Method, "seed", 0),
	})
	if err != nil {
		return err
	}
	return ds.SetRep(HarmonyRepKey, corrected)
}
