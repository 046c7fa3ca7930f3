package algorithms

import (
	"github.com/popvote/popvote-go/anndata"
	"github.com/popvote/popvote-go/integrate"
	"github.com/popvote/popvote-go/knn"
)

// ScanoramaRepKey is the representation Scanorama integration writes.
const ScanoramaRepKey = "X_scanorama"

// Scanorama computes a KNN classifier after panorama-style integration:
// observations are partitioned by batch, reduced jointly, aligned batch by
// batch, and re-assembled in the original observation order.
type Scanorama struct {
	knnAdapter
}

// NewScanorama constructs the adapter. Recognized method parameters: dimred
// (joint reduction dimensionality), knn (mutual-neighbor matching size).
func NewScanorama(cfg Config, backend knn.Backend) (Algorithm, error) {
	s := &Scanorama{knnAdapter: newKNNAdapter("scanorama", ScanoramaRepKey, cfg, backend)}
	return s, nil
}

// ComputeIntegration aligns the batch partitions of the feature matrix and
// stores the integrated representation under ScanoramaRepKey.
func (s *Scanorama) ComputeIntegration(ds *anndata.Dataset) error {
	s.log.Info("Integrating data with scanorama")

	batches, err := batchValues(ds, s.cfg.BatchKey)
	if err != nil {
		return err
	}

	integrated, err := integrate.Scanorama(ds.X(), batches, integrate.ScanoramaOptions{
		DimRed: intParam(s.cfg.Method, "dimred", 50),
		KNN:    intParam(s.cfg.Method, "knn", 0),
	})
	if err != nil {
		return err
	}
	return ds.SetRep(ScanoramaRepKey, integrated)
}
