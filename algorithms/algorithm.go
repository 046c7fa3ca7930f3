// Package algorithms holds the annotation adapters: thin parameter-holding
// objects that call the integration, classification and embedding routines
// and write their results back into the shared dataset. Each adapter exposes
// three operations invoked in fixed order: ComputeIntegration, Predict,
// ComputeEmbedding. Adapters never run concurrently on the same dataset.
package algorithms

import (
	"fmt"
	"sort"
	"sync"

	"github.com/popvote/popvote-go/anndata"
	"github.com/popvote/popvote-go/knn"
)

// PredictOptions carries the per-call prediction switches. They are explicit
// arguments rather than dataset-wide flags.
type PredictOptions struct {
	// ReturnProbabilities additionally writes the max class probability
	// under resultKey + "_probabilities".
	ReturnProbabilities bool
}

// EmbeddingOptions carries the per-call embedding switches.
type EmbeddingOptions struct {
	// Compute enables the 2-D layout; when false the call is a no-op.
	Compute bool
}

// Algorithm is implemented by every annotation adapter.
type Algorithm interface {
	// Name identifies the algorithm ("harmony", "scanorama", ...).
	Name() string
	// ResultKey is the obs column predictions default to.
	ResultKey() string
	// EmbeddingKey is the representation key the 2-D embedding goes under.
	EmbeddingKey() string
	// ComputeIntegration writes the algorithm's integrated representation.
	ComputeIntegration(ds *anndata.Dataset) error
	// Predict classifies all observations from the integrated representation.
	// An empty resultKey falls back to ResultKey().
	Predict(ds *anndata.Dataset, resultKey string, opts PredictOptions) error
	// ComputeEmbedding writes a 2-D layout of the integrated representation.
	ComputeEmbedding(ds *anndata.Dataset, opts EmbeddingOptions) error
}

// Constructor builds an algorithm from its configuration and the neighbor
// search backend the run selected.
type Constructor func(cfg Config, backend knn.Backend) (Algorithm, error)

// Registry maps algorithm names to constructors.
type Registry struct {
	mu    sync.RWMutex
	ctors map[string]Constructor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{ctors: make(map[string]Constructor)}
}

// Register adds a constructor under name.
func (r *Registry) Register(name string, ctor Constructor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.ctors[name]; exists {
		return fmt.Errorf("algorithm %q already registered", name)
	}
	r.ctors[name] = ctor
	return nil
}

// New constructs the named algorithm.
func (r *Registry) New(name string, cfg Config, backend knn.Backend) (Algorithm, error) {
	r.mu.RLock()
	ctor, ok := r.ctors[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("algorithm %q not found", name)
	}
	return ctor(cfg, backend)
}

// Names returns the registered algorithm names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.ctors))
	for name := range r.ctors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry returns a registry with every built-in algorithm.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("harmony", NewHarmony)
	r.Register("scanorama", NewScanorama)
	r.Register("knn_on_pca", NewKNNOnPCA)
	return r
}
