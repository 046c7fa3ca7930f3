package algorithms

import (
	"fmt"

	"github.com/popvote/popvote-go/anndata"
)

// Config identifies where an adapter reads and writes in the shared dataset,
// plus keyword overrides for its three delegated operations. A Config is
// resolved once at construction and immutable afterwards.
type Config struct {
	// BatchKey is the obs column holding batch annotations.
	BatchKey string
	// LabelsKey is the obs column holding cell-type labels.
	LabelsKey string
	// ResultKey is the obs column predictions are written to.
	ResultKey string
	// EmbeddingKey is the representation key the 2-D embedding is stored under.
	EmbeddingKey string
	// Method overrides integration parameters (defaults: dimred 50).
	Method map[string]any
	// Classifier overrides KNN parameters (defaults: weights uniform, n_neighbors 15).
	Classifier map[string]any
	// Embedding overrides layout parameters (defaults: min_dist 0.1).
	Embedding map[string]any
}

// withDefaults resolves a user Config against the per-algorithm defaults:
// empty keys get the conventional names, override maps are merged over the
// hard-coded parameter defaults.
func (c Config) withDefaults(name string) Config {
	out := c
	if out.BatchKey == "" {
		out.BatchKey = anndata.BatchKey
	}
	if out.LabelsKey == "" {
		out.LabelsKey = anndata.LabelsKey
	}
	if out.ResultKey == "" {
		out.ResultKey = fmt.Sprintf("popv_knn_on_%s_prediction", name)
	}
	if out.EmbeddingKey == "" {
		out.EmbeddingKey = fmt.Sprintf("X_umap_%s_popv", name)
	}
	out.Method = mergeParams(map[string]any{"dimred": 50}, c.Method)
	out.Classifier = mergeParams(map[string]any{"weights": "uniform", "n_neighbors": 15}, c.Classifier)
	out.Embedding = mergeParams(map[string]any{"min_dist": 0.1}, c.Embedding)
	return out
}

// mergeParams lays overrides over defaults without touching either input.
func mergeParams(defaults, overrides map[string]any) map[string]any {
	out := make(map[string]any, len(defaults)+len(overrides))
	for k, v := range defaults {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}

// intParam reads an integer parameter, coercing the numeric types YAML and
// JSON decoding produce.
func intParam(params map[string]any, key string, def int) int {
	v, ok := params[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return def
	}
}

// floatParam reads a float parameter with the same coercions as intParam.
func floatParam(params map[string]any, key string, def float64) float64 {
	v, ok := params[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return def
	}
}

// stringParam reads a string parameter.
func stringParam(params map[string]any, key, def string) string {
	if v, ok := params[key].(string); ok {
		return v
	}
	return def
}

// int64Param reads an int64 parameter (seeds).
func int64Param(params map[string]any, key string, def int64) int64 {
	v, ok := params[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return def
	}
}
