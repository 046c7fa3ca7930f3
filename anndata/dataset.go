package anndata

import (
	"fmt"
	"sort"
	"sync"

	"gonum.org/v1/gonum/mat"
)

// Well-known observation column keys. Data loading writes these; algorithm
// adapters read them unless configured otherwise.
const (
	// BatchKey is the default column holding the batch annotation.
	BatchKey = "_batch_annotation"
	// LabelsKey is the default column holding the (partial) cell-type labels.
	LabelsKey = "_labels_annotation"
	// TrainMaskKey is the boolean column flagging labelled training observations.
	TrainMaskKey = "_labelled_train_indices"
)

// MissingCode marks an observation without a category in a Categorical column.
const MissingCode = -1

// Categorical is an observation-indexed categorical column: a fixed category
// set plus one integer code per observation.
type Categorical struct {
	categories []string
	codes      []int
}

// NewCategorical builds a categorical column from raw string values. The
// category set is the sorted set of distinct values.
func NewCategorical(values []string) *Categorical {
	seen := make(map[string]bool)
	var categories []string
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			categories = append(categories, v)
		}
	}
	sort.Strings(categories)

	index := make(map[string]int, len(categories))
	for i, c := range categories {
		index[c] = i
	}

	codes := make([]int, len(values))
	for i, v := range values {
		codes[i] = index[v]
	}

	return &Categorical{categories: categories, codes: codes}
}

// NewCategoricalCodes builds a categorical column from pre-computed codes over
// an explicit category set. Codes must be MissingCode or valid indices.
func NewCategoricalCodes(codes []int, categories []string) (*Categorical, error) {
	for i, code := range codes {
		if code != MissingCode && (code < 0 || code >= len(categories)) {
			return nil, fmt.Errorf("code %d at observation %d out of range for %d categories", code, i, len(categories))
		}
	}
	cs := make([]string, len(categories))
	copy(cs, categories)
	cp := make([]int, len(codes))
	copy(cp, codes)
	return &Categorical{categories: cs, codes: cp}, nil
}

// Len returns the number of observations in the column.
func (c *Categorical) Len() int {
	return len(c.codes)
}

// Categories returns a copy of the category set.
func (c *Categorical) Categories() []string {
	out := make([]string, len(c.categories))
	copy(out, c.categories)
	return out
}

// Codes returns a copy of the per-observation codes.
func (c *Categorical) Codes() []int {
	out := make([]int, len(c.codes))
	copy(out, c.codes)
	return out
}

// Code returns the code of observation i.
func (c *Categorical) Code(i int) int {
	return c.codes[i]
}

// Value returns the category of observation i, or "" for a missing code.
func (c *Categorical) Value(i int) string {
	code := c.codes[i]
	if code == MissingCode {
		return ""
	}
	return c.categories[code]
}

// Values returns the per-observation category strings.
func (c *Categorical) Values() []string {
	out := make([]string, len(c.codes))
	for i := range c.codes {
		out[i] = c.Value(i)
	}
	return out
}

// NumMissing returns how many observations carry no category.
func (c *Categorical) NumMissing() int {
	n := 0
	for _, code := range c.codes {
		if code == MissingCode {
			n++
		}
	}
	return n
}

// Dataset is the shared annotated data container: one feature matrix, named
// per-observation metadata columns, and named lower-dimensional
// representations. All algorithm adapters read and write into a single
// Dataset through string keys; callers run adapters strictly sequentially.
// The mutex keeps concurrent readers safe, it does not make concurrent
// writers correct.
type Dataset struct {
	mu       sync.RWMutex
	obsNames []string
	x        *mat.Dense
	obsCat   map[string]*Categorical
	obsFloat map[string][]float64
	obsBool  map[string][]bool
	obsm     map[string]*mat.Dense
}

// NewDataset creates a Dataset over a feature matrix with one name per row.
func NewDataset(obsNames []string, x *mat.Dense) (*Dataset, error) {
	rows, _ := x.Dims()
	if rows != len(obsNames) {
		return nil, fmt.Errorf("feature matrix has %d rows but %d observation names given", rows, len(obsNames))
	}
	names := make([]string, len(obsNames))
	copy(names, obsNames)
	return &Dataset{
		obsNames: names,
		x:        x,
		obsCat:   make(map[string]*Categorical),
		obsFloat: make(map[string][]float64),
		obsBool:  make(map[string][]bool),
		obsm:     make(map[string]*mat.Dense),
	}, nil
}

// NumObs returns the number of observations.
func (d *Dataset) NumObs() int {
	return len(d.obsNames)
}

// ObsNames returns a copy of the observation names in row order.
func (d *Dataset) ObsNames() []string {
	out := make([]string, len(d.obsNames))
	copy(out, d.obsNames)
	return out
}

// X returns the primary feature matrix.
func (d *Dataset) X() *mat.Dense {
	return d.x
}

// SetCategorical stores a categorical column under key.
func (d *Dataset) SetCategorical(key string, col *Categorical) error {
	if col.Len() != d.NumObs() {
		return fmt.Errorf("column %q has %d entries, dataset has %d observations", key, col.Len(), d.NumObs())
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.obsCat[key] = col
	return nil
}

// SetCategoricalValues stores raw string values as a categorical column.
func (d *Dataset) SetCategoricalValues(key string, values []string) error {
	if len(values) != d.NumObs() {
		return fmt.Errorf("column %q has %d entries, dataset has %d observations", key, len(values), d.NumObs())
	}
	return d.SetCategorical(key, NewCategorical(values))
}

// Categorical retrieves a categorical column by key.
func (d *Dataset) Categorical(key string) (*Categorical, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	col, ok := d.obsCat[key]
	return col, ok
}

// SetFloat stores a float column under key.
func (d *Dataset) SetFloat(key string, values []float64) error {
	if len(values) != d.NumObs() {
		return fmt.Errorf("column %q has %d entries, dataset has %d observations", key, len(values), d.NumObs())
	}
	cp := make([]float64, len(values))
	copy(cp, values)
	d.mu.Lock()
	defer d.mu.Unlock()
	d.obsFloat[key] = cp
	return nil
}

// Float retrieves a copy of a float column by key.
func (d *Dataset) Float(key string) ([]float64, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	values, ok := d.obsFloat[key]
	if !ok {
		return nil, false
	}
	out := make([]float64, len(values))
	copy(out, values)
	return out, true
}

// SetBool stores a boolean column under key.
func (d *Dataset) SetBool(key string, values []bool) error {
	if len(values) != d.NumObs() {
		return fmt.Errorf("column %q has %d entries, dataset has %d observations", key, len(values), d.NumObs())
	}
	cp := make([]bool, len(values))
	copy(cp, values)
	d.mu.Lock()
	defer d.mu.Unlock()
	d.obsBool[key] = cp
	return nil
}

// Bool retrieves a copy of a boolean column by key.
func (d *Dataset) Bool(key string) ([]bool, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	values, ok := d.obsBool[key]
	if !ok {
		return nil, false
	}
	out := make([]bool, len(values))
	copy(out, values)
	return out, true
}

// ObsKeys returns the keys of all observation columns, sorted.
func (d *Dataset) ObsKeys() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	keys := make([]string, 0, len(d.obsCat)+len(d.obsFloat)+len(d.obsBool))
	for k := range d.obsCat {
		keys = append(keys, k)
	}
	for k := range d.obsFloat {
		keys = append(keys, k)
	}
	for k := range d.obsBool {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SetRep stores a representation matrix under key. The row count must match
// the dataset; row order is the observation order.
func (d *Dataset) SetRep(key string, rep *mat.Dense) error {
	rows, _ := rep.Dims()
	if rows != d.NumObs() {
		return fmt.Errorf("representation %q has %d rows, dataset has %d observations", key, rows, d.NumObs())
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.obsm[key] = rep
	return nil
}

// Rep retrieves a representation by key.
func (d *Dataset) Rep(key string) (*mat.Dense, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	rep, ok := d.obsm[key]
	return rep, ok
}

// HasRep reports whether a representation exists under key.
func (d *Dataset) HasRep(key string) bool {
	_, ok := d.Rep(key)
	return ok
}

// RepKeys returns the keys of all stored representations, sorted.
func (d *Dataset) RepKeys() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	keys := make([]string, 0, len(d.obsm))
	for k := range d.obsm {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// BatchGroups partitions observations by the batch column. It returns the
// batch categories and, per category, the row indices belonging to it, both
// in category order. Every observation must carry a batch.
func (d *Dataset) BatchGroups(batchKey string) ([]string, [][]int, error) {
	col, ok := d.Categorical(batchKey)
	if !ok {
		return nil, nil, fmt.Errorf("batch column %q not found", batchKey)
	}
	if n := col.NumMissing(); n > 0 {
		return nil, nil, fmt.Errorf("batch column %q has %d observations without a batch", batchKey, n)
	}
	categories := col.Categories()
	groups := make([][]int, len(categories))
	for i := 0; i < col.Len(); i++ {
		code := col.Code(i)
		groups[code] = append(groups[code], i)
	}
	return categories, groups, nil
}

// TrainIndices returns the row indices flagged as labelled training
// observations by the train mask column.
func (d *Dataset) TrainIndices() ([]int, error) {
	mask, ok := d.Bool(TrainMaskKey)
	if !ok {
		return nil, fmt.Errorf("train mask column %q not found", TrainMaskKey)
	}
	var idx []int
	for i, m := range mask {
		if m {
			idx = append(idx, i)
		}
	}
	return idx, nil
}
