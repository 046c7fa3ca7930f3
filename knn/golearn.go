package knn

import (
	"fmt"
	"strconv"

	"github.com/sjwhitworth/golearn/base"
	glknn "github.com/sjwhitworth/golearn/knn"
	"gonum.org/v1/gonum/mat"
)

// kdtreeBackend delegates label prediction to golearn's kd-tree KNN. Class
// codes travel through golearn as their decimal strings and are parsed back
// on the way out. The attribute set is built once at fit time and shared
// with every query grid; golearn rejects grids whose attributes differ from
// the training grid's.
type kdtreeBackend struct {
	cls        *glknn.KNNClassifier
	floatAttrs []base.Attribute
	classAttr  *base.CategoricalAttribute
	cols       int
}

// newKDTreeBackend builds the shared attribute set, packs the training grid
// and fits the classifier.
func newKDTreeBackend(k int, x *mat.Dense, y []int, nClasses int) (*kdtreeBackend, error) {
	_, cols := x.Dims()

	b := &kdtreeBackend{
		floatAttrs: make([]base.Attribute, cols),
		classAttr:  base.NewCategoricalAttribute(),
		cols:       cols,
	}
	for j := range b.floatAttrs {
		b.floatAttrs[j] = base.NewFloatAttribute(fmt.Sprintf("f%d", j))
	}
	b.classAttr.SetName("class")
	// Register every class code up front so query grids never extend the
	// category set behind golearn's back.
	for code := 0; code < nClasses; code++ {
		b.classAttr.GetSysValFromString(strconv.Itoa(code))
	}

	grid, err := b.pack(x, y)
	if err != nil {
		return nil, err
	}
	b.cls = glknn.NewKnnClassifier("euclidean", "kdtree", k)
	if err := b.cls.Fit(grid); err != nil {
		return nil, fmt.Errorf("kdtree fit failed: %w", err)
	}
	return b, nil
}

// predict runs the query rows through golearn and maps predicted class
// strings back to codes.
func (b *kdtreeBackend) predict(x *mat.Dense) ([]int, error) {
	rows, _ := x.Dims()
	grid, err := b.pack(x, make([]int, rows))
	if err != nil {
		return nil, err
	}
	pred, err := b.cls.Predict(grid)
	if err != nil {
		return nil, fmt.Errorf("kdtree prediction failed: %w", err)
	}

	out := make([]int, rows)
	for i := 0; i < rows; i++ {
		label := base.GetClass(pred, i)
		code, err := strconv.Atoi(label)
		if err != nil {
			return nil, fmt.Errorf("unexpected predicted class %q at row %d: %w", label, i, err)
		}
		out[i] = code
	}
	return out, nil
}

// pack builds a DenseInstances over the backend's shared attributes from a
// float matrix plus per-row class codes. Query grids pass dummy zero codes.
func (b *kdtreeBackend) pack(x *mat.Dense, y []int) (*base.DenseInstances, error) {
	rows, cols := x.Dims()
	if cols != b.cols {
		return nil, fmt.Errorf("matrix has %d columns, backend was built for %d", cols, b.cols)
	}
	if rows != len(y) {
		return nil, fmt.Errorf("matrix has %d rows but %d labels given", rows, len(y))
	}

	inst := base.NewDenseInstances()
	specs := make([]base.AttributeSpec, cols)
	for j, attr := range b.floatAttrs {
		specs[j] = inst.AddAttribute(attr)
	}
	classSpec := inst.AddAttribute(b.classAttr)
	if err := inst.AddClassAttribute(b.classAttr); err != nil {
		return nil, fmt.Errorf("failed to mark class attribute: %w", err)
	}
	if err := inst.Extend(rows); err != nil {
		return nil, fmt.Errorf("failed to allocate %d instances: %w", rows, err)
	}

	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			inst.Set(specs[j], i, base.PackFloatToBytes(x.At(i, j)))
		}
		inst.Set(classSpec, i, b.classAttr.GetSysValFromString(strconv.Itoa(y[i])))
	}
	return inst, nil
}
