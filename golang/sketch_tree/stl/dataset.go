package stl

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Dataset holds a row-major feature matrix together with its target and the
// auxiliary per-row weight. Rows of all four components move together when the
// partitioner reorders them, so RecordIds always maps a position back to the
// row number the caller supplied.
type Dataset struct {
	X         *mat.Dense
	Target    []float64
	Weight    []float64
	RecordIds []int
}

// NewDataset checks the shapes of the components and builds a dataset over them.
// A nil weight vector is replaced by ones. The matrix is used in place, so the
// caller must copy it if the original row order matters.
func NewDataset(x *mat.Dense, target, weight []float64) (*Dataset, error) {
	if x == nil {
		return nil, errors.Wrap(ErrShapeMismatch, "nil feature matrix")
	}
	h, w := x.Dims()
	if w == 0 {
		return nil, ErrNoFeatures
	}
	if len(target) != h {
		return nil, errors.Wrapf(ErrShapeMismatch, "the target length %d is not equal to the height %d", len(target), h)
	}
	if weight == nil {
		weight = make([]float64, h)
		for p := range weight {
			weight[p] = 1
		}
	}
	if len(weight) != h {
		return nil, errors.Wrapf(ErrShapeMismatch, "the weight length %d is not equal to the height %d", len(weight), h)
	}

	ds := &Dataset{X: x, Target: target, Weight: weight, RecordIds: make([]int, h)}
	for p := 0; p < h; p++ {
		ds.RecordIds[p] = p
	}
	return ds, nil
}

// Height returns the number of rows.
func (ds *Dataset) Height() int {
	h, _ := ds.X.Dims()
	return h
}

// Width returns the number of features.
func (ds *Dataset) Width() int {
	_, w := ds.X.Dims()
	return w
}

// value reads X[row, feature] straight from the backing slice.
func (ds *Dataset) value(row, feature int) float64 {
	raw := ds.X.RawMatrix()
	return raw.Data[row*raw.Stride+feature]
}

// swapRows exchanges two rows in every component of the dataset.
func (ds *Dataset) swapRows(p, q int) {
	if p == q {
		return
	}
	raw := ds.X.RawMatrix()
	rowP := raw.Data[p*raw.Stride : p*raw.Stride+raw.Cols]
	rowQ := raw.Data[q*raw.Stride : q*raw.Stride+raw.Cols]
	for c := range rowP {
		rowP[c], rowQ[c] = rowQ[c], rowP[c]
	}
	ds.Target[p], ds.Target[q] = ds.Target[q], ds.Target[p]
	ds.Weight[p], ds.Weight[q] = ds.Weight[q], ds.Weight[p]
	ds.RecordIds[p], ds.RecordIds[q] = ds.RecordIds[q], ds.RecordIds[p]
}

// rangeMean returns the number of rows and the mean target over [start, end).
func (ds *Dataset) rangeMean(start, end int) (count int, mean float64) {
	count = end - start
	if count <= 0 {
		return 0, 0
	}
	return count, floats.Sum(ds.Target[start:end]) / float64(count)
}

// IsMissing reports whether a feature value is treated as missing.
func IsMissing(v float64) bool {
	return math.IsNaN(v)
}
