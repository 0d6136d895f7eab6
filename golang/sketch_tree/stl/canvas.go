package stl

import (
	"math"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Columns of the statistic tensors.
const (
	statCount = iota
	statSumY
	statSumZ
	statWidth
)

// HistogramCanvas is the AVC-GROUP of one branch: for every bin of every feature
// it keeps the number of rows, Σy and Σz, plus read-only descriptor columns. The
// statistics live in a (bins × 3) tensor so that a worker can own a contiguous
// block of rows of it.
type HistogramCanvas struct {
	stats      *tensor.Dense
	size       int
	offsets    []int
	FeatureIds []int
	BinIds     []int
	Lower      []float64
	Upper      []float64
}

// MissingCanvas keeps (count, Σy, Σz) of the rows whose value is missing, one
// entry per feature.
type MissingCanvas struct {
	stats *tensor.Dense
	size  int
}

func newStatTensor(rows int) *tensor.Dense {
	// a zero-row tensor is not representable, keep at least one spare row
	if rows < 1 {
		rows = 1
	}
	return tensor.New(tensor.WithShape(rows, statWidth), tensor.Of(tensor.Float64))
}

// Allocate creates both canvases sized exactly to the bin layouts.
func Allocate(layouts []FeatureBinLayout) (*HistogramCanvas, *MissingCanvas, error) {
	if len(layouts) == 0 {
		return nil, nil, ErrNoFeatures
	}
	total := TotalBins(layouts)

	hc := &HistogramCanvas{
		stats:      newStatTensor(total),
		size:       total,
		offsets:    make([]int, len(layouts)+1),
		FeatureIds: make([]int, total),
		BinIds:     make([]int, total),
		Lower:      make([]float64, total),
		Upper:      make([]float64, total),
	}
	for q, layout := range layouts {
		if layout.Offset != hc.offsets[q] {
			return nil, nil, errors.Errorf("feature %d has offset %d, expected %d", q, layout.Offset, hc.offsets[q])
		}
		hc.offsets[q+1] = layout.Offset + layout.NBins()
		for b, edge := range layout.Edges {
			i := layout.Offset + b
			hc.FeatureIds[i] = q
			hc.BinIds[i] = b
			hc.Lower[i] = edge
			hc.Upper[i] = math.Inf(1)
			if b+1 < layout.NBins() {
				hc.Upper[i] = layout.Edges[b+1]
			}
		}
	}

	mc := &MissingCanvas{stats: newStatTensor(len(layouts)), size: len(layouts)}
	return hc, mc, nil
}

func (hc *HistogramCanvas) data() []float64 {
	return hc.stats.Data().([]float64)
}

// Size returns the number of bins of the canvas.
func (hc *HistogramCanvas) Size() int {
	return hc.size
}

// NFeatures returns the number of features described by the canvas.
func (hc *HistogramCanvas) NFeatures() int {
	return len(hc.offsets) - 1
}

// FeatureRange returns the half interval of canvas bins owned by a feature.
func (hc *HistogramCanvas) FeatureRange(feature int) (lo, hi int) {
	return hc.offsets[feature], hc.offsets[feature+1]
}

// Count returns the number of rows in a bin.
func (hc *HistogramCanvas) Count(bin int) float64 {
	return hc.data()[bin*statWidth+statCount]
}

// SumY returns the sum of targets in a bin.
func (hc *HistogramCanvas) SumY(bin int) float64 {
	return hc.data()[bin*statWidth+statSumY]
}

// SumZ returns the sum of weights in a bin.
func (hc *HistogramCanvas) SumZ(bin int) float64 {
	return hc.data()[bin*statWidth+statSumZ]
}

// Populated returns how many bins of a feature hold at least one row.
func (hc *HistogramCanvas) Populated(feature int) int {
	lo, hi := hc.FeatureRange(feature)
	data := hc.data()
	n := 0
	for i := lo; i < hi; i++ {
		if data[i*statWidth+statCount] > 0 {
			n++
		}
	}
	return n
}

// MaxPopulated returns the largest number of populated bins over all features.
func (hc *HistogramCanvas) MaxPopulated() int {
	best := 0
	for q := 0; q < hc.NFeatures(); q++ {
		if n := hc.Populated(q); n > best {
			best = n
		}
	}
	return best
}

// Reset zeroes the statistic columns. Descriptors are left untouched.
func (hc *HistogramCanvas) Reset() {
	zero(hc.data())
}

// fits checks that the canvas can hold the statistics of the layouts.
func (hc *HistogramCanvas) fits(layouts []FeatureBinLayout) bool {
	if hc.size < TotalBins(layouts) || hc.NFeatures() < len(layouts) {
		return false
	}
	for q, layout := range layouts {
		if hc.offsets[q] != layout.Offset || hc.offsets[q+1] != layout.Offset+layout.NBins() {
			return false
		}
	}
	return true
}

func (mc *MissingCanvas) data() []float64 {
	return mc.stats.Data().([]float64)
}

// Size returns the number of features of the canvas.
func (mc *MissingCanvas) Size() int {
	return mc.size
}

// Count returns the number of rows with a missing value of the feature.
func (mc *MissingCanvas) Count(feature int) float64 {
	return mc.data()[feature*statWidth+statCount]
}

// SumY returns the target sum over rows with a missing value of the feature.
func (mc *MissingCanvas) SumY(feature int) float64 {
	return mc.data()[feature*statWidth+statSumY]
}

// SumZ returns the weight sum over rows with a missing value of the feature.
func (mc *MissingCanvas) SumZ(feature int) float64 {
	return mc.data()[feature*statWidth+statSumZ]
}

// Reset zeroes the statistics.
func (mc *MissingCanvas) Reset() {
	zero(mc.data())
}

func zero(data []float64) {
	for ind := range data {
		data[ind] = 0
	}
}
