package stl

import (
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// FeatureBinLayout describes the quantization of one feature. Edges are the lower
// bounds of the bins and are strictly increasing; Offset is the position of the
// first bin of the feature inside the histogram canvas.
type FeatureBinLayout struct {
	Feature int       `json:"feature" yaml:"feature"`
	Edges   []float64 `json:"edges" yaml:"edges"`
	Offset  int       `json:"offset" yaml:"offset"`
}

// NBins returns the number of bins of the feature.
func (layout FeatureBinLayout) NBins() int {
	return len(layout.Edges)
}

// Bin returns the local bin of a non-missing value: the last bin whose lower
// edge does not exceed the value. Values under the first edge land in bin 0.
func (layout FeatureBinLayout) Bin(v float64) int {
	b := sort.Search(len(layout.Edges), func(i int) bool { return layout.Edges[i] > v }) - 1
	if b < 0 {
		return 0
	}
	return b
}

// BuildBinLayout quantizes every column of the sample into at most maxBins bins.
// Missing values are ignored; an all-missing column gets no bins and a constant
// column gets exactly one.
func BuildBinLayout(sample *mat.Dense, maxBins int) []FeatureBinLayout {
	if maxBins < 1 {
		maxBins = 1
	}
	h, w := sample.Dims()
	layouts := make([]FeatureBinLayout, w)
	column := make([]float64, h)
	offset := 0
	for q := 0; q < w; q++ {
		mat.Col(column, q, sample)
		layouts[q] = FeatureBinLayout{Feature: q, Edges: columnEdges(column, maxBins), Offset: offset}
		offset += layouts[q].NBins()
	}
	return layouts
}

// TotalBins returns the number of histogram rows needed for the layouts.
func TotalBins(layouts []FeatureBinLayout) int {
	total := 0
	for _, layout := range layouts {
		total += layout.NBins()
	}
	return total
}

// RebaseOffsets recomputes the offsets so that the features occupy contiguous,
// non-overlapping canvas regions in order.
func RebaseOffsets(layouts []FeatureBinLayout) {
	offset := 0
	for q := range layouts {
		layouts[q].Feature = q
		layouts[q].Offset = offset
		offset += layouts[q].NBins()
	}
}

func columnEdges(column []float64, maxBins int) []float64 {
	values := make([]float64, 0, len(column))
	for _, v := range column {
		if !IsMissing(v) {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return nil
	}
	sort.Float64s(values)

	distinct := values[:1:1]
	for _, v := range values[1:] {
		if v != distinct[len(distinct)-1] {
			distinct = append(distinct, v)
			if len(distinct) > maxBins {
				break
			}
		}
	}

	edges := []float64{values[0]}
	if len(distinct) <= maxBins {
		for ind := 1; ind < len(distinct); ind++ {
			mid := (distinct[ind-1] + distinct[ind]) / 2
			if mid > edges[len(edges)-1] {
				edges = append(edges, mid)
			}
		}
		return edges
	}

	for k := 1; k < maxBins; k++ {
		cut := stat.Quantile(float64(k)/float64(maxBins), stat.Empirical, values, nil)
		if cut > edges[len(edges)-1] {
			edges = append(edges, cut)
		}
	}
	return edges
}
