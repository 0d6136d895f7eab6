package stl

import (
	"math"
	"reflect"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestBuildBinLayoutLowCardinality(t *testing.T) {
	nan := math.NaN()
	sample := mat.NewDense(4, 3, []float64{
		1, 7, nan,
		1, 7, nan,
		5, 7, nan,
		5, 7, nan,
	})
	layouts := BuildBinLayout(sample, 4)
	if len(layouts) != 3 {
		t.Fatalf("expected 3 layouts, got %d", len(layouts))
	}
	if !reflect.DeepEqual(layouts[0].Edges, []float64{1, 3}) {
		t.Fatalf("expected edges [1 3], got %v", layouts[0].Edges)
	}
	if !reflect.DeepEqual(layouts[1].Edges, []float64{7}) {
		t.Fatalf("a constant column must get one bin, got %v", layouts[1].Edges)
	}
	if layouts[2].NBins() != 0 {
		t.Fatalf("an all-missing column must get no bins, got %v", layouts[2].Edges)
	}
	for q, expected := range []int{0, 2, 3} {
		if layouts[q].Offset != expected {
			t.Fatalf("feature %d: expected offset %d, got %d", q, expected, layouts[q].Offset)
		}
	}
	if TotalBins(layouts) != 3 {
		t.Fatalf("expected 3 bins in total, got %d", TotalBins(layouts))
	}
}

func TestBuildBinLayoutQuantiles(t *testing.T) {
	h := 100
	sample := mat.NewDense(h, 1, nil)
	for p := 0; p < h; p++ {
		sample.Set(p, 0, float64((p*37)%h))
	}
	for _, maxBins := range []int{1, 2, 4, 16} {
		edges := BuildBinLayout(sample, maxBins)[0].Edges
		if len(edges) == 0 || len(edges) > maxBins {
			t.Fatalf("max bins %d: got %d edges", maxBins, len(edges))
		}
		if edges[0] != 0 {
			t.Fatalf("max bins %d: the first edge must be the minimum, got %v", maxBins, edges[0])
		}
		for ind := 1; ind < len(edges); ind++ {
			if edges[ind] <= edges[ind-1] {
				t.Fatalf("max bins %d: edges are not strictly increasing: %v", maxBins, edges)
			}
		}
	}

	first := BuildBinLayout(sample, 8)
	second := BuildBinLayout(sample, 8)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("the layout is not deterministic: %v vs %v", first, second)
	}
}

func TestFeatureBinLayoutBin(t *testing.T) {
	layout := FeatureBinLayout{Edges: []float64{1, 3}}
	cases := []struct {
		v   float64
		bin int
	}{{-10, 0}, {1, 0}, {2.9, 0}, {3, 1}, {100, 1}}
	for _, c := range cases {
		if got := layout.Bin(c.v); got != c.bin {
			t.Fatalf("value %v: expected bin %d, got %d", c.v, c.bin, got)
		}
	}
}

func TestRebaseOffsets(t *testing.T) {
	layouts := []FeatureBinLayout{
		{Feature: 5, Edges: []float64{0, 1, 2}, Offset: 10},
		{Feature: 7, Edges: nil, Offset: 1},
		{Feature: 0, Edges: []float64{4}, Offset: 0},
	}
	RebaseOffsets(layouts)
	for q, expected := range []int{0, 3, 3} {
		if layouts[q].Offset != expected || layouts[q].Feature != q {
			t.Fatalf("feature %d: expected offset %d, got %+v", q, expected, layouts[q])
		}
	}
}
