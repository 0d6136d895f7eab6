package stl

import (
	"math"
	"testing"

	"github.com/pkg/errors"
)

func TestAllocate(t *testing.T) {
	layouts := []FeatureBinLayout{
		{Feature: 0, Edges: []float64{1, 3}, Offset: 0},
		{Feature: 1, Edges: []float64{-2, 0, 2}, Offset: 2},
	}
	hc, mc, err := Allocate(layouts)
	if err != nil {
		t.Fatal(err)
	}
	if hc.Size() != 5 || hc.NFeatures() != 2 || mc.Size() != 2 {
		t.Fatalf("unexpected sizes: %d bins, %d features, %d missing", hc.Size(), hc.NFeatures(), mc.Size())
	}
	expectedFeatures := []int{0, 0, 1, 1, 1}
	expectedBins := []int{0, 1, 0, 1, 2}
	expectedLower := []float64{1, 3, -2, 0, 2}
	expectedUpper := []float64{3, math.Inf(1), 0, 2, math.Inf(1)}
	for i := 0; i < hc.Size(); i++ {
		if hc.FeatureIds[i] != expectedFeatures[i] || hc.BinIds[i] != expectedBins[i] ||
			hc.Lower[i] != expectedLower[i] || hc.Upper[i] != expectedUpper[i] {
			t.Fatalf("bin %d: unexpected descriptor (%d, %d, %v, %v)", i, hc.FeatureIds[i], hc.BinIds[i], hc.Lower[i], hc.Upper[i])
		}
	}
	lo, hi := hc.FeatureRange(1)
	if lo != 2 || hi != 5 {
		t.Fatalf("expected range [2, 5), got [%d, %d)", lo, hi)
	}
}

func TestAllocateErrors(t *testing.T) {
	if _, _, err := Allocate(nil); !errors.Is(err, ErrNoFeatures) {
		t.Fatalf("expected ErrNoFeatures, got %v", err)
	}
	bad := []FeatureBinLayout{{Edges: []float64{0}, Offset: 0}, {Edges: []float64{0}, Offset: 3}}
	if _, _, err := Allocate(bad); err == nil {
		t.Fatal("expected an error for overlapping offsets")
	}
}

func TestResetKeepsDescriptors(t *testing.T) {
	ds := mustDataset(t, [][]float64{{1}, {5}, {5}}, []float64{1, 2, 3})
	layouts := []FeatureBinLayout{{Feature: 0, Edges: []float64{1, 3}}}
	hc, mc, err := Allocate(layouts)
	if err != nil {
		t.Fatal(err)
	}
	if err := Sketch(ds, 0, 3, layouts, hc, mc, 1); err != nil {
		t.Fatal(err)
	}
	if hc.Count(1) != 2 || hc.SumY(1) != 5 {
		t.Fatalf("unexpected bin 1 statistics: %v %v", hc.Count(1), hc.SumY(1))
	}
	hc.Reset()
	mc.Reset()
	for i := 0; i < hc.Size(); i++ {
		if hc.Count(i) != 0 || hc.SumY(i) != 0 || hc.SumZ(i) != 0 {
			t.Fatalf("bin %d is not zeroed", i)
		}
	}
	if hc.Lower[1] != 3 || hc.FeatureIds[1] != 0 || hc.BinIds[1] != 1 {
		t.Fatal("reset must not touch the descriptors")
	}
}
