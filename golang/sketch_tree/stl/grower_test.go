package stl

import (
	"testing"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

func newGrower(t *testing.T, layouts []FeatureBinLayout, selector SplitSelector, predicate LeafPredicate) *Grower {
	t.Helper()
	hc, mc, err := Allocate(layouts)
	if err != nil {
		t.Fatal(err)
	}
	return &Grower{Layouts: layouts, Histogram: hc, Missing: mc, Selector: selector, LeafPredicate: predicate, Workers: 2}
}

func TestGrowTwoClusters(t *testing.T) {
	ds := mustDataset(t, [][]float64{{1}, {1}, {5}, {5}}, []float64{0, 0, 10, 10})
	layouts := BuildBinLayout(ds.X, 4)
	g := newGrower(t, layouts, VarianceSplitSelector{MinLeafCount: 1}, DefaultGrowthLimits())

	leaves, err := g.Grow(ds, NewRoot(ds, 0, 4))
	if err != nil {
		t.Fatal(err)
	}
	if len(leaves) != 2 {
		t.Fatalf("expected 2 leaves, got %d", len(leaves))
	}
	threshold := leaves[0].Path[0].Threshold
	if threshold <= 1 || threshold >= 5 {
		t.Fatalf("expected a threshold between 1 and 5, got %v", threshold)
	}
	values := map[string]float64{}
	for ind, leaf := range leaves {
		if leaf.Index != ind {
			t.Fatalf("leaf %d has index %d", ind, leaf.Index)
		}
		values[leaf.PathID] = leaf.Value
	}
	if values["L"] != 0 || values["R"] != 10 {
		t.Fatalf("expected leaf means 0 and 10, got %v", values)
	}
}

func TestGrowIdenticalRows(t *testing.T) {
	rows := [][]float64{{2, 3}, {2, 3}, {2, 3}, {2, 3}}
	ds := mustDataset(t, rows, []float64{1, 2, 3, 6})
	layouts := BuildBinLayout(ds.X, 8)

	calls := 0
	selector := SplitSelectorFunc(func(hc *HistogramCanvas, mc *MissingCanvas) (SplitDecision, bool) {
		calls++
		if hc.MaxPopulated() != 1 {
			t.Fatalf("expected one populated bin, got %d", hc.MaxPopulated())
		}
		return VarianceSplitSelector{}.SelectSplit(hc, mc)
	})
	var diagnostics []Diagnostic
	g := newGrower(t, layouts, selector, GrowthLimits{MaxDepth: -1})
	g.Diagnostic = func(d Diagnostic) { diagnostics = append(diagnostics, d) }

	leaves, err := g.Grow(ds, NewRoot(ds, 0, 4))
	if err != nil {
		t.Fatal(err)
	}
	if calls != 1 || len(leaves) != 1 {
		t.Fatalf("expected one selector call and one leaf, got %d and %d", calls, len(leaves))
	}
	if leaves[0].Value != 3 || leaves[0].Count != 4 || leaves[0].PathID != "" {
		t.Fatalf("unexpected leaf %v", leaves[0])
	}
	if len(diagnostics) != 1 || diagnostics[0].Kind != NoSplit || diagnostics[0].Rows != 4 {
		t.Fatalf("unexpected diagnostics %v", diagnostics)
	}
}

func TestGrowForcedLeaves(t *testing.T) {
	always := func(threshold float64) SplitSelector {
		return SplitSelectorFunc(func(*HistogramCanvas, *MissingCanvas) (SplitDecision, bool) {
			return SplitDecision{Feature: 0, Threshold: threshold}, true
		})
	}
	cases := []struct {
		name      string
		rows      [][]float64
		threshold float64
		kind      DiagnosticKind
	}{
		{"one populated bin", [][]float64{{1}, {1}, {1}}, 0.5, DegenerateHistogram},
		{"empty side", [][]float64{{1}, {2}, {3}}, -100, DegeneratePartition},
	}
	for _, c := range cases {
		ds := mustDataset(t, c.rows, []float64{1, 2, 3})
		g := newGrower(t, BuildBinLayout(ds.X, 4), always(c.threshold), GrowthLimits{MaxDepth: -1})
		var got []Diagnostic
		g.Diagnostic = func(d Diagnostic) { got = append(got, d) }
		leaves, err := g.Grow(ds, NewRoot(ds, 0, 3))
		if err != nil {
			t.Fatal(err)
		}
		if len(leaves) != 1 || leaves[0].Value != 2 {
			t.Fatalf("%s: expected a single leaf with mean 2, got %v", c.name, leaves)
		}
		if len(got) != 1 || got[0].Kind != c.kind {
			t.Fatalf("%s: expected a %v diagnostic, got %v", c.name, c.kind, got)
		}
	}
}

func TestGrowSketchFailureForcesLeaf(t *testing.T) {
	ds := mustDataset(t, [][]float64{{1, 1}, {2, 2}, {3, 3}}, []float64{1, 2, 3})
	layouts := BuildBinLayout(ds.X, 4)
	g := newGrower(t, layouts[:1], VarianceSplitSelector{}, GrowthLimits{MaxDepth: -1})
	g.Layouts = layouts
	var got []Diagnostic
	g.Diagnostic = func(d Diagnostic) { got = append(got, d) }
	leaves, err := g.Grow(ds, NewRoot(ds, 0, 3))
	if err != nil {
		t.Fatal(err)
	}
	if len(leaves) != 1 || len(got) != 1 || got[0].Kind != SketchFailed {
		t.Fatalf("expected one leaf forced by a failed sketch, got %v and %v", leaves, got)
	}
}

func TestGrowConfigurationErrors(t *testing.T) {
	ds := mustDataset(t, [][]float64{{1}, {2}}, []float64{1, 2})
	layouts := BuildBinLayout(ds.X, 4)
	g := &Grower{Layouts: layouts, Selector: VarianceSplitSelector{}, LeafPredicate: DefaultGrowthLimits()}
	if _, err := g.Grow(ds, NewRoot(ds, 0, 2)); !errors.Is(err, ErrCanvasNotAllocated) {
		t.Fatalf("expected ErrCanvasNotAllocated, got %v", err)
	}
	g = newGrower(t, layouts, nil, DefaultGrowthLimits())
	if _, err := g.Grow(ds, NewRoot(ds, 0, 2)); !errors.Is(err, ErrNoPolicy) {
		t.Fatalf("expected ErrNoPolicy, got %v", err)
	}
	g = newGrower(t, layouts, VarianceSplitSelector{}, DefaultGrowthLimits())
	g.Layouts = nil
	if _, err := g.Grow(ds, NewRoot(ds, 0, 2)); !errors.Is(err, ErrNoFeatures) {
		t.Fatalf("expected ErrNoFeatures, got %v", err)
	}
}

func TestGrowLayoutWidthMismatch(t *testing.T) {
	wide := mustDataset(t, [][]float64{{1, 5}, {2, 6}, {3, 7}, {4, 8}}, []float64{1, 2, 3, 4})
	layouts := BuildBinLayout(wide.X, 4)
	narrow := mustDataset(t, [][]float64{{1}, {2}, {3}, {4}}, []float64{1, 2, 3, 4})
	g := newGrower(t, layouts, VarianceSplitSelector{}, GrowthLimits{MaxDepth: -1})
	leaves, err := g.Grow(narrow, NewRoot(narrow, 0, 4))
	if !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("expected ErrShapeMismatch, got %v", err)
	}
	if leaves != nil || g.Steps != 0 {
		t.Fatalf("nothing must be grown, got %v after %d steps", leaves, g.Steps)
	}
}

func TestGrowZeroDepth(t *testing.T) {
	ds := mustDataset(t, [][]float64{{1}, {5}}, []float64{0, 10})
	g := newGrower(t, BuildBinLayout(ds.X, 4), VarianceSplitSelector{}, GrowthLimits{MaxDepth: 0})
	leaves, err := g.Grow(ds, NewRoot(ds, 0, 2))
	if err != nil {
		t.Fatal(err)
	}
	if len(leaves) != 1 || leaves[0].Value != 5 || g.Steps != 0 {
		t.Fatalf("expected a single root leaf without steps, got %v after %d steps", leaves, g.Steps)
	}
}

func TestGrowEveryRowReachesOneLeaf(t *testing.T) {
	h := 400
	x, y, z := randomProblem(h, 4, 0.1, 7)
	original := mat.DenseCopyOf(x)
	ds, err := NewDataset(x, y, z)
	if err != nil {
		t.Fatal(err)
	}
	layouts := BuildBinLayout(ds.X, 12)
	g := newGrower(t, layouts, VarianceSplitSelector{MinLeafCount: 3}, GrowthLimits{MaxDepth: 6, MinSplit: 4})
	leaves, err := g.Grow(ds, NewRoot(ds, 0, h))
	if err != nil {
		t.Fatal(err)
	}
	if len(leaves) < 3 {
		t.Fatalf("expected the tree to split the clusters, got %d leaves", len(leaves))
	}
	if g.Steps > 2*h {
		t.Fatalf("growth took %d steps for %d rows", g.Steps, h)
	}

	tree, err := BuildFlatTree(leaves)
	if err != nil {
		t.Fatal(err)
	}
	counts := make([]int, len(leaves))
	for p := 0; p < h; p++ {
		row := original.RawRowView(p)
		matched := -1
		for ind, leaf := range leaves {
			if leaf.Matches(row) {
				if matched >= 0 {
					t.Fatalf("row %d matches leaves %d and %d", p, matched, ind)
				}
				matched = ind
			}
		}
		if matched < 0 {
			t.Fatalf("row %d matches no leaf", p)
		}
		counts[matched]++
		if got := tree.Apply(row, PredictRaw); got != leaves[matched].Value {
			t.Fatalf("row %d: tree gives %v, leaf %d holds %v", p, got, matched, leaves[matched].Value)
		}
		if tree.LeafOf(row) != matched {
			t.Fatalf("row %d: tree reaches leaf %d instead of %d", p, tree.LeafOf(row), matched)
		}
	}
	for ind, leaf := range leaves {
		if counts[ind] != leaf.Count {
			t.Fatalf("leaf %d: %d rows reach it, count is %d", ind, counts[ind], leaf.Count)
		}
	}
}

func TestGrowTerminatesWithGreedySelector(t *testing.T) {
	h := 64
	rows := make([][]float64, h)
	y := make([]float64, h)
	for p := range rows {
		rows[p] = []float64{float64(p)}
		y[p] = float64(p % 3)
	}
	ds := mustDataset(t, rows, y)
	layouts := BuildBinLayout(ds.X, 64)
	// splits every branch at its median bin as long as it can
	selector := SplitSelectorFunc(func(hc *HistogramCanvas, _ *MissingCanvas) (SplitDecision, bool) {
		var populated []int
		for i := 0; i < hc.Size(); i++ {
			if hc.Count(i) > 0 {
				populated = append(populated, i)
			}
		}
		if len(populated) < 2 {
			return SplitDecision{}, false
		}
		return SplitDecision{Feature: 0, Threshold: hc.Lower[populated[len(populated)/2]]}, true
	})
	g := newGrower(t, layouts, selector, GrowthLimits{MaxDepth: -1})
	leaves, err := g.Grow(ds, NewRoot(ds, 0, h))
	if err != nil {
		t.Fatal(err)
	}
	if len(leaves) != h {
		t.Fatalf("expected one leaf per row, got %d", len(leaves))
	}
	if g.Steps > 2*h {
		t.Fatalf("growth took %d steps for %d rows", g.Steps, h)
	}
}
