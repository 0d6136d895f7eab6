package stl

import (
	"math"
	"reflect"
	"testing"

	"github.com/pkg/errors"
)

// three leaves: f0 < 2 | f0 >= 2 & f1 < 0 | f0 >= 2 & f1 >= 0
func handLeaves() []Leaf {
	root := SplitDecision{Feature: 0, Threshold: 2, MissingLeft: true}
	second := SplitDecision{Feature: 1, Threshold: 0}
	paths := [][]Predicate{
		{root.predicate(Left)},
		{root.predicate(Right), second.predicate(Left)},
		{root.predicate(Right), second.predicate(Right)},
	}
	values := []float64{2, -1, 4}
	counts := []int{3, 1, 2}
	leaves := make([]Leaf, len(paths))
	for ind, path := range paths {
		leaves[ind] = Leaf{Index: ind, PathID: pathIDOf(path), Path: path, Value: values[ind], Count: counts[ind]}
	}
	return leaves
}

func TestBuildFlatTree(t *testing.T) {
	tree, err := BuildFlatTree(handLeaves())
	if err != nil {
		t.Fatal(err)
	}
	if len(tree.Index) != 5 || len(tree.Values) != 5 {
		t.Fatalf("expected 5 records, got %d", len(tree.Index))
	}
	if tree.Index[0].IsLeaf || tree.Index[0].Feature != 0 || tree.Values[0] != 2 || tree.Index[0].Count != 6 {
		t.Fatalf("unexpected root record %+v", tree.Index[0])
	}
	if tree.NLeaves() != 3 || tree.Width() != 2 {
		t.Fatalf("expected 3 leaves and width 2, got %d and %d", tree.NLeaves(), tree.Width())
	}
	for ind, node := range tree.Index {
		if !node.IsLeaf && (node.Left <= ind || node.Right <= ind) {
			t.Fatalf("record %d points backwards: %+v", ind, node)
		}
	}

	cases := []struct {
		row   []float64
		value float64
		leaf  int
	}{
		{[]float64{1, 100}, 2, 0},
		{[]float64{math.NaN(), 100}, 2, 0},
		{[]float64{2, -5}, -1, 1},
		{[]float64{3, math.NaN()}, 4, 2},
		{[]float64{3, 0}, 4, 2},
	}
	for _, c := range cases {
		if got := tree.Apply(c.row, PredictRaw); got != c.value {
			t.Fatalf("row %v: expected %v, got %v", c.row, c.value, got)
		}
		if got := tree.LeafOf(c.row); got != c.leaf {
			t.Fatalf("row %v: expected leaf %d, got %d", c.row, c.leaf, got)
		}
	}

	again, err := BuildFlatTree(handLeaves())
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(tree, again) {
		t.Fatal("flattening the same leaves twice gave different trees")
	}
}

func TestApplyRounded(t *testing.T) {
	tree, err := BuildFlatTree([]Leaf{{Value: 0.7, Count: 3}})
	if err != nil {
		t.Fatal(err)
	}
	if got := tree.Apply([]float64{}, PredictRounded); got != 1 {
		t.Fatalf("expected 1, got %v", got)
	}
	if got := tree.Apply(nil, PredictRaw); got != 0.7 {
		t.Fatalf("expected 0.7, got %v", got)
	}
}

func TestBuildFlatTreeRejectsMalformedLeaves(t *testing.T) {
	leaves := handLeaves()
	cases := map[string][]Leaf{
		"empty":         nil,
		"missing child": leaves[:2],
		"duplicate":     {leaves[0], leaves[1], leaves[2], leaves[0]},
		"below a leaf":  {{Value: 1}, leaves[0]},
	}
	conflicting := handLeaves()
	conflicting[2].Path[1].Threshold = 5
	cases["conflicting split"] = conflicting

	for name, c := range cases {
		if _, err := BuildFlatTree(c); !errors.Is(err, ErrMalformedTree) {
			t.Fatalf("%s: expected ErrMalformedTree, got %v", name, err)
		}
	}
}
