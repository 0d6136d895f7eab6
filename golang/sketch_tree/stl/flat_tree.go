package stl

import (
	"math"

	"github.com/pkg/errors"
)

// NodeIndex is a record of the index table of a flat tree. Left and Right are -1
// for a terminal record; LeafIndex is -1 for an internal one.
type NodeIndex struct {
	Feature     int
	Left, Right int
	IsLeaf      bool
	MissingLeft bool
	LeafIndex   int
	Count       int
}

// FlatTree is a tree stored in two parallel arrays. Values holds the threshold of
// an internal record and the prediction of a terminal one. The root is record 0.
type FlatTree struct {
	Index  []NodeIndex
	Values []float64
}

// PredictMode selects the post-processing of a tree output.
type PredictMode int

const (
	PredictRaw PredictMode = iota
	PredictRounded
)

func pathIDOf(path []Predicate) string {
	id := make([]byte, len(path))
	for ind, p := range path {
		id[ind] = byte(p.Direction)
	}
	return string(id)
}

// BuildFlatTree turns an ordered leaf list into a flat tree. Records are created
// in the order their path prefixes are first met while walking the leaves, so the
// same list always gives the same arrays.
func BuildFlatTree(leaves []Leaf) (*FlatTree, error) {
	if len(leaves) == 0 {
		return nil, errors.Wrap(ErrMalformedTree, "no leaves")
	}

	tree := &FlatTree{}
	ids := make(map[string]int)
	prefixes := make([]string, 0)
	newNode := func(prefix string, node NodeIndex, value float64) int {
		ind := len(tree.Index)
		ids[prefix] = ind
		prefixes = append(prefixes, prefix)
		tree.Index = append(tree.Index, node)
		tree.Values = append(tree.Values, value)
		return ind
	}

	for leafInd, leaf := range leaves {
		pathID := pathIDOf(leaf.Path)
		for depth, p := range leaf.Path {
			prefix := pathID[:depth]
			ind, ok := ids[prefix]
			if !ok {
				newNode(prefix, NodeIndex{Feature: p.Feature, Left: -1, Right: -1, MissingLeft: p.MissingLeft, LeafIndex: -1}, p.Threshold)
				continue
			}
			node := tree.Index[ind]
			if node.IsLeaf {
				return nil, errors.Wrapf(ErrMalformedTree, "leaf %d continues below the leaf at %q", leafInd, prefix)
			}
			if node.Feature != p.Feature || tree.Values[ind] != p.Threshold || node.MissingLeft != p.MissingLeft {
				return nil, errors.Wrapf(ErrMalformedTree, "leaf %d disagrees on the split at %q", leafInd, prefix)
			}
		}
		if _, ok := ids[pathID]; ok {
			return nil, errors.Wrapf(ErrMalformedTree, "leaf %d reuses the node at %q", leafInd, pathID)
		}
		newNode(pathID, NodeIndex{Feature: -1, Left: -1, Right: -1, IsLeaf: true, LeafIndex: leafInd, Count: leaf.Count}, leaf.Value)
	}

	for ind, prefix := range prefixes {
		node := &tree.Index[ind]
		if node.IsLeaf {
			continue
		}
		left, okLeft := ids[prefix+Left.String()]
		right, okRight := ids[prefix+Right.String()]
		if !okLeft || !okRight {
			return nil, errors.Wrapf(ErrMalformedTree, "the node at %q has a missing child", prefix)
		}
		node.Left, node.Right = left, right
	}
	// children always follow their parent
	for ind := len(prefixes) - 1; ind >= 0; ind-- {
		node := &tree.Index[ind]
		if !node.IsLeaf {
			node.Count = tree.Index[node.Left].Count + tree.Index[node.Right].Count
		}
	}
	return tree, nil
}

// Width returns the smallest row width the tree can be applied to.
func (tree *FlatTree) Width() int {
	w := 0
	for _, node := range tree.Index {
		if !node.IsLeaf && node.Feature+1 > w {
			w = node.Feature + 1
		}
	}
	return w
}

// NLeaves returns the number of terminal records.
func (tree *FlatTree) NLeaves() int {
	n := 0
	for _, node := range tree.Index {
		if node.IsLeaf {
			n++
		}
	}
	return n
}

// Descend returns the terminal record reached by the row.
func (tree *FlatTree) Descend(row []float64) int {
	ind := 0
	for !tree.Index[ind].IsLeaf {
		node := tree.Index[ind]
		v := row[node.Feature]
		goLeft := v < tree.Values[ind]
		if IsMissing(v) {
			goLeft = node.MissingLeft
		}
		if goLeft {
			ind = node.Left
		} else {
			ind = node.Right
		}
	}
	return ind
}

// Apply returns the prediction of the tree for one row.
func (tree *FlatTree) Apply(row []float64, mode PredictMode) float64 {
	value := tree.Values[tree.Descend(row)]
	if mode == PredictRounded {
		return math.Round(value)
	}
	return value
}

// LeafOf returns the leaf index reached by the row.
func (tree *FlatTree) LeafOf(row []float64) int {
	return tree.Index[tree.Descend(row)].LeafIndex
}
