package stl

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// FeatureImportances estimates how much each feature contributes to the tree.
// Every leaf adds |value|·count to each distinct feature on its path; the vector
// is divided by the number of leaves and then normalized to sum to one. A tree
// without splits gives an all-zero vector.
func FeatureImportances(leaves []Leaf, nFeatures int) []float64 {
	for _, leaf := range leaves {
		for _, p := range leaf.Path {
			if p.Feature >= nFeatures {
				nFeatures = p.Feature + 1
			}
		}
	}
	imp := make([]float64, nFeatures)
	if len(leaves) == 0 {
		return imp
	}

	seen := make(map[int]bool)
	for _, leaf := range leaves {
		clear(seen)
		weight := math.Abs(leaf.Value) * float64(leaf.Count)
		for _, p := range leaf.Path {
			if !seen[p.Feature] {
				seen[p.Feature] = true
				imp[p.Feature] += weight
			}
		}
	}

	floats.Scale(1/float64(len(leaves)), imp)
	total := floats.Sum(imp)
	if total == 0 {
		return imp
	}
	// normalize
	floats.Scale(1/total, imp)
	return imp
}

// SiblingPair holds the indices of two leaves split by the same node. Second is
// -1 when the first leaf has no leaf sibling.
type SiblingPair struct {
	First, Second int
}

// HasSibling reports whether the pair is complete.
func (sp SiblingPair) HasSibling() bool {
	return sp.Second >= 0
}

// SiblingPairs pairs the leaves whose path ids differ only in the last
// direction. Pairs are ordered by the first leaf of each pair.
func SiblingPairs(leaves []Leaf) []SiblingPair {
	byPath := make(map[string]int, len(leaves))
	for ind, leaf := range leaves {
		byPath[leaf.PathID] = ind
	}

	paired := make([]bool, len(leaves))
	var pairs []SiblingPair
	for ind, leaf := range leaves {
		if paired[ind] {
			continue
		}
		paired[ind] = true
		pair := SiblingPair{First: ind, Second: -1}
		if n := len(leaf.PathID); n > 0 {
			last := Direction(leaf.PathID[n-1])
			if other, ok := byPath[leaf.PathID[:n-1]+last.Opposite().String()]; ok && !paired[other] {
				paired[other] = true
				pair.Second = other
			}
		}
		pairs = append(pairs, pair)
	}
	return pairs
}
