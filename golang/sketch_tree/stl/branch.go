package stl

import (
	"fmt"
	"strings"
)

// Direction is a side of a split.
type Direction byte

const (
	Left  Direction = 'L'
	Right Direction = 'R'
)

func (d Direction) String() string {
	return string(d)
}

// Opposite returns the other side.
func (d Direction) Opposite() Direction {
	if d == Left {
		return Right
	}
	return Left
}

// Predicate is one step of a path from the root. A row goes left when its value
// of the feature is less than the threshold, or when the value is missing and
// MissingLeft is set.
type Predicate struct {
	Feature     int
	Threshold   float64
	Direction   Direction
	MissingLeft bool
}

// Side returns the direction a value is routed to by the split of the predicate.
func (p Predicate) Side(v float64) Direction {
	if IsMissing(v) {
		if p.MissingLeft {
			return Left
		}
		return Right
	}
	if v < p.Threshold {
		return Left
	}
	return Right
}

// Holds reports whether a value satisfies the predicate.
func (p Predicate) Holds(v float64) bool {
	return p.Side(v) == p.Direction
}

func (p Predicate) String() string {
	op := "<"
	if p.Direction == Right {
		op = ">="
	}
	return fmt.Sprintf("f_%d %s %g", p.Feature, op, p.Threshold)
}

// SplitDecision is the split chosen by a split selector for one branch.
type SplitDecision struct {
	Feature     int
	Threshold   float64
	MissingLeft bool
	Gain        float64
}

func (d SplitDecision) predicate(dir Direction) Predicate {
	return Predicate{Feature: d.Feature, Threshold: d.Threshold, Direction: dir, MissingLeft: d.MissingLeft}
}

// Branch is a tree node under construction. It owns the rows [Start, End) of the
// dataset being grown.
type Branch struct {
	PathID     string
	Start, End int
	Path       []Predicate
	Depth      int
	Mean       float64
	Count      int
	IsLeaf     bool
}

func newBranch(ds *Dataset, pathID string, start, end int, path []Predicate) *Branch {
	count, mean := ds.rangeMean(start, end)
	return &Branch{PathID: pathID, Start: start, End: end, Path: path, Depth: len(path), Mean: mean, Count: count}
}

// child builds the branch reached from b through the given decision side.
func (b *Branch) child(ds *Dataset, decision SplitDecision, dir Direction, start, end int) *Branch {
	path := make([]Predicate, len(b.Path), len(b.Path)+1)
	copy(path, b.Path)
	path = append(path, decision.predicate(dir))
	return newBranch(ds, b.PathID+dir.String(), start, end, path)
}

// Leaf is a finalized branch. Index is its position in the list returned by Grow.
type Leaf struct {
	Index  int
	PathID string
	Path   []Predicate
	Value  float64
	Count  int
}

// Depth returns the number of splits above the leaf.
func (leaf Leaf) Depth() int {
	return len(leaf.Path)
}

// Matches reports whether a row satisfies every predicate of the leaf path.
func (leaf Leaf) Matches(row []float64) bool {
	for _, p := range leaf.Path {
		if !p.Holds(row[p.Feature]) {
			return false
		}
	}
	return true
}

func (leaf Leaf) String() string {
	steps := make([]string, len(leaf.Path))
	for ind, p := range leaf.Path {
		steps[ind] = p.String()
	}
	return fmt.Sprintf("leaf %d [%s] value=%g count=%d", leaf.Index, strings.Join(steps, ", "), leaf.Value, leaf.Count)
}
