package stl

import (
	"log/slog"
	"time"

	"github.com/pkg/errors"
)

// SplitSelector chooses the split of a branch from its sketch. It returns false
// when the branch should not be split, which includes degenerate histograms.
type SplitSelector interface {
	SelectSplit(hc *HistogramCanvas, mc *MissingCanvas) (SplitDecision, bool)
}

// SplitSelectorFunc wraps a function with the SelectSplit signature to implement
// the SplitSelector interface.
type SplitSelectorFunc func(hc *HistogramCanvas, mc *MissingCanvas) (SplitDecision, bool)

// SelectSplit invokes the SplitSelectorFunc.
func (f SplitSelectorFunc) SelectSplit(hc *HistogramCanvas, mc *MissingCanvas) (SplitDecision, bool) {
	return f(hc, mc)
}

// LeafPredicate decides whether a freshly created branch stops growing. The root
// is offered with a nil parent.
type LeafPredicate interface {
	IsLeaf(branch, parent *Branch) bool
}

// LeafPredicateFunc wraps a function with the IsLeaf signature to implement the
// LeafPredicate interface.
type LeafPredicateFunc func(branch, parent *Branch) bool

// IsLeaf invokes the LeafPredicateFunc.
func (f LeafPredicateFunc) IsLeaf(branch, parent *Branch) bool {
	return f(branch, parent)
}

// DiagnosticKind tells why a branch was turned into a leaf without the leaf
// predicate asking for it.
type DiagnosticKind int

const (
	NoSplit DiagnosticKind = iota
	DegenerateHistogram
	DegeneratePartition
	SketchFailed
)

func (k DiagnosticKind) String() string {
	switch k {
	case NoSplit:
		return "no_split"
	case DegenerateHistogram:
		return "degenerate_histogram"
	case DegeneratePartition:
		return "degenerate_partition"
	case SketchFailed:
		return "sketch_failed"
	}
	return "unknown"
}

// Diagnostic reports a forced leaf.
type Diagnostic struct {
	Kind   DiagnosticKind
	PathID string
	Rows   int
}

// DiagnosticFunc receives diagnostics. Growth is never altered by it.
type DiagnosticFunc func(Diagnostic)

// Grower grows one tree over a dataset. The canvases are owned by the grower and
// reused for every branch of a Grow call.
type Grower struct {
	Layouts       []FeatureBinLayout
	Histogram     *HistogramCanvas
	Missing       *MissingCanvas
	Selector      SplitSelector
	LeafPredicate LeafPredicate
	Workers       int
	Diagnostic    DiagnosticFunc
	Metrics       *GrowthMetrics
	Logger        *slog.Logger

	// Steps is the number of branches taken from the worklist by the last Grow.
	Steps int
}

// NewRoot creates the root branch over rows [start, end).
func NewRoot(ds *Dataset, start, end int) *Branch {
	return newBranch(ds, "", start, end, nil)
}

// Grow splits the root until every branch is a leaf and returns the leaves
// indexed in the order they were finalized. Rows of the dataset inside the root
// range are reordered so that every leaf owns a contiguous range.
func (g *Grower) Grow(ds *Dataset, root *Branch) ([]Leaf, error) {
	if err := g.validate(ds); err != nil {
		return nil, err
	}
	g.Steps = 0

	var leaves []Leaf
	finalize := func(b *Branch) {
		b.IsLeaf = true
		leaves = append(leaves, Leaf{PathID: b.PathID, Path: b.Path, Value: b.Mean, Count: b.Count})
	}
	force := func(b *Branch, kind DiagnosticKind) {
		g.report(Diagnostic{Kind: kind, PathID: b.PathID, Rows: b.Count})
		finalize(b)
	}

	s := new(branchStack)
	if g.LeafPredicate.IsLeaf(root, nil) || root.Count == 0 {
		finalize(root)
	} else {
		s.Push(root)
	}

	for !s.Empty() {
		b := s.Pop()
		g.Steps++
		g.Metrics.branch()

		started := time.Now()
		err := Sketch(ds, b.Start, b.End, g.Layouts, g.Histogram, g.Missing, g.Workers)
		g.Metrics.sketched(time.Since(started))
		if err != nil {
			g.logger().Warn("sketch failed", "path", b.PathID, "error", err)
			force(b, SketchFailed)
			continue
		}

		decision, ok := g.Selector.SelectSplit(g.Histogram, g.Missing)
		if !ok {
			force(b, NoSplit)
			continue
		}
		if g.Histogram.MaxPopulated() < 2 {
			force(b, DegenerateHistogram)
			continue
		}

		split := Reorder(ds, b.Start, b.End, decision.Feature, decision.Threshold, decision.MissingLeft)
		if Degenerate(b.Start, b.End, split) {
			force(b, DegeneratePartition)
			continue
		}

		left := b.child(ds, decision, Left, b.Start, split)
		right := b.child(ds, decision, Right, split, b.End)
		leftLeaf := g.LeafPredicate.IsLeaf(left, b)
		rightLeaf := g.LeafPredicate.IsLeaf(right, b)
		if leftLeaf {
			finalize(left)
		}
		if rightLeaf {
			finalize(right)
		}
		// right first so that the left subtree is grown next
		if !rightLeaf {
			s.Push(right)
		}
		if !leftLeaf {
			s.Push(left)
		}
	}

	for ind := range leaves {
		leaves[ind].Index = ind
	}
	g.Metrics.grown(len(leaves))
	g.logger().Debug("tree grown", "leaves", len(leaves), "steps", g.Steps)
	return leaves, nil
}

func (g *Grower) validate(ds *Dataset) error {
	if len(g.Layouts) == 0 || ds.Width() == 0 {
		return ErrNoFeatures
	}
	if len(g.Layouts) != ds.Width() {
		return errors.Wrapf(ErrShapeMismatch, "%d bin layouts for %d features", len(g.Layouts), ds.Width())
	}
	if g.Histogram == nil || g.Missing == nil {
		return ErrCanvasNotAllocated
	}
	if g.Selector == nil || g.LeafPredicate == nil {
		return ErrNoPolicy
	}
	return nil
}

func (g *Grower) report(d Diagnostic) {
	g.logger().Debug("forced leaf", "reason", d.Kind.String(), "path", d.PathID, "rows", d.Rows)
	g.Metrics.forced(d.Kind)
	if g.Diagnostic != nil {
		g.Diagnostic(d)
	}
}

func (g *Grower) logger() *slog.Logger {
	if g.Logger == nil {
		return slog.Default()
	}
	return g.Logger
}

// lifo stack of branches waiting for a split
type branchStack []*Branch

func (s branchStack) Empty() bool     { return len(s) == 0 }
func (s *branchStack) Push(b *Branch) { *s = append(*s, b) }
func (s *branchStack) Pop() *Branch {
	b := (*s)[len(*s)-1]
	*s = (*s)[:len(*s)-1]
	return b
}
