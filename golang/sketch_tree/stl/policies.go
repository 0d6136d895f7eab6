package stl

// VarianceSplitSelector picks the split with the largest second order gain
//
//	G_L²/(H_L+λ) + G_R²/(H_R+λ) − G²/(H+λ)
//
// where G is the target sum and H is the row count, or the weight sum when
// UseWeight is set. Rows with a missing value are tried on both sides.
type VarianceSplitSelector struct {
	MinLeafCount int
	Lambda       float64
	UseWeight    bool
	MinGain      float64
}

type stats struct {
	count, g, h float64
}

func (s stats) add(o stats) stats {
	return stats{s.count + o.count, s.g + o.g, s.h + o.h}
}

func (s stats) sub(o stats) stats {
	return stats{s.count - o.count, s.g - o.g, s.h - o.h}
}

func (sel VarianceSplitSelector) score(s stats) float64 {
	denominator := s.h + sel.Lambda
	if denominator <= 0 {
		return 0
	}
	return s.g * s.g / denominator
}

func (sel VarianceSplitSelector) binStats(hc *HistogramCanvas, i int) stats {
	s := stats{count: hc.Count(i), g: hc.SumY(i), h: hc.Count(i)}
	if sel.UseWeight {
		s.h = hc.SumZ(i)
	}
	return s
}

func (sel VarianceSplitSelector) missingStats(mc *MissingCanvas, q int) stats {
	s := stats{count: mc.Count(q), g: mc.SumY(q), h: mc.Count(q)}
	if sel.UseWeight {
		s.h = mc.SumZ(q)
	}
	return s
}

// SelectSplit scans the bins of every feature left to right.
func (sel VarianceSplitSelector) SelectSplit(hc *HistogramCanvas, mc *MissingCanvas) (SplitDecision, bool) {
	minLeaf := float64(sel.MinLeafCount)
	if minLeaf < 1 {
		minLeaf = 1
	}

	var best SplitDecision
	firstTime := true
	for q := 0; q < hc.NFeatures(); q++ {
		lo, hi := hc.FeatureRange(q)
		missing := sel.missingStats(mc, q)
		total := missing
		for i := lo; i < hi; i++ {
			total = total.add(sel.binStats(hc, i))
		}
		parent := sel.score(total)

		var left stats
		for i := lo; i < hi-1; i++ {
			left = left.add(sel.binStats(hc, i))
			right := total.sub(left).sub(missing)
			candidates := []struct {
				left, right stats
				missingLeft bool
			}{
				{left, right.add(missing), false},
				{left.add(missing), right, true},
			}
			if missing.count == 0 {
				candidates = candidates[:1]
				candidates[0].missingLeft = left.count >= right.count
			}
			for _, c := range candidates {
				if c.left.count < minLeaf || c.right.count < minLeaf {
					continue
				}
				gain := sel.score(c.left) + sel.score(c.right) - parent
				if gain > sel.MinGain && (firstTime || gain > best.Gain) {
					firstTime = false
					best = SplitDecision{Feature: q, Threshold: hc.Lower[i+1], MissingLeft: c.missingLeft, Gain: gain}
				}
			}
		}
	}
	return best, !firstTime
}

// GrowthLimits is a leaf predicate bounding depth and branch size. A negative
// MaxDepth means no depth limit.
type GrowthLimits struct {
	MaxDepth int
	MinSplit int
}

// DefaultGrowthLimits returns the limits used when none are configured.
func DefaultGrowthLimits() GrowthLimits {
	return GrowthLimits{MaxDepth: 6, MinSplit: 2}
}

// IsLeaf reports whether the branch must stop growing.
func (l GrowthLimits) IsLeaf(branch, _ *Branch) bool {
	if l.MaxDepth >= 0 && branch.Depth >= l.MaxDepth {
		return true
	}
	return branch.Count < l.MinSplit || branch.Count < 2
}
