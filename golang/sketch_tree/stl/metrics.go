package stl

import (
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// GrowthMetrics counts the work done by growers. A nil *GrowthMetrics is valid
// and records nothing.
type GrowthMetrics struct {
	Branches     prometheus.Counter
	Leaves       prometheus.Counter
	ForcedLeaves *prometheus.CounterVec
	SketchTime   prometheus.Histogram
}

// NewGrowthMetrics creates the collectors and registers them.
func NewGrowthMetrics(reg prometheus.Registerer) (*GrowthMetrics, error) {
	m := &GrowthMetrics{
		Branches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sketch_tree_branches_total",
			Help: "Branches taken from the growth worklist.",
		}),
		Leaves: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sketch_tree_leaves_total",
			Help: "Leaves produced by finished trees.",
		}),
		ForcedLeaves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sketch_tree_forced_leaves_total",
			Help: "Branches turned into leaves because they could not be split.",
		}, []string{"reason"}),
		SketchTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sketch_tree_sketch_seconds",
			Help:    "Time spent filling histogram canvases.",
			Buckets: prometheus.ExponentialBuckets(1e-5, 4, 10),
		}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.Branches, m.Leaves, m.ForcedLeaves, m.SketchTime} {
		if err := reg.Register(c); err != nil {
			return nil, errors.Wrap(err, "register growth metrics")
		}
	}
	return m, nil
}

func (m *GrowthMetrics) branch() {
	if m == nil {
		return
	}
	m.Branches.Inc()
}

func (m *GrowthMetrics) sketched(d time.Duration) {
	if m == nil {
		return
	}
	m.SketchTime.Observe(d.Seconds())
}

func (m *GrowthMetrics) forced(kind DiagnosticKind) {
	if m == nil {
		return
	}
	m.ForcedLeaves.WithLabelValues(kind.String()).Inc()
}

func (m *GrowthMetrics) grown(leaves int) {
	if m == nil {
		return
	}
	m.Leaves.Add(float64(leaves))
}
