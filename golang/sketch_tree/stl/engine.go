package stl

import (
	"log/slog"
	"runtime"
	"sync/atomic"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// Engine fits a single tree and predicts with it. A fitted model is swapped in
// as a whole, so Predict may run concurrently with Fit or Load.
type Engine struct {
	maxBins       int
	subsampleRate float64
	seed          int64
	workers       int
	sampleRows    int
	selector      SplitSelector
	leafPredicate LeafPredicate
	diagnostic    DiagnosticFunc
	logger        *slog.Logger
	metrics       *GrowthMetrics
	featureNames  []string

	model atomic.Pointer[fittedModel]
}

type fittedModel struct {
	tree     *FlatTree
	leaves   []Leaf
	layouts  []FeatureBinLayout
	width    int
	outOfBag []int
	// loaded trees only know the widest feature they split on
	loaded bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxBins sets the largest number of bins per feature.
func WithMaxBins(n int) Option { return func(e *Engine) { e.maxBins = n } }

// WithSubsampleRate sets the probability of a row to be used by a fit.
func WithSubsampleRate(rate float64) Option { return func(e *Engine) { e.subsampleRate = rate } }

// WithSeed sets the seed of the subsampler.
func WithSeed(seed int64) Option { return func(e *Engine) { e.seed = seed } }

// WithWorkers sets the number of goroutines used by sketching and prediction.
func WithWorkers(n int) Option { return func(e *Engine) { e.workers = n } }

// WithSampleRows bounds the number of rows the quantizer looks at. Zero means
// every in-bag row.
func WithSampleRows(n int) Option { return func(e *Engine) { e.sampleRows = n } }

// WithSplitSelector replaces the default split selector.
func WithSplitSelector(s SplitSelector) Option { return func(e *Engine) { e.selector = s } }

// WithLeafPredicate replaces the default growth limits.
func WithLeafPredicate(p LeafPredicate) Option { return func(e *Engine) { e.leafPredicate = p } }

// WithDiagnostic installs a callback receiving forced leaf reports.
func WithDiagnostic(f DiagnosticFunc) Option { return func(e *Engine) { e.diagnostic = f } }

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option { return func(e *Engine) { e.logger = logger } }

// WithMetrics sets the growth metrics.
func WithMetrics(m *GrowthMetrics) Option { return func(e *Engine) { e.metrics = m } }

// WithFeatureNames sets the names used by Dump and rendering.
func WithFeatureNames(names []string) Option { return func(e *Engine) { e.featureNames = names } }

// NewEngine creates an engine. Defaults: 64 bins, no subsampling, variance
// splits and DefaultGrowthLimits.
func NewEngine(options ...Option) *Engine {
	e := &Engine{
		maxBins:       64,
		subsampleRate: 1,
		workers:       runtime.GOMAXPROCS(0),
		selector:      VarianceSplitSelector{MinLeafCount: 1},
		leafPredicate: DefaultGrowthLimits(),
		logger:        slog.Default(),
	}
	for _, option := range options {
		option(e)
	}
	if e.workers <= 0 {
		e.workers = runtime.GOMAXPROCS(0)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// Fit grows a tree on X, y and the weight z. A nil z means unit weights and nil
// layouts are built from the in-bag rows. The inputs are copied.
func (e *Engine) Fit(X *mat.Dense, y, z []float64, layouts []FeatureBinLayout) error {
	if X == nil {
		return errors.Wrap(ErrShapeMismatch, "nil feature matrix")
	}
	target := append([]float64(nil), y...)
	var weight []float64
	if z != nil {
		weight = append([]float64(nil), z...)
	}
	ds, err := NewDataset(mat.DenseCopyOf(X), target, weight)
	if err != nil {
		return errors.Wrap(err, "fit")
	}
	h, w := ds.Height(), ds.Width()

	mask := Subsample(h, e.subsampleRate, e.seed)
	inBag := partitionRows(ds, 0, h, func(p int) bool { return mask[ds.RecordIds[p]] })

	if layouts == nil {
		layouts = BuildBinLayout(e.quantizerSample(ds, inBag), e.maxBins)
	} else {
		if len(layouts) != w {
			return errors.Wrapf(ErrShapeMismatch, "%d bin layouts for %d features", len(layouts), w)
		}
		layouts = copyLayouts(layouts)
		RebaseOffsets(layouts)
	}

	hc, mc, err := Allocate(layouts)
	if err != nil {
		return errors.Wrap(err, "allocate canvases")
	}
	grower := &Grower{
		Layouts:       layouts,
		Histogram:     hc,
		Missing:       mc,
		Selector:      e.selector,
		LeafPredicate: e.leafPredicate,
		Workers:       e.workers,
		Diagnostic:    e.diagnostic,
		Metrics:       e.metrics,
		Logger:        e.logger,
	}
	leaves, err := grower.Grow(ds, NewRoot(ds, 0, inBag))
	if err != nil {
		return errors.Wrap(err, "grow")
	}
	tree, err := BuildFlatTree(leaves)
	if err != nil {
		return errors.Wrap(err, "flatten")
	}

	e.model.Store(&fittedModel{tree: tree, leaves: leaves, layouts: layouts, width: w, outOfBag: mask.OutOfBag()})
	e.logger.Info("tree fitted", "rows", h, "in_bag", inBag, "features", w, "bins", TotalBins(layouts), "leaves", len(leaves), "steps", grower.Steps)
	return nil
}

// quantizerSample copies at most sampleRows of the first n rows of the dataset.
func (e *Engine) quantizerSample(ds *Dataset, n int) *mat.Dense {
	rows := make([]int, n)
	for p := range rows {
		rows[p] = p
	}
	if e.sampleRows > 0 && e.sampleRows < n {
		picked := Subsample(n, float64(e.sampleRows)/float64(n), e.seed).Rows()
		if len(picked) > 0 {
			rows = picked
		}
	}
	w := ds.Width()
	if len(rows) == 0 {
		return mat.NewDense(1, w, nil)
	}
	sample := mat.NewDense(len(rows), w, nil)
	for p, row := range rows {
		sample.SetRow(p, ds.X.RawRowView(row))
	}
	return sample
}

func copyLayouts(layouts []FeatureBinLayout) []FeatureBinLayout {
	res := make([]FeatureBinLayout, len(layouts))
	for q, layout := range layouts {
		res[q] = layout
		res[q].Edges = append([]float64(nil), layout.Edges...)
	}
	return res
}

func (e *Engine) fitted() (*fittedModel, error) {
	m := e.model.Load()
	if m == nil {
		return nil, ErrNotFitted
	}
	return m, nil
}

// Predict applies the tree to every row of X. A fitted model needs exactly
// the training width; a loaded one needs at least the widest feature it uses.
func (e *Engine) Predict(X *mat.Dense, mode PredictMode) ([]float64, error) {
	m, err := e.fitted()
	if err != nil {
		return nil, err
	}
	if X == nil {
		return nil, errors.Wrap(ErrShapeMismatch, "nil feature matrix")
	}
	h, w := X.Dims()
	if w < m.width || (!m.loaded && w != m.width) {
		return nil, errors.Wrapf(ErrShapeMismatch, "the model needs %d features, got %d", m.width, w)
	}

	res := make([]float64, h)
	chunk := (h + e.workers - 1) / e.workers
	if chunk < 256 {
		chunk = 256
	}
	var g errgroup.Group
	g.SetLimit(e.workers)
	for lo := 0; lo < h; lo += chunk {
		lo := lo
		hi := min(lo+chunk, h)
		g.Go(func() error {
			for p := lo; p < hi; p++ {
				res[p] = m.tree.Apply(X.RawRowView(p), mode)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return res, nil
}

// Tree returns the fitted flat tree.
func (e *Engine) Tree() (*FlatTree, error) {
	m, err := e.fitted()
	if err != nil {
		return nil, err
	}
	return m.tree, nil
}

// Leaves returns a copy of the fitted leaves.
func (e *Engine) Leaves() []Leaf {
	m := e.model.Load()
	if m == nil {
		return nil
	}
	return append([]Leaf(nil), m.leaves...)
}

// Layouts returns the bin layouts of the last fit, nil after Load.
func (e *Engine) Layouts() []FeatureBinLayout {
	m := e.model.Load()
	if m == nil || m.layouts == nil {
		return nil
	}
	return copyLayouts(m.layouts)
}

// OutOfBag returns the rows of the last fit left out by the subsampler.
func (e *Engine) OutOfBag() []int {
	m := e.model.Load()
	if m == nil {
		return nil
	}
	return append([]int(nil), m.outOfBag...)
}

// FeatureNames returns the configured feature names.
func (e *Engine) FeatureNames() []string {
	return e.featureNames
}

// FeatureImportances returns the importances of the fitted features.
func (e *Engine) FeatureImportances() ([]float64, error) {
	m, err := e.fitted()
	if err != nil {
		return nil, err
	}
	return FeatureImportances(m.leaves, m.width), nil
}

// Dump serializes the fitted leaves.
func (e *Engine) Dump(compact bool) ([]LeafRecord, error) {
	m, err := e.fitted()
	if err != nil {
		return nil, err
	}
	return Dump(m.leaves, e.featureNames, compact), nil
}

// Load replaces the fitted model by one rebuilt from records.
func (e *Engine) Load(records []LeafRecord) error {
	leaves, tree, err := Load(records)
	if err != nil {
		return err
	}
	e.model.Store(&fittedModel{tree: tree, leaves: leaves, width: tree.Width(), loaded: true})
	e.logger.Info("tree loaded", "leaves", len(leaves))
	return nil
}
