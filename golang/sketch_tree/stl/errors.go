package stl

import "github.com/pkg/errors"

// Configuration errors. Degenerate data never produces an error: it is resolved
// by turning the affected branch into a leaf.
var (
	ErrNoFeatures         = errors.New("dataset has no features")
	ErrCanvasNotAllocated = errors.New("histogram canvases are not allocated")
	ErrCanvasUndersized   = errors.New("histogram canvases are smaller than the bin layout")
	ErrShapeMismatch      = errors.New("dataset components have inconsistent shapes")
	ErrNotFitted          = errors.New("engine has no fitted tree")
	ErrMalformedTree      = errors.New("leaf set does not form a complete binary tree")
	ErrNoPolicy           = errors.New("split selector or leaf predicate is not set")
)
