package stl

import (
	"runtime"

	"github.com/sourcegraph/conc"
)

// Sketch fills the canvases with the statistics of rows [start, end) of the
// dataset. The feature axis is cut into contiguous blocks, one per worker, and
// each worker writes only the canvas rows of its own features, so no locking is
// involved. Canvases are reset before filling. An error is returned only when the
// canvases cannot hold the layouts; the caller turns the branch into a leaf.
func Sketch(ds *Dataset, start, end int, layouts []FeatureBinLayout, hc *HistogramCanvas, mc *MissingCanvas, workers int) error {
	if hc == nil || mc == nil {
		return ErrCanvasNotAllocated
	}
	if !hc.fits(layouts) || mc.Size() < len(layouts) {
		return ErrCanvasUndersized
	}
	hc.Reset()
	mc.Reset()

	w := len(layouts)
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > w {
		workers = w
	}
	if workers <= 1 {
		sketchFeatures(ds, start, end, layouts, 0, w, hc.data(), mc.data())
		return nil
	}

	hist, missing := hc.data(), mc.data()
	var wg conc.WaitGroup
	for _, block := range featureBlocks(w, workers) {
		lo, hi := block[0], block[1]
		wg.Go(func() {
			sketchFeatures(ds, start, end, layouts, lo, hi, hist, missing)
		})
	}
	wg.Wait()
	return nil
}

// featureBlocks cuts [0, w) into n contiguous nearly equal blocks.
func featureBlocks(w, n int) [][2]int {
	blocks := make([][2]int, 0, n)
	step, rest := w/n, w%n
	lo := 0
	for ind := 0; ind < n; ind++ {
		hi := lo + step
		if ind < rest {
			hi++
		}
		if hi > lo {
			blocks = append(blocks, [2]int{lo, hi})
		}
		lo = hi
	}
	return blocks
}

func sketchFeatures(ds *Dataset, start, end int, layouts []FeatureBinLayout, lo, hi int, hist, missing []float64) {
	raw := ds.X.RawMatrix()
	for q := lo; q < hi; q++ {
		layout := layouts[q]
		for row := start; row < end; row++ {
			v := raw.Data[row*raw.Stride+q]
			var cell []float64
			if IsMissing(v) || layout.NBins() == 0 {
				cell = missing[q*statWidth : (q+1)*statWidth]
			} else {
				i := layout.Offset + layout.Bin(v)
				cell = hist[i*statWidth : (i+1)*statWidth]
			}
			cell[statCount]++
			cell[statSumY] += ds.Target[row]
			cell[statSumZ] += ds.Weight[row]
		}
	}
}
