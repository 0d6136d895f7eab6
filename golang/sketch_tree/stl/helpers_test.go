package stl

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func mustDataset(t *testing.T, rows [][]float64, y []float64) *Dataset {
	t.Helper()
	w := len(rows[0])
	x := mat.NewDense(len(rows), w, nil)
	for p, row := range rows {
		x.SetRow(p, row)
	}
	ds, err := NewDataset(x, y, nil)
	if err != nil {
		t.Fatal(err)
	}
	return ds
}

// randomProblem builds a matrix of values on a coarse grid with some missing
// cells and a target depending on the first two features.
func randomProblem(h, w int, nanRate float64, seed int64) (*mat.Dense, []float64, []float64) {
	r := rand.New(rand.NewSource(seed))
	x := mat.NewDense(h, w, nil)
	y := make([]float64, h)
	z := make([]float64, h)
	for p := 0; p < h; p++ {
		for q := 0; q < w; q++ {
			v := math.Floor(r.Float64()*20) / 2
			if r.Float64() < nanRate {
				v = math.NaN()
			}
			x.Set(p, q, v)
		}
		a, b := x.At(p, 0), x.At(p, 1)
		switch {
		case math.IsNaN(a):
			y[p] = -2
		case a < 5:
			y[p] = 1
		default:
			y[p] = 4
		}
		if !math.IsNaN(b) && b >= 7 {
			y[p] += 3
		}
		z[p] = 0.5 + r.Float64()
	}
	return x, y, z
}

func closeEnough(a, b float64) bool {
	return math.Abs(a-b) <= 1e-9*(1+math.Abs(a)+math.Abs(b))
}
