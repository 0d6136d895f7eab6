package stl

import "math/rand"

// RowMask marks the rows taken into a fit. Unmarked rows are out of bag.
type RowMask []bool

// Subsample draws an independent Bernoulli(rate) mask over n rows from a source
// seeded with seed. A rate of one or more keeps every row and draws nothing.
func Subsample(n int, rate float64, seed int64) RowMask {
	mask := make(RowMask, n)
	if rate >= 1 {
		for p := range mask {
			mask[p] = true
		}
		return mask
	}
	r := rand.New(rand.NewSource(seed))
	for p := range mask {
		mask[p] = r.Float64() < rate
	}
	return mask
}

// InBag returns the number of marked rows.
func (mask RowMask) InBag() int {
	n := 0
	for _, in := range mask {
		if in {
			n++
		}
	}
	return n
}

// OutOfBag returns the indices of the unmarked rows in increasing order.
func (mask RowMask) OutOfBag() []int {
	var oob []int
	for p, in := range mask {
		if !in {
			oob = append(oob, p)
		}
	}
	return oob
}

// Rows returns the indices of the marked rows in increasing order.
func (mask RowMask) Rows() []int {
	rows := make([]int, 0, len(mask))
	for p, in := range mask {
		if in {
			rows = append(rows, p)
		}
	}
	return rows
}
