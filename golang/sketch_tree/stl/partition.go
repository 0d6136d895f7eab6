package stl

// Reorder permutes rows [start, end) so that the rows routed to the left by the
// split come first, and returns the index of the first right row. X, the target,
// the weight and the record ids move together. Order within a side is not kept.
func Reorder(ds *Dataset, start, end int, feature int, threshold float64, missingLeft bool) int {
	split := Predicate{Feature: feature, Threshold: threshold, Direction: Left, MissingLeft: missingLeft}
	return partitionRows(ds, start, end, func(p int) bool {
		return split.Holds(ds.value(p, feature))
	})
}

// Degenerate reports whether a split index leaves one side empty.
func Degenerate(start, end, split int) bool {
	return split <= start || split >= end
}

// partitionRows moves the rows accepted by front to the beginning of [start, end).
func partitionRows(ds *Dataset, start, end int, front func(p int) bool) int {
	p, q := start, end-1
	for p <= q {
		if front(p) {
			p++
			continue
		}
		if !front(q) {
			q--
			continue
		}
		ds.swapRows(p, q)
		p++
		q--
	}
	return p
}
