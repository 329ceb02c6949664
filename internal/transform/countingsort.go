package transform

// sortDescByLuma stably sorts indices by descending luma using a 256-bucket
// counting sort: a linear-time stable sort over the small integer luma
// domain, matching the histogram-plus-offset-table construction used
// throughout the pixelsort variant.
func sortDescByLuma(indices []int, lumaOf func(idx int) int, hist, offsets *[256]int) []int {
	for i := range hist {
		hist[i] = 0
	}
	for _, idx := range indices {
		hist[lumaOf(idx)]++
	}

	cum := 0
	for v := 255; v >= 0; v-- {
		offsets[v] = cum
		cum += hist[v]
	}

	pos := *offsets
	sorted := make([]int, len(indices))
	for _, idx := range indices {
		v := lumaOf(idx)
		sorted[pos[v]] = idx
		pos[v]++
	}
	return sorted
}
