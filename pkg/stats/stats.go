// Package stats holds the order statistics shared by metric computations.
package stats

import "sort"

// Mean returns the arithmetic mean and false when values is empty.
func Mean(values []float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values)), true
}

// Percentile selects the pct-th percentile (0 < pct <= 100) by nearest rank:
// index = ceil(pct/100 * n) - 1 over the ascending order, clamped to [0, n-1].
// The input is not modified. It returns false when values is empty.
func Percentile(values []float64, pct int) (float64, bool) {
	n := len(values)
	if n == 0 {
		return 0, false
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)
	return sorted[rankIndex(n, pct)], true
}

// Percentiles selects several percentiles with a single sort.
func Percentiles(values []float64, pcts ...int) ([]float64, bool) {
	n := len(values)
	if n == 0 {
		return nil, false
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)
	out := make([]float64, len(pcts))
	for i, pct := range pcts {
		out[i] = sorted[rankIndex(n, pct)]
	}
	return out, true
}

// rankIndex computes ceil(pct*n/100) - 1 in integer arithmetic so that
// products such as 0.95*20 cannot round up past an exact rank.
func rankIndex(n, pct int) int {
	idx := (pct*n+99)/100 - 1
	if idx < 0 {
		return 0
	}
	if idx > n-1 {
		return n - 1
	}
	return idx
}
