package features

import "gonum.org/v1/gonum/stat"

// RollingMeanStd computes causal rolling mean and standard deviation of xs
// over a trailing window of the given size ending strictly before each index:
// out[i] summarizes xs[i-window : i]. The first `window` positions are
// undefined and returned as NaN-free zeros with ok=false via the valid mask.
func RollingMeanStd(xs []float64, window int) (means, stds []float64, valid []bool) {
	n := len(xs)
	means = make([]float64, n)
	stds = make([]float64, n)
	valid = make([]bool, n)
	if window <= 1 {
		return means, stds, valid
	}
	for i := window; i < n; i++ {
		w := xs[i-window : i]
		m, s := stat.MeanStdDev(w, nil)
		means[i] = m
		stds[i] = s
		valid[i] = true
	}
	return means, stds, valid
}

// Mean returns the arithmetic mean of the non-missing entries of xs and the
// count that contributed. Returns (0, 0) when nothing is present.
func Mean(xs []float64, isMissing func(float64) bool) (float64, int) {
	sum := 0.0
	n := 0
	for _, v := range xs {
		if isMissing(v) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0, 0
	}
	return sum / float64(n), n
}
