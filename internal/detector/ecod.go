// Package detector runs unsupervised outlier detection over a sliding
// window of metric snapshots and turns the outliers into anomaly records.
package detector

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// ECOD scores observations by summing per-dimension empirical-CDF tail
// log-probabilities (Li et al., "ECOD: Unsupervised Outlier Detection
// Using Empirical Cumulative Distribution Functions"). It is parameter-free
// apart from the contamination fraction, deterministic, and refit from
// scratch on every call.
type ECOD struct {
	// Contamination is the assumed fraction of outliers in the window.
	// It sets the label threshold at the (1-contamination) score quantile.
	Contamination float64
}

// Result holds per-observation outputs in input row order.
type Result struct {
	// Scores are min-max normalized to [0,1]; 1 is the most abnormal
	// observation in the window.
	Scores []float64
	// Labels marks observations whose raw score exceeds the contamination
	// threshold.
	Labels []bool
}

// FitPredict fits on the full matrix and scores every row. Rows are
// observations, columns features; all rows must share the same width.
func (e *ECOD) FitPredict(x [][]float64) (*Result, error) {
	n := len(x)
	if n == 0 {
		return nil, fmt.Errorf("ecod: empty matrix")
	}
	d := len(x[0])
	if d == 0 {
		return nil, fmt.Errorf("ecod: zero features")
	}
	for i := range x {
		if len(x[i]) != d {
			return nil, fmt.Errorf("ecod: ragged matrix at row %d", i)
		}
	}

	left := make([]float64, n)  // sum of -log F_left over dims
	right := make([]float64, n) // sum of -log F_right over dims
	skew := make([]float64, n)  // skewness-corrected tail per dim

	col := make([]float64, n)
	sorted := make([]float64, n)
	for j := 0; j < d; j++ {
		for i := 0; i < n; i++ {
			col[i] = x[i][j]
		}
		copy(sorted, col)
		sort.Float64s(sorted)
		leftTail := stat.Skew(col, nil) < 0

		for i := 0; i < n; i++ {
			v := col[i]
			// F_left = P(X <= v), F_right = P(X >= v), both at least 1/n
			nLE := sort.Search(n, func(k int) bool { return sorted[k] > v })
			nGE := n - sort.SearchFloat64s(sorted, v)
			ol := -math.Log(float64(nLE) / float64(n))
			or := -math.Log(float64(nGE) / float64(n))
			left[i] += ol
			right[i] += or
			if leftTail {
				skew[i] += ol
			} else {
				skew[i] += or
			}
		}
	}

	raw := make([]float64, n)
	for i := 0; i < n; i++ {
		raw[i] = math.Max(left[i], math.Max(right[i], skew[i]))
	}

	// Label threshold on the raw scale.
	sortedRaw := append([]float64(nil), raw...)
	sort.Float64s(sortedRaw)
	threshold := stat.Quantile(1-e.Contamination, stat.Empirical, sortedRaw, nil)

	labels := make([]bool, n)
	for i, s := range raw {
		labels[i] = s > threshold
	}

	return &Result{Scores: normalize(raw), Labels: labels}, nil
}

// normalize maps raw scores onto [0,1]. A degenerate window where every
// observation scores the same normalizes to all zeros.
func normalize(raw []float64) []float64 {
	lo, hi := raw[0], raw[0]
	for _, v := range raw[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	out := make([]float64, len(raw))
	if hi == lo {
		return out
	}
	for i, v := range raw {
		out[i] = (v - lo) / (hi - lo)
	}
	return out
}
