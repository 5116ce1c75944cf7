// Package analysis implements the Opsight anomaly-scoring pipeline:
// per-series metrics (coefficient of variation, differenced-series
// autocorrelation), score combination, and robust median+MAD
// classification.
package analysis

import (
	"math"
	"sort"
)

// Mean returns the arithmetic mean of values, or 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// StdDev returns the population standard deviation (N denominator).
// Returns 0 for fewer than two values.
func StdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := Mean(values)
	var ss float64
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(values)))
}

// Diff returns the first-order difference v[i+1]-v[i] (length n-1).
// Returns nil for fewer than two values.
func Diff(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}
	out := make([]float64, len(values)-1)
	for i := 0; i < len(values)-1; i++ {
		out[i] = values[i+1] - values[i]
	}
	return out
}

// Median returns the median of values (mean of the middle pair for even
// lengths). Returns 0 for an empty slice.
func Median(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// MAD returns the raw median absolute deviation from the median.
// No consistency scaling is applied (this is the plain estimator, not
// the 1.4826-scaled normal-consistent variant).
func MAD(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	med := Median(values)
	devs := make([]float64, len(values))
	for i, v := range values {
		devs[i] = math.Abs(v - med)
	}
	return Median(devs)
}

// ACF returns the sample autocorrelation function of values at lags
// 0..min(maxLag, n-1). Each lag correlates the series with a shifted
// copy of itself using the full-series mean and an N denominator, so
// acf[0] is always 1. Returns nil when the series is shorter than two
// points or has zero variance (autocorrelation undefined); callers
// resolve that to an explicit sentinel rather than propagating NaN.
func ACF(values []float64, maxLag int) []float64 {
	n := len(values)
	if n < 2 {
		return nil
	}
	if maxLag > n-1 {
		maxLag = n - 1
	}
	if maxLag < 0 {
		maxLag = 0
	}

	mean := Mean(values)
	var denom float64
	for _, v := range values {
		d := v - mean
		denom += d * d
	}
	if denom == 0 {
		return nil
	}

	acf := make([]float64, maxLag+1)
	acf[0] = 1
	for lag := 1; lag <= maxLag; lag++ {
		var num float64
		for t := 0; t < n-lag; t++ {
			num += (values[t] - mean) * (values[t+lag] - mean)
		}
		acf[lag] = num / denom
	}
	return acf
}

// MaxAbsLag returns the largest absolute autocorrelation among lags
// 1..len(acf)-1 and the lag where it occurs. Lag 0 carries no
// information and is excluded by contract. Returns (0, 0) when no lag
// beyond 0 is available.
func MaxAbsLag(acf []float64) (float64, int) {
	if len(acf) < 2 {
		return 0, 0
	}
	maxVal := math.Abs(acf[1])
	maxLag := 1
	for lag := 2; lag < len(acf); lag++ {
		if a := math.Abs(acf[lag]); a > maxVal {
			maxVal = a
			maxLag = lag
		}
	}
	return maxVal, maxLag
}
