package analysis

import "math"

// Metrics holds the per-process statistics that feed the anomaly score.
type Metrics struct {
	ProcessID  string  `json:"process_id"`
	CV         float64 `json:"cv"`
	ACFMaxDiff float64 `json:"acf_max_diff"`
	ACFLag     int     `json:"acf_lag"`
}

// CV returns the coefficient of variation as a percentage,
// stddev/mean * 100 with the population standard deviation.
//
// Degenerate-input policy (explicit, no NaN propagation):
//   - zero variance (constant series, including all-zero) -> 0
//   - zero mean with non-zero variance -> +Inf; such a series cannot be
//     scored and is excluded from classification downstream
func CV(values []float64) float64 {
	std := StdDev(values)
	if std == 0 {
		return 0
	}
	mean := Mean(values)
	if mean == 0 {
		return math.Inf(1)
	}
	return std / mean * 100
}

// DiffACFMax returns the maximum absolute autocorrelation of the
// first-differenced series over lags 1..min(maxLag, n-2), and the lag
// where it occurs. Returns the (0, 0) sentinel when the differenced
// series is too short to correlate or constant (zero variance).
func DiffACFMax(values []float64, maxLag int) (float64, int) {
	acf := ACF(Diff(values), maxLag)
	if acf == nil {
		return 0, 0
	}
	return MaxAbsLag(acf)
}

// ComputeMetrics calculates CV and differenced-series autocorrelation
// for one series. Pure function of its input.
func ComputeMetrics(processID string, values []float64, maxLag int) Metrics {
	acfMax, acfLag := DiffACFMax(values, maxLag)
	return Metrics{
		ProcessID:  processID,
		CV:         CV(values),
		ACFMaxDiff: acfMax,
		ACFLag:     acfLag,
	}
}
