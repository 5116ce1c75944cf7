package analysis

import (
	"time"

	"github.com/spf13/viper"
)

// Config holds the tunables of the scoring pipeline.
type Config struct {
	// ScoringMaxLag bounds the lag range searched for the maximum
	// differenced-series autocorrelation (clamped to series length).
	ScoringMaxLag int

	// DiagnosticMaxLag bounds the lag range of on-demand ACF profiles.
	DiagnosticMaxLag int

	// MinSeriesLength is the minimum number of points a series needs to
	// be scored. Shorter series get zero metrics and a zero score so
	// every process still appears in the results table.
	MinSeriesLength int

	// ThresholdMultiplier is the k in threshold = median + k*MAD.
	ThresholdMultiplier float64

	// Interval between scheduled re-analyses. Zero disables the
	// scheduler; the pipeline then only runs on demand.
	Interval time.Duration
}

// DefaultConfig returns the pipeline defaults.
func DefaultConfig() Config {
	return Config{
		ScoringMaxLag:       360,
		DiagnosticMaxLag:    40,
		MinSeriesLength:     10,
		ThresholdMultiplier: 3.0,
		Interval:            0,
	}
}

// ConfigFromViper reads the analysis.* keys, falling back to defaults
// for absent or out-of-range values.
func ConfigFromViper(v *viper.Viper) Config {
	cfg := DefaultConfig()
	if v == nil {
		return cfg
	}
	if n := v.GetInt("analysis.scoring_max_lag"); n > 0 {
		cfg.ScoringMaxLag = n
	}
	if n := v.GetInt("analysis.diagnostic_max_lag"); n > 0 {
		cfg.DiagnosticMaxLag = n
	}
	if n := v.GetInt("analysis.min_series_length"); n > 0 {
		cfg.MinSeriesLength = n
	}
	if m := v.GetFloat64("analysis.threshold_multiplier"); m > 0 {
		cfg.ThresholdMultiplier = m
	}
	if d := v.GetDuration("analysis.interval"); d > 0 {
		cfg.Interval = d
	}
	return cfg
}
