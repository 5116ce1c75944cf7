package analysis

import (
	"encoding/json"
	"math"
)

// Result is one scored row of the results table.
type Result struct {
	ProcessID  string  `json:"process_id"`
	CV         float64 `json:"cv"`
	ACFMaxDiff float64 `json:"acf_max_diff"`
	ACFLag     int     `json:"acf_lag"`
	Score      float64 `json:"score_anomaly"`
	IsAnomaly  bool    `json:"is_anomaly"`

	// Degenerate marks rows whose score is not finite (e.g. zero-mean
	// series with +Inf CV). They stay in the table so every input
	// process appears exactly once, but are excluded from threshold
	// statistics and never flagged.
	Degenerate bool `json:"degenerate,omitempty"`
}

// MarshalJSON renders non-finite cv/score values as null: JSON has no
// IEEE infinities, and degenerate rows are identified by their flag.
func (r Result) MarshalJSON() ([]byte, error) {
	type alias Result
	aux := struct {
		alias
		CV    *float64 `json:"cv"`
		Score *float64 `json:"score_anomaly"`
	}{alias: alias(r)}
	if cv := r.CV; !math.IsInf(cv, 0) && !math.IsNaN(cv) {
		aux.CV = &cv
	}
	if score := r.Score; !math.IsInf(score, 0) && !math.IsNaN(score) {
		aux.Score = &score
	}
	return json.Marshal(aux)
}

// Table is the assembled results table for one run. Rows keep the input
// series order; Median, MAD and Threshold are filled by Classify and
// shared by all rows.
type Table struct {
	Rows      []Result `json:"rows"`
	Median    float64  `json:"median"`
	MAD       float64  `json:"mad"`
	Threshold float64  `json:"threshold"`
}

// BuildTable combines per-process metrics into anomaly scores,
// score = cv * acf_max_diff, with no normalization or clipping:
// a process must be both volatile and temporally structured to score
// high. Row order follows the metrics order.
func BuildTable(metrics []Metrics) *Table {
	rows := make([]Result, len(metrics))
	for i, m := range metrics {
		score := m.CV * m.ACFMaxDiff
		rows[i] = Result{
			ProcessID:  m.ProcessID,
			CV:         m.CV,
			ACFMaxDiff: m.ACFMaxDiff,
			ACFLag:     m.ACFLag,
			Score:      score,
			Degenerate: math.IsInf(score, 0) || math.IsNaN(score),
		}
	}
	return &Table{Rows: rows}
}
