package analysis

import "errors"

// ErrEmptyDataset is returned when there are no classifiable scores to
// threshold.
var ErrEmptyDataset = errors.New("no classifiable scores in dataset")

// Classify computes the robust outlier threshold over all finite scores
// and labels each row. The threshold is median + multiplier*MAD with
// the raw (unscaled) MAD; a row is anomalous iff its score is strictly
// greater than the threshold.
//
// MAD == 0 degeneracy: the threshold collapses to the median, so every
// score equal to the median is non-anomalous and any finite score above
// it is flagged regardless of magnitude. With a single process the
// score equals the median and is never flagged. Classification is
// idempotent: rerunning on the same table yields the same threshold and
// labels.
func Classify(table *Table, multiplier float64) error {
	scores := make([]float64, 0, len(table.Rows))
	for i := range table.Rows {
		if !table.Rows[i].Degenerate {
			scores = append(scores, table.Rows[i].Score)
		}
	}
	if len(scores) == 0 {
		return ErrEmptyDataset
	}

	table.Median = Median(scores)
	table.MAD = MAD(scores)
	table.Threshold = table.Median + multiplier*table.MAD

	for i := range table.Rows {
		table.Rows[i].IsAnomaly = !table.Rows[i].Degenerate &&
			table.Rows[i].Score > table.Threshold
	}
	return nil
}
