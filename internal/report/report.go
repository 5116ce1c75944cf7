// Package report renders a completed analysis run as operator-facing
// artifacts: a CSV results table and a plain-text summary.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/lmoreira/opsight/internal/analysis"
)

// csvHeader is the column order of the results CSV.
var csvHeader = []string{"process_id", "cv", "acf_max_diff", "score_anomaly", "is_anomaly"}

// WriteCSV writes the results table as CSV, highest score first so the
// most suspicious processes lead the file. Degenerate rows (unscorable
// series) go last regardless of their sentinel values.
func WriteCSV(w io.Writer, table *analysis.Table) error {
	rows := make([]analysis.Result, len(table.Rows))
	copy(rows, table.Rows)
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Degenerate != rows[j].Degenerate {
			return !rows[i].Degenerate
		}
		return rows[i].Score > rows[j].Score
	})

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range rows {
		record := []string{
			row.ProcessID,
			formatFloat(row.CV),
			formatFloat(row.ACFMaxDiff),
			formatFloat(row.Score),
			strconv.FormatBool(row.IsAnomaly),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row %s: %w", row.ProcessID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSVFile writes the results CSV to dir/name, creating dir if
// needed.
func WriteCSVFile(dir, name string, table *analysis.Table) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create report file: %w", err)
	}
	defer f.Close()

	if err := WriteCSV(f, table); err != nil {
		return "", err
	}
	return path, nil
}

// WriteSummary writes a short human-readable digest of a run: the
// threshold statistics and the flagged processes, highest score first.
func WriteSummary(w io.Writer, run *analysis.Run) error {
	table := run.Table
	if table == nil {
		return fmt.Errorf("run %s has no results table", run.ID)
	}

	fmt.Fprintf(w, "run %s\n", run.ID)
	fmt.Fprintf(w, "processes analyzed: %d\n", run.ProcessCount)
	fmt.Fprintf(w, "score median=%s mad=%s threshold=%s\n",
		formatFloat(run.Median), formatFloat(run.MAD), formatFloat(run.Threshold))
	fmt.Fprintf(w, "anomalies: %d\n", run.AnomalyCount)

	anomalies := make([]analysis.Result, 0, run.AnomalyCount)
	for _, row := range table.Rows {
		if row.IsAnomaly {
			anomalies = append(anomalies, row)
		}
	}
	sort.SliceStable(anomalies, func(i, j int) bool {
		return anomalies[i].Score > anomalies[j].Score
	})
	for _, row := range anomalies {
		fmt.Fprintf(w, "  %s score=%s (cv=%s acf=%s lag=%d)\n",
			row.ProcessID, formatFloat(row.Score),
			formatFloat(row.CV), formatFloat(row.ACFMaxDiff), row.ACFLag)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
