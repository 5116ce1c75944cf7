package report

import (
	"bytes"
	"encoding/csv"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/lmoreira/opsight/internal/analysis"
)

func sampleTable(t *testing.T) *analysis.Table {
	t.Helper()
	table := analysis.BuildTable([]analysis.Metrics{
		{ProcessID: "quiet-1", CV: 1, ACFMaxDiff: 0.1},
		{ProcessID: "quiet-2", CV: 1, ACFMaxDiff: 0.1},
		{ProcessID: "quiet-3", CV: 1, ACFMaxDiff: 0.1},
		{ProcessID: "busy", CV: 80, ACFMaxDiff: 0.9},
		{ProcessID: "broken", CV: math.Inf(1), ACFMaxDiff: 0.5},
	})
	if err := analysis.Classify(table, 3); err != nil {
		t.Fatalf("Classify: %v", err)
	}
	return table
}

func TestWriteCSVSortedByScore(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sampleTable(t)); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("parse output: %v", err)
	}
	if len(records) != 6 {
		t.Fatalf("got %d lines, want header + 5 rows", len(records))
	}

	wantHeader := "process_id,cv,acf_max_diff,score_anomaly,is_anomaly"
	if got := strings.Join(records[0], ","); got != wantHeader {
		t.Errorf("header = %q, want %q", got, wantHeader)
	}
	if records[1][0] != "busy" {
		t.Errorf("first row = %q, want highest score first", records[1][0])
	}
	if records[5][0] != "broken" {
		t.Errorf("last row = %q, want degenerate row last", records[5][0])
	}
	if records[1][4] != "true" {
		t.Errorf("busy is_anomaly = %q, want true", records[1][4])
	}
}

func TestWriteCSVFile(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteCSVFile(dir, "results.csv", sampleTable(t))
	if err != nil {
		t.Fatalf("WriteCSVFile: %v", err)
	}
	if !strings.HasSuffix(path, "results.csv") {
		t.Errorf("path = %q", path)
	}
}

func TestWriteSummary(t *testing.T) {
	table := sampleTable(t)
	run := &analysis.Run{
		ID:           "run-1",
		StartedAt:    time.Now().UTC(),
		CompletedAt:  time.Now().UTC(),
		ProcessCount: len(table.Rows),
		Median:       table.Median,
		MAD:          table.MAD,
		Threshold:    table.Threshold,
		Table:        table,
	}
	for _, row := range table.Rows {
		if row.IsAnomaly {
			run.AnomalyCount++
		}
	}

	var buf bytes.Buffer
	if err := WriteSummary(&buf, run); err != nil {
		t.Fatalf("WriteSummary: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"run run-1", "processes analyzed: 5", "busy"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "quiet-1") {
		t.Error("summary should list anomalies only")
	}
}

func TestWriteSummaryNoTable(t *testing.T) {
	if err := WriteSummary(&bytes.Buffer{}, &analysis.Run{ID: "r"}); err == nil {
		t.Error("expected error for run without table")
	}
}
