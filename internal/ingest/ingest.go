// Package ingest parses measurement export logs into per-process
// minute-resolution series. The export format is one SQL insert per
// line; parsing tolerates blank lines and unrelated statements and
// zero-fills minutes with no measurement so every process yields a
// series over the same time grid.
package ingest

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strconv"
	"time"
)

// MinuteLayout is the timestamp format used in export logs.
const MinuteLayout = "2006-01-02 15:04"

// Record is one parsed measurement: a count for one process at one
// minute.
type Record struct {
	Minute    time.Time
	ProcessID string
	Count     float64
}

// Series is a process's measurement counts over the shared minute grid.
type Series struct {
	ProcessID string
	Start     time.Time
	Values    []float64
}

// insertRe matches the export line shape
//
//	Insert into EXPORT_TABLE (MINUTO,CD_OPR,QTD) values ('2024-05-01 13:07',4811,42);
//
// Identifier case and whitespace vary across export jobs.
var insertRe = regexp.MustCompile(
	`(?i)insert\s+into\s+export_table\s*\(\s*minuto\s*,\s*cd_opr\s*,\s*qtd\s*\)\s*values\s*\(\s*'([^']+)'\s*,\s*(\w+)\s*,\s*(-?\d+(?:\.\d+)?)\s*\)`)

// ParseLine parses a single export line. The second return value is
// false for lines that are not EXPORT_TABLE inserts (blank lines,
// comments, other statements); a line that looks like an insert but has
// a malformed timestamp or count is an error.
func ParseLine(line string) (Record, bool, error) {
	m := insertRe.FindStringSubmatch(line)
	if m == nil {
		return Record{}, false, nil
	}
	minute, err := time.Parse(MinuteLayout, m[1])
	if err != nil {
		return Record{}, false, fmt.Errorf("parse minute %q: %w", m[1], err)
	}
	count, err := strconv.ParseFloat(m[3], 64)
	if err != nil {
		return Record{}, false, fmt.Errorf("parse count %q: %w", m[3], err)
	}
	return Record{Minute: minute, ProcessID: m[2], Count: count}, true, nil
}

// ParseExportLog reads an export log and returns all measurement
// records in file order. Non-insert lines are skipped; a malformed
// insert aborts the parse with the line number in the error.
func ParseExportLog(r io.Reader) ([]Record, error) {
	var records []Record
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		rec, ok, err := ParseLine(scanner.Text())
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if ok {
			records = append(records, rec)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read export log: %w", err)
	}
	return records, nil
}

// ParseExportFile opens path and parses it with ParseExportLog.
func ParseExportFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open export log: %w", err)
	}
	defer f.Close()
	return ParseExportLog(f)
}

// BuildSeries pivots records into one series per process over the
// global minute grid [min minute, max minute] across ALL records.
// Minutes with no measurement for a process are zero (the exporter
// emits rows only for minutes with activity, so absence means zero
// activity, not missing data). Duplicate (minute, process) records sum.
// All returned series have identical length and start; order is by
// process ID for determinism.
func BuildSeries(records []Record) []Series {
	if len(records) == 0 {
		return nil
	}

	minMinute, maxMinute := records[0].Minute, records[0].Minute
	for _, rec := range records[1:] {
		if rec.Minute.Before(minMinute) {
			minMinute = rec.Minute
		}
		if rec.Minute.After(maxMinute) {
			maxMinute = rec.Minute
		}
	}
	gridLen := int(maxMinute.Sub(minMinute)/time.Minute) + 1

	byProcess := make(map[string][]float64)
	for _, rec := range records {
		values, ok := byProcess[rec.ProcessID]
		if !ok {
			values = make([]float64, gridLen)
			byProcess[rec.ProcessID] = values
		}
		idx := int(rec.Minute.Sub(minMinute) / time.Minute)
		values[idx] += rec.Count
	}

	ids := make([]string, 0, len(byProcess))
	for id := range byProcess {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	series := make([]Series, len(ids))
	for i, id := range ids {
		series[i] = Series{ProcessID: id, Start: minMinute, Values: byProcess[id]}
	}
	return series
}
