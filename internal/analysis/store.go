package analysis

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/lmoreira/opsight/internal/store"
)

// ErrRunNotFound is returned when a run ID does not exist.
var ErrRunNotFound = errors.New("analysis run not found")

// Run is one completed scoring run.
type Run struct {
	ID           string    `json:"id"`
	StartedAt    time.Time `json:"started_at"`
	CompletedAt  time.Time `json:"completed_at"`
	ProcessCount int       `json:"process_count"`
	AnomalyCount int       `json:"anomaly_count"`
	Median       float64   `json:"median"`
	MAD          float64   `json:"mad"`
	Threshold    float64   `json:"threshold"`

	// Table holds the scored rows. Populated on fresh runs; list
	// queries return runs without it.
	Table *Table `json:"-"`
}

// Store persists runs and their result rows in the shared SQLite
// database.
type Store struct {
	db *store.SQLiteStore
}

// NewStore wraps the shared store for the analysis schema.
func NewStore(db *store.SQLiteStore) *Store {
	return &Store{db: db}
}

// Migrate applies the analysis schema migrations.
func (s *Store) Migrate(ctx context.Context) error {
	return s.db.Migrate(ctx, "analysis", migrations())
}

// SaveRun inserts a run and its result rows in one transaction.
// Non-finite cv/score values (degenerate rows) are stored as NULL:
// SQLite has no IEEE infinities, and the degenerate flag is enough to
// reconstruct them on read.
func (s *Store) SaveRun(ctx context.Context, run *Run) error {
	if run.Table == nil {
		return fmt.Errorf("run %s has no results table", run.ID)
	}
	return s.db.Tx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO analysis_runs
				(id, started_at, completed_at, process_count, anomaly_count, median, mad, threshold)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, run.StartedAt.UTC(), run.CompletedAt.UTC(),
			run.ProcessCount, run.AnomalyCount,
			run.Median, run.MAD, run.Threshold,
		)
		if err != nil {
			return fmt.Errorf("insert run: %w", err)
		}

		for pos, row := range run.Table.Rows {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO analysis_results
					(run_id, position, process_id, cv, acf_max_diff, acf_lag, score, is_anomaly, degenerate)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				run.ID, pos, row.ProcessID,
				nullableFloat(row.CV), row.ACFMaxDiff, row.ACFLag,
				nullableFloat(row.Score), row.IsAnomaly, row.Degenerate,
			)
			if err != nil {
				return fmt.Errorf("insert result %s: %w", row.ProcessID, err)
			}
		}
		return nil
	})
}

// GetRun returns one run's header (no result rows).
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.DB().QueryRowContext(ctx, `
		SELECT id, started_at, completed_at, process_count, anomaly_count, median, mad, threshold
		FROM analysis_runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	return run, err
}

// ListRuns returns run headers newest first, up to limit.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.DB().QueryContext(ctx, `
		SELECT id, started_at, completed_at, process_count, anomaly_count, median, mad, threshold
		FROM analysis_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// LatestRun returns the most recent run header, or ErrRunNotFound when
// no run has completed yet.
func (s *Store) LatestRun(ctx context.Context) (*Run, error) {
	runs, err := s.ListRuns(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, ErrRunNotFound
	}
	return runs[0], nil
}

// Results returns a run's scored rows in input order.
func (s *Store) Results(ctx context.Context, runID string) ([]Result, error) {
	return s.queryResults(ctx, `
		SELECT process_id, cv, acf_max_diff, acf_lag, score, is_anomaly, degenerate
		FROM analysis_results WHERE run_id = ? ORDER BY position`, runID)
}

// Anomalies returns only the flagged rows of a run, highest score
// first.
func (s *Store) Anomalies(ctx context.Context, runID string) ([]Result, error) {
	return s.queryResults(ctx, `
		SELECT process_id, cv, acf_max_diff, acf_lag, score, is_anomaly, degenerate
		FROM analysis_results WHERE run_id = ? AND is_anomaly = 1
		ORDER BY score DESC`, runID)
}

func (s *Store) queryResults(ctx context.Context, query, runID string) ([]Result, error) {
	rows, err := s.db.DB().QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var cv, score sql.NullFloat64
		if err := rows.Scan(&r.ProcessID, &cv, &r.ACFMaxDiff, &r.ACFLag, &score, &r.IsAnomaly, &r.Degenerate); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		r.CV = floatOrInf(cv)
		r.Score = floatOrInf(score)
		results = append(results, r)
	}
	return results, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	err := row.Scan(&run.ID, &run.StartedAt, &run.CompletedAt,
		&run.ProcessCount, &run.AnomalyCount,
		&run.Median, &run.MAD, &run.Threshold)
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func nullableFloat(v float64) sql.NullFloat64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func floatOrInf(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.Inf(1)
	}
	return v.Float64
}
