package analysis

import (
	"database/sql"

	"github.com/lmoreira/opsight/internal/store"
)

// migrations defines the analysis schema. Versions are append-only.
func migrations() []store.Migration {
	return []store.Migration{
		{
			Version:     1,
			Description: "create analysis_runs and analysis_results tables",
			Up: func(tx *sql.Tx) error {
				_, err := tx.Exec(`
					CREATE TABLE analysis_runs (
						id            TEXT     PRIMARY KEY,
						started_at    DATETIME NOT NULL,
						completed_at  DATETIME NOT NULL,
						process_count INTEGER  NOT NULL,
						anomaly_count INTEGER  NOT NULL,
						median        REAL     NOT NULL,
						mad           REAL     NOT NULL,
						threshold     REAL     NOT NULL
					);

					CREATE TABLE analysis_results (
						run_id       TEXT    NOT NULL REFERENCES analysis_runs(id) ON DELETE CASCADE,
						position     INTEGER NOT NULL,
						process_id   TEXT    NOT NULL,
						cv           REAL,
						acf_max_diff REAL    NOT NULL,
						acf_lag      INTEGER NOT NULL,
						score        REAL,
						is_anomaly   INTEGER NOT NULL,
						degenerate   INTEGER NOT NULL,
						PRIMARY KEY (run_id, process_id)
					);

					CREATE INDEX idx_analysis_results_anomaly
						ON analysis_results(run_id, is_anomaly);
				`)
				return err
			},
		},
	}
}
