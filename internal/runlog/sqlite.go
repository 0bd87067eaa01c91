package runlog

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/fundlab/lofsync/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "runlog: sqlite open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "runlog: sqlite exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	status      TEXT NOT NULL DEFAULT 'running',
	started_at  DATETIME NOT NULL,
	finished_at DATETIME,
	updated     INTEGER NOT NULL DEFAULT 0,
	no_change   INTEGER NOT NULL DEFAULT 0,
	failed      INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS run_outcomes (
	id            TEXT PRIMARY KEY,
	run_id        TEXT NOT NULL REFERENCES runs(id),
	instrument_id TEXT NOT NULL,
	status        TEXT NOT NULL,
	new_records   INTEGER NOT NULL DEFAULT 0,
	updated       INTEGER NOT NULL DEFAULT 0,
	total         INTEGER NOT NULL DEFAULT 0,
	latest_date   TEXT,
	error         TEXT
);

CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
CREATE INDEX IF NOT EXISTS idx_run_outcomes_run_id ON run_outcomes(run_id);
CREATE INDEX IF NOT EXISTS idx_run_outcomes_instrument ON run_outcomes(instrument_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "runlog: sqlite migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) StartRun(ctx context.Context) (string, error) {
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, status, started_at) VALUES (?, 'running', ?)`,
		id, time.Now().UTC(),
	)
	if err != nil {
		return "", eris.Wrap(err, "runlog: sqlite insert run")
	}
	return id, nil
}

func (s *SQLiteStore) RecordOutcome(ctx context.Context, runID string, o model.RunOutcome) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO run_outcomes (id, run_id, instrument_id, status, new_records, updated, total, latest_date, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), runID, o.InstrumentID, string(o.Status), o.New, o.Updated, o.Total, o.LatestDate, o.Err,
	)
	return eris.Wrapf(err, "runlog: sqlite insert outcome for %s", o.InstrumentID)
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, summary model.BatchSummary) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = 'complete', finished_at = ?, updated = ?, no_change = ?, failed = ? WHERE id = ?`,
		time.Now().UTC(), len(summary.Updated), len(summary.NoChange), len(summary.Failed), runID,
	)
	return eris.Wrapf(err, "runlog: sqlite complete run %s", runID)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]RunEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, status, started_at, finished_at, updated, no_change, failed
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "runlog: sqlite list runs")
	}
	defer rows.Close()

	var entries []RunEntry
	for rows.Next() {
		var e RunEntry
		var finished sql.NullTime
		if err := rows.Scan(&e.ID, &e.Status, &e.StartedAt, &finished, &e.Updated, &e.NoChange, &e.Failed); err != nil {
			return nil, eris.Wrap(err, "runlog: sqlite scan run")
		}
		if finished.Valid {
			t := finished.Time
			e.FinishedAt = &t
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
