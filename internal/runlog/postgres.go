package runlog

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/fundlab/lofsync/internal/model"
)

// Pool is the subset of pgxpool.Pool the postgres store needs. It is
// satisfied by pgxmock in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore implements Store on a pgx connection pool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres connects a PostgresStore to the given database URL.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "runlog: postgres parse config")
	}
	cfg.MaxConns = 4
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "runlog: postgres connect")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool. Used by tests with pgxmock.
func NewPostgresFromPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	status      TEXT NOT NULL DEFAULT 'running',
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ,
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
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "runlog: postgres migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) StartRun(ctx context.Context) (string, error) {
	id := uuid.New().String()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, status, started_at) VALUES ($1, 'running', $2)`,
		id, time.Now().UTC(),
	)
	if err != nil {
		return "", eris.Wrap(err, "runlog: postgres insert run")
	}
	return id, nil
}

func (s *PostgresStore) RecordOutcome(ctx context.Context, runID string, o model.RunOutcome) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO run_outcomes (id, run_id, instrument_id, status, new_records, updated, total, latest_date, error)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		uuid.New().String(), runID, o.InstrumentID, string(o.Status), o.New, o.Updated, o.Total, o.LatestDate, o.Err,
	)
	return eris.Wrapf(err, "runlog: postgres insert outcome for %s", o.InstrumentID)
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, summary model.BatchSummary) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = 'complete', finished_at = $1, updated = $2, no_change = $3, failed = $4 WHERE id = $5`,
		time.Now().UTC(), len(summary.Updated), len(summary.NoChange), len(summary.Failed), runID,
	)
	return eris.Wrapf(err, "runlog: postgres complete run %s", runID)
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]RunEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, status, started_at, finished_at, updated, no_change, failed
		 FROM runs ORDER BY started_at DESC LIMIT $1`, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "runlog: postgres list runs")
	}
	defer rows.Close()

	var entries []RunEntry
	for rows.Next() {
		var e RunEntry
		var finished *time.Time
		if err := rows.Scan(&e.ID, &e.Status, &e.StartedAt, &finished, &e.Updated, &e.NoChange, &e.Failed); err != nil {
			return nil, eris.Wrap(err, "runlog: postgres scan run")
		}
		e.FinishedAt = finished
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
