// Package runlog persists a log of batch sync runs and their per-instrument
// outcomes, for reporting via `lofsync runs`.
package runlog

import (
	"context"
	"time"

	"github.com/fundlab/lofsync/internal/model"
)

// RunEntry is one recorded batch run.
type RunEntry struct {
	ID         string     `json:"id"`
	Status     string     `json:"status"` // running | complete
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Updated    int        `json:"updated"`
	NoChange   int        `json:"no_change"`
	Failed     int        `json:"failed"`
}

// Store records batch runs. Two drivers exist: SQLite (default, local file)
// and Postgres (shared deployments), selected by config.
type Store interface {
	// StartRun records the beginning of a batch run and returns its ID.
	StartRun(ctx context.Context) (string, error)

	// RecordOutcome files one instrument outcome under a run.
	RecordOutcome(ctx context.Context, runID string, o model.RunOutcome) error

	// CompleteRun marks a run finished with its partition counts.
	CompleteRun(ctx context.Context, runID string, summary model.BatchSummary) error

	// ListRuns returns the most recent runs, newest first.
	ListRuns(ctx context.Context, limit int) ([]RunEntry, error)

	Migrate(ctx context.Context) error
	Close() error
}
