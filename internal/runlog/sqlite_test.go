package runlog

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fundlab/lofsync/internal/model"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "runlog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestSQLite_RunLifecycle(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	runID, err := s.StartRun(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, runID)

	outcomes := []model.RunOutcome{
		{InstrumentID: "161725", Status: model.RunUpdated, New: 3, Updated: 1, Total: 120, LatestDate: "2024-03-15"},
		{InstrumentID: "160416", Status: model.RunNoChange, Total: 80, LatestDate: "2024-03-15"},
		{InstrumentID: "163406", Status: model.RunFailed, Err: "fetch: status 503"},
	}
	var summary model.BatchSummary
	for _, o := range outcomes {
		require.NoError(t, s.RecordOutcome(ctx, runID, o))
		summary.Add(o)
	}
	require.NoError(t, s.CompleteRun(ctx, runID, summary))

	runs, err := s.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	got := runs[0]
	assert.Equal(t, runID, got.ID)
	assert.Equal(t, "complete", got.Status)
	assert.Equal(t, 1, got.Updated)
	assert.Equal(t, 1, got.NoChange)
	assert.Equal(t, 1, got.Failed)
	require.NotNil(t, got.FinishedAt)
	assert.False(t, got.FinishedAt.Before(got.StartedAt))
}

func TestSQLite_ListRunsNewestFirstWithLimit(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	var last string
	for range 5 {
		id, err := s.StartRun(ctx)
		require.NoError(t, err)
		require.NoError(t, s.CompleteRun(ctx, id, model.BatchSummary{}))
		last = id
	}

	runs, err := s.ListRuns(ctx, 3)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, last, runs[0].ID)
}

func TestSQLite_MigrateIdempotent(t *testing.T) {
	s := newTestSQLite(t)
	require.NoError(t, s.Migrate(context.Background()))
}
