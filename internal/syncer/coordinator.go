// Package syncer orchestrates reconciliation across all tracked
// instruments: load history, fetch window, merge, save, and aggregate
// per-instrument outcomes into a batch summary.
package syncer

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fundlab/lofsync/internal/feed"
	"github.com/fundlab/lofsync/internal/history"
	"github.com/fundlab/lofsync/internal/model"
	"github.com/fundlab/lofsync/internal/normalize"
	"github.com/fundlab/lofsync/internal/reconcile"
	"github.com/fundlab/lofsync/internal/runlog"
)

// Coordinator runs reconciliations. Each instrument is owned end-to-end by
// a single worker, so no two workers ever race on the same history file.
type Coordinator struct {
	store   *history.Store
	fetcher feed.Fetcher
	runLog  runlog.Store // optional; nil disables run logging
}

// New creates a Coordinator. runLog may be nil.
func New(store *history.Store, fetcher feed.Fetcher, runLog runlog.Store) *Coordinator {
	return &Coordinator{store: store, fetcher: fetcher, runLog: runLog}
}

// SyncOne reconciles a single instrument: load → fetch → normalize →
// merge → save on update. Every failure is converted into a Failed outcome;
// nothing propagates as an error.
func (c *Coordinator) SyncOne(ctx context.Context, instrumentID string) model.RunOutcome {
	log := zap.L().With(zap.String("instrument", instrumentID))

	h := c.store.Load(instrumentID)

	rows, err := c.fetcher.FetchWindow(ctx, instrumentID)
	if err != nil {
		log.Warn("fetch failed", zap.Error(err))
		return model.FailedOutcome(instrumentID, h.Len(), err)
	}

	window := c.normalizeRows(rows, instrumentID, log)

	merged, outcome := reconcile.Merge(h, window)
	if outcome.Status != model.RunUpdated {
		return outcome
	}

	// Persist only on update; a no-change run must not touch the file.
	if err := c.store.Save(instrumentID, merged); err != nil {
		log.Error("save failed", zap.Error(err))
		return model.FailedOutcome(instrumentID, h.Len(), err)
	}

	log.Info("history updated",
		zap.Int("new", outcome.New),
		zap.Int("upgraded", outcome.Updated),
		zap.Int("total", outcome.Total),
		zap.String("latest", outcome.LatestDate),
	)
	return outcome
}

// normalizeRows converts raw feed rows to records, skipping malformed rows
// with a logged defect. A bad row never fails the whole window.
func (c *Coordinator) normalizeRows(rows []map[string]string, instrumentID string, log *zap.Logger) []model.DatedRecord {
	window := make([]model.DatedRecord, 0, len(rows))
	for _, raw := range rows {
		rec, err := normalize.Normalize(raw, instrumentID)
		if err != nil {
			log.Warn("skipping malformed feed row", zap.Error(err))
			continue
		}
		window = append(window, rec)
	}
	return window
}

// SyncAll reconciles every instrument with a bounded worker pool. One bad
// instrument never aborts the batch. Cancellation stops scheduling new
// instruments; in-flight ones finish their save, and unstarted ones are
// omitted from the summary.
func (c *Coordinator) SyncAll(ctx context.Context, instrumentIDs []string, concurrency int) model.BatchSummary {
	if concurrency <= 0 {
		concurrency = 1
	}

	summary := model.BatchSummary{Started: time.Now().UTC()}

	var runID string
	if c.runLog != nil {
		var err error
		if runID, err = c.runLog.StartRun(ctx); err != nil {
			zap.L().Warn("run log unavailable", zap.Error(err))
			runID = ""
		}
	}

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(concurrency)

	for _, id := range instrumentIDs {
		if ctx.Err() != nil {
			zap.L().Info("batch cancelled, skipping remaining instruments")
			break
		}
		g.Go(func() error {
			outcome := c.SyncOne(ctx, id)

			mu.Lock()
			summary.Add(outcome)
			mu.Unlock()

			if c.runLog != nil && runID != "" {
				if err := c.runLog.RecordOutcome(context.WithoutCancel(ctx), runID, outcome); err != nil {
					zap.L().Warn("failed to record outcome", zap.Error(err))
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	summary.Finished = time.Now().UTC()

	if c.runLog != nil && runID != "" {
		if err := c.runLog.CompleteRun(context.WithoutCancel(ctx), runID, summary); err != nil {
			zap.L().Warn("failed to record run completion", zap.Error(err))
		}
	}

	zap.L().Info("batch complete",
		zap.Int("updated", len(summary.Updated)),
		zap.Int("no_change", len(summary.NoChange)),
		zap.Int("failed", len(summary.Failed)),
		zap.Duration("elapsed", summary.Finished.Sub(summary.Started)),
	)
	return summary
}
