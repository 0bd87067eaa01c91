package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fundlab/lofsync/internal/calendar"
	"github.com/fundlab/lofsync/internal/feed"
	"github.com/fundlab/lofsync/internal/history"
	"github.com/fundlab/lofsync/internal/instruments"
	"github.com/fundlab/lofsync/internal/model"
	"github.com/fundlab/lofsync/internal/runlog"
	"github.com/fundlab/lofsync/internal/syncer"
)

var (
	syncCode        string
	syncConcurrency int
	syncLimit       int
	syncForce       bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile fund histories against the feed",
	Long: `Fetch each tracked fund's current feed window and merge it into its
persisted history. New dates are appended and placeholder premiums are
upgraded once confirmed; already-confirmed values are never overwritten.

Runs all funds from the instruments file by default; use --code for a
single fund. Non-trading days are skipped unless --force is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if !syncForce {
			cal := calendar.New(cfg.Sync.Holidays)
			if !cal.IsTradingDay(time.Now()) {
				fmt.Println("Not a trading day, skipping sync (use --force to override)")
				return nil
			}
		}

		store, err := history.NewStore(cfg.Data.Dir)
		if err != nil {
			return err
		}

		fetcher := feed.NewClient(feed.Options{
			BaseURL:    cfg.Feed.BaseURL,
			UserAgent:  cfg.Feed.UserAgent,
			Timeout:    cfg.Feed.Timeout(),
			MaxRetries: cfg.Feed.MaxRetries,
			RatePerSec: cfg.Feed.RatePerSec,
			Burst:      cfg.Feed.Burst,
			WindowSize: cfg.Feed.WindowSize,
		})

		rl, err := initRunLog(ctx)
		if err != nil {
			zap.L().Warn("run log disabled", zap.Error(err))
			rl = nil
		}
		if rl != nil {
			defer rl.Close()
		}

		coord := syncer.New(store, fetcher, rl)

		if syncCode != "" {
			outcome := coord.SyncOne(ctx, syncCode)
			printOutcome(outcome)
			return nil
		}

		codes, err := instruments.List(cfg.Data.InstrumentsFile)
		if err != nil {
			return eris.Wrap(err, "sync")
		}
		if syncLimit > 0 && syncLimit < len(codes) {
			codes = codes[:syncLimit]
		}

		concurrency := syncConcurrency
		if concurrency <= 0 {
			concurrency = cfg.Sync.Concurrency
		}

		summary := coord.SyncAll(ctx, codes, concurrency)
		printSummary(summary)
		return nil
	},
}

func init() {
	syncCmd.Flags().StringVar(&syncCode, "code", "", "sync a single fund code")
	syncCmd.Flags().IntVar(&syncConcurrency, "concurrency", 0, "worker pool size (default from config)")
	syncCmd.Flags().IntVar(&syncLimit, "limit", 0, "max number of funds to process")
	syncCmd.Flags().BoolVar(&syncForce, "force", false, "sync even on non-trading days")
	rootCmd.AddCommand(syncCmd)
}

// initRunLog builds the configured run log backend, or nil when disabled.
func initRunLog(ctx context.Context) (runlog.Store, error) {
	var (
		rl  runlog.Store
		err error
	)
	switch cfg.RunLog.Driver {
	case "", "off":
		return nil, nil
	case "sqlite":
		rl, err = runlog.NewSQLite(cfg.RunLog.Path)
	case "postgres":
		rl, err = runlog.NewPostgres(ctx, cfg.RunLog.DatabaseURL)
	default:
		return nil, eris.Errorf("unknown runlog driver %q", cfg.RunLog.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := rl.Migrate(ctx); err != nil {
		rl.Close()
		return nil, err
	}
	return rl, nil
}

func printOutcome(o model.RunOutcome) {
	switch o.Status {
	case model.RunUpdated:
		fmt.Printf("%s: updated (%d new, %d upgraded, %d total, latest %s)\n",
			o.InstrumentID, o.New, o.Updated, o.Total, o.LatestDate)
	case model.RunNoChange:
		fmt.Printf("%s: no change (%d records)\n", o.InstrumentID, o.Total)
	default:
		fmt.Fprintf(os.Stderr, "%s: failed: %s\n", o.InstrumentID, o.Err)
	}
}

func printSummary(s model.BatchSummary) {
	fmt.Printf("Sync complete in %s: %d updated, %d unchanged, %d failed (of %d)\n",
		s.Finished.Sub(s.Started).Round(time.Millisecond),
		len(s.Updated), len(s.NoChange), len(s.Failed), s.Total())
	for _, o := range s.Failed {
		fmt.Fprintf(os.Stderr, "  failed %s: %s\n", o.InstrumentID, o.Err)
	}
}
