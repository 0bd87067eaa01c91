package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent batch sync runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		rl, err := initRunLog(ctx)
		if err != nil {
			return eris.Wrap(err, "runs")
		}
		if rl == nil {
			fmt.Fprintln(os.Stderr, "Run log is disabled (runlog.driver=off).")
			return nil
		}
		defer rl.Close()

		entries, err := rl.ListRuns(ctx, runsLimit)
		if err != nil {
			return eris.Wrap(err, "runs")
		}
		if len(entries) == 0 {
			fmt.Fprintln(os.Stderr, "No runs recorded.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "STARTED\tSTATUS\tUPDATED\tNO CHANGE\tFAILED\tDURATION")
		for _, e := range entries {
			duration := "-"
			if e.FinishedAt != nil {
				duration = e.FinishedAt.Sub(e.StartedAt).Round(time.Second).String()
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%s\n",
				e.StartedAt.Local().Format("2006-01-02 15:04"),
				e.Status, e.Updated, e.NoChange, e.Failed, duration)
		}
		return w.Flush()
	},
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "max runs to list")
	rootCmd.AddCommand(runsCmd)
}
