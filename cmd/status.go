package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fundlab/lofsync/internal/history"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Summarize the data on disk",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := history.NewStore(cfg.Data.Dir)
		if err != nil {
			return err
		}

		sum, err := store.Summary()
		if err != nil {
			return err
		}

		fmt.Printf("Funds tracked: %d\n", sum.Instruments)
		fmt.Printf("Total records: %d\n", sum.TotalRecords)
		if len(sum.Unreadable) > 0 {
			fmt.Printf("Unreadable files: %v\n", sum.Unreadable)
		}

		if len(sum.LatestDates) == 0 {
			return nil
		}

		ids := make([]string, 0, len(sum.LatestDates))
		for id := range sum.LatestDates {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "FUND\tLATEST")
		for _, id := range ids {
			fmt.Fprintf(w, "%s\t%s\n", id, sum.LatestDates[id])
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
