package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/fundlab/lofsync/internal/history"
	"github.com/fundlab/lofsync/internal/instruments"
)

var verifyCode string

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check history files for integrity issues",
	Long: `Reports lingering placeholder rows, missing premiums, duplicate or
unsorted dates per fund. Checks all tracked funds by default.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := history.NewStore(cfg.Data.Dir)
		if err != nil {
			return err
		}

		var codes []string
		if verifyCode != "" {
			codes = []string{verifyCode}
		} else {
			codes, err = instruments.List(cfg.Data.InstrumentsFile)
			if err != nil {
				return eris.Wrap(err, "verify")
			}
		}

		clean := 0
		for _, code := range codes {
			report := store.Verify(code)
			if report.Valid() {
				clean++
				continue
			}
			fmt.Printf("%s (%d records, latest %s):\n", report.InstrumentID, report.Records, report.LatestDate)
			for _, issue := range report.Issues {
				fmt.Printf("  - %s\n", issue)
			}
		}
		fmt.Printf("%d/%d funds clean\n", clean, len(codes))
		return nil
	},
}

func init() {
	verifyCmd.Flags().StringVar(&verifyCode, "code", "", "verify a single fund code")
	rootCmd.AddCommand(verifyCmd)
}
