package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"

	"github.com/fundlab/lofsync/internal/history"
	"github.com/fundlab/lofsync/internal/instruments"
	"github.com/fundlab/lofsync/internal/model"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export all fund histories to a single xlsx workbook",
	Long:  "Writes one sheet per fund with the same columns as the on-disk files, for spreadsheet-based analysis.",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := history.NewStore(cfg.Data.Dir)
		if err != nil {
			return err
		}

		codes, err := instruments.List(cfg.Data.InstrumentsFile)
		if err != nil {
			return eris.Wrap(err, "export")
		}

		wb := xlsx.NewFile()
		exported := 0
		for _, code := range codes {
			h := store.Load(code)
			if h.Len() == 0 {
				continue
			}
			if err := addSheet(wb, h); err != nil {
				return eris.Wrapf(err, "export: fund %s", code)
			}
			exported++
		}
		if exported == 0 {
			return eris.New("export: no fund data on disk")
		}

		if err := wb.Save(exportOut); err != nil {
			return eris.Wrapf(err, "export: save %s", exportOut)
		}
		fmt.Printf("Exported %d funds to %s\n", exported, exportOut)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "lof_history.xlsx", "output workbook path")
	rootCmd.AddCommand(exportCmd)
}

func addSheet(wb *xlsx.File, h model.History) error {
	sheet, err := wb.AddSheet(h.InstrumentID)
	if err != nil {
		return err
	}

	header := sheet.AddRow()
	for _, col := range append([]string{"observation_date", "price", "net_value", "discount_rt"}, h.AuxColumns...) {
		header.AddCell().Value = col
	}

	for _, r := range h.Records {
		row := sheet.AddRow()
		row.AddCell().Value = r.DateKey()
		row.AddCell().Value = r.Price.String()
		row.AddCell().Value = r.ReferenceValue.String()
		row.AddCell().Value = premiumCell(r.PremiumRatio)
		for _, col := range h.AuxColumns {
			row.AddCell().Value = r.Aux[col]
		}
	}
	return nil
}

func premiumCell(p model.Premium) string {
	switch p.Status {
	case model.Unconfirmed:
		return "-"
	case model.Missing:
		return ""
	default:
		return p.Value.String()
	}
}
