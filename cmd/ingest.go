package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/reeldata/marquee/internal/ingest"
	"github.com/reeldata/marquee/internal/model"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Parse the revenue extract and report data quality",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if input, _ := cmd.Flags().GetString("input"); input != "" {
			cfg.Input.Path = input
		}

		records, summary, err := ingest.Load(cmd.Context(), cfg.Input.Path)
		if err != nil {
			return err
		}

		printQualitySummary(summary)
		fmt.Printf("\n%d records parsed, %d loadable after filtering.\n",
			len(records), len(ingest.Filter(records)))
		return nil
	},
}

func printQualitySummary(summary *model.QualitySummary) {
	rows := [][]string{
		{"Rows parsed", strconv.Itoa(summary.RowsParsed)},
		{"Rows failed", strconv.Itoa(summary.RowsFailed)},
		{"Empty theater count", strconv.Itoa(summary.EmptyTheaterCount)},
		{"Missing distributor", strconv.Itoa(summary.MissingDistributor)},
		{"Zero revenue", strconv.Itoa(summary.ZeroRevenue)},
	}
	fmt.Println(renderTable([]string{"Quality check", "Count"}, rows,
		[]columnAlignment{alignLeft, alignRight}))
}

func init() {
	ingestCmd.Flags().String("input", "", "input file or URL (overrides config)")
	rootCmd.AddCommand(ingestCmd)
}
