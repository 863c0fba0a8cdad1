package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/reeldata/marquee/internal/ingest"
	"github.com/reeldata/marquee/internal/selector"
)

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Show the top titles by total revenue",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if input, _ := cmd.Flags().GetString("input"); input != "" {
			cfg.Input.Path = input
		}
		topK := cfg.Enrich.TopK
		if k, _ := cmd.Flags().GetInt("top"); k > 0 {
			topK = k
		}

		records, _, err := ingest.Load(cmd.Context(), cfg.Input.Path)
		if err != nil {
			return err
		}

		candidates := selector.TopK(records, topK)
		rows := make([][]string, 0, len(candidates))
		for _, c := range candidates {
			rows = append(rows, []string{
				strconv.Itoa(c.Rank),
				c.Title,
				c.TotalRevenue.StringFixed(2),
				c.FirstDate.Format("2006-01-02"),
				c.LastDate.Format("2006-01-02"),
			})
		}
		fmt.Println(renderTable(
			[]string{"Rank", "Title", "Total revenue", "First seen", "Last seen"},
			rows,
			[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft, alignLeft},
		))
		return nil
	},
}

func init() {
	rankCmd.Flags().String("input", "", "input file or URL (overrides config)")
	rankCmd.Flags().Int("top", 0, "number of titles to show (defaults to enrich.top_k)")
	rootCmd.AddCommand(rankCmd)
}
