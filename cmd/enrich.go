package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/reeldata/marquee/internal/ingest"
	"github.com/reeldata/marquee/internal/selector"
)

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Enrich the top titles without loading the staging tables",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if input, _ := cmd.Flags().GetString("input"); input != "" {
			cfg.Input.Path = input
		}

		cacheStore, err := initCache()
		if err != nil {
			return err
		}
		defer cacheStore.Close() //nolint:errcheck

		enricher, err := newEnricher(cacheStore)
		if err != nil {
			return err
		}

		records, _, err := ingest.Load(ctx, cfg.Input.Path)
		if err != nil {
			return err
		}
		candidates := selector.TopK(records, cfg.Enrich.TopK)

		results, err := enricher.EnrichAll(ctx, candidates)
		if err != nil {
			return err
		}

		stats := enricher.Stats(results)
		rows := [][]string{
			{"Candidates", strconv.Itoa(stats.Candidates)},
			{"Cache hits", strconv.Itoa(stats.CacheHits)},
			{"Matched", strconv.Itoa(stats.Matched)},
			{"Not found", strconv.Itoa(stats.NotFound)},
			{"Errors", strconv.Itoa(stats.Errors)},
			{"Budget exhausted", strconv.Itoa(stats.BudgetExhausted)},
			{"API calls made", strconv.Itoa(stats.CallsMade)},
			{"API calls remaining", strconv.Itoa(stats.CallsRemaining)},
		}
		fmt.Println(renderTable([]string{"Metric", "Value"}, rows,
			[]columnAlignment{alignLeft, alignRight}))
		return nil
	},
}

func init() {
	enrichCmd.Flags().String("input", "", "input file or URL (overrides config)")
	rootCmd.AddCommand(enrichCmd)
}
