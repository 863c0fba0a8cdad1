package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/reeldata/marquee/internal/ingest"
	"github.com/reeldata/marquee/internal/pipeline"
	"github.com/reeldata/marquee/internal/selector"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute the full extract-enrich-load pipeline",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if input, _ := cmd.Flags().GetString("input"); input != "" {
			cfg.Input.Path = input
		}
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		if dryRun {
			return runDry(cmd)
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

		st, err := initStagingStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		report, err := pipeline.New(cfg, enricher, st).Run(ctx)
		if err != nil {
			return err
		}

		if cfg.Report.Path != "" {
			if err := report.Write(cfg.Report.Path); err != nil {
				zap.L().Warn("run: report write failed", zap.Error(err))
			} else {
				fmt.Fprintf(os.Stderr, "Report written to %s\n", cfg.Report.Path)
			}
		}

		printRunSummary(report)
		return nil
	},
}

// runDry ingests and ranks without touching the API or the staging tables.
func runDry(cmd *cobra.Command) error {
	records, summary, err := ingest.Load(cmd.Context(), cfg.Input.Path)
	if err != nil {
		return err
	}
	candidates := selector.TopK(records, cfg.Enrich.TopK)

	printQualitySummary(summary)
	fmt.Printf("\n%d rows parsed, %d candidates selected (top %d); dry run, nothing loaded.\n",
		summary.RowsParsed, len(candidates), cfg.Enrich.TopK)
	return nil
}

func printRunSummary(report *pipeline.RunReport) {
	rows := [][]string{
		{"Run ID", report.RunID},
		{"Rows parsed", strconv.Itoa(report.Quality.RowsParsed)},
		{"Rows failed", strconv.Itoa(report.Quality.RowsFailed)},
		{"Distinct titles", strconv.Itoa(report.DistinctTitles)},
		{"Selected for enrichment", strconv.Itoa(report.Selected)},
		{"Matched", strconv.Itoa(report.Enrichment.Matched)},
		{"Not found", strconv.Itoa(report.Enrichment.NotFound)},
		{"Errors", strconv.Itoa(report.Enrichment.Errors)},
		{"Budget exhausted", strconv.Itoa(report.Enrichment.BudgetExhausted)},
		{"API calls made", strconv.Itoa(report.Enrichment.CallsMade)},
		{"API calls remaining", strconv.Itoa(report.Enrichment.CallsRemaining)},
		{"Revenue rows loaded", strconv.Itoa(report.RevenueRowsLoaded)},
		{"Movie rows loaded", strconv.Itoa(report.MovieRowsLoaded)},
		{"Total revenue staged", report.Validation.Revenues.TotalRevenue.String()},
		{"Duration (ms)", strconv.FormatInt(report.Timings.TotalMS, 10)},
	}
	fmt.Println(renderTable([]string{"Metric", "Value"}, rows,
		[]columnAlignment{alignLeft, alignRight}))
}

func init() {
	runCmd.Flags().String("input", "", "input file or URL (overrides config)")
	runCmd.Flags().Bool("dry-run", false, "ingest and rank only; skip enrichment and load")
	rootCmd.AddCommand(runCmd)
}
