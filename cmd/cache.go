package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage the enrichment cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache entry counts by status",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cacheStore, err := initCache()
		if err != nil {
			return err
		}
		defer cacheStore.Close() //nolint:errcheck

		stats, err := cacheStore.Stats(cmd.Context())
		if err != nil {
			return err
		}

		rows := [][]string{
			{"Total entries", strconv.Itoa(stats.Total)},
			{"Matched", strconv.Itoa(stats.Matched)},
			{"Not found", strconv.Itoa(stats.NotFound)},
		}
		fmt.Println(renderTable([]string{"Cache", "Count"}, rows,
			[]columnAlignment{alignLeft, alignRight}))
		return nil
	},
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete every cached lookup result",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cacheStore, err := initCache()
		if err != nil {
			return err
		}
		defer cacheStore.Close() //nolint:errcheck

		n, err := cacheStore.Purge(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Purged %d cache entries.\n", n)
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cachePurgeCmd)
	rootCmd.AddCommand(cacheCmd)
}
