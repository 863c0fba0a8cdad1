package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/reeldata/marquee/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "marquee",
	Short: "Box-office revenue enrichment pipeline",
	Long:  "Ingests daily box-office revenue extracts, ranks titles by revenue, enriches the top titles with OMDb metadata under a daily call budget, and loads the staging tables.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
