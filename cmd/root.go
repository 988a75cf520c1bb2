package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/meridian/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "meridian",
	Short: "Portfolio document extraction and valuation service",
	Long:  "Parses financial documents, extracts structured fields via LLM or regex, tracks company metrics and runs DCF, comparables, sensitivity and blended valuations.",
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
