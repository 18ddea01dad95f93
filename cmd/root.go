package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hl-compare/hl-compare/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "hl-compare",
	Short: "Side-by-side entity comparison from uploaded documents",
	Long:  "Extracts text from uploaded PDF, TXT, CSV and Excel documents, compares the named entities across fixed investment categories, and serves the results as JSON, a browser UI and exported reports.",
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
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
