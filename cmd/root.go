package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/northcounty/propsync/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "propsync",
	Short: "Northern Westchester property data pipeline",
	Long:  "Collects listings from property APIs and listing-page scrapes, normalizes them into a canonical schema, and reconciles sold prices against a hand-verified override file.",
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
