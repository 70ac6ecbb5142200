package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/northcounty/propsync/internal/scrape"
)

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Scrape listing pages to recover missing asking prices on sold rows",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("scrape"); err != nil {
			return err
		}
		env, err := initRun(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		chain := scrape.NewChain(scrape.NewProxyFetcher(cfg.Scrape))
		sum, err := env.Runner.EnrichSoldPrices(ctx, chain)
		if err != nil {
			return err
		}

		p := message.NewPrinter(language.English)
		p.Fprintf(cmd.OutOrStdout(),
			"scanned %d sold rows without asking prices: %d recovered, %d had no listing URL, %d failed\n",
			sum.Scanned, sum.Updated, sum.Skipped, sum.Failed,
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(enrichCmd)
}
