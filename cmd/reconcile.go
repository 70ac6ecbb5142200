package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/northcounty/propsync/internal/reconcile"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Repair asking prices on sold rows from overrides and banded estimates",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initRun(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		sum, err := reconcile.New(env.Store, env.Overrides).Run(ctx)
		if err != nil {
			return err
		}

		p := message.NewPrinter(language.English)
		p.Fprintf(cmd.OutOrStdout(),
			"reconciled %d sold rows: %d overwritten from verified overrides, %d estimated, %d skipped, %d failed\n",
			sum.Scanned, sum.Corrected, sum.Estimated, sum.Skipped, sum.Failed,
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
}
