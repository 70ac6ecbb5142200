package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var correctionsCmd = &cobra.Command{
	Use:   "corrections",
	Short: "Work with the hand-verified price override file",
}

var correctionsApplyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Write override prices onto their matching rows",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initRun(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		sum, err := env.Runner.ApplyCorrections(ctx, env.Overrides)
		if err != nil {
			return err
		}

		p := message.NewPrinter(language.English)
		p.Fprintf(cmd.OutOrStdout(),
			"applied %d corrections (%d verified), %d addresses had no row, %d failed\n",
			sum.Applied, sum.Verified, sum.Missing, sum.Failed,
		)
		return nil
	},
}

func init() {
	correctionsCmd.AddCommand(correctionsApplyCmd)
	rootCmd.AddCommand(correctionsCmd)
}
