package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var resetConfirm bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete all property rows",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !resetConfirm {
			return eris.New("refusing to delete all rows without --yes")
		}
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Clear(ctx); err != nil {
			return err
		}
		zap.L().Info("all property rows deleted", zap.String("driver", cfg.Store.Driver))
		return nil
	},
}

func init() {
	resetCmd.Flags().BoolVar(&resetConfirm, "yes", false, "confirm deletion")
	rootCmd.AddCommand(resetCmd)
}
