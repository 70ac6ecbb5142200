package main

import (
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Report sold-vs-asking outcomes across the table",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		stats, err := st.MarketStats(ctx)
		if err != nil {
			return err
		}

		p := message.NewPrinter(language.English)
		out := cmd.OutOrStdout()
		p.Fprintf(out, "sold with both prices: %d\n", stats.TotalSold)
		p.Fprintf(out, "  over asking:  %d\n", stats.SoldOverAsking)
		p.Fprintf(out, "  under asking: %d\n", stats.SoldUnderAsking)
		p.Fprintf(out, "  at asking:    %d\n", stats.SoldAtAsking)
		p.Fprintf(out, "  avg sold-vs-asking: %+.2f%%\n", stats.AvgPercentDiff)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
