package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/northcounty/propsync/internal/config"
	"github.com/northcounty/propsync/internal/model"
	"github.com/northcounty/propsync/internal/pipeline"
	"github.com/northcounty/propsync/internal/source"
)

var (
	collectStatus    string
	collectRegions   []string
	collectAddresses []string
	collectCity      string
	collectState     string
	collectLimit     int
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Pull listings from the property APIs into the store",
}

var collectRegionsCmd = &cobra.Command{
	Use:   "regions",
	Short: "Bulk-search configured regions for active and sold listings",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("redfin"); err != nil {
			return err
		}
		env, err := initRun(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		regions := cfg.Redfin.Regions
		if len(regions) == 0 {
			regions = config.DefaultRegions()
		}
		if len(collectRegions) > 0 {
			regions = filterRegions(regions, collectRegions)
			if len(regions) == 0 {
				return eris.Errorf("no configured region matches %v", collectRegions)
			}
		}

		statuses, err := statusesFor(collectStatus)
		if err != nil {
			return err
		}

		limit := collectLimit
		if limit <= 0 {
			limit = cfg.Redfin.Limit
		}

		var queries []source.RegionQuery
		for _, region := range regions {
			for _, st := range statuses {
				queries = append(queries, source.RegionQuery{
					RegionID: region.RegionID,
					Status:   st,
					Limit:    limit,
				})
			}
		}

		sum, err := env.Runner.CollectRegions(ctx, source.NewRedfin(cfg.Redfin), queries)
		if err != nil {
			return err
		}
		printSummary(cmd, sum)
		return nil
	},
}

var collectAddressesCmd = &cobra.Command{
	Use:   "addresses",
	Short: "Fetch individual properties by address from the metered API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("attom"); err != nil {
			return err
		}
		if len(collectAddresses) == 0 {
			return eris.New("at least one --address is required")
		}
		env, err := initRun(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		queries := make([]source.AddressQuery, 0, len(collectAddresses))
		for _, addr := range collectAddresses {
			queries = append(queries, source.AddressQuery{
				Address: addr,
				City:    collectCity,
				State:   collectState,
			})
		}

		sum, err := env.Runner.CollectAddresses(ctx, source.NewAttom(cfg.Attom), queries)
		if err != nil {
			return err
		}
		printSummary(cmd, sum)
		return nil
	},
}

func statusesFor(flag string) ([]model.Status, error) {
	switch flag {
	case "active":
		return []model.Status{model.StatusActive}, nil
	case "sold":
		return []model.Status{model.StatusSold}, nil
	case "both", "":
		return []model.Status{model.StatusActive, model.StatusSold}, nil
	}
	return nil, eris.Errorf("unknown status %q (want active, sold, or both)", flag)
}

func filterRegions(regions []config.Region, names []string) []config.Region {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	var out []config.Region
	for _, r := range regions {
		if want[r.Name] || want[r.RegionID] {
			out = append(out, r)
		}
	}
	return out
}

func printSummary(cmd *cobra.Command, sum *pipeline.Summary) {
	p := message.NewPrinter(language.English)
	p.Fprintf(cmd.OutOrStdout(),
		"fetched %d records: %d upserted (%d sold, %d pending, %d active), %d dropped, %d failed\n",
		sum.Fetched, sum.Upserted, sum.Sold, sum.Pending, sum.Active, sum.Dropped, sum.Failed,
	)
	if sum.QuotaExhausted {
		p.Fprintln(cmd.OutOrStdout(), "monthly request quota exhausted; remaining addresses were not fetched")
	}
}

func init() {
	collectRegionsCmd.Flags().StringVar(&collectStatus, "status", "both", "listing status to pull: active, sold, or both")
	collectRegionsCmd.Flags().StringSliceVar(&collectRegions, "region", nil, "restrict to named regions (default: all configured)")
	collectRegionsCmd.Flags().IntVar(&collectLimit, "limit", 0, "max listings per region query (default from config)")

	collectAddressesCmd.Flags().StringSliceVar(&collectAddresses, "address", nil, "street address to fetch (repeatable)")
	collectAddressesCmd.Flags().StringVar(&collectCity, "city", "Mount Kisco", "city for the address queries")
	collectAddressesCmd.Flags().StringVar(&collectState, "state", "NY", "state for the address queries")

	collectCmd.AddCommand(collectRegionsCmd)
	collectCmd.AddCommand(collectAddressesCmd)
	rootCmd.AddCommand(collectCmd)
}
