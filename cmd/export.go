package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/northcounty/propsync/internal/model"
	"github.com/northcounty/propsync/internal/store"
)

var (
	exportFormat string
	exportStatus string
	exportOut    string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Dump property rows as JSON or YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		filter := store.Filter{Limit: 10000}
		if exportStatus != "" {
			filter.Status = model.Status(exportStatus)
			if !filter.Status.Valid() {
				return eris.Errorf("unknown status %q", exportStatus)
			}
		}

		props, err := st.List(ctx, filter)
		if err != nil {
			return err
		}

		var data []byte
		switch exportFormat {
		case "json":
			data, err = json.MarshalIndent(props, "", "  ")
		case "yaml":
			data, err = yaml.Marshal(props)
		default:
			return eris.Errorf("unknown format %q (want json or yaml)", exportFormat)
		}
		if err != nil {
			return eris.Wrap(err, "marshal properties")
		}

		if exportOut == "" || exportOut == "-" {
			_, err = cmd.OutOrStdout().Write(data)
			return err
		}
		if err := os.WriteFile(exportOut, data, 0o644); err != nil {
			return eris.Wrapf(err, "write %s", exportOut)
		}
		zap.L().Info("export written",
			zap.String("path", exportOut),
			zap.Int("properties", len(props)),
		)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "output format: json or yaml")
	exportCmd.Flags().StringVar(&exportStatus, "status", "", "restrict to one listing status")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file (default stdout)")
	rootCmd.AddCommand(exportCmd)
}
