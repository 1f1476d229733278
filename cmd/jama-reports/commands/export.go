package commands

import (
	"errors"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"jama-reports/internal/snapshot"
)

var exportPath string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Refresh every configured test plan into the snapshot database",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := exportPath
		if path == "" {
			path = cfg.SnapshotPath
		}
		if path == "" {
			return errors.New("no snapshot database configured (set SNAPSHOT_DB or --db)")
		}
		store, err := snapshot.Open(path)
		if err != nil {
			return err
		}
		defer store.Close()

		svc := newService(store)
		results, err := svc.Refresh(cmd.Context(), "")
		for _, r := range results {
			ev := log.Info()
			if r.Error != "" {
				ev = log.Error().Str("error", r.Error)
			}
			ev.Str("plan", r.Plan).Int("records", r.Records).Msg("Exported test plan")
		}
		saveCache()
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), results)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportPath, "db", "", "snapshot database path (default: SNAPSHOT_DB)")
}
