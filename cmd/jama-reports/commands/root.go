package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"jama-reports/internal/cache"
	"jama-reports/internal/config"
	"jama-reports/internal/jama"
	"jama-reports/internal/logging"
	"jama-reports/internal/mcp"
	"jama-reports/internal/report"
	"jama-reports/internal/snapshot"
)

var (
	// Version, Commit, and BuildDate are set at build time via ldflags.
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"

	verbose          bool
	reportConfigPath string

	cfg        *config.AppConfig
	reportCfg  *config.ReportConfig
	jamaClient *jama.Client
	runCache   *cache.Cache
)

var rootCmd = &cobra.Command{
	Use:   "jama-reports",
	Short: "Test-run status reports for Jama test plans",
	Long: `Aggregates Jama (Contour) test runs into current, historical, weekly and
per-dimension status reports. Without a subcommand it runs as an MCP server on stdio.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logging.Init(verbose)

		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}

		path := reportConfigPath
		if path == "" {
			path = cfg.ReportConfigPath
		}
		reportCfg, err = config.LoadReportConfig(path)
		if err != nil {
			return err
		}

		jamaClient = jama.New(cfg.Jama)
		runCache = cache.New(jamaClient)
		if err := runCache.Load(cfg.CacheDir); err != nil {
			log.Warn().Err(err).Msg("Ignoring unreadable cache")
		}

		log.Info().
			Str("version", Version).
			Str("commit", Commit).
			Str("buildDate", BuildDate).
			Msg("jama-reports starting")
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		store := openSnapshot()
		if store != nil {
			defer store.Close()
		}

		server := mcp.NewServer(newService(store), Version, cfg.EnableMermaidCharts)
		err := server.Serve(ctx)
		saveCache()
		return err
	},
}

// newService wires the report service; store may be nil.
func newService(store *snapshot.Store) *report.Service {
	opts := []report.Option{
		report.WithPlanLister(jamaClient),
		report.WithCollapse(cfg.Collapse),
	}
	if store != nil {
		opts = append(opts, report.WithSnapshot(store))
	}
	return report.NewService(reportCfg, runCache, opts...)
}

// openSnapshot opens the configured snapshot database. Failures are logged
// and reporting continues without snapshots.
func openSnapshot() *snapshot.Store {
	if cfg.SnapshotPath == "" {
		return nil
	}
	store, err := snapshot.Open(cfg.SnapshotPath)
	if err != nil {
		log.Warn().Err(err).Str("path", cfg.SnapshotPath).Msg("Snapshots disabled")
		return nil
	}
	return store
}

func saveCache() {
	if err := runCache.Save(cfg.CacheDir); err != nil {
		log.Error().Err(err).Msg("Failed to save cache")
	}
}

func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&reportConfigPath, "config", "c", "", "report config file (default: search $HOME and the working directory)")
	rootCmd.AddCommand(serveCmd, reportCmd, exportCmd)
}
