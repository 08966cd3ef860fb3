package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quantfork/optsim/internal/adapters/notify"
	"github.com/quantfork/optsim/internal/adapters/storage"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the execution-quality report from a run database",
	Long: `Report aggregates every recorded cycle in the run database into NBBO
compliance rates, slippage and realized P&L, overall and per trading day.

Example:
  optsim report --db runs/base-42.db`,
	RunE: runReport,
}

var reportDB string

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().StringVar(&reportDB, "db", "", "SQLite path (overrides config)")
}

func runReport(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if reportDB != "" {
		cfg.Storage.DSN = reportDB
	}

	store, err := storage.NewSQLiteSink(cfg.Storage.DSN)
	if err != nil {
		return fmt.Errorf("open execution store: %w", err)
	}
	defer store.Close()

	stats, err := store.GetExecutionStats(cmd.Context())
	if err != nil {
		return err
	}

	notify.NewConsole().PrintReport(stats)
	return nil
}
