package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/quantfork/optsim/config"
)

var (
	cfgPath   string
	verbose   bool
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "optsim",
	Short: "Options execution simulator and strategy orchestrator",
	Long: `Optsim runs a synchronized multi-component options strategy against a
deterministic synthetic market and records how well its orders execute.

It provides tools for:
  - Day-by-day simulation of probe, core and hedge entries with exits
  - Conservative, base and optimistic fill assumption profiles
  - NBBO compliance and slippage tracking per order
  - Aggregate execution-quality reports from the run database

Runs with the same seed and configuration replay bit for bit.`,
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to YAML config (default: built-in defaults)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "set log level to debug")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: text|json (overrides config)")
}

// loadConfig resolves the effective configuration and installs the logger.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if cfgPath != "" {
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = config.Default()
	}

	if verbose {
		cfg.Log.Level = "debug"
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}
	setupLogger(cfg.Log)
	return cfg, nil
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
