package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/quantfork/optsim/config"
	"github.com/quantfork/optsim/internal/adapters/notify"
	"github.com/quantfork/optsim/internal/adapters/storage"
	"github.com/quantfork/optsim/internal/adapters/synthetic"
	"github.com/quantfork/optsim/internal/application/executor"
	"github.com/quantfork/optsim/internal/application/risk"
	"github.com/quantfork/optsim/internal/domain"
	"github.com/quantfork/optsim/internal/ports"
)

// The market starts this many calendar days before the first cycle so the
// sentiment window has trailing returns from day one.
const warmupDays = 30

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the day-by-day execution simulation",
	Long: `Run simulates one execution cycle per trading day: mark the book, plan
exits and entries, validate against risk limits, trim to capital, execute
through the fill simulator and record the results.

Example:
  optsim run --days 60 --seed 42 --profile base --db runs/base-42.db`,
	RunE: runSimulation,
}

var (
	runDays    int
	runSeed    int64
	runProfile string
	runDB      string
	runStart   string
	runPaceRPS float64
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().IntVarP(&runDays, "days", "d", 0, "trading days to simulate (overrides config)")
	runCmd.Flags().Int64Var(&runSeed, "seed", 0, "master seed for the run (overrides config)")
	runCmd.Flags().StringVarP(&runProfile, "profile", "p", "", "execution profile: conservative|base|optimistic")
	runCmd.Flags().StringVar(&runDB, "db", "", "SQLite path for execution records (overrides config)")
	runCmd.Flags().StringVar(&runStart, "start", "", "first trading day, YYYY-MM-DD (overrides config)")
	runCmd.Flags().Float64Var(&runPaceRPS, "pace-rps", 0, "max cycles per second (0 = unpaced)")
}

// multiSink fans one execution result out to several sinks.
type multiSink []ports.ExecutionSink

func (m multiSink) RecordExecution(ctx context.Context, res domain.ExecutionResult) error {
	for _, s := range m {
		if err := s.RecordExecution(ctx, res); err != nil {
			return err
		}
	}
	return nil
}

func runSimulation(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if runDays > 0 {
		cfg.Run.Days = runDays
	}
	if runSeed != 0 {
		cfg.Run.Seed = runSeed
	}
	if runProfile != "" {
		cfg.Run.Profile = runProfile
	}
	if runDB != "" {
		cfg.Storage.DSN = runDB
	}
	if runStart != "" {
		cfg.Run.StartDate = runStart
	}
	if runPaceRPS > 0 {
		cfg.Run.PaceRPS = runPaceRPS
	}

	start, err := cfg.StartDate()
	if err != nil {
		return err
	}

	store, err := storage.NewSQLiteSink(cfg.Storage.DSN)
	if err != nil {
		return fmt.Errorf("open execution store: %w", err)
	}
	defer store.Close()

	console := notify.NewConsole()

	exec, market, err := buildExecutor(cfg, start, multiSink{console, store})
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var limiter *rate.Limiter
	if cfg.Run.PaceRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Run.PaceRPS), 1)
	}

	slog.Info("optsim starting",
		"start", cfg.Run.StartDate,
		"days", cfg.Run.Days,
		"seed", cfg.Run.Seed,
		"profile", cfg.Run.Profile,
		"db", cfg.Storage.DSN,
	)

	if err := market.Advance(ctx, start); err != nil {
		return fmt.Errorf("warm up market: %w", err)
	}

	cycles := 0
	var realized float64
	for d := start; cycles < cfg.Run.Days; d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		if ctx.Err() != nil {
			slog.Warn("run interrupted", "completed", cycles)
			break
		}
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				break
			}
		}

		if err := market.Advance(ctx, d); err != nil {
			return fmt.Errorf("advance market: %w", err)
		}
		res, err := exec.RunCycle(ctx, d)
		if err != nil {
			slog.Warn("cycle did not settle", "date", d.Format("2006-01-02"), "err", err)
		}
		realized += res.RealizedPnL
		cycles++
	}

	stats, err := store.GetExecutionStats(context.Background())
	if err != nil {
		slog.Warn("run stats unavailable", "err", err)
	} else {
		console.PrintReport(stats)
	}

	slog.Info("simulation complete",
		"cycles", cycles,
		"realized", fmt.Sprintf("$%.2f", realized),
	)
	return nil
}

// buildExecutor wires the synthetic collaborators and the executor from the
// effective configuration.
func buildExecutor(cfg *config.Config, start time.Time, sink ports.ExecutionSink) (*executor.Executor, *synthetic.Market, error) {
	profile, err := cfg.Profile()
	if err != nil {
		return nil, nil, err
	}
	sync, err := cfg.SyncDomain()
	if err != nil {
		return nil, nil, err
	}

	market := synthetic.NewMarket(synthetic.MarketConfig{
		StartDate: start.AddDate(0, 0, -warmupDays),
		Spot:      cfg.Market.Spot,
		Vol:       cfg.Market.Vol,
		Drift:     cfg.Market.Drift,
		Seed:      cfg.Run.Seed,
	})

	exec := executor.New(
		executor.Config{
			Sync:         sync,
			Risk:         risk.Config{DailyVol: cfg.Risk.DailyVol, StressMoves: cfg.Risk.StressMoves},
			Profile:      profile,
			Seed:         cfg.Run.Seed,
			QuoteWorkers: cfg.Run.QuoteWorkers,
		},
		market,
		synthetic.NewProbeSource(synthetic.ProbeConfig{}, market),
		synthetic.NewCoreSource(synthetic.CoreConfig{}, market),
		synthetic.NewHedgeManager(synthetic.HedgeConfig{}, market),
		sink,
	)
	return exec, market, nil
}
