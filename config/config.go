package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/quantfork/optsim/internal/domain"
)

// Config is the full simulation configuration.
type Config struct {
	Run     RunConfig     `yaml:"run"`
	Sync    SyncConfig    `yaml:"sync"`
	Risk    RiskConfig    `yaml:"risk"`
	Market  MarketConfig  `yaml:"market"`
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`
}

// RunConfig controls the simulation loop itself.
type RunConfig struct {
	StartDate    string  `yaml:"start_date"` // YYYY-MM-DD, first trading day
	Days         int     `yaml:"days"`       // trading days to simulate
	Seed         int64   `yaml:"seed"`
	Profile      string  `yaml:"profile"`  // conservative | base | optimistic
	PaceRPS      float64 `yaml:"pace_rps"` // cycles per second, 0 = unpaced
	QuoteWorkers int     `yaml:"quote_workers"`
}

// SyncConfig mirrors domain.SyncConfig with YAML-friendly weekday names.
type SyncConfig struct {
	CapitalCeiling float64 `yaml:"capital_ceiling"`
	MaxExposure    float64 `yaml:"max_exposure"`
	MaxNetDelta    float64 `yaml:"max_net_delta"`

	MaxProbePositions int `yaml:"max_probe_positions"`
	MaxCorePositions  int `yaml:"max_core_positions"`
	MaxHedgePositions int `yaml:"max_hedge_positions"`

	ProbeEntryDays     []string `yaml:"probe_entry_days"` // mon..fri
	CoreEntryDays      []string `yaml:"core_entry_days"`
	ProbeEntriesPerDay int      `yaml:"probe_entries_per_day"`

	MaxDrawdownPct    float64 `yaml:"max_drawdown_pct"`
	DailyLossLimitPct float64 `yaml:"daily_loss_limit_pct"`

	MinHedgeProtection     float64 `yaml:"min_hedge_protection"`
	RequireHedgeProtection bool    `yaml:"require_hedge_protection"`

	SkipProbesOnVolatile     bool    `yaml:"skip_probes_on_volatile"`
	RequireProbeConfirmation bool    `yaml:"require_probe_confirmation"`
	MinProbeWinRate          float64 `yaml:"min_probe_win_rate"`
	ProbeWinWindow           int     `yaml:"probe_win_window"`
}

// RiskConfig feeds the risk engine's VaR and stress assumptions.
type RiskConfig struct {
	DailyVol    float64   `yaml:"daily_vol"`
	StressMoves []float64 `yaml:"stress_moves"`
}

// MarketConfig seeds the synthetic underlying path.
type MarketConfig struct {
	Spot  float64 `yaml:"spot"`
	Vol   float64 `yaml:"vol"`
	Drift float64 `yaml:"drift"`
}

// StorageConfig controls where execution records are persisted.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // SQLite file path, or ":memory:"
}

// LogConfig controls log format and level.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load reads the YAML file plus a .env overlay if present. Env values win
// over YAML for the keys they cover; defaults fill whatever is left.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

// Default returns a configuration with every default applied, for runs
// without a config file.
func Default() *Config {
	var cfg Config
	applyEnvOverrides(&cfg)
	setDefaults(&cfg)
	return &cfg
}

// StartDate parses the configured first trading day, pinned to the 21:00
// UTC session close used throughout the simulation.
func (c *Config) StartDate() (time.Time, error) {
	d, err := time.Parse("2006-01-02", c.Run.StartDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("config.StartDate: parse %q: %w", c.Run.StartDate, err)
	}
	return time.Date(d.Year(), d.Month(), d.Day(), 21, 0, 0, 0, time.UTC), nil
}

// Profile resolves the configured execution profile name.
func (c *Config) Profile() (domain.ExecutionProfile, error) {
	name := domain.ProfileName(strings.ToLower(c.Run.Profile))
	p, ok := domain.DefaultProfiles().Get(name)
	if !ok {
		return domain.ExecutionProfile{}, fmt.Errorf("config.Profile: unknown profile %q", c.Run.Profile)
	}
	return p, nil
}

// SyncDomain converts the YAML-level sync section into the domain form.
func (c *Config) SyncDomain() (domain.SyncConfig, error) {
	probeDays, err := parseWeekdays(c.Sync.ProbeEntryDays)
	if err != nil {
		return domain.SyncConfig{}, fmt.Errorf("config.SyncDomain: probe_entry_days: %w", err)
	}
	coreDays, err := parseWeekdays(c.Sync.CoreEntryDays)
	if err != nil {
		return domain.SyncConfig{}, fmt.Errorf("config.SyncDomain: core_entry_days: %w", err)
	}

	return domain.SyncConfig{
		CapitalCeiling:           c.Sync.CapitalCeiling,
		MaxExposure:              c.Sync.MaxExposure,
		MaxNetDelta:              c.Sync.MaxNetDelta,
		MaxProbePositions:        c.Sync.MaxProbePositions,
		MaxCorePositions:         c.Sync.MaxCorePositions,
		MaxHedgePositions:        c.Sync.MaxHedgePositions,
		ProbeEntryDays:           probeDays,
		CoreEntryDays:            coreDays,
		ProbeEntriesPerDay:       c.Sync.ProbeEntriesPerDay,
		MaxDrawdownPct:           c.Sync.MaxDrawdownPct,
		DailyLossLimitPct:        c.Sync.DailyLossLimitPct,
		MinHedgeProtection:       c.Sync.MinHedgeProtection,
		RequireHedgeProtection:   c.Sync.RequireHedgeProtection,
		SkipProbesOnVolatile:     c.Sync.SkipProbesOnVolatile,
		RequireProbeConfirmation: c.Sync.RequireProbeConfirmation,
		MinProbeWinRate:          c.Sync.MinProbeWinRate,
		ProbeWinWindow:           c.Sync.ProbeWinWindow,
	}, nil
}

var weekdayNames = map[string]time.Weekday{
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
}

// parseWeekdays maps names like "mon" or "Friday" to time.Weekday values.
func parseWeekdays(names []string) ([]time.Weekday, error) {
	var days []time.Weekday
	for _, n := range names {
		wd, ok := weekdayNames[strings.ToLower(strings.TrimSpace(n))]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", n)
		}
		days = append(days, wd)
	}
	return days, nil
}

// applyEnvOverrides overwrites values from environment variables when set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("OPTSIM_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
}

// setDefaults fills required values with sensible ones.
func setDefaults(cfg *Config) {
	if cfg.Run.StartDate == "" {
		cfg.Run.StartDate = "2026-01-02"
	}
	if cfg.Run.Days <= 0 {
		cfg.Run.Days = 20
	}
	if cfg.Run.Seed == 0 {
		cfg.Run.Seed = 1
	}
	if cfg.Run.Profile == "" {
		cfg.Run.Profile = string(domain.ProfileConservative)
	}

	if cfg.Sync.CapitalCeiling <= 0 {
		cfg.Sync.CapitalCeiling = 25000
	}
	if cfg.Sync.MaxProbePositions <= 0 {
		cfg.Sync.MaxProbePositions = 4
	}
	if cfg.Sync.MaxCorePositions <= 0 {
		cfg.Sync.MaxCorePositions = 2
	}
	if cfg.Sync.MaxHedgePositions <= 0 {
		cfg.Sync.MaxHedgePositions = 3
	}
	if cfg.Sync.ProbeEntriesPerDay <= 0 {
		cfg.Sync.ProbeEntriesPerDay = 1
	}
	if len(cfg.Sync.ProbeEntryDays) == 0 {
		cfg.Sync.ProbeEntryDays = []string{"mon", "tue", "wed", "thu", "fri"}
	}
	if len(cfg.Sync.CoreEntryDays) == 0 {
		cfg.Sync.CoreEntryDays = []string{"tue", "thu"}
	}
	if cfg.Sync.MaxDrawdownPct <= 0 {
		cfg.Sync.MaxDrawdownPct = 0.10
	}
	if cfg.Sync.DailyLossLimitPct <= 0 {
		cfg.Sync.DailyLossLimitPct = 0.03
	}
	if cfg.Sync.MinProbeWinRate <= 0 {
		cfg.Sync.MinProbeWinRate = 0.5
	}
	if cfg.Sync.ProbeWinWindow <= 0 {
		cfg.Sync.ProbeWinWindow = 3
	}

	if cfg.Risk.DailyVol <= 0 {
		cfg.Risk.DailyVol = 0.01
	}
	if len(cfg.Risk.StressMoves) == 0 {
		cfg.Risk.StressMoves = []float64{0.05, 0.10, 0.20}
	}

	if cfg.Market.Spot <= 0 {
		cfg.Market.Spot = 5000
	}
	if cfg.Market.Vol <= 0 {
		cfg.Market.Vol = 0.16
	}
	if cfg.Market.Drift == 0 {
		cfg.Market.Drift = 0.05
	}

	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "optsim.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
