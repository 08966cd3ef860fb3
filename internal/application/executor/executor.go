// Package executor turns collaborator signals into one deterministic,
// priority-ordered execution plan per cycle and settles it through the fill
// simulator. One cycle runs at a time; the portfolio book is only written
// during execution.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/quantfork/optsim/internal/application/portfolio"
	"github.com/quantfork/optsim/internal/application/risk"
	"github.com/quantfork/optsim/internal/domain"
	"github.com/quantfork/optsim/internal/ports"
)

const (
	defaultCapital = 25000.0

	// hedgeRollDTE is how close to expiry a hedge must be before a ROLL
	// signal replaces it.
	hedgeRollDTE = 21
)

var allWeekdays = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday,
}

// Config holds the orchestration policy and simulation assumptions.
type Config struct {
	Sync         domain.SyncConfig
	Risk         risk.Config
	Profile      domain.ExecutionProfile
	Seed         int64
	QuoteWorkers int
}

// Executor coordinates the collaborators into synchronized cycles.
type Executor struct {
	cfg    Config
	market ports.MarketDataProvider
	probes ports.ProbeSignalSource
	core   ports.CoreSignalSource
	hedger ports.HedgeManager
	sink   ports.ExecutionSink

	book *portfolio.Book
	risk *risk.Engine
	rng  *rand.Rand

	peakEquity float64
}

// New creates an executor. Zero config values get working defaults; the
// seed defaults to 1 so two unconfigured runs still match each other.
func New(
	cfg Config,
	market ports.MarketDataProvider,
	probes ports.ProbeSignalSource,
	core ports.CoreSignalSource,
	hedger ports.HedgeManager,
	sink ports.ExecutionSink,
) *Executor {
	if cfg.Sync.CapitalCeiling <= 0 {
		cfg.Sync.CapitalCeiling = defaultCapital
	}
	if cfg.Sync.ProbeEntriesPerDay <= 0 {
		cfg.Sync.ProbeEntriesPerDay = 1
	}
	if len(cfg.Sync.ProbeEntryDays) == 0 {
		cfg.Sync.ProbeEntryDays = allWeekdays
	}
	if len(cfg.Sync.CoreEntryDays) == 0 {
		cfg.Sync.CoreEntryDays = allWeekdays
	}
	if cfg.Profile.Name == "" {
		cfg.Profile = domain.Conservative()
	}
	if cfg.Seed == 0 {
		cfg.Seed = 1
	}

	return &Executor{
		cfg:        cfg,
		market:     market,
		probes:     probes,
		core:       core,
		hedger:     hedger,
		sink:       sink,
		book:       portfolio.NewBook(),
		risk:       risk.New(cfg.Risk),
		rng:        rand.New(rand.NewSource(cfg.Seed)),
		peakEquity: cfg.Sync.CapitalCeiling,
	}
}

// Book exposes the portfolio book for reporting and tests.
func (e *Executor) Book() *portfolio.Book {
	return e.book
}

// RunCycle executes one full cycle for the given date: plan, validate,
// trim if capital demands it, execute, record. The returned result is
// always non-nil and always recorded to the sink, including failures.
func (e *Executor) RunCycle(ctx context.Context, date time.Time) (*domain.ExecutionResult, error) {
	plan, err := e.GeneratePlan(ctx, date)
	if err != nil {
		res := failedResult(plan, date, err)
		e.record(ctx, res)
		return res, err
	}

	plan.State = domain.PlanValidating
	snap := e.book.Snapshot(date, domain.MarkSet{})

	decision := e.risk.Validate(plan, snap, e.cfg.Sync)
	if !decision.Allowed && onlyCapital(decision) {
		droppedHedges := TrimToCapital(plan)

		if plan.CapitalRequired > plan.CapitalAvailable {
			err := &domain.CapacityError{
				Required:  plan.CapitalRequired,
				Available: plan.CapitalAvailable,
				Detail:    "book already beyond ceiling",
			}
			res := failedResult(plan, date, err)
			e.record(ctx, res)
			return res, err
		}
		if droppedHedges && e.cfg.Sync.RequireHedgeProtection {
			err := &domain.CapacityError{
				Required:  plan.CapitalRequired,
				Available: plan.CapitalAvailable,
				Detail:    "mandatory hedge protection is unaffordable",
			}
			res := failedResult(plan, date, err)
			e.record(ctx, res)
			return res, err
		}

		decision = e.risk.Validate(plan, snap, e.cfg.Sync)
	}
	if !decision.Allowed {
		err := &domain.ValidationError{Reasons: decision.Reasons()}
		res := failedResult(plan, date, err)
		e.record(ctx, res)
		return res, err
	}

	res := e.ExecutePlan(ctx, plan)
	e.record(ctx, res)
	return res, nil
}

// record pushes the result to the sink. Sink failures are logged, never
// allowed to affect the cycle outcome.
func (e *Executor) record(ctx context.Context, res *domain.ExecutionResult) {
	if e.sink == nil {
		return
	}
	if err := e.sink.RecordExecution(ctx, *res); err != nil {
		slog.Warn("executor: error recording execution", "cycle", res.CycleID, "err", err)
	}
}

// failedResult builds the terminal result for a cycle that could not
// settle. The plan may be nil when planning itself failed.
func failedResult(plan *domain.ExecutionPlan, date time.Time, err error) *domain.ExecutionResult {
	res := &domain.ExecutionResult{
		Date: date,
		Err:  err.Error(),
	}
	if plan != nil {
		res.CycleID = plan.CycleID
		res.State = plan.State
		res.Sentiment = plan.Sentiment
		res.FreezeReason = plan.FreezeReason
		res.SkipReasons = plan.SkipReasons
	} else {
		res.State = domain.PlanPlanning
	}
	return res
}

// onlyCapital reports whether every violation is the capital check, the
// one case priority trimming can repair.
func onlyCapital(d risk.Decision) bool {
	for _, v := range d.Violations {
		if v.Code != "CAPITAL_EXCEEDED" {
			return false
		}
	}
	return len(d.Violations) > 0
}

// newID draws a deterministic UUID from the executor's seeded generator.
func (e *Executor) newID() string {
	id, err := uuid.NewRandomFromReader(e.rng)
	if err != nil {
		// math/rand readers don't fail; keep a fallback anyway.
		return fmt.Sprintf("cycle-%d", e.rng.Int63())
	}
	return id.String()
}

// IsValidationError reports whether err is a plan validation failure.
func IsValidationError(err error) bool {
	var ve *domain.ValidationError
	return errors.As(err, &ve)
}

// IsCapacityError reports whether err is a capital capacity failure.
func IsCapacityError(err error) bool {
	var ce *domain.CapacityError
	return errors.As(err, &ce)
}
