package domain

import (
	"fmt"
	"time"
)

// PlanState tracks a cycle through its lifecycle. Transitions only move
// forward; a failed cycle keeps the state it failed in.
type PlanState string

const (
	PlanPlanning   PlanState = "PLANNING"
	PlanValidating PlanState = "VALIDATING"
	PlanTrimming   PlanState = "TRIMMING"
	PlanExecuting  PlanState = "EXECUTING"
	PlanSettled    PlanState = "SETTLED"
)

// Sentiment is the probe layer's read of market direction.
type Sentiment string

const (
	SentimentBullish      Sentiment = "BULLISH"
	SentimentNeutral      Sentiment = "NEUTRAL"
	SentimentBearish      Sentiment = "BEARISH"
	SentimentVolatile     Sentiment = "VOLATILE"
	SentimentInsufficient Sentiment = "INSUFFICIENT"
)

// AllowsEntries reports whether the sentiment supports opening new exposure.
// Directional and range views all qualify; only volatile conditions and
// missing data do not.
func (s Sentiment) AllowsEntries() bool {
	switch s {
	case SentimentBullish, SentimentNeutral, SentimentBearish:
		return true
	}
	return false
}

// EntryCandidate is a fully specified structure a signal source proposes to
// open. Risk and Credit are planning estimates from current marks; actuals
// are set from fills at execution.
type EntryCandidate struct {
	Symbol      string
	Role        PositionRole
	Legs        []OrderLeg
	Quantity    int     // structures
	Risk        float64 // estimated max loss, $ total
	Credit      float64 // estimated net premium, $ total; negative = debit
	MaxLossBase float64 // structural max loss before premium offset, $ total
	Expiration  time.Time
	Greeks      Greeks
	Exit        ExitRule
}

// HedgeCandidate is a protective structure proposed by the hedge manager.
type HedgeCandidate struct {
	Symbol     string
	Legs       []OrderLeg
	Quantity   int
	Cost       float64 // estimated premium, $ total
	MaxPayoff  float64 // $ total at full payout
	Expiration time.Time
	Greeks     Greeks
}

// HedgeRequirement sizes the protection the portfolio should carry.
type HedgeRequirement struct {
	NotionalToCover  float64
	Contracts        int
	TargetProtection float64 // desired MaxPayoff / exposure ratio
}

// HedgeAction is the closed set of hedge adjustments. Anything else is
// rejected when the signal is translated into directives.
type HedgeAction string

const (
	HedgeAdd          HedgeAction = "ADD"
	HedgePartialClose HedgeAction = "PARTIAL_CLOSE"
	HedgeRoll         HedgeAction = "ROLL"
)

// Valid reports whether the action is a known member of the closed set.
func (a HedgeAction) Valid() bool {
	switch a {
	case HedgeAdd, HedgePartialClose, HedgeRoll:
		return true
	}
	return false
}

// HedgeSignal is the hedge manager's adjustment recommendation for this
// cycle. A nil signal means hold.
type HedgeSignal struct {
	Action   HedgeAction
	Quantity int // contracts, for PARTIAL_CLOSE
	Reason   string
}

// ExitReason says why a position is scheduled to close.
type ExitReason string

const (
	ExitForcedDTE    ExitReason = "FORCED_DTE"
	ExitProfitTarget ExitReason = "PROFIT_TARGET"
	ExitStopLoss     ExitReason = "STOP_LOSS"
	ExitHedgeTrim    ExitReason = "HEDGE_TRIM"
	ExitHedgeRoll    ExitReason = "HEDGE_ROLL"
)

// ExitDirective schedules a full or partial close of an open position.
type ExitDirective struct {
	PositionID   string
	Symbol       string
	Role         PositionRole
	Reason       ExitReason
	Quantity     int     // structures to close; equals position size for full exits
	CapitalFreed float64 // capital released if the close fills
}

// HedgeDirective schedules opening a protective structure.
type HedgeDirective struct {
	Candidate HedgeCandidate
	Reason    string
}

// ExecutionPlan is the single deterministic artifact one cycle produces:
// every intended order with its priority class, plus the capital math that
// justified it. Built fresh each cycle, never reused.
type ExecutionPlan struct {
	CycleID   string
	Date      time.Time
	State     PlanState
	Sentiment Sentiment

	Exits        []ExitDirective
	HedgeAdds    []HedgeDirective
	ProbeEntries []EntryCandidate
	CoreEntries  []EntryCandidate

	CapitalRequired   float64 // new capital the entries need
	CapitalAvailable  float64 // ceiling - in use + releases from exits
	ProjectedExposure float64
	ProjectedGreeks   Greeks

	FreezeReason string
	SkipReasons  []string
}

// Skip records a human-readable reason an action was not taken.
func (p *ExecutionPlan) Skip(format string, args ...any) {
	p.SkipReasons = append(p.SkipReasons, fmt.Sprintf(format, args...))
}

// EntryCount returns how many entry directives survive in the plan.
func (p *ExecutionPlan) EntryCount() int {
	return len(p.ProbeEntries) + len(p.CoreEntries) + len(p.HedgeAdds)
}

// Frozen reports whether risk controls halted new exposure this cycle.
func (p *ExecutionPlan) Frozen() bool {
	return p.FreezeReason != ""
}

// SyncConfig is the orchestration policy: capital and exposure ceilings,
// per-role caps, entry schedules and the risk-freeze thresholds. Loaded
// once at startup and treated as immutable.
type SyncConfig struct {
	CapitalCeiling float64
	MaxExposure    float64
	MaxNetDelta    float64

	MaxProbePositions int
	MaxCorePositions  int
	MaxHedgePositions int

	ProbeEntryDays     []time.Weekday
	CoreEntryDays      []time.Weekday
	ProbeEntriesPerDay int

	MaxDrawdownPct    float64 // freeze when equity drawdown from peak exceeds this
	DailyLossLimitPct float64 // freeze when the day's realized loss exceeds this fraction of the ceiling

	MinHedgeProtection     float64 // minimum MaxPayoff / exposure
	RequireHedgeProtection bool

	SkipProbesOnVolatile     bool
	RequireProbeConfirmation bool
	MinProbeWinRate          float64
	ProbeWinWindow           int
}

// IsProbeDay reports whether new probes may be opened on the given weekday.
func (c SyncConfig) IsProbeDay(d time.Weekday) bool {
	return weekdayIn(c.ProbeEntryDays, d)
}

// IsCoreDay reports whether a core entry may be opened on the given weekday.
func (c SyncConfig) IsCoreDay(d time.Weekday) bool {
	return weekdayIn(c.CoreEntryDays, d)
}

func weekdayIn(days []time.Weekday, d time.Weekday) bool {
	for _, x := range days {
		if x == d {
			return true
		}
	}
	return false
}
