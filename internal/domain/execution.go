package domain

import "time"

// FillResult is the immutable outcome of simulating one order.
type FillResult struct {
	AvgPrice    float64
	Slippage    float64 // $ per contract vs arrival mid
	WithinNbbo  bool    // inside [bid, ask] with cent tolerance
	MidOrBetter bool
	Latency     time.Duration
}

// DetailKind labels which plan slot an executed order came from.
type DetailKind string

const (
	DetailExit       DetailKind = "EXIT"
	DetailHedgeClose DetailKind = "HEDGE_CLOSE"
	DetailHedgeAdd   DetailKind = "HEDGE_ADD"
	DetailProbeEntry DetailKind = "PROBE_ENTRY"
	DetailCoreEntry  DetailKind = "CORE_ENTRY"
)

// ExecutionDetail is the record of one simulated order, filled or failed.
type ExecutionDetail struct {
	Kind       DetailKind
	PositionID string
	Order      Order
	Fill       FillResult
	Filled     bool
	Err        string
}

// ComplianceStats tallies fill quality across a cycle or a run.
type ComplianceStats struct {
	Orders        int
	WithinNbbo    int
	MidOrBetter   int
	TotalSlippage float64 // $ total across all filled contracts
}

// Observe folds one fill into the tally.
func (c *ComplianceStats) Observe(o Order, f FillResult) {
	c.Orders++
	if f.WithinNbbo {
		c.WithinNbbo++
	}
	if f.MidOrBetter {
		c.MidOrBetter++
	}
	c.TotalSlippage += f.Slippage * float64(o.Quantity) * ContractMultiplier
}

// NbboRate returns the within-NBBO fraction, zero when empty.
func (c ComplianceStats) NbboRate() float64 {
	if c.Orders == 0 {
		return 0
	}
	return float64(c.WithinNbbo) / float64(c.Orders)
}

// MidOrBetterRate returns the price-improvement fraction, zero when empty.
func (c ComplianceStats) MidOrBetterRate() float64 {
	if c.Orders == 0 {
		return 0
	}
	return float64(c.MidOrBetter) / float64(c.Orders)
}

// ExecutionResult is everything one cycle settled: per-order details,
// capital movement, realized P&L and the reasons anything was skipped.
type ExecutionResult struct {
	CycleID   string
	Date      time.Time
	State     PlanState
	Sentiment Sentiment

	Details []ExecutionDetail

	ExitsDone    int
	HedgeCloses  int
	HedgeAdds    int
	ProbesOpened int
	CoresOpened  int
	FailedOrders int

	CapitalBefore    float64
	CapitalAfter     float64
	CapitalAvailable float64
	RealizedPnL      float64 // realized by this cycle's exits

	FreezeReason string
	SkipReasons  []string
	Compliance   ComplianceStats

	Err string // non-empty when the cycle failed before settling
}

// Failed reports whether the cycle aborted before execution completed.
func (r ExecutionResult) Failed() bool {
	return r.Err != ""
}

// DayStats is one row of the per-day execution quality rollup.
type DayStats struct {
	Day             string // YYYY-MM-DD
	Cycles          int
	Filled          int
	Failed          int
	NbboRate        float64
	MidOrBetterRate float64
	AvgSlippage     float64 // $ per filled order
	RealizedPnL     float64
}

// RunStats aggregates fill quality across every recorded cycle of a run.
type RunStats struct {
	Cycles          int
	Filled          int
	Failed          int
	NbboRate        float64
	MidOrBetterRate float64
	AvgSlippage     float64
	TotalSlippage   float64
	RealizedPnL     float64
	Freezes         int
	Days            []DayStats
}
