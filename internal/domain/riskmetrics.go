package domain

// StressResult is the portfolio drawdown estimate under one stress move.
type StressResult struct {
	Label       string  // e.g. "DOWN_10"
	Move        float64 // signed fractional underlying move
	GrossLoss   float64 // $ loss before hedge offset
	HedgeOffset float64 // $ recovered from hedges
	NetDrawdown float64 // $ max(0, gross - offset)
}

// RiskMetrics is the risk engine's read of a portfolio state. The numbers
// are planning heuristics derived from aggregate greeks and assumed vols,
// not guarantees.
type RiskMetrics struct {
	VaR95           float64
	VaR99           float64
	Stress          []StressResult // ordered from largest down move to largest up move
	ProtectionLevel float64        // hedge max payoff / exposure
	Greeks          Greeks
	WithinLimits    bool
}
