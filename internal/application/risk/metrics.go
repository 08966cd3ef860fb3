// Package risk derives portfolio risk metrics and validates execution plans
// against configured limits. All numbers here are planning heuristics built
// from aggregate greeks and assumed volatilities, not guarantees.
package risk

import (
	"fmt"
	"math"

	"github.com/quantfork/optsim/internal/domain"
)

const (
	z95 = 1.645
	z99 = 2.326
)

// Config holds the distribution assumptions behind the metrics.
type Config struct {
	DailyVol    float64   // assumed daily vol of the exposure base
	StressMoves []float64 // stress magnitudes as fractions, e.g. 0.05, 0.10, 0.20
}

// Engine computes metrics and validates plans.
type Engine struct {
	cfg Config
}

// New creates a risk engine, filling in defaults for zero values.
func New(cfg Config) *Engine {
	if cfg.DailyVol <= 0 {
		cfg.DailyVol = 0.02
	}
	if len(cfg.StressMoves) == 0 {
		cfg.StressMoves = []float64{0.05, 0.10, 0.20}
	}
	return &Engine{cfg: cfg}
}

// Metrics derives VaR, stress drawdowns and protection level for a
// portfolio snapshot. spot is the current underlying price the dollar
// greeks are anchored to.
func (e *Engine) Metrics(state domain.PortfolioState, spot float64, sync domain.SyncConfig) domain.RiskMetrics {
	m := domain.RiskMetrics{
		VaR95:  z95 * e.cfg.DailyVol * state.TotalExposure,
		VaR99:  z99 * e.cfg.DailyVol * state.TotalExposure,
		Greeks: state.Greeks,
		Stress: e.stress(state, spot),
	}

	if state.TotalExposure > 0 {
		m.ProtectionLevel = state.HedgeMaxPayoff / state.TotalExposure
	}

	m.WithinLimits = withinLimits(m, state, sync)
	return m
}

// stress evaluates drawdown at each configured move, both directions,
// ordered from the largest down move to the largest up move so output is
// stable run to run.
func (e *Engine) stress(state domain.PortfolioState, spot float64) []domain.StressResult {
	moves := make([]float64, 0, 2*len(e.cfg.StressMoves))
	for i := len(e.cfg.StressMoves) - 1; i >= 0; i-- {
		moves = append(moves, -math.Abs(e.cfg.StressMoves[i]))
	}
	for _, mv := range e.cfg.StressMoves {
		moves = append(moves, math.Abs(mv))
	}

	maxMove := 0.0
	for _, mv := range e.cfg.StressMoves {
		if math.Abs(mv) > maxMove {
			maxMove = math.Abs(mv)
		}
	}

	out := make([]domain.StressResult, 0, len(moves))
	for _, mv := range moves {
		ds := spot * mv

		// Pessimistic by construction: both delta and gamma terms are
		// taken as losses regardless of direction.
		gross := math.Abs(state.Greeks.Delta*ds) + 0.5*math.Abs(state.Greeks.Gamma)*ds*ds

		// Long-put hedges pay on down moves, scaling linearly to full
		// payout at the largest configured move.
		var offset float64
		if mv < 0 && maxMove > 0 {
			offset = state.HedgeMaxPayoff * math.Min(1, math.Abs(mv)/maxMove)
			if offset > gross {
				offset = gross
			}
		}

		out = append(out, domain.StressResult{
			Label:       stressLabel(mv),
			Move:        mv,
			GrossLoss:   gross,
			HedgeOffset: offset,
			NetDrawdown: gross - offset,
		})
	}
	return out
}

func stressLabel(mv float64) string {
	dir := "UP"
	if mv < 0 {
		dir = "DOWN"
	}
	return fmt.Sprintf("%s_%02.0f", dir, math.Abs(mv)*100)
}

func withinLimits(m domain.RiskMetrics, state domain.PortfolioState, sync domain.SyncConfig) bool {
	if sync.MaxExposure > 0 && state.TotalExposure > sync.MaxExposure {
		return false
	}
	if sync.MaxNetDelta > 0 && math.Abs(state.Greeks.Delta) > sync.MaxNetDelta {
		return false
	}
	if sync.RequireHedgeProtection && state.TotalExposure > 0 && m.ProtectionLevel < sync.MinHedgeProtection {
		return false
	}
	return true
}
