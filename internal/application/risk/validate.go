package risk

import (
	"fmt"
	"math"

	"github.com/quantfork/optsim/internal/domain"
)

// Violation is one named reason a plan may not execute.
type Violation struct {
	Code string
	Msg  string
}

// Decision is the outcome of validating a plan. Allowed starts true and
// flips false the moment any violation is added.
type Decision struct {
	Allowed    bool
	Violations []Violation
}

func (d *Decision) add(code, msg string) {
	d.Violations = append(d.Violations, Violation{Code: code, Msg: msg})
	d.Allowed = false
}

// Reasons flattens the violations into strings for error reporting.
func (d Decision) Reasons() []string {
	out := make([]string, 0, len(d.Violations))
	for _, v := range d.Violations {
		out = append(out, v.Code+": "+v.Msg)
	}
	return out
}

// Validate checks a plan against capital, per-role caps, exposure, delta
// and protection limits. Capital at exactly available passes; only demand
// beyond what is available violates.
func (e *Engine) Validate(plan *domain.ExecutionPlan, state domain.PortfolioState, sync domain.SyncConfig) Decision {
	d := Decision{Allowed: true}

	if plan.CapitalRequired > plan.CapitalAvailable {
		d.add("CAPITAL_EXCEEDED",
			fmt.Sprintf("required $%.2f exceeds available $%.2f",
				plan.CapitalRequired, plan.CapitalAvailable))
	}

	probeExits, coreExits, hedgeExits := fullExitsByRole(plan, state)

	if n := state.ProbeCount - probeExits + len(plan.ProbeEntries); sync.MaxProbePositions > 0 && n > sync.MaxProbePositions {
		d.add("TOO_MANY_PROBES",
			fmt.Sprintf("projected probes %d exceed cap %d", n, sync.MaxProbePositions))
	}
	if n := state.CoreCount - coreExits + len(plan.CoreEntries); sync.MaxCorePositions > 0 && n > sync.MaxCorePositions {
		d.add("TOO_MANY_CORES",
			fmt.Sprintf("projected cores %d exceed cap %d", n, sync.MaxCorePositions))
	}
	if n := state.HedgeCount - hedgeExits + len(plan.HedgeAdds); sync.MaxHedgePositions > 0 && n > sync.MaxHedgePositions {
		d.add("TOO_MANY_HEDGES",
			fmt.Sprintf("projected hedges %d exceed cap %d", n, sync.MaxHedgePositions))
	}

	if sync.MaxExposure > 0 && plan.ProjectedExposure > sync.MaxExposure {
		d.add("EXPOSURE_EXCEEDED",
			fmt.Sprintf("projected exposure $%.2f exceeds ceiling $%.2f",
				plan.ProjectedExposure, sync.MaxExposure))
	}

	if sync.MaxNetDelta > 0 && math.Abs(plan.ProjectedGreeks.Delta) > sync.MaxNetDelta {
		d.add("DELTA_EXCEEDED",
			fmt.Sprintf("projected net delta %.1f exceeds ceiling %.1f",
				plan.ProjectedGreeks.Delta, sync.MaxNetDelta))
	}

	if sync.RequireHedgeProtection && plan.ProjectedExposure > 0 {
		payoff := projectedHedgePayoff(plan, state)
		if ratio := payoff / plan.ProjectedExposure; ratio < sync.MinHedgeProtection {
			d.add("PROTECTION_SHORT",
				fmt.Sprintf("projected protection %.2f below minimum %.2f",
					ratio, sync.MinHedgeProtection))
		}
	}

	return d
}

// fullExitsByRole counts exits that close an entire position, per role.
// Partial hedge closes keep the position open and don't reduce the count.
func fullExitsByRole(plan *domain.ExecutionPlan, state domain.PortfolioState) (probes, cores, hedges int) {
	qtyByID := make(map[string]int)
	for _, lists := range [][]domain.Position{state.Probes, state.Cores, state.Hedges} {
		for _, p := range lists {
			qtyByID[p.ID] = p.Quantity
		}
	}

	for _, ex := range plan.Exits {
		full := ex.Quantity >= qtyByID[ex.PositionID]
		if !full {
			continue
		}
		switch ex.Role {
		case domain.RoleProbe:
			probes++
		case domain.RoleCore:
			cores++
		case domain.RoleHedge:
			hedges++
		}
	}
	return probes, cores, hedges
}

// projectedHedgePayoff is the current hedge payoff minus what the plan's
// hedge exits remove plus what its adds contribute. Partial closes remove
// payoff proportionally.
func projectedHedgePayoff(plan *domain.ExecutionPlan, state domain.PortfolioState) float64 {
	payoff := state.HedgeMaxPayoff

	byID := make(map[string]domain.Position, len(state.Hedges))
	for _, h := range state.Hedges {
		byID[h.ID] = h
	}
	for _, ex := range plan.Exits {
		h, ok := byID[ex.PositionID]
		if !ok || h.Quantity == 0 {
			continue
		}
		frac := float64(ex.Quantity) / float64(h.Quantity)
		if frac > 1 {
			frac = 1
		}
		payoff -= h.MaxPayoff * frac
	}

	for _, add := range plan.HedgeAdds {
		payoff += add.Candidate.MaxPayoff
	}
	return payoff
}
