package executor

import (
	"sort"

	"github.com/quantfork/optsim/internal/domain"
)

// TrimToCapital shrinks a plan that only failed its capital check until it
// fits CapitalAvailable. Exits are untouchable. Hedge adds are kept first,
// then probes cheapest-risk first, and the core entry only if whole; a core
// never enters at reduced size. Returns whether any hedge add was dropped,
// which the caller must treat as a hard stop when protection is mandatory.
func TrimToCapital(plan *domain.ExecutionPlan) (droppedHedges bool) {
	plan.State = domain.PlanTrimming
	budget := plan.CapitalAvailable

	var keptHedges []domain.HedgeDirective
	for _, h := range plan.HedgeAdds {
		if h.Candidate.Cost <= budget {
			keptHedges = append(keptHedges, h)
			budget -= h.Candidate.Cost
			continue
		}
		droppedHedges = true
		plan.Skip("trim: hedge %s ($%.2f) dropped for capital", h.Candidate.Symbol, h.Candidate.Cost)
		dropEntryProjection(plan, h.Candidate.Greeks, 0)
	}
	plan.HedgeAdds = keptHedges

	// Cheapest probes survive; ties keep plan order.
	order := make([]int, len(plan.ProbeEntries))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return plan.ProbeEntries[order[a]].Risk < plan.ProbeEntries[order[b]].Risk
	})

	keep := make([]bool, len(plan.ProbeEntries))
	for _, i := range order {
		c := plan.ProbeEntries[i]
		if c.Risk <= budget {
			keep[i] = true
			budget -= c.Risk
		}
	}
	var keptProbes []domain.EntryCandidate
	for i, c := range plan.ProbeEntries {
		if keep[i] {
			keptProbes = append(keptProbes, c)
			continue
		}
		plan.Skip("trim: probe %s ($%.2f) dropped for capital", c.Symbol, c.Risk)
		dropEntryProjection(plan, c.Greeks, c.Risk)
	}
	plan.ProbeEntries = keptProbes

	var keptCores []domain.EntryCandidate
	for _, c := range plan.CoreEntries {
		if c.Risk <= budget {
			keptCores = append(keptCores, c)
			budget -= c.Risk
			continue
		}
		plan.Skip("trim: core %s ($%.2f) dropped for capital", c.Symbol, c.Risk)
		dropEntryProjection(plan, c.Greeks, c.Risk)
	}
	plan.CoreEntries = keptCores

	plan.CapitalRequired = requiredCapital(plan)
	return droppedHedges
}

func dropEntryProjection(plan *domain.ExecutionPlan, g domain.Greeks, risk float64) {
	plan.ProjectedGreeks = plan.ProjectedGreeks.Sub(g)
	plan.ProjectedExposure -= risk
}
