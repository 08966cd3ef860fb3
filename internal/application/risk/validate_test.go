package risk_test

import (
	"testing"

	"github.com/quantfork/optsim/internal/application/risk"
	"github.com/quantfork/optsim/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hasCode(d risk.Decision, code string) bool {
	for _, v := range d.Violations {
		if v.Code == code {
			return true
		}
	}
	return false
}

func TestValidate_CapitalBoundary(t *testing.T) {
	e := risk.New(risk.Config{})
	state := domain.PortfolioState{}
	sync := domain.SyncConfig{CapitalCeiling: 25000}

	over := &domain.ExecutionPlan{CapitalRequired: 1000.01, CapitalAvailable: 1000}
	d := e.Validate(over, state, sync)
	assert.False(t, d.Allowed)
	assert.True(t, hasCode(d, "CAPITAL_EXCEEDED"))

	// Exactly equal demand passes.
	exact := &domain.ExecutionPlan{CapitalRequired: 1000, CapitalAvailable: 1000}
	d = e.Validate(exact, state, sync)
	assert.True(t, d.Allowed)
	assert.Empty(t, d.Violations)

	under := &domain.ExecutionPlan{CapitalRequired: 999.99, CapitalAvailable: 1000}
	assert.True(t, e.Validate(under, state, sync).Allowed)
}

func TestValidate_RoleCaps(t *testing.T) {
	e := risk.New(risk.Config{})
	sync := domain.SyncConfig{MaxProbePositions: 4, MaxCorePositions: 1, MaxHedgePositions: 2}

	probes := []domain.Position{
		{ID: "p1", Role: domain.RoleProbe, Quantity: 1},
		{ID: "p2", Role: domain.RoleProbe, Quantity: 1},
		{ID: "p3", Role: domain.RoleProbe, Quantity: 1},
		{ID: "p4", Role: domain.RoleProbe, Quantity: 1},
	}
	state := domain.PortfolioState{Probes: probes, ProbeCount: 4}

	// 4 open - 1 full exit + 2 entries = 5 > 4.
	plan := &domain.ExecutionPlan{
		Exits: []domain.ExitDirective{
			{PositionID: "p1", Role: domain.RoleProbe, Quantity: 1},
		},
		ProbeEntries: []domain.EntryCandidate{{Symbol: "a"}, {Symbol: "b"}},
	}
	d := e.Validate(plan, state, sync)
	assert.False(t, d.Allowed)
	assert.True(t, hasCode(d, "TOO_MANY_PROBES"))

	// One entry fits exactly: 4 - 1 + 1 = 4.
	plan.ProbeEntries = plan.ProbeEntries[:1]
	assert.True(t, e.Validate(plan, state, sync).Allowed)
}

func TestValidate_PartialHedgeCloseKeepsCount(t *testing.T) {
	e := risk.New(risk.Config{})
	sync := domain.SyncConfig{MaxHedgePositions: 1}

	state := domain.PortfolioState{
		Hedges:     []domain.Position{{ID: "h1", Role: domain.RoleHedge, Quantity: 4, MaxPayoff: 8000}},
		HedgeCount: 1,
	}

	// Closing 2 of 4 contracts is not a full exit; adding a hedge next to
	// it busts the cap.
	plan := &domain.ExecutionPlan{
		Exits: []domain.ExitDirective{
			{PositionID: "h1", Role: domain.RoleHedge, Reason: domain.ExitHedgeTrim, Quantity: 2},
		},
		HedgeAdds: []domain.HedgeDirective{{Candidate: domain.HedgeCandidate{Symbol: "h2"}}},
	}
	d := e.Validate(plan, state, sync)
	assert.False(t, d.Allowed)
	assert.True(t, hasCode(d, "TOO_MANY_HEDGES"))
}

func TestValidate_ExposureAndDelta(t *testing.T) {
	e := risk.New(risk.Config{})
	sync := domain.SyncConfig{MaxExposure: 15000, MaxNetDelta: 200}

	plan := &domain.ExecutionPlan{
		ProjectedExposure: 15001,
		ProjectedGreeks:   domain.Greeks{Delta: -250},
	}
	d := e.Validate(plan, domain.PortfolioState{}, sync)
	require.False(t, d.Allowed)
	assert.True(t, hasCode(d, "EXPOSURE_EXCEEDED"))
	assert.True(t, hasCode(d, "DELTA_EXCEEDED"))
	assert.Len(t, d.Violations, 2)
}

func TestValidate_ProtectionProjection(t *testing.T) {
	e := risk.New(risk.Config{})
	sync := domain.SyncConfig{RequireHedgeProtection: true, MinHedgeProtection: 0.5}

	state := domain.PortfolioState{
		Hedges:         []domain.Position{{ID: "h1", Role: domain.RoleHedge, Quantity: 2, MaxPayoff: 6000}},
		HedgeCount:     1,
		HedgeMaxPayoff: 6000,
	}

	// Exiting the hedge entirely leaves 10000 exposure naked.
	plan := &domain.ExecutionPlan{
		ProjectedExposure: 10000,
		Exits: []domain.ExitDirective{
			{PositionID: "h1", Role: domain.RoleHedge, Reason: domain.ExitForcedDTE, Quantity: 2},
		},
	}
	d := e.Validate(plan, state, sync)
	assert.False(t, d.Allowed)
	assert.True(t, hasCode(d, "PROTECTION_SHORT"))

	// Replacing it with a bigger hedge restores the ratio: 8000/10000.
	plan.HedgeAdds = []domain.HedgeDirective{
		{Candidate: domain.HedgeCandidate{Symbol: "h2", MaxPayoff: 8000}},
	}
	assert.True(t, e.Validate(plan, state, sync).Allowed)
}

func TestDecision_Reasons(t *testing.T) {
	e := risk.New(risk.Config{})
	plan := &domain.ExecutionPlan{CapitalRequired: 2, CapitalAvailable: 1}

	d := e.Validate(plan, domain.PortfolioState{}, domain.SyncConfig{})
	reasons := d.Reasons()
	require.Len(t, reasons, 1)
	assert.Contains(t, reasons[0], "CAPITAL_EXCEEDED")
}
