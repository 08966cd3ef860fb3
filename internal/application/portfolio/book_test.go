package portfolio_test

import (
	"testing"
	"time"

	"github.com/quantfork/optsim/internal/application/portfolio"
	"github.com/quantfork/optsim/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)

func makePosition(id string, role domain.PositionRole, risk float64) domain.Position {
	p := domain.Position{
		ID:         id,
		Symbol:     "SPX " + id,
		Role:       role,
		Side:       domain.Sell,
		Quantity:   1,
		EntryDate:  day,
		Expiration: day.AddDate(0, 0, 45),
		Risk:       risk,
		Credit:     100,
		EntryPrice: 1.00,
		Legs: []domain.OrderLeg{
			{Symbol: "SPX|20260320|P|4800:" + id, Right: domain.Put, Strike: 4800, Side: domain.Sell, Quantity: 1},
		},
		Greeks: domain.Greeks{Delta: 10, Theta: -5},
	}
	if role == domain.RoleHedge {
		p.Side = domain.Buy
		p.Legs[0].Side = domain.Buy
		p.Credit = -risk
		p.EntryPrice = -risk / 100
		p.MaxPayoff = risk * 4
	}
	return p
}

func TestBook_UpsertRemove(t *testing.T) {
	b := portfolio.NewBook()
	b.Upsert(makePosition("a", domain.RoleProbe, 500))

	got, ok := b.Get("a")
	require.True(t, ok)
	assert.Equal(t, "a", got.ID)
	assert.Equal(t, 1, b.Len())

	removed, ok := b.Remove("a")
	require.True(t, ok)
	assert.Equal(t, "a", removed.ID)
	assert.Equal(t, 0, b.Len())

	_, ok = b.Remove("a")
	assert.False(t, ok)
}

func TestBook_NoAliasing(t *testing.T) {
	b := portfolio.NewBook()
	b.Upsert(makePosition("a", domain.RoleProbe, 500))

	got, _ := b.Get("a")
	got.Risk = 9999
	got.Legs[0].Quantity = 50

	// Mutating the returned copy must not touch the book.
	again, _ := b.Get("a")
	assert.Equal(t, 500.0, again.Risk)
	assert.Equal(t, 1, again.Legs[0].Quantity)
}

func TestBook_DeterministicOrder(t *testing.T) {
	b := portfolio.NewBook()

	later := makePosition("z", domain.RoleProbe, 100)
	later.EntryDate = day.AddDate(0, 0, 3)
	b.Upsert(later)
	b.Upsert(makePosition("b", domain.RoleProbe, 100))
	b.Upsert(makePosition("a", domain.RoleProbe, 100))

	ids := []string{}
	for _, p := range b.Positions() {
		ids = append(ids, p.ID)
	}
	// Same entry date sorts by ID; later entry date sorts last.
	assert.Equal(t, []string{"a", "b", "z"}, ids)
}

func TestBook_Snapshot(t *testing.T) {
	b := portfolio.NewBook()
	b.Upsert(makePosition("p1", domain.RoleProbe, 400))
	b.Upsert(makePosition("p2", domain.RoleProbe, 600))
	b.Upsert(makePosition("c1", domain.RoleCore, 2000))
	b.Upsert(makePosition("h1", domain.RoleHedge, 300))

	marks := domain.MarkSet{
		"SPX|20260320|P|4800:p1": 0.40,
		"SPX|20260320|P|4800:p2": 0.40,
		"SPX|20260320|P|4800:c1": 0.40,
		"SPX|20260320|P|4800:h1": 0.40,
	}

	s := b.Snapshot(day, marks)

	assert.Equal(t, 2, s.ProbeCount)
	assert.Equal(t, 1, s.CoreCount)
	assert.Equal(t, 1, s.HedgeCount)

	// Exposure: 400 + 600 + 2000 probe/core risk. Hedge cost separate.
	assert.InDelta(t, 3000, s.TotalExposure, 1e-9)
	assert.InDelta(t, 300, s.HedgeCost, 1e-9)
	assert.InDelta(t, 3300, s.CapitalInUse, 1e-9)
	assert.InDelta(t, 1200, s.HedgeMaxPayoff, 1e-9)

	// Greeks are straight sums: 4 positions × delta 10 = 40.
	assert.InDelta(t, 40, s.Greeks.Delta, 1e-9)

	// Credit positions entered at 1.00, marked 0.40: +60 each × 3.
	// Hedge entered at -3.00, marked sell-side 0.40 → (-3.00 - (-0.40)) × 100 = -260.
	assert.InDelta(t, 3*60-260, s.UnrealizedPnL, 1e-6)
}

func TestBook_SnapshotIsolation(t *testing.T) {
	b := portfolio.NewBook()
	b.Upsert(makePosition("p1", domain.RoleProbe, 400))

	s := b.Snapshot(day, domain.MarkSet{})
	s.Probes[0].Risk = 1

	got, _ := b.Get("p1")
	assert.Equal(t, 400.0, got.Risk)
}

func TestBook_RealizedAndSince(t *testing.T) {
	b := portfolio.NewBook()

	p := makePosition("p1", domain.RoleProbe, 400)
	b.RecordClose(p, 150, domain.ExitProfitTarget, day)
	b.RecordClose(p, -90, domain.ExitStopLoss, day.AddDate(0, 0, 1))

	assert.InDelta(t, 60, b.RealizedPnL(), 1e-9)
	assert.InDelta(t, -90, b.RealizedSince(day.AddDate(0, 0, 1)), 1e-9)
	assert.InDelta(t, 60, b.RealizedSince(day), 1e-9)
	assert.Len(t, b.ClosedTrades(), 2)
}

func TestBook_ProbeWinRate(t *testing.T) {
	b := portfolio.NewBook()
	probe := makePosition("p", domain.RoleProbe, 100)
	core := makePosition("c", domain.RoleCore, 100)

	// Not enough closed probes yet.
	assert.Equal(t, -1.0, b.ProbeWinRate(4))

	b.RecordClose(probe, 100, domain.ExitProfitTarget, day)
	b.RecordClose(probe, -50, domain.ExitStopLoss, day)
	b.RecordClose(core, 900, domain.ExitProfitTarget, day) // core closes don't count
	b.RecordClose(probe, 80, domain.ExitProfitTarget, day)
	assert.Equal(t, -1.0, b.ProbeWinRate(4), "three probes closed, window is four")

	b.RecordClose(probe, 20, domain.ExitProfitTarget, day)
	// Last 4 probes: +100, -50, +80, +20 → 3 wins of 4.
	assert.InDelta(t, 0.75, b.ProbeWinRate(4), 1e-9)

	// Window slides: add a loser, last 4 = -50, +80, +20, -10 → 2 of 4.
	b.RecordClose(probe, -10, domain.ExitStopLoss, day)
	assert.InDelta(t, 0.50, b.ProbeWinRate(4), 1e-9)

	assert.Equal(t, -1.0, b.ProbeWinRate(0), "degenerate window")
}

func TestBook_CapitalInUse(t *testing.T) {
	b := portfolio.NewBook()
	assert.Equal(t, 0.0, b.CapitalInUse())

	b.Upsert(makePosition("p1", domain.RoleProbe, 400))
	b.Upsert(makePosition("h1", domain.RoleHedge, 250))
	assert.InDelta(t, 650, b.CapitalInUse(), 1e-9)

	b.Remove("p1")
	assert.InDelta(t, 250, b.CapitalInUse(), 1e-9)
}
