// Package portfolio owns the open-position book and its derived state.
// The book is the single source of truth: capital in use, exposure and
// greeks are always recomputed from it by summation, never accumulated
// incrementally where drift could creep in.
package portfolio

import (
	"sort"
	"sync"
	"time"

	"github.com/quantfork/optsim/internal/domain"
)

// Book holds every open position plus the closed-trade history. All methods
// are safe for concurrent use; positions are stored and returned by value so
// callers can never alias book internals.
type Book struct {
	mu        sync.Mutex
	positions map[string]domain.Position
	closed    []domain.ClosedTrade
	realized  float64
}

// NewBook returns an empty book.
func NewBook() *Book {
	return &Book{positions: make(map[string]domain.Position)}
}

// Upsert adds or replaces a position by ID.
func (b *Book) Upsert(p domain.Position) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.positions[p.ID] = clonePosition(p)
}

// Remove deletes a position and returns it.
func (b *Book) Remove(id string) (domain.Position, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.positions[id]
	if !ok {
		return domain.Position{}, false
	}
	delete(b.positions, id)
	return clonePosition(p), true
}

// Get returns a copy of the position with the given ID.
func (b *Book) Get(id string) (domain.Position, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.positions[id]
	if !ok {
		return domain.Position{}, false
	}
	return clonePosition(p), true
}

// Positions returns copies of all open positions in deterministic order
// (entry date, then ID).
func (b *Book) Positions() []domain.Position {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sortedLocked()
}

// ByRole returns copies of the open positions with the given role, in
// deterministic order.
func (b *Book) ByRole(role domain.PositionRole) []domain.Position {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []domain.Position
	for _, p := range b.sortedLocked() {
		if p.Role == role {
			out = append(out, p)
		}
	}
	return out
}

// Len returns the number of open positions.
func (b *Book) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.positions)
}

// CapitalInUse sums capital at risk across all open positions.
func (b *Book) CapitalInUse() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	var total float64
	for _, p := range b.positions {
		total += p.CapitalAtRisk()
	}
	return total
}

// RecordClose appends a trade to the closed history and adds its P&L to the
// realized total. The open position is shrunk or removed separately; partial
// closes record here too.
func (b *Book) RecordClose(p domain.Position, pnl float64, reason domain.ExitReason, at time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.realized += pnl
	b.closed = append(b.closed, domain.ClosedTrade{
		PositionID:  p.ID,
		Symbol:      p.Symbol,
		Role:        p.Role,
		Opened:      p.EntryDate,
		Closed:      at,
		RealizedPnL: pnl,
		Reason:      reason,
	})
}

// RealizedPnL returns the lifetime realized total.
func (b *Book) RealizedPnL() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.realized
}

// RealizedSince sums realized P&L for trades closed at or after t.
func (b *Book) RealizedSince(t time.Time) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	var total float64
	for _, c := range b.closed {
		if !c.Closed.Before(t) {
			total += c.RealizedPnL
		}
	}
	return total
}

// ClosedTrades returns a copy of the closed-trade history in close order.
func (b *Book) ClosedTrades() []domain.ClosedTrade {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]domain.ClosedTrade, len(b.closed))
	copy(out, b.closed)
	return out
}

// ProbeWinRate returns the winning fraction of the last window closed
// probes, or -1 when fewer than window probes have closed. The -1 lets
// callers distinguish "no edge yet" from "no data yet".
func (b *Book) ProbeWinRate(window int) float64 {
	if window <= 0 {
		return -1
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	var probes []domain.ClosedTrade
	for _, c := range b.closed {
		if c.Role == domain.RoleProbe {
			probes = append(probes, c)
		}
	}
	if len(probes) < window {
		return -1
	}

	wins := 0
	for _, c := range probes[len(probes)-window:] {
		if c.Win() {
			wins++
		}
	}
	return float64(wins) / float64(window)
}

// Snapshot derives a consistent portfolio state against the given marks.
// Everything is computed from scratch under one lock acquisition, so the
// snapshot can never mix states from different cycles.
func (b *Book) Snapshot(asOf time.Time, marks domain.MarkSet) domain.PortfolioState {
	b.mu.Lock()
	defer b.mu.Unlock()

	state := domain.PortfolioState{
		AsOf:        asOf,
		RealizedPnL: b.realized,
	}

	for _, p := range b.sortedLocked() {
		switch p.Role {
		case domain.RoleProbe:
			state.Probes = append(state.Probes, p)
			state.ProbeCount++
			state.TotalExposure += p.CapitalAtRisk()
		case domain.RoleCore:
			state.Cores = append(state.Cores, p)
			state.CoreCount++
			state.TotalExposure += p.CapitalAtRisk()
		case domain.RoleHedge:
			state.Hedges = append(state.Hedges, p)
			state.HedgeCount++
			state.HedgeCost += p.CapitalAtRisk()
			state.HedgeMaxPayoff += p.MaxPayoff
		}
		state.Greeks = state.Greeks.Add(p.Greeks)
		state.UnrealizedPnL += p.UnrealizedPnL(marks)
	}

	state.CapitalInUse = state.TotalExposure + state.HedgeCost
	return state
}

// sortedLocked returns cloned positions ordered by entry date then ID.
// Callers must hold b.mu.
func (b *Book) sortedLocked() []domain.Position {
	out := make([]domain.Position, 0, len(b.positions))
	for _, p := range b.positions {
		out = append(out, clonePosition(p))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].EntryDate.Equal(out[j].EntryDate) {
			return out[i].EntryDate.Before(out[j].EntryDate)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// clonePosition deep-copies the leg slice so no caller shares backing
// arrays with the book.
func clonePosition(p domain.Position) domain.Position {
	if len(p.Legs) > 0 {
		legs := make([]domain.OrderLeg, len(p.Legs))
		copy(legs, p.Legs)
		p.Legs = legs
	}
	return p
}
