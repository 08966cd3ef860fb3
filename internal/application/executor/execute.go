package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/quantfork/optsim/internal/application/fill"
	"github.com/quantfork/optsim/internal/domain"
)

// ExecutePlan walks a validated plan through simulated fills and applies the
// outcome to the book. Exits run first so their released capital is real
// before any entry spends it; then hedge adds, probes, and finally cores.
// A leg that fails to fill voids its whole structure, never half of it.
func (e *Executor) ExecutePlan(ctx context.Context, plan *domain.ExecutionPlan) *domain.ExecutionResult {
	plan.State = domain.PlanExecuting
	res := &domain.ExecutionResult{
		CycleID:       plan.CycleID,
		Date:          plan.Date,
		State:         domain.PlanExecuting,
		Sentiment:     plan.Sentiment,
		FreezeReason:  plan.FreezeReason,
		SkipReasons:   plan.SkipReasons,
		CapitalBefore: e.book.CapitalInUse(),
	}

	mstate, err := e.market.GetMarketState(ctx)
	if err != nil {
		slog.Warn("executor: market state unavailable at execution, assuming calm", "err", err)
		mstate = domain.MarketState{Timestamp: plan.Date}
	}

	for _, ex := range plan.Exits {
		e.executeExit(ctx, res, ex, plan.Date, mstate)
	}
	for _, h := range plan.HedgeAdds {
		e.executeHedgeAdd(ctx, res, h.Candidate, plan.Date, mstate)
	}
	for _, c := range plan.ProbeEntries {
		e.executeEntry(ctx, res, c, domain.DetailProbeEntry, plan.Date, mstate)
	}
	for _, c := range plan.CoreEntries {
		e.executeEntry(ctx, res, c, domain.DetailCoreEntry, plan.Date, mstate)
	}

	plan.State = domain.PlanSettled
	res.State = domain.PlanSettled
	res.CapitalAfter = e.book.CapitalInUse()
	res.CapitalAvailable = e.cfg.Sync.CapitalCeiling - res.CapitalAfter
	return res
}

// executeExit closes ex.Quantity structures of a booked position. Partial
// hedge trims shrink the position in place; anything else removes it.
func (e *Executor) executeExit(ctx context.Context, res *domain.ExecutionResult, ex domain.ExitDirective, date time.Time, mstate domain.MarketState) {
	kind := domain.DetailExit
	if ex.Reason == domain.ExitHedgeTrim || ex.Reason == domain.ExitHedgeRoll {
		kind = domain.DetailHedgeClose
	}

	p, ok := e.book.Get(ex.PositionID)
	if !ok {
		res.FailedOrders++
		res.Details = append(res.Details, domain.ExecutionDetail{
			Kind:       kind,
			PositionID: ex.PositionID,
			Err:        "position no longer on book",
		})
		return
	}

	// Closing legs flip side and scale to the exiting structure count. Leg
	// totals are built as ratio x quantity, so the division is exact.
	closing := make([]domain.OrderLeg, len(p.Legs))
	for i, l := range p.Legs {
		c := l.Flip()
		c.Quantity = l.Quantity * ex.Quantity / p.Quantity
		closing[i] = c
	}

	lf, err := e.executeLegs(ctx, closing, ex.Quantity, string(ex.Reason), mstate)
	if err != nil {
		res.FailedOrders++
		res.Details = append(res.Details, domain.ExecutionDetail{
			Kind:       kind,
			PositionID: p.ID,
			Err:        err.Error(),
		})
		slog.Warn("executor: exit failed, position stays open",
			"position", p.ID, "symbol", p.Symbol, "reason", ex.Reason, "err", err)
		return
	}
	for i := range lf.orders {
		res.Details = append(res.Details, domain.ExecutionDetail{
			Kind:       kind,
			PositionID: p.ID,
			Order:      lf.orders[i],
			Fill:       lf.fills[i],
			Filled:     true,
		})
		res.Compliance.Observe(lf.orders[i], lf.fills[i])
	}

	// lf.net carries closing-side signs; flipping it back to entry-side
	// signs gives the per-structure unwind value MarkNet-style.
	closeNet := -lf.net
	realized := (p.EntryPrice - closeNet) * float64(ex.Quantity) * domain.ContractMultiplier

	e.book.RecordClose(p, realized, ex.Reason, date)
	res.RealizedPnL += realized

	if ex.Quantity >= p.Quantity {
		e.book.Remove(p.ID)
	} else {
		remaining := p.Quantity - ex.Quantity
		frac := float64(remaining) / float64(p.Quantity)
		for i := range p.Legs {
			p.Legs[i].Quantity = p.Legs[i].Quantity * remaining / p.Quantity
		}
		p.Quantity = remaining
		p.Credit *= frac
		p.Risk *= frac
		p.MaxLossBase *= frac
		p.MaxPayoff *= frac
		p.Greeks = p.Greeks.Scale(frac)
		e.book.Upsert(p)
	}

	if kind == domain.DetailHedgeClose {
		res.HedgeCloses++
	} else {
		res.ExitsDone++
	}
}

// executeEntry opens a probe or core structure from its candidate.
func (e *Executor) executeEntry(ctx context.Context, res *domain.ExecutionResult, c domain.EntryCandidate, kind domain.DetailKind, date time.Time, mstate domain.MarketState) {
	lf, err := e.executeLegs(ctx, c.Legs, c.Quantity, string(c.Role), mstate)
	if err != nil {
		res.FailedOrders++
		res.Details = append(res.Details, domain.ExecutionDetail{Kind: kind, Err: err.Error()})
		slog.Warn("executor: entry failed", "symbol", c.Symbol, "role", c.Role, "err", err)
		return
	}

	credit := lf.net * float64(c.Quantity) * domain.ContractMultiplier
	p := domain.Position{
		ID:          e.newID(),
		Symbol:      c.Symbol,
		Role:        c.Role,
		Side:        sideForNet(lf.net),
		Quantity:    c.Quantity,
		Legs:        c.Legs,
		EntryDate:   date,
		Expiration:  c.Expiration,
		EntryPrice:  lf.net,
		Credit:      credit,
		Risk:        c.MaxLossBase - credit,
		MaxLossBase: c.MaxLossBase,
		Greeks:      c.Greeks,
		Exit:        c.Exit,
	}
	e.book.Upsert(p)
	e.recordFills(res, kind, p.ID, lf)

	if kind == domain.DetailCoreEntry {
		res.CoresOpened++
	} else {
		res.ProbesOpened++
	}
}

// executeHedgeAdd opens a hedge structure. Hedges book their cost as risk
// and carry the payoff used by protection checks.
func (e *Executor) executeHedgeAdd(ctx context.Context, res *domain.ExecutionResult, c domain.HedgeCandidate, date time.Time, mstate domain.MarketState) {
	lf, err := e.executeLegs(ctx, c.Legs, c.Quantity, "HEDGE", mstate)
	if err != nil {
		res.FailedOrders++
		res.Details = append(res.Details, domain.ExecutionDetail{Kind: domain.DetailHedgeAdd, Err: err.Error()})
		slog.Warn("executor: hedge add failed", "symbol", c.Symbol, "err", err)
		return
	}

	credit := lf.net * float64(c.Quantity) * domain.ContractMultiplier
	p := domain.Position{
		ID:         e.newID(),
		Symbol:     c.Symbol,
		Role:       domain.RoleHedge,
		Side:       sideForNet(lf.net),
		Quantity:   c.Quantity,
		Legs:       c.Legs,
		EntryDate:  date,
		Expiration: c.Expiration,
		EntryPrice: lf.net,
		Credit:     credit,
		Risk:       -credit,
		MaxPayoff:  c.MaxPayoff,
		Greeks:     c.Greeks,
	}
	if p.Risk < 0 {
		p.Risk = 0
	}
	e.book.Upsert(p)
	e.recordFills(res, domain.DetailHedgeAdd, p.ID, lf)
	res.HedgeAdds++
}

func (e *Executor) recordFills(res *domain.ExecutionResult, kind domain.DetailKind, positionID string, lf legFills) {
	for i := range lf.orders {
		res.Details = append(res.Details, domain.ExecutionDetail{
			Kind:       kind,
			PositionID: positionID,
			Order:      lf.orders[i],
			Fill:       lf.fills[i],
			Filled:     true,
		})
		res.Compliance.Observe(lf.orders[i], lf.fills[i])
	}
}

type legFills struct {
	orders []domain.Order
	fills  []domain.FillResult
	net    float64 // per structure, credit positive
}

// executeLegs quotes and fills every leg of a structure set. Leg quantities
// are totals covering the given structure count; net is reduced back to a
// per-structure price. The first leg that cannot trade fails the whole set.
func (e *Executor) executeLegs(ctx context.Context, legs []domain.OrderLeg, structures int, tag string, mstate domain.MarketState) (legFills, error) {
	var lf legFills
	if structures <= 0 {
		return lf, fmt.Errorf("executor.executeLegs: %d structures", structures)
	}
	for _, l := range legs {
		q, err := e.market.GetQuote(ctx, l.Symbol)
		if err != nil {
			return legFills{}, fmt.Errorf("executor.executeLegs: quote %s: %w", l.Symbol, err)
		}
		order := l.ToOrder(tag)
		order.Notional = q.Mid() * float64(order.Quantity) * domain.ContractMultiplier

		f, err := fill.Simulate(order, q, e.cfg.Profile, mstate, e.rng)
		if err != nil {
			return legFills{}, fmt.Errorf("executor.executeLegs: %s: %w", l.Symbol, err)
		}
		lf.orders = append(lf.orders, order)
		lf.fills = append(lf.fills, f)

		if l.Side == domain.Sell {
			lf.net += f.AvgPrice * float64(l.Quantity)
		} else {
			lf.net -= f.AvgPrice * float64(l.Quantity)
		}
	}
	lf.net /= float64(structures)
	return lf, nil
}

func sideForNet(net float64) domain.Side {
	if net >= 0 {
		return domain.Sell
	}
	return domain.Buy
}
