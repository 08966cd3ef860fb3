package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/quantfork/optsim/internal/application/fill"
	"github.com/quantfork/optsim/internal/domain"
)

// GeneratePlan runs the planning pipeline for one cycle: exits, sentiment,
// probe and core entries, hedge directives, capital math, freeze checks and
// projections. It reads the book and the collaborators but never writes.
func (e *Executor) GeneratePlan(ctx context.Context, date time.Time) (*domain.ExecutionPlan, error) {
	mstate, err := e.market.GetMarketState(ctx)
	if err != nil {
		return nil, fmt.Errorf("executor.GeneratePlan: market state: %w", err)
	}

	plan := &domain.ExecutionPlan{
		CycleID: e.newID(),
		Date:    date,
		State:   domain.PlanPlanning,
	}

	marks := e.markBook(ctx)
	snap := e.book.Snapshot(date, marks)

	e.collectExits(plan, snap, marks, date)
	plan.Sentiment = e.readSentiment(ctx, plan)

	e.planProbes(ctx, plan, snap, date)
	e.planCore(ctx, plan, snap, date, mstate)
	if err := e.planHedges(ctx, plan, snap, date, mstate); err != nil {
		return plan, err
	}

	e.computeCapital(plan, snap)
	e.applyFreeze(plan, snap, date)
	e.project(plan, snap)

	slog.Debug("executor: plan generated",
		"cycle", plan.CycleID,
		"exits", len(plan.Exits),
		"probes", len(plan.ProbeEntries),
		"cores", len(plan.CoreEntries),
		"hedge_adds", len(plan.HedgeAdds),
		"required", fmt.Sprintf("$%.2f", plan.CapitalRequired),
		"available", fmt.Sprintf("$%.2f", plan.CapitalAvailable),
	)
	return plan, nil
}

// markBook fetches current quotes for every leg the book holds and returns
// their midpoints. Symbols that fail to quote are simply absent; positions
// marked against them contribute what they can.
func (e *Executor) markBook(ctx context.Context) domain.MarkSet {
	symbols := map[string]bool{}
	for _, p := range e.book.Positions() {
		for _, l := range p.Legs {
			symbols[l.Symbol] = true
		}
	}

	marks := domain.MarkSet{}
	for sym, q := range e.fetchQuotes(ctx, sortedKeys(symbols)) {
		if q.IsViable() {
			marks[sym] = q.Mid()
		}
	}
	return marks
}

// collectExits scans every open position, most protective rule first:
// forced DTE beats stop loss beats profit target. Hedges only leave on the
// DTE rule here; their other closes come from the hedge manager's signals.
func (e *Executor) collectExits(plan *domain.ExecutionPlan, snap domain.PortfolioState, marks domain.MarkSet, date time.Time) {
	all := make([]domain.Position, 0, snap.ProbeCount+snap.CoreCount+snap.HedgeCount)
	all = append(all, snap.Probes...)
	all = append(all, snap.Cores...)
	all = append(all, snap.Hedges...)

	for _, p := range all {
		reason, ok := exitReason(p, marks, date)
		if !ok {
			continue
		}
		plan.Exits = append(plan.Exits, domain.ExitDirective{
			PositionID:   p.ID,
			Symbol:       p.Symbol,
			Role:         p.Role,
			Reason:       reason,
			Quantity:     p.Quantity,
			CapitalFreed: p.CapitalAtRisk(),
		})
	}
}

func exitReason(p domain.Position, marks domain.MarkSet, date time.Time) (domain.ExitReason, bool) {
	if p.DTE(date) <= p.Exit.ForcedExitDTE {
		return domain.ExitForcedDTE, true
	}
	if p.Role == domain.RoleHedge {
		return "", false
	}

	unreal := p.UnrealizedPnL(marks)

	if p.Exit.StopLossMultiple > 0 {
		base := p.Credit
		if base <= 0 {
			base = p.Risk
		}
		if unreal <= -p.Exit.StopLossMultiple*base {
			return domain.ExitStopLoss, true
		}
	}
	if p.Exit.ProfitTarget > 0 && p.Credit > 0 && unreal >= p.Exit.ProfitTarget*p.Credit {
		return domain.ExitProfitTarget, true
	}
	return "", false
}

// readSentiment asks the probe layer for its directional read. A failing
// source is treated as no data, not as a dead cycle.
func (e *Executor) readSentiment(ctx context.Context, plan *domain.ExecutionPlan) domain.Sentiment {
	s, err := e.probes.GetSentiment(ctx)
	if err != nil {
		slog.Warn("executor: sentiment unavailable", "err", err)
		plan.Skip("sentiment unavailable: %v", err)
		return domain.SentimentInsufficient
	}
	return s
}

// planProbes schedules today's probe entries, subject to the calendar, the
// volatile-skip rule and the per-role cap. Probes deliberately ignore the
// directional read: they are how the system earns one.
func (e *Executor) planProbes(ctx context.Context, plan *domain.ExecutionPlan, snap domain.PortfolioState, date time.Time) {
	if !e.cfg.Sync.IsProbeDay(date.Weekday()) {
		return
	}
	if e.cfg.Sync.SkipProbesOnVolatile && plan.Sentiment == domain.SentimentVolatile {
		plan.Skip("probes skipped: volatile sentiment")
		return
	}

	slots := e.cfg.Sync.MaxProbePositions - (snap.ProbeCount - countFullExits(plan, snap, domain.RoleProbe))
	count := e.cfg.Sync.ProbeEntriesPerDay
	if e.cfg.Sync.MaxProbePositions > 0 && count > slots {
		count = slots
	}
	if count <= 0 {
		plan.Skip("probes skipped: position cap %d reached", e.cfg.Sync.MaxProbePositions)
		return
	}

	cands, err := e.probes.GenerateProbeEntries(ctx, date, count)
	if err != nil {
		slog.Warn("executor: probe generation failed", "err", err)
		plan.Skip("probe generation failed: %v", err)
		return
	}
	if len(cands) > count {
		cands = cands[:count]
	}

	for _, c := range cands {
		c.Role = domain.RoleProbe
		if err := e.priceCandidate(ctx, &c); err != nil {
			plan.Skip("probe %s unpriceable: %v", c.Symbol, err)
			continue
		}
		plan.ProbeEntries = append(plan.ProbeEntries, c)
	}
}

// planCore gates and schedules the cycle's core entry.
func (e *Executor) planCore(ctx context.Context, plan *domain.ExecutionPlan, snap domain.PortfolioState, date time.Time, mstate domain.MarketState) {
	if !e.cfg.Sync.IsCoreDay(date.Weekday()) {
		return
	}
	if !plan.Sentiment.AllowsEntries() {
		plan.Skip("core skipped: sentiment %s", plan.Sentiment)
		return
	}
	if e.cfg.Sync.MaxCorePositions > 0 &&
		snap.CoreCount-countFullExits(plan, snap, domain.RoleCore) >= e.cfg.Sync.MaxCorePositions {
		plan.Skip("core skipped: position cap %d reached", e.cfg.Sync.MaxCorePositions)
		return
	}

	if e.cfg.Sync.RequireProbeConfirmation {
		wr := e.book.ProbeWinRate(e.cfg.Sync.ProbeWinWindow)
		if wr < 0 {
			plan.Skip("core skipped: fewer than %d closed probes", e.cfg.Sync.ProbeWinWindow)
			return
		}
		if wr < e.cfg.Sync.MinProbeWinRate {
			plan.Skip("core skipped: probe win rate %.0f%% below %.0f%%",
				wr*100, e.cfg.Sync.MinProbeWinRate*100)
			return
		}
	}

	cand, err := e.core.BuildCoreCandidate(ctx, date, mstate.UnderlyingPrice, plan.Sentiment)
	if err != nil {
		slog.Warn("executor: core candidate failed", "err", err)
		plan.Skip("core candidate failed: %v", err)
		return
	}
	if cand == nil {
		plan.Skip("core skipped: no viable structure today")
		return
	}

	c := *cand
	c.Role = domain.RoleCore
	if err := e.priceCandidate(ctx, &c); err != nil {
		plan.Skip("core %s unpriceable: %v", c.Symbol, err)
		return
	}
	plan.CoreEntries = append(plan.CoreEntries, c)
}

// planHedges sizes required protection for the projected book and folds in
// the manager's adjustment signal. Unknown signal actions abort planning;
// they indicate a broken collaborator, not a market condition.
func (e *Executor) planHedges(ctx context.Context, plan *domain.ExecutionPlan, snap domain.PortfolioState, date time.Time, mstate domain.MarketState) error {
	projExposure := projectedExposure(plan, snap)

	req, err := e.hedger.CalculateHedgeRequirement(ctx, projExposure, mstate.VolIndex, mstate)
	if err != nil {
		slog.Warn("executor: hedge requirement failed", "err", err)
		plan.Skip("hedge requirement failed: %v", err)
		return nil
	}

	remainingPayoff := snap.HedgeMaxPayoff - exitingHedgePayoff(plan, snap)
	if req.Contracts > 0 && req.NotionalToCover > remainingPayoff {
		e.addHedges(ctx, plan, snap, req, date, "protection below requirement")
	}

	signal, err := e.hedger.GetHedgeAdjustmentSignal(ctx, snap.Hedges, mstate.VolIndex)
	if err != nil {
		slog.Warn("executor: hedge signal failed", "err", err)
		plan.Skip("hedge signal failed: %v", err)
		return nil
	}
	if signal == nil {
		return nil
	}
	if !signal.Action.Valid() {
		return fmt.Errorf("executor.planHedges: unknown hedge action %q", signal.Action)
	}

	switch signal.Action {
	case domain.HedgeAdd:
		if len(plan.HedgeAdds) == 0 && req.Contracts > 0 {
			e.addHedges(ctx, plan, snap, req, date, signal.Reason)
		}
	case domain.HedgePartialClose:
		e.partialCloseHedges(plan, snap, signal.Quantity)
	case domain.HedgeRoll:
		e.rollHedges(ctx, plan, snap, req, date, signal.Reason)
	}
	return nil
}

// addHedges prices and appends hedge candidates up to the hedge cap.
func (e *Executor) addHedges(ctx context.Context, plan *domain.ExecutionPlan, snap domain.PortfolioState, req domain.HedgeRequirement, date time.Time, reason string) {
	cands, err := e.hedger.GenerateHedges(ctx, req, date)
	if err != nil {
		slog.Warn("executor: hedge generation failed", "err", err)
		plan.Skip("hedge generation failed: %v", err)
		return
	}

	open := snap.HedgeCount - countFullExits(plan, snap, domain.RoleHedge)
	for _, c := range cands {
		if e.cfg.Sync.MaxHedgePositions > 0 && open+len(plan.HedgeAdds) >= e.cfg.Sync.MaxHedgePositions {
			plan.Skip("hedge add skipped: position cap %d reached", e.cfg.Sync.MaxHedgePositions)
			break
		}
		if err := e.priceHedge(ctx, &c); err != nil {
			plan.Skip("hedge %s unpriceable: %v", c.Symbol, err)
			continue
		}
		plan.HedgeAdds = append(plan.HedgeAdds, domain.HedgeDirective{Candidate: c, Reason: reason})
	}
}

// partialCloseHedges trims the requested contracts, oldest hedges first.
func (e *Executor) partialCloseHedges(plan *domain.ExecutionPlan, snap domain.PortfolioState, qty int) {
	remaining := qty
	for _, h := range snap.Hedges {
		if remaining <= 0 {
			break
		}
		if exiting(plan, h.ID) {
			continue
		}
		n := h.Quantity
		if n > remaining {
			n = remaining
		}
		frac := float64(n) / float64(h.Quantity)
		plan.Exits = append(plan.Exits, domain.ExitDirective{
			PositionID:   h.ID,
			Symbol:       h.Symbol,
			Role:         domain.RoleHedge,
			Reason:       domain.ExitHedgeTrim,
			Quantity:     n,
			CapitalFreed: h.CapitalAtRisk() * frac,
		})
		remaining -= n
	}
}

// rollHedges closes hedges at or inside the roll window and schedules
// replacements sized by the current requirement.
func (e *Executor) rollHedges(ctx context.Context, plan *domain.ExecutionPlan, snap domain.PortfolioState, req domain.HedgeRequirement, date time.Time, reason string) {
	rolled := 0
	for _, h := range snap.Hedges {
		if h.DTE(date) > hedgeRollDTE || exiting(plan, h.ID) {
			continue
		}
		plan.Exits = append(plan.Exits, domain.ExitDirective{
			PositionID:   h.ID,
			Symbol:       h.Symbol,
			Role:         domain.RoleHedge,
			Reason:       domain.ExitHedgeRoll,
			Quantity:     h.Quantity,
			CapitalFreed: h.CapitalAtRisk(),
		})
		rolled++
	}
	if rolled > 0 && req.Contracts > 0 {
		e.addHedges(ctx, plan, snap, req, date, reason)
	}
}

// priceCandidate re-estimates an entry candidate against live quotes using
// worst-case fills, so planning capital is pessimistic by construction.
func (e *Executor) priceCandidate(ctx context.Context, c *domain.EntryCandidate) error {
	credit, err := e.worstCaseNet(ctx, c.Legs)
	if err != nil {
		return err
	}
	c.Credit = credit
	c.Risk = c.MaxLossBase - c.Credit
	if c.Risk < 0 {
		c.Risk = 0
	}
	return nil
}

// priceHedge re-estimates a hedge candidate's cost the same way.
func (e *Executor) priceHedge(ctx context.Context, c *domain.HedgeCandidate) error {
	credit, err := e.worstCaseNet(ctx, c.Legs)
	if err != nil {
		return err
	}
	c.Cost = -credit
	if c.Cost < 0 {
		c.Cost = 0
	}
	return nil
}

// worstCaseNet prices a leg set at worst-case fills and returns the net
// premium in total dollars, credit positive.
func (e *Executor) worstCaseNet(ctx context.Context, legs []domain.OrderLeg) (float64, error) {
	symbols := make([]string, 0, len(legs))
	for _, l := range legs {
		symbols = append(symbols, l.Symbol)
	}
	quotes := e.fetchQuotes(ctx, symbols)

	var net float64
	for _, l := range legs {
		q, ok := quotes[l.Symbol]
		if !ok {
			return 0, fmt.Errorf("no quote for %s", l.Symbol)
		}
		debit, err := fill.WorstCaseDebit(l.ToOrder("PLAN"), q, e.cfg.Profile)
		if err != nil {
			return 0, err
		}
		net -= debit * float64(l.Quantity)
	}
	return net * domain.ContractMultiplier, nil
}

// computeCapital fills in the plan's capital ledger: what the entries need
// and what the ceiling leaves after netting exit releases.
func (e *Executor) computeCapital(plan *domain.ExecutionPlan, snap domain.PortfolioState) {
	var freed float64
	for _, ex := range plan.Exits {
		freed += ex.CapitalFreed
	}
	plan.CapitalAvailable = e.cfg.Sync.CapitalCeiling - snap.CapitalInUse + freed
	plan.CapitalRequired = requiredCapital(plan)
}

func requiredCapital(plan *domain.ExecutionPlan) float64 {
	var req float64
	for _, c := range plan.ProbeEntries {
		req += c.Risk
	}
	for _, c := range plan.CoreEntries {
		req += c.Risk
	}
	for _, h := range plan.HedgeAdds {
		req += h.Candidate.Cost
	}
	return req
}

// applyFreeze halts new exposure when drawdown or the daily loss limit is
// breached. Exits and hedge trims still run; freezes reduce, never add.
func (e *Executor) applyFreeze(plan *domain.ExecutionPlan, snap domain.PortfolioState, date time.Time) {
	equity := e.cfg.Sync.CapitalCeiling + snap.RealizedPnL + snap.UnrealizedPnL
	if equity > e.peakEquity {
		e.peakEquity = equity
	}

	if e.cfg.Sync.MaxDrawdownPct > 0 && e.peakEquity > 0 {
		if dd := (e.peakEquity - equity) / e.peakEquity; dd > e.cfg.Sync.MaxDrawdownPct {
			plan.FreezeReason = fmt.Sprintf("drawdown %.1f%% exceeds limit %.1f%%",
				dd*100, e.cfg.Sync.MaxDrawdownPct*100)
		}
	}
	if plan.FreezeReason == "" && e.cfg.Sync.DailyLossLimitPct > 0 {
		dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
		limit := e.cfg.Sync.DailyLossLimitPct * e.cfg.Sync.CapitalCeiling
		if loss := e.book.RealizedSince(dayStart); loss <= -limit {
			plan.FreezeReason = fmt.Sprintf("daily loss $%.2f exceeds limit $%.2f", -loss, limit)
		}
	}
	if plan.FreezeReason == "" {
		return
	}

	slog.Warn("executor: risk freeze", "cycle", plan.CycleID, "reason", plan.FreezeReason)

	plan.ProbeEntries = nil
	plan.CoreEntries = nil
	plan.HedgeAdds = nil

	// Roll exits exist only to make room for replacements; under a freeze
	// the replacement half is gone, so the close half goes too.
	kept := plan.Exits[:0]
	for _, ex := range plan.Exits {
		if ex.Reason == domain.ExitHedgeRoll {
			continue
		}
		kept = append(kept, ex)
	}
	plan.Exits = kept

	e.computeCapital(plan, snap)
}

// project computes post-execution exposure and greeks for validation.
func (e *Executor) project(plan *domain.ExecutionPlan, snap domain.PortfolioState) {
	plan.ProjectedExposure = projectedExposure(plan, snap)

	g := snap.Greeks
	byID := positionIndex(snap)
	for _, ex := range plan.Exits {
		p, ok := byID[ex.PositionID]
		if !ok || p.Quantity == 0 {
			continue
		}
		g = g.Sub(p.Greeks.Scale(float64(ex.Quantity) / float64(p.Quantity)))
	}
	for _, c := range plan.ProbeEntries {
		g = g.Add(c.Greeks)
	}
	for _, c := range plan.CoreEntries {
		g = g.Add(c.Greeks)
	}
	for _, h := range plan.HedgeAdds {
		g = g.Add(h.Candidate.Greeks)
	}
	plan.ProjectedGreeks = g
}

// --- plan arithmetic helpers ---

func projectedExposure(plan *domain.ExecutionPlan, snap domain.PortfolioState) float64 {
	exp := snap.TotalExposure
	byID := positionIndex(snap)
	for _, ex := range plan.Exits {
		p, ok := byID[ex.PositionID]
		if !ok || p.Role == domain.RoleHedge || p.Quantity == 0 {
			continue
		}
		exp -= p.CapitalAtRisk() * float64(ex.Quantity) / float64(p.Quantity)
	}
	for _, c := range plan.ProbeEntries {
		exp += c.Risk
	}
	for _, c := range plan.CoreEntries {
		exp += c.Risk
	}
	return exp
}

// exitingHedgePayoff sums max payoff leaving the book via planned exits.
func exitingHedgePayoff(plan *domain.ExecutionPlan, snap domain.PortfolioState) float64 {
	byID := positionIndex(snap)
	var gone float64
	for _, ex := range plan.Exits {
		p, ok := byID[ex.PositionID]
		if !ok || p.Role != domain.RoleHedge || p.Quantity == 0 {
			continue
		}
		gone += p.MaxPayoff * float64(ex.Quantity) / float64(p.Quantity)
	}
	return gone
}

func countFullExits(plan *domain.ExecutionPlan, snap domain.PortfolioState, role domain.PositionRole) int {
	byID := positionIndex(snap)
	n := 0
	for _, ex := range plan.Exits {
		p, ok := byID[ex.PositionID]
		if ok && p.Role == role && ex.Quantity >= p.Quantity {
			n++
		}
	}
	return n
}

func exiting(plan *domain.ExecutionPlan, id string) bool {
	for _, ex := range plan.Exits {
		if ex.PositionID == id {
			return true
		}
	}
	return false
}

func positionIndex(snap domain.PortfolioState) map[string]domain.Position {
	byID := make(map[string]domain.Position, snap.ProbeCount+snap.CoreCount+snap.HedgeCount)
	for _, lists := range [][]domain.Position{snap.Probes, snap.Cores, snap.Hedges} {
		for _, p := range lists {
			byID[p.ID] = p
		}
	}
	return byID
}
