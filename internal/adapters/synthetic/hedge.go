package synthetic

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/quantfork/optsim/internal/domain"
)

// HedgeConfig shapes the protective put spreads and the adjustment policy.
type HedgeConfig struct {
	Root             string
	TargetProtection float64 // desired hedge payoff as a fraction of exposure
	OTMPct           float64 // long strike this far below spot
	Width            float64 // strike points between long and short put
	TargetDTE        int
	RollDTE          int     // roll hedges at or inside this DTE
	TrimVolIndex     float64 // partial-close when vol drops below this
	StrikeStep       float64
}

// HedgeManager sizes put-spread protection toward a target payoff ratio
// and signals trims when volatility subsides or rolls near expiry.
type HedgeManager struct {
	cfg    HedgeConfig
	market *Market
}

// NewHedgeManager creates a hedge manager over the synthetic market. Zero
// config values get defaults: 50% protection, 10% OTM, 100 wide, ~90 DTE.
func NewHedgeManager(cfg HedgeConfig, market *Market) *HedgeManager {
	if cfg.Root == "" {
		cfg.Root = "SPX"
	}
	if cfg.TargetProtection <= 0 {
		cfg.TargetProtection = 0.5
	}
	if cfg.OTMPct <= 0 {
		cfg.OTMPct = 0.10
	}
	if cfg.Width <= 0 {
		cfg.Width = 100
	}
	if cfg.TargetDTE <= 0 {
		cfg.TargetDTE = 90
	}
	if cfg.RollDTE <= 0 {
		cfg.RollDTE = 21
	}
	if cfg.TrimVolIndex <= 0 {
		cfg.TrimVolIndex = 12
	}
	if cfg.StrikeStep <= 0 {
		cfg.StrikeStep = 25
	}
	return &HedgeManager{cfg: cfg, market: market}
}

// CalculateHedgeRequirement converts exposure into a payoff target, scaled
// up under stress, and sizes it in whole spread contracts.
func (h *HedgeManager) CalculateHedgeRequirement(_ context.Context, exposure, _ float64, state domain.MarketState) (domain.HedgeRequirement, error) {
	if exposure <= 0 {
		return domain.HedgeRequirement{TargetProtection: h.cfg.TargetProtection}, nil
	}

	target := h.cfg.TargetProtection * exposure * (1 + 0.5*state.StressLevel)
	perContract := h.cfg.Width * domain.ContractMultiplier

	return domain.HedgeRequirement{
		NotionalToCover:  target,
		Contracts:        int(math.Ceil(target / perContract)),
		TargetProtection: h.cfg.TargetProtection,
	}, nil
}

// GetHedgeAdjustmentSignal recommends a roll when any hedge sits inside the
// roll window, a partial close in calm vol, and otherwise holds.
func (h *HedgeManager) GetHedgeAdjustmentSignal(_ context.Context, activeHedges []domain.Position, volLevel float64) (*domain.HedgeSignal, error) {
	if len(activeHedges) == 0 {
		return nil, nil
	}

	date := h.market.Date()
	for _, p := range activeHedges {
		if p.DTE(date) <= h.cfg.RollDTE {
			return &domain.HedgeSignal{
				Action: domain.HedgeRoll,
				Reason: fmt.Sprintf("hedge %s inside %d-day roll window", p.Symbol, h.cfg.RollDTE),
			}, nil
		}
	}

	if volLevel < h.cfg.TrimVolIndex {
		total := 0
		for _, p := range activeHedges {
			total += p.Quantity
		}
		if total >= 2 {
			return &domain.HedgeSignal{
				Action:   domain.HedgePartialClose,
				Quantity: total / 2,
				Reason:   fmt.Sprintf("vol %.1f below trim level %.1f", volLevel, h.cfg.TrimVolIndex),
			}, nil
		}
	}
	return nil, nil
}

// GenerateHedges proposes one put spread sized to the requirement.
func (h *HedgeManager) GenerateHedges(_ context.Context, req domain.HedgeRequirement, date time.Time) ([]domain.HedgeCandidate, error) {
	if req.Contracts <= 0 {
		return nil, nil
	}

	spot := h.market.Spot()
	vol := h.market.Vol()
	long := math.Floor(spot*(1-h.cfg.OTMPct)/h.cfg.StrikeStep) * h.cfg.StrikeStep
	short := long - h.cfg.Width
	if short <= 0 {
		return nil, fmt.Errorf("synthetic.GenerateHedges: spot %.2f too low for %g-wide spread", spot, h.cfg.Width)
	}

	expiry := targetExpiry(date, h.cfg.TargetDTE)
	years := expiry.Sub(date).Hours() / 24 / 365
	qty := req.Contracts

	cost := spreadEstimate(domain.Put, spot, vol, years, long, short) *
		domain.ContractMultiplier * float64(qty)

	g := longLegGreeks(domain.Put, spot, long, vol, years).
		Add(shortLegGreeks(domain.Put, spot, short, vol, years)).
		Scale(float64(qty))

	return []domain.HedgeCandidate{{
		Symbol:   spreadName(h.cfg.Root, expiry, long, short, "HPS"),
		Quantity: qty,
		Legs: []domain.OrderLeg{
			{Symbol: optionSymbol(h.cfg.Root, expiry, domain.Put, long), Right: domain.Put, Strike: long, Side: domain.Buy, Quantity: qty},
			{Symbol: optionSymbol(h.cfg.Root, expiry, domain.Put, short), Right: domain.Put, Strike: short, Side: domain.Sell, Quantity: qty},
		},
		Cost:       cost,
		MaxPayoff:  h.cfg.Width * domain.ContractMultiplier * float64(qty),
		Expiration: expiry,
		Greeks:     g,
	}}, nil
}
