package synthetic

import (
	"context"
	"time"

	"github.com/quantfork/optsim/internal/domain"
)

// CoreConfig shapes the primary income structure, an iron condor.
type CoreConfig struct {
	Root          string
	ShortDelta    float64 // target |delta| of both short strikes
	Width         float64 // wing width in strike points
	TargetDTE     int
	Quantity      int
	StrikeStep    float64
	ProfitTarget  float64
	StopLoss      float64
	ForcedExitDTE int
}

// CoreSource builds one iron condor candidate per request, leaning the
// strikes with the sentiment: the favored side sells closer to the money,
// the risky side further away.
type CoreSource struct {
	cfg    CoreConfig
	market *Market
}

// NewCoreSource creates a core source over the synthetic market. Zero
// config values get defaults: 12-delta shorts, 50 wide, ~35 DTE.
func NewCoreSource(cfg CoreConfig, market *Market) *CoreSource {
	if cfg.Root == "" {
		cfg.Root = "SPX"
	}
	if cfg.ShortDelta <= 0 {
		cfg.ShortDelta = 0.12
	}
	if cfg.Width <= 0 {
		cfg.Width = 50
	}
	if cfg.TargetDTE <= 0 {
		cfg.TargetDTE = 35
	}
	if cfg.Quantity <= 0 {
		cfg.Quantity = 1
	}
	if cfg.StrikeStep <= 0 {
		cfg.StrikeStep = 25
	}
	if cfg.ProfitTarget <= 0 {
		cfg.ProfitTarget = 0.5
	}
	if cfg.StopLoss <= 0 {
		cfg.StopLoss = 1.5
	}
	if cfg.ForcedExitDTE <= 0 {
		cfg.ForcedExitDTE = 7
	}
	return &CoreSource{cfg: cfg, market: market}
}

// BuildCoreCandidate returns a condor for the given spot, or nil when no
// sane structure exists at current strikes.
func (s *CoreSource) BuildCoreCandidate(_ context.Context, date time.Time, spot float64, sentiment domain.Sentiment) (*domain.EntryCandidate, error) {
	if spot <= 0 || !sentiment.AllowsEntries() {
		return nil, nil
	}

	vol := s.market.Vol()
	expiry := targetExpiry(date, s.cfg.TargetDTE)
	years := expiry.Sub(date).Hours() / 24 / 365

	putDelta, callDelta := s.cfg.ShortDelta, s.cfg.ShortDelta
	switch sentiment {
	case domain.SentimentBullish:
		putDelta += 0.04
		callDelta -= 0.03
	case domain.SentimentBearish:
		putDelta -= 0.03
		callDelta += 0.04
	}
	if putDelta < 0.05 {
		putDelta = 0.05
	}
	if callDelta < 0.05 {
		callDelta = 0.05
	}

	shortPut := strikeForPutDelta(spot, vol, years, putDelta, s.cfg.StrikeStep)
	shortCall := strikeForCallDelta(spot, vol, years, callDelta, s.cfg.StrikeStep)
	longPut := shortPut - s.cfg.Width
	longCall := shortCall + s.cfg.Width
	if longPut <= 0 || shortPut >= shortCall {
		return nil, nil
	}

	qty := s.cfg.Quantity
	credit := (spreadEstimate(domain.Put, spot, vol, years, shortPut, longPut) +
		spreadEstimate(domain.Call, spot, vol, years, shortCall, longCall)) *
		domain.ContractMultiplier * float64(qty)
	maxLoss := s.cfg.Width * domain.ContractMultiplier * float64(qty)

	g := shortLegGreeks(domain.Put, spot, shortPut, vol, years).
		Add(longLegGreeks(domain.Put, spot, longPut, vol, years)).
		Add(shortLegGreeks(domain.Call, spot, shortCall, vol, years)).
		Add(longLegGreeks(domain.Call, spot, longCall, vol, years)).
		Scale(float64(qty))

	return &domain.EntryCandidate{
		Symbol:   condorName(s.cfg.Root, expiry, shortPut, longPut, shortCall, longCall),
		Role:     domain.RoleCore,
		Quantity: qty,
		Legs: []domain.OrderLeg{
			{Symbol: optionSymbol(s.cfg.Root, expiry, domain.Put, shortPut), Right: domain.Put, Strike: shortPut, Side: domain.Sell, Quantity: qty},
			{Symbol: optionSymbol(s.cfg.Root, expiry, domain.Put, longPut), Right: domain.Put, Strike: longPut, Side: domain.Buy, Quantity: qty},
			{Symbol: optionSymbol(s.cfg.Root, expiry, domain.Call, shortCall), Right: domain.Call, Strike: shortCall, Side: domain.Sell, Quantity: qty},
			{Symbol: optionSymbol(s.cfg.Root, expiry, domain.Call, longCall), Right: domain.Call, Strike: longCall, Side: domain.Buy, Quantity: qty},
		},
		Risk:        maxLoss - credit,
		Credit:      credit,
		MaxLossBase: maxLoss,
		Expiration:  expiry,
		Greeks:      g,
		Exit: domain.ExitRule{
			ProfitTarget:     s.cfg.ProfitTarget,
			StopLossMultiple: s.cfg.StopLoss,
			ForcedExitDTE:    s.cfg.ForcedExitDTE,
		},
	}, nil
}

func condorName(root string, expiry time.Time, shortPut, longPut, shortCall, longCall float64) string {
	return spreadName(root, expiry, shortPut, longPut, "") +
		trimFloat(shortCall) + "/" + trimFloat(longCall) + " IC"
}
