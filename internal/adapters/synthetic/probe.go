package synthetic

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/quantfork/optsim/internal/domain"
)

const (
	sentimentWindow  = 10
	sentimentMinDays = 5
	bullishDrift     = 0.0015 // mean daily return thresholds
	volatileAnnVol   = 0.28
)

// ProbeConfig shapes the exploratory put credit spreads.
type ProbeConfig struct {
	Root          string
	ShortDelta    float64 // target |delta| of the short put
	Width         float64 // strike points between short and long
	TargetDTE     int
	Quantity      int
	StrikeStep    float64
	ProfitTarget  float64
	StopLoss      float64
	ForcedExitDTE int
}

// ProbeSource proposes small put credit spreads below the market and reads
// sentiment from the trailing return window. Probes are deliberately
// uniform; their job is to measure fill and win quality, not to be clever.
type ProbeSource struct {
	cfg    ProbeConfig
	market *Market
}

// NewProbeSource creates a probe source over the synthetic market. Zero
// config values get defaults: 20-delta shorts, 50 wide, ~45 DTE.
func NewProbeSource(cfg ProbeConfig, market *Market) *ProbeSource {
	if cfg.Root == "" {
		cfg.Root = "SPX"
	}
	if cfg.ShortDelta <= 0 {
		cfg.ShortDelta = 0.20
	}
	if cfg.Width <= 0 {
		cfg.Width = 50
	}
	if cfg.TargetDTE <= 0 {
		cfg.TargetDTE = 45
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
		cfg.StopLoss = 2.0
	}
	if cfg.ForcedExitDTE <= 0 {
		cfg.ForcedExitDTE = 21
	}
	return &ProbeSource{cfg: cfg, market: market}
}

// GetSentiment classifies the trailing window: volatile when realized vol
// runs hot, directional on mean drift, insufficient before enough days.
func (s *ProbeSource) GetSentiment(_ context.Context) (domain.Sentiment, error) {
	rets := s.market.TrailingReturns(sentimentWindow)
	if len(rets) < sentimentMinDays {
		return domain.SentimentInsufficient, nil
	}

	var mean float64
	for _, r := range rets {
		mean += r
	}
	mean /= float64(len(rets))

	var varsum float64
	for _, r := range rets {
		varsum += (r - mean) * (r - mean)
	}
	annVol := math.Sqrt(varsum/float64(len(rets))) * math.Sqrt(yearDays)

	switch {
	case annVol > volatileAnnVol:
		return domain.SentimentVolatile, nil
	case mean > bullishDrift:
		return domain.SentimentBullish, nil
	case mean < -bullishDrift:
		return domain.SentimentBearish, nil
	}
	return domain.SentimentNeutral, nil
}

// GenerateProbeEntries builds count put credit spreads. Each successive
// candidate moves a touch further out of the money so same-day probes
// sample different strikes.
func (s *ProbeSource) GenerateProbeEntries(_ context.Context, date time.Time, count int) ([]domain.EntryCandidate, error) {
	spot := s.market.Spot()
	vol := s.market.Vol()
	expiry := targetExpiry(date, s.cfg.TargetDTE)
	years := expiry.Sub(date).Hours() / 24 / 365

	cands := make([]domain.EntryCandidate, 0, count)
	for i := 0; i < count; i++ {
		target := s.cfg.ShortDelta - 0.03*float64(i)
		if target < 0.08 {
			target = 0.08
		}
		short := strikeForPutDelta(spot, vol, years, target, s.cfg.StrikeStep)
		long := short - s.cfg.Width
		if long <= 0 {
			continue
		}

		qty := s.cfg.Quantity
		credit := spreadEstimate(domain.Put, spot, vol, years, short, long) *
			domain.ContractMultiplier * float64(qty)
		maxLoss := s.cfg.Width * domain.ContractMultiplier * float64(qty)

		g := shortLegGreeks(domain.Put, spot, short, vol, years).
			Add(longLegGreeks(domain.Put, spot, long, vol, years)).
			Scale(float64(qty))

		cands = append(cands, domain.EntryCandidate{
			Symbol:   spreadName(s.cfg.Root, expiry, short, long, "PCS"),
			Role:     domain.RoleProbe,
			Quantity: qty,
			Legs: []domain.OrderLeg{
				{Symbol: optionSymbol(s.cfg.Root, expiry, domain.Put, short), Right: domain.Put, Strike: short, Side: domain.Sell, Quantity: qty},
				{Symbol: optionSymbol(s.cfg.Root, expiry, domain.Put, long), Right: domain.Put, Strike: long, Side: domain.Buy, Quantity: qty},
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
		})
	}
	return cands, nil
}

func spreadName(root string, expiry time.Time, near, far float64, kind string) string {
	return strings.ToUpper(root) + " " +
		strings.ToUpper(expiry.Format("02Jan06")) + " " +
		trimFloat(near) + "/" + trimFloat(far) + " " + kind
}

func trimFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
