// Package fill simulates option order executions under named execution
// profiles. The simulator is pure: identical inputs and RNG state produce
// identical results, which is what makes whole runs replayable.
package fill

import (
	"math/rand"
	"time"

	"github.com/quantfork/optsim/internal/domain"
)

const (
	// NbboTolerance is the slack allowed on the NBBO band check, matching
	// the cent granularity real option prints are reported at.
	NbboTolerance = 0.01

	// maxSizeExcess caps how many units of participation excess the size
	// penalty charges. Also used when the touch shows no size at all.
	maxSizeExcess = 10.0

	// minPrice floors simulated sale proceeds at one cent.
	minPrice = 0.01
)

// Simulate executes one order against a top-of-book quote under the given
// profile and market state. All randomness comes from rng; callers that
// need parallel simulations must pass one rng per goroutine.
//
// The quote is taken as arrival state and never extrapolated over the
// profile's latency; latency is carried on the result as metadata.
func Simulate(order domain.Order, quote domain.Quote, profile domain.ExecutionProfile, state domain.MarketState, rng *rand.Rand) (domain.FillResult, error) {
	if err := usable(order, quote); err != nil {
		return domain.FillResult{}, err
	}

	mid := quote.Mid()
	midProb, floorFactor, latencyFactor := eventAdjust(profile, state)

	latency := scaleDuration(profile.Latency, latencyFactor)

	prob := profile.MidFillProb(quote.Bucket()) * midProb
	if prob > 1 {
		prob = 1
	}
	if prob > 0 && rng.Float64() < prob {
		return domain.FillResult{
			AvgPrice:    mid,
			Slippage:    0,
			WithinNbbo:  true,
			MidOrBetter: true,
			Latency:     latency,
		}, nil
	}

	slip := slippageTotal(order, quote, profile, floorFactor)
	price := quote.FarTouch(order.Side)
	if order.Side == domain.Buy {
		price += slip
	} else {
		price -= slip
		if price < minPrice {
			price = minPrice
		}
	}

	return domain.FillResult{
		AvgPrice:    price,
		Slippage:    abs(price - mid),
		WithinNbbo:  withinNbbo(price, quote),
		MidOrBetter: midOrBetter(order.Side, price, mid),
		Latency:     latency,
	}, nil
}

// usable rejects orders and quotes the simulator cannot price.
func usable(order domain.Order, quote domain.Quote) error {
	if order.Quantity <= 0 {
		return domain.NewFillError(order.Symbol, "quantity %d must be positive", order.Quantity)
	}
	if !quote.IsViable() {
		return domain.NewFillError(order.Symbol,
			"unusable quote: bid %.2f ask %.2f", quote.Bid, quote.Ask)
	}
	return nil
}

// eventAdjust folds every active event's override into combined factors.
// Multiple events compound multiplicatively, order-independent.
func eventAdjust(profile domain.ExecutionProfile, state domain.MarketState) (midProb, floor, latency float64) {
	midProb, floor, latency = 1, 1, 1
	for _, ev := range state.ActiveEvents {
		o, ok := profile.OverrideFor(ev)
		if !ok {
			continue
		}
		midProb *= o.MidFillFactor
		floor *= o.SpreadFactor
		latency *= o.LatencyFactor
	}
	return midProb, floor, latency
}

// slippageTotal is the per-contract cost beyond the far touch: the spread
// floor, the size penalty for exceeding displayed-size participation, and
// adverse selection. floorFactor carries the event adjustment.
func slippageTotal(order domain.Order, quote domain.Quote, profile domain.ExecutionProfile, floorFactor float64) float64 {
	mid := quote.Mid()

	floor := profile.SlippageFloor(quote.Spread()) * floorFactor
	sizePen := mid * (profile.SizePenaltyBps / 10000) * sizeExcess(order, quote, profile)
	adverse := mid * (profile.AdverseSelectionBps / 10000)

	return floor + sizePen + adverse
}

// sizeExcess measures how far the order overruns the profile's share of the
// displayed touch size, in units of that share, capped at maxSizeExcess.
// An empty touch charges the full cap.
func sizeExcess(order domain.Order, quote domain.Quote, profile domain.ExecutionProfile) float64 {
	top := quote.TouchSize(order.Side)
	if top <= 0 {
		return maxSizeExcess
	}
	allowed := profile.MaxParticipation * float64(top)
	if allowed <= 0 {
		return maxSizeExcess
	}
	excess := float64(order.Quantity)/allowed - 1
	if excess <= 0 {
		return 0
	}
	if excess > maxSizeExcess {
		return maxSizeExcess
	}
	return excess
}

func withinNbbo(price float64, quote domain.Quote) bool {
	return price >= quote.Bid-NbboTolerance && price <= quote.Ask+NbboTolerance
}

func midOrBetter(side domain.Side, price, mid float64) bool {
	if side == domain.Buy {
		return price <= mid
	}
	return price >= mid
}

func scaleDuration(d time.Duration, factor float64) time.Duration {
	return time.Duration(float64(d) * factor)
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
