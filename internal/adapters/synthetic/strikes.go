package synthetic

import (
	"math"

	"github.com/quantfork/optsim/internal/domain"
)

// strikeForPutDelta walks down the strike ladder from at-the-money and
// returns the first strike whose put delta magnitude is at or inside the
// target. The skewed vol is used, matching how the quotes price.
func strikeForPutDelta(spot, vol, years, target, step float64) float64 {
	atm := math.Floor(spot/step) * step
	for k := atm; k > spot*0.5; k -= step {
		d := bsDelta(domain.Put, spot, k, smiledVol(vol, spot, k), years)
		if math.Abs(d) <= target {
			return k
		}
	}
	return math.Max(step, spot*0.5)
}

// strikeForCallDelta walks up the ladder and returns the first strike whose
// call delta is at or inside the target.
func strikeForCallDelta(spot, vol, years, target, step float64) float64 {
	atm := math.Ceil(spot/step) * step
	for k := atm; k < spot*1.5; k += step {
		d := bsDelta(domain.Call, spot, k, smiledVol(vol, spot, k), years)
		if d <= target {
			return k
		}
	}
	return spot * 1.5
}

// spreadEstimate values a two-strike vertical at theoretical mids, per
// share: price of the near strike minus price of the far strike.
func spreadEstimate(right domain.Right, spot, vol, years, near, far float64) float64 {
	return bsPrice(right, spot, near, smiledVol(vol, spot, near), years) -
		bsPrice(right, spot, far, smiledVol(vol, spot, far), years)
}

// shortLegGreeks negates the long-contract greeks for a sold leg.
func shortLegGreeks(right domain.Right, spot, strike, vol, years float64) domain.Greeks {
	return bsGreeks(right, spot, strike, smiledVol(vol, spot, strike), years).Scale(-1)
}

func longLegGreeks(right domain.Right, spot, strike, vol, years float64) domain.Greeks {
	return bsGreeks(right, spot, strike, smiledVol(vol, spot, strike), years)
}
