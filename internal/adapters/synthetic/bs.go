// Package synthetic provides deterministic stand-ins for the external
// collaborators: a geometric Brownian market with Black-Scholes quotes, a
// probe source reading sentiment off trailing returns, a condor-building
// core source and a protection-ratio hedge manager. Everything derives
// from the run seed, so a run can be replayed bit for bit.
package synthetic

import (
	"math"

	"github.com/quantfork/optsim/internal/domain"
)

const (
	riskFreeRate = 0.04
	yearDays     = 252.0
)

func normCDF(x float64) float64 {
	return 0.5 * (1.0 + math.Erf(x/math.Sqrt2))
}

func normPDF(x float64) float64 {
	return math.Exp(-0.5*x*x) / math.Sqrt(2.0*math.Pi)
}

func d1d2(spot, strike, vol, years float64) (float64, float64) {
	d1 := (math.Log(spot/strike) + (riskFreeRate+0.5*vol*vol)*years) / (vol * math.Sqrt(years))
	return d1, d1 - vol*math.Sqrt(years)
}

// bsPrice returns the Black-Scholes value of one option, per share.
// At or past expiry it degenerates to intrinsic value.
func bsPrice(right domain.Right, spot, strike, vol, years float64) float64 {
	if years <= 0 || vol <= 0 {
		if right == domain.Call {
			return math.Max(0, spot-strike)
		}
		return math.Max(0, strike-spot)
	}
	d1, d2 := d1d2(spot, strike, vol, years)
	if right == domain.Call {
		return spot*normCDF(d1) - strike*math.Exp(-riskFreeRate*years)*normCDF(d2)
	}
	return strike*math.Exp(-riskFreeRate*years)*normCDF(-d2) - spot*normCDF(-d1)
}

// bsDelta returns the per-share delta: N(d1) for calls, N(d1)-1 for puts.
func bsDelta(right domain.Right, spot, strike, vol, years float64) float64 {
	if years <= 0 || vol <= 0 {
		switch {
		case right == domain.Call && spot > strike:
			return 1
		case right == domain.Put && spot < strike:
			return -1
		}
		return 0
	}
	d1, _ := d1d2(spot, strike, vol, years)
	if right == domain.Call {
		return normCDF(d1)
	}
	return normCDF(d1) - 1
}

// bsGreeks returns dollar greeks for one long contract: delta and gamma per
// $1 underlying move, theta per calendar day, vega per vol point.
func bsGreeks(right domain.Right, spot, strike, vol, years float64) domain.Greeks {
	if years <= 0 || vol <= 0 {
		return domain.Greeks{Delta: bsDelta(right, spot, strike, vol, years) * domain.ContractMultiplier}
	}
	d1, d2 := d1d2(spot, strike, vol, years)
	delta := normCDF(d1)
	if right == domain.Put {
		delta -= 1
	}
	gamma := normPDF(d1) / (spot * vol * math.Sqrt(years))

	theta := -(spot * normPDF(d1) * vol) / (2 * math.Sqrt(years))
	if right == domain.Call {
		theta -= riskFreeRate * strike * math.Exp(-riskFreeRate*years) * normCDF(d2)
	} else {
		theta += riskFreeRate * strike * math.Exp(-riskFreeRate*years) * normCDF(-d2)
	}
	theta /= 365.0

	// Per full vol point (0.01 of annualized vol).
	vega := spot * normPDF(d1) * math.Sqrt(years) / 100.0

	return domain.Greeks{
		Delta: delta * domain.ContractMultiplier,
		Gamma: gamma * domain.ContractMultiplier,
		Theta: theta * domain.ContractMultiplier,
		Vega:  vega * domain.ContractMultiplier,
	}
}
