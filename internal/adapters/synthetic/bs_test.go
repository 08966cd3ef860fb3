package synthetic

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quantfork/optsim/internal/domain"
)

func TestBSPrice_PutCallParity(t *testing.T) {
	spot, strike, vol, years := 5000.0, 4800.0, 0.18, 0.25

	call := bsPrice(domain.Call, spot, strike, vol, years)
	put := bsPrice(domain.Put, spot, strike, vol, years)
	forward := spot - strike*math.Exp(-riskFreeRate*years)

	assert.InDelta(t, forward, call-put, 1e-6)
}

func TestBSPrice_IntrinsicAtExpiry(t *testing.T) {
	assert.Equal(t, 200.0, bsPrice(domain.Call, 5000, 4800, 0.18, 0))
	assert.Equal(t, 0.0, bsPrice(domain.Put, 5000, 4800, 0.18, 0))
	assert.Equal(t, 300.0, bsPrice(domain.Put, 4500, 4800, 0.18, 0))

	// Zero vol degrades to intrinsic as well.
	assert.Equal(t, 200.0, bsPrice(domain.Call, 5000, 4800, 0, 0.5))
}

func TestBSPrice_Monotonicity(t *testing.T) {
	// Puts gain value as the strike rises; calls lose it.
	p1 := bsPrice(domain.Put, 5000, 4600, 0.18, 0.25)
	p2 := bsPrice(domain.Put, 5000, 4800, 0.18, 0.25)
	assert.Greater(t, p2, p1)

	c1 := bsPrice(domain.Call, 5000, 4600, 0.18, 0.25)
	c2 := bsPrice(domain.Call, 5000, 4800, 0.18, 0.25)
	assert.Greater(t, c1, c2)

	// More vol, more premium.
	assert.Greater(t,
		bsPrice(domain.Put, 5000, 4800, 0.30, 0.25),
		bsPrice(domain.Put, 5000, 4800, 0.15, 0.25))
}

func TestBSDelta_Ranges(t *testing.T) {
	d := bsDelta(domain.Put, 5000, 4800, 0.18, 0.25)
	assert.Greater(t, d, -1.0)
	assert.Less(t, d, 0.0)

	d = bsDelta(domain.Call, 5000, 4800, 0.18, 0.25)
	assert.Greater(t, d, 0.0)
	assert.Less(t, d, 1.0)

	// Deep in or out of the money pins delta at expiry.
	assert.Equal(t, 1.0, bsDelta(domain.Call, 5000, 4000, 0.18, 0))
	assert.Equal(t, 0.0, bsDelta(domain.Call, 5000, 6000, 0.18, 0))
	assert.Equal(t, -1.0, bsDelta(domain.Put, 5000, 6000, 0.18, 0))
	assert.Equal(t, 0.0, bsDelta(domain.Put, 5000, 4000, 0.18, 0))
}

func TestBSGreeks_DollarSigns(t *testing.T) {
	g := bsGreeks(domain.Put, 5000, 4800, 0.18, 0.25)

	assert.Less(t, g.Delta, 0.0)
	assert.Greater(t, g.Gamma, 0.0)
	assert.Less(t, g.Theta, 0.0)
	assert.Greater(t, g.Vega, 0.0)

	// Scaled per contract: dollars per index point across 100 shares.
	assert.Greater(t, g.Delta, -domain.ContractMultiplier)
}

func TestSmiledVol_PutSkew(t *testing.T) {
	base := 0.16
	below := smiledVol(base, 5000, 4500)
	at := smiledVol(base, 5000, 5000)
	above := smiledVol(base, 5000, 5500)

	assert.Greater(t, below, at)
	assert.Greater(t, at, above)
	assert.InDelta(t, base, at, 1e-9)
	assert.GreaterOrEqual(t, above, 0.05)
}
