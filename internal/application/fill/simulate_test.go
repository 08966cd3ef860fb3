package fill_test

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/quantfork/optsim/internal/application/fill"
	"github.com/quantfork/optsim/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sellOrder(qty int) domain.Order {
	return domain.Order{
		Symbol:      "SPX|20260320|P|4800",
		Right:       domain.Put,
		Strike:      4800,
		Side:        domain.Sell,
		Quantity:    qty,
		StrategyTag: "PROBE",
	}
}

func buyOrder(qty int) domain.Order {
	o := sellOrder(qty)
	o.Side = domain.Buy
	return o
}

func quote(bid, ask float64, size int) domain.Quote {
	return domain.Quote{Bid: bid, Ask: ask, BidSize: size, AskSize: size, Timestamp: time.Now()}
}

func TestSimulate_ConservativeSellScenario(t *testing.T) {
	// bid 1.50 / ask 1.55, conservative, sell 1 contract with ample size.
	// Floor: max($0.005, 10% × $0.05) = $0.005.
	// Adverse selection: 5bps × 1.525 = $0.00076.
	// No size penalty (1 contract vs 50 × 25% = 12.5 allowed).
	// Price: 1.50 - 0.005 - 0.00076 = 1.49424.
	rng := rand.New(rand.NewSource(1))
	res, err := fill.Simulate(sellOrder(1), quote(1.50, 1.55, 50), domain.Conservative(), domain.MarketState{}, rng)
	require.NoError(t, err)

	assert.InDelta(t, 1.49424, res.AvgPrice, 0.0001)
	assert.GreaterOrEqual(t, res.AvgPrice, 1.49)
	assert.LessOrEqual(t, res.AvgPrice, 1.56)
	assert.True(t, res.WithinNbbo)
	assert.False(t, res.MidOrBetter)
	assert.InDelta(t, 1.525-res.AvgPrice, res.Slippage, 1e-9)
	assert.Equal(t, 250*time.Millisecond, res.Latency)
}

func TestSimulate_ConservativeNbboCompliance(t *testing.T) {
	// Typical orders: spreads $0.01-$0.06, mids $0.50-$3.00, healthy size,
	// small quantity. Conservative must stay inside the band (with the one
	// cent tolerance) at least 98% of the time.
	profile := domain.Conservative()
	gen := rand.New(rand.NewSource(7))
	rng := rand.New(rand.NewSource(11))

	const n = 500
	within := 0
	for i := 0; i < n; i++ {
		mid := 0.50 + gen.Float64()*2.50
		spread := 0.01 + gen.Float64()*0.05
		q := quote(mid-spread/2, mid+spread/2, 20+gen.Intn(80))

		o := sellOrder(1 + gen.Intn(3))
		if gen.Intn(2) == 0 {
			o.Side = domain.Buy
		}

		res, err := fill.Simulate(o, q, profile, domain.MarketState{}, rng)
		require.NoError(t, err)
		if res.WithinNbbo {
			within++
		}
	}

	assert.GreaterOrEqual(t, float64(within)/n, 0.98)
}

func TestSimulate_ConservativeRarelyImproves(t *testing.T) {
	// Conservative has zero mid-fill probability in every bucket, so the
	// mid-or-better fraction must come in far under the 60% ceiling.
	profile := domain.Conservative()
	gen := rand.New(rand.NewSource(3))
	rng := rand.New(rand.NewSource(5))

	const n = 1000
	better := 0
	for i := 0; i < n; i++ {
		mid := 0.50 + gen.Float64()*4.00
		spread := 0.01 + gen.Float64()*0.10
		q := quote(mid-spread/2, mid+spread/2, 30+gen.Intn(70))

		res, err := fill.Simulate(buyOrder(1+gen.Intn(2)), q, profile, domain.MarketState{}, rng)
		require.NoError(t, err)
		if res.MidOrBetter {
			better++
		}
	}

	assert.Less(t, float64(better)/n, 0.60)
	assert.Equal(t, 0, better, "conservative never fills at mid")
}

func TestSimulate_BaseMidFillRate(t *testing.T) {
	// Tight quotes under base: mid fills should land near the 65% bucket
	// probability.
	profile := domain.Base()
	rng := rand.New(rand.NewSource(9))
	q := quote(1.00, 1.02, 50)

	const n = 1000
	mids := 0
	for i := 0; i < n; i++ {
		res, err := fill.Simulate(buyOrder(1), q, profile, domain.MarketState{}, rng)
		require.NoError(t, err)
		if res.MidOrBetter {
			mids++
		}
	}

	assert.InDelta(t, 0.65, float64(mids)/n, 0.05)
}

func TestSimulate_Deterministic(t *testing.T) {
	state := domain.MarketState{ActiveEvents: []string{domain.EventOPEX}}
	profile := domain.Base()

	run := func(seed int64) []domain.FillResult {
		gen := rand.New(rand.NewSource(21))
		rng := rand.New(rand.NewSource(seed))
		out := make([]domain.FillResult, 0, 50)
		for i := 0; i < 50; i++ {
			mid := 1.00 + gen.Float64()*2.00
			spread := 0.02 + gen.Float64()*0.08
			q := quote(mid-spread/2, mid+spread/2, 10+gen.Intn(90))
			res, err := fill.Simulate(sellOrder(1+gen.Intn(4)), q, profile, state, rng)
			require.NoError(t, err)
			out = append(out, res)
		}
		return out
	}

	assert.Equal(t, run(42), run(42), "same seed, identical fill sequence")
}

func TestSimulate_RejectsUnusableQuotes(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	cases := []domain.Quote{
		{Bid: 0, Ask: 1.00, BidSize: 10, AskSize: 10},
		{Bid: 1.00, Ask: 0, BidSize: 10, AskSize: 10},
		{Bid: 1.10, Ask: 1.00, BidSize: 10, AskSize: 10}, // crossed
	}
	for _, q := range cases {
		_, err := fill.Simulate(sellOrder(1), q, domain.Base(), domain.MarketState{}, rng)
		require.Error(t, err)

		var fe *domain.FillError
		assert.True(t, errors.As(err, &fe))
	}

	_, err := fill.Simulate(sellOrder(0), quote(1.00, 1.05, 10), domain.Base(), domain.MarketState{}, rng)
	var fe *domain.FillError
	assert.True(t, errors.As(err, &fe), "zero quantity is a fill error")
}

func TestSimulate_EventOverridesCompound(t *testing.T) {
	profile := domain.Conservative()
	q := quote(2.00, 2.10, 50)
	rng := rand.New(rand.NewSource(1))

	calm, err := fill.Simulate(buyOrder(1), q, profile, domain.MarketState{}, rng)
	require.NoError(t, err)

	fomc, err := fill.Simulate(buyOrder(1), q, profile,
		domain.MarketState{ActiveEvents: []string{domain.EventFOMC}}, rng)
	require.NoError(t, err)

	both, err := fill.Simulate(buyOrder(1), q, profile,
		domain.MarketState{ActiveEvents: []string{domain.EventFOMC, domain.EventCPI}}, rng)
	require.NoError(t, err)

	// Floor: max(0.005, 10% × 0.10) = $0.01.
	// FOMC multiplies it by 1.5, FOMC+CPI by 1.5 × 1.3 = 1.95.
	assert.Greater(t, fomc.AvgPrice, calm.AvgPrice)
	assert.Greater(t, both.AvgPrice, fomc.AvgPrice)
	assert.InDelta(t, 0.01*0.5, fomc.AvgPrice-calm.AvgPrice, 1e-9)
	assert.InDelta(t, 0.01*0.95, both.AvgPrice-calm.AvgPrice, 1e-9)

	// Latency scales too: 250ms × 2.0 under FOMC, × 2.0 × 1.5 with CPI.
	assert.Equal(t, 500*time.Millisecond, fomc.Latency)
	assert.Equal(t, 750*time.Millisecond, both.Latency)
}

func TestSimulate_SizePenalty(t *testing.T) {
	// Conservative never fills at mid, so prices here are pure formula.
	profile := domain.Conservative()
	q := quote(1.50, 1.55, 10)

	price := func(qty int) float64 {
		rng := rand.New(rand.NewSource(99))
		res, err := fill.Simulate(buyOrder(qty), q, profile, domain.MarketState{}, rng)
		require.NoError(t, err)
		return res.AvgPrice
	}

	// Conservative allows 25% × 10 = 2.5 contracts before penalizing.
	small := price(2)
	medium := price(5)
	large := price(20)

	assert.Equal(t, small, price(1), "inside participation, no penalty")
	assert.Greater(t, medium, small)
	assert.Greater(t, large, medium)

	// 5/2.5 - 1 = 1 unit of excess: 15bps × 1.525 = $0.00229 extra.
	assert.InDelta(t, 0.00229, medium-small, 0.0001)
}

func TestSimulate_EmptyTouchChargesCap(t *testing.T) {
	profile := domain.Conservative()
	rng := rand.New(rand.NewSource(1))

	empty := domain.Quote{Bid: 1.50, Ask: 1.55, BidSize: 50, AskSize: 0}
	res, err := fill.Simulate(buyOrder(1), empty, profile, domain.MarketState{}, rng)
	require.NoError(t, err)

	// Max excess is 10: 15bps × 10 × 1.525 = $0.0229 on top of floor+adverse.
	full := domain.Quote{Bid: 1.50, Ask: 1.55, BidSize: 50, AskSize: 50}
	baseline, err := fill.Simulate(buyOrder(1), full, profile, domain.MarketState{}, rng)
	require.NoError(t, err)

	assert.InDelta(t, 0.0229, res.AvgPrice-baseline.AvgPrice, 0.0001)
}

func TestSimulate_SellProceedsFloorAtOneCent(t *testing.T) {
	profile := domain.Conservative()
	rng := rand.New(rand.NewSource(1))

	// Selling a near-worthless option cannot produce negative proceeds.
	res, err := fill.Simulate(sellOrder(1), quote(0.01, 0.03, 0), profile, domain.MarketState{}, rng)
	require.NoError(t, err)
	assert.Equal(t, 0.01, res.AvgPrice)
}
