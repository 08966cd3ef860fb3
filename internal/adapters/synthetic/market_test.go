package synthetic_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfork/optsim/internal/adapters/synthetic"
	"github.com/quantfork/optsim/internal/domain"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 21, 0, 0, 0, time.UTC)
}

func newMarket(seed int64) *synthetic.Market {
	return synthetic.NewMarket(synthetic.MarketConfig{Seed: seed})
}

func TestMarket_QuoteDeterministicWithinDay(t *testing.T) {
	ctx := context.Background()
	m := newMarket(7)
	require.NoError(t, m.Advance(ctx, day(2026, time.January, 30)))

	const sym = "SPX|20260320|P|4800"
	q1, err := m.GetQuote(ctx, sym)
	require.NoError(t, err)

	// Unrelated fetches in between must not disturb the next read.
	_, err = m.GetQuote(ctx, "SPX|20260320|P|4700")
	require.NoError(t, err)
	_, err = m.GetQuote(ctx, "SPX|20260417|C|5200")
	require.NoError(t, err)

	q2, err := m.GetQuote(ctx, sym)
	require.NoError(t, err)
	assert.Equal(t, q1, q2)

	// A twin market replayed to the same date quotes identically.
	m2 := newMarket(7)
	require.NoError(t, m2.Advance(ctx, day(2026, time.January, 30)))
	q3, err := m2.GetQuote(ctx, sym)
	require.NoError(t, err)
	assert.Equal(t, q1, q3)
}

func TestMarket_QuoteMovesWithPath(t *testing.T) {
	ctx := context.Background()
	m := newMarket(7)
	require.NoError(t, m.Advance(ctx, day(2026, time.January, 30)))

	q1, err := m.GetQuote(ctx, "SPX|20260320|P|5000")
	require.NoError(t, err)

	require.NoError(t, m.Advance(ctx, day(2026, time.February, 27)))
	q2, err := m.GetQuote(ctx, "SPX|20260320|P|5000")
	require.NoError(t, err)

	assert.NotEqual(t, q1.Mid(), q2.Mid())
	assert.Equal(t, day(2026, time.February, 27), q2.Timestamp)
}

func TestMarket_QuoteShape(t *testing.T) {
	ctx := context.Background()
	m := newMarket(7)
	require.NoError(t, m.Advance(ctx, day(2026, time.January, 30)))

	q, err := m.GetQuote(ctx, "SPX|20260320|P|4800")
	require.NoError(t, err)
	assert.True(t, q.IsViable())
	assert.Greater(t, q.Ask, q.Bid)
	assert.GreaterOrEqual(t, q.Bid, 0.01)
	assert.GreaterOrEqual(t, q.BidSize, 5)
	assert.GreaterOrEqual(t, q.AskSize, 5)

	// 10% below spot: the call carries intrinsic the put does not.
	call, err := m.GetQuote(ctx, "SPX|20260320|C|4500")
	require.NoError(t, err)
	put, err := m.GetQuote(ctx, "SPX|20260320|P|4500")
	require.NoError(t, err)
	assert.Greater(t, call.Mid(), put.Mid())
}

func TestMarket_ParseErrors(t *testing.T) {
	ctx := context.Background()
	m := newMarket(7)

	for _, sym := range []string{
		"SPX",
		"SPX|banana|P|4800",
		"SPX|20260320|X|4800",
		"SPX|20260320|P|zero",
		"SPX|20260320|P|-5",
	} {
		_, err := m.GetQuote(ctx, sym)
		assert.Error(t, err, sym)
	}
}

func TestMarket_AdvanceDeterministic(t *testing.T) {
	ctx := context.Background()
	a, b := newMarket(9), newMarket(9)
	require.NoError(t, a.Advance(ctx, day(2026, time.March, 31)))
	require.NoError(t, b.Advance(ctx, day(2026, time.March, 31)))
	assert.Equal(t, a.Spot(), b.Spot())
	assert.Equal(t, a.Vol(), b.Vol())

	c := newMarket(10)
	require.NoError(t, c.Advance(ctx, day(2026, time.March, 31)))
	assert.NotEqual(t, a.Spot(), c.Spot())
}

func TestMarket_AdvanceRewindFails(t *testing.T) {
	ctx := context.Background()
	m := newMarket(7)
	require.NoError(t, m.Advance(ctx, day(2026, time.February, 2)))
	assert.Error(t, m.Advance(ctx, day(2026, time.January, 15)))
}

func TestMarket_StateRegimes(t *testing.T) {
	ctx := context.Background()

	for _, tc := range []struct {
		vol    float64
		regime domain.VolRegime
	}{
		{0.10, domain.VolLow},
		{0.16, domain.VolNormal},
		{0.25, domain.VolElevated},
		{0.40, domain.VolExtreme},
	} {
		m := synthetic.NewMarket(synthetic.MarketConfig{Vol: tc.vol, Seed: 7})
		state, err := m.GetMarketState(ctx)
		require.NoError(t, err)
		assert.Equal(t, tc.regime, state.VolRegime)
		assert.InDelta(t, tc.vol*100, state.VolIndex, 1e-9)
		assert.Zero(t, state.StressLevel)
	}
}

func TestMarket_EventCalendar(t *testing.T) {
	ctx := context.Background()

	stateOn := func(d time.Time) domain.MarketState {
		m := newMarket(7)
		require.NoError(t, m.Advance(ctx, d))
		state, err := m.GetMarketState(ctx)
		require.NoError(t, err)
		return state
	}

	// March 2026: CPI lands on Friday the 13th, FOMC on the 18th, OPEX on
	// the 20th.
	assert.Contains(t, stateOn(day(2026, time.March, 13)).ActiveEvents, domain.EventCPI)
	assert.Contains(t, stateOn(day(2026, time.March, 18)).ActiveEvents, domain.EventFOMC)
	assert.Contains(t, stateOn(day(2026, time.March, 20)).ActiveEvents, domain.EventOPEX)
	assert.Empty(t, stateOn(day(2026, time.March, 10)).ActiveEvents)

	// June 13th 2026 is a Saturday; the print shifts to Monday the 15th.
	assert.Contains(t, stateOn(day(2026, time.June, 15)).ActiveEvents, domain.EventCPI)

	// Ten days ahead of the March monthly.
	assert.Equal(t, 10, stateOn(day(2026, time.March, 10)).FrontDTE)
}

func TestMarket_TrailingReturnsWindow(t *testing.T) {
	ctx := context.Background()
	m := newMarket(7)

	assert.Empty(t, m.TrailingReturns(10))

	require.NoError(t, m.Advance(ctx, day(2026, time.January, 9))) // one week
	assert.Len(t, m.TrailingReturns(10), 5)

	require.NoError(t, m.Advance(ctx, day(2026, time.February, 27)))
	assert.Len(t, m.TrailingReturns(10), 10)
}
