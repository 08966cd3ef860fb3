package fill

import "github.com/quantfork/optsim/internal/domain"

// WorstCase returns the single deterministic pessimistic fill price for an
// order under a profile: the far touch shifted by the full slippage stack
// at this order's actual size. No mid-fill improvement, no randomness.
//
// Event overrides are excluded: the bound describes the event-free regime,
// and the function deliberately takes no market state. Adverse selection is
// included so every price Simulate can produce is bounded by this one.
func WorstCase(order domain.Order, quote domain.Quote, profile domain.ExecutionProfile) (float64, error) {
	if err := usable(order, quote); err != nil {
		return 0, err
	}

	slip := slippageTotal(order, quote, profile, 1)
	price := quote.FarTouch(order.Side)
	if order.Side == domain.Buy {
		return price + slip, nil
	}
	price -= slip
	if price < minPrice {
		price = minPrice
	}
	return price, nil
}

// WorstCaseDebit returns the pessimistic cash impact per contract of the
// order: positive for buys (cash out), negative for sells (cash in, at the
// least favorable price). Used when costing multi-leg candidates.
func WorstCaseDebit(order domain.Order, quote domain.Quote, profile domain.ExecutionProfile) (float64, error) {
	price, err := WorstCase(order, quote, profile)
	if err != nil {
		return 0, err
	}
	if order.Side == domain.Buy {
		return price, nil
	}
	return -price, nil
}
