package ports

import (
	"context"
	"time"

	"github.com/quantfork/optsim/internal/domain"
)

// MarketDataProvider supplies quotes and broad market state for the current
// simulation date. Advance steps a replaying provider to the given date;
// providers backed by live snapshots may treat it as a no-op.
type MarketDataProvider interface {
	GetQuote(ctx context.Context, symbol string) (domain.Quote, error)
	GetMarketState(ctx context.Context) (domain.MarketState, error)
	Advance(ctx context.Context, date time.Time) error
}
