package ports

import (
	"context"
	"time"

	"github.com/quantfork/optsim/internal/domain"
)

// HedgeManager sizes and proposes portfolio protection. The adjustment
// signal may be nil, meaning hold the current hedges.
type HedgeManager interface {
	CalculateHedgeRequirement(ctx context.Context, exposure, volLevel float64, state domain.MarketState) (domain.HedgeRequirement, error)
	GetHedgeAdjustmentSignal(ctx context.Context, activeHedges []domain.Position, volLevel float64) (*domain.HedgeSignal, error)
	GenerateHedges(ctx context.Context, req domain.HedgeRequirement, date time.Time) ([]domain.HedgeCandidate, error)
}
