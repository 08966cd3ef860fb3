package ports

import (
	"context"
	"time"

	"github.com/quantfork/optsim/internal/domain"
)

// CoreSignalSource builds the primary income structure for a cycle.
// A nil candidate with nil error means no suitable structure exists today.
type CoreSignalSource interface {
	BuildCoreCandidate(ctx context.Context, date time.Time, spot float64, sentiment domain.Sentiment) (*domain.EntryCandidate, error)
}
