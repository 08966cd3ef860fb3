package ports

import (
	"context"
	"time"

	"github.com/quantfork/optsim/internal/domain"
)

// ProbeSignalSource proposes small exploratory entries and reports the
// sentiment read derived from them. How candidates are constructed is the
// source's business; the executor only schedules and sizes them.
type ProbeSignalSource interface {
	GenerateProbeEntries(ctx context.Context, date time.Time, count int) ([]domain.EntryCandidate, error)
	GetSentiment(ctx context.Context) (domain.Sentiment, error)
}
