package ports

import (
	"context"

	"github.com/quantfork/optsim/internal/domain"
)

// ExecutionSink receives settled cycle results for persistence or display.
// Write-only: the orchestration core never reads back through it.
type ExecutionSink interface {
	RecordExecution(ctx context.Context, res domain.ExecutionResult) error
}
