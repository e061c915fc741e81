package usecase

import (
	"context"

	"github.com/xavierca1/crm-dwh-sync/internal/entity"
)

// Source extracts every upstream record of one entity type. Implementations
// return either the complete collection or an error, never a partial batch.
type Source interface {
	FetchLeads(ctx context.Context) ([]entity.RawLead, error)
	FetchDeals(ctx context.Context) ([]entity.RawDeal, error)
}

// RunNotifier is told about every finished run.
type RunNotifier interface {
	NotifyRunCompleted(ctx context.Context, summary RunSummary) error
}

// RunRecorder receives phase outcomes for metrics.
type RunRecorder interface {
	ObservePhase(result PhaseResult)
}

// Runner triggers one sync run. The scheduler, the queue worker and the CLI
// all depend on this instead of the concrete use case.
type Runner interface {
	Run(ctx context.Context) RunSummary
}
