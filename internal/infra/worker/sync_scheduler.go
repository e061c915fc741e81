package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/xavierca1/crm-dwh-sync/internal/usecase"
)

// SyncScheduler triggers a run every interval until its context ends.
type SyncScheduler struct {
	runner       usecase.Runner
	tickInterval time.Duration
	// RunImmediately fires one run before the first tick.
	RunImmediately bool
	logger         *zap.Logger
}

func NewSyncScheduler(runner usecase.Runner, interval time.Duration, logger *zap.Logger) *SyncScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncScheduler{
		runner:       runner,
		tickInterval: interval,
		logger:       logger,
	}
}

// Start blocks until ctx is done. A non-positive interval disables ticking.
func (w *SyncScheduler) Start(ctx context.Context) {
	if w.tickInterval <= 0 {
		w.logger.Info("scheduler: periodic sync disabled")
		if w.RunImmediately {
			w.runOnce(ctx)
		}
		return
	}

	w.logger.Info("scheduler: started", zap.Duration("interval", w.tickInterval))

	ticker := time.NewTicker(w.tickInterval)
	defer ticker.Stop()

	if w.RunImmediately {
		w.runOnce(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("scheduler: stopped")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *SyncScheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	summary := w.runner.Run(ctx)
	if !summary.Succeeded() {
		w.logger.Warn("scheduler: run finished with failed phases",
			zap.String("run_id", summary.RunID),
			zap.Int("failed", len(summary.FailedPhases())),
		)
		return
	}
	w.logger.Info("scheduler: run finished", zap.String("run_id", summary.RunID))
}
