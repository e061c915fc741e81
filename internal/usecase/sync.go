package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xavierca1/crm-dwh-sync/internal/entity"
)

// SyncUseCase runs the leads and deals pipelines. A failing phase never stops
// its sibling, and Run itself never fails: callers inspect the summary.
type SyncUseCase struct {
	source      Source
	transformer *Transformer
	loader      *Loader
	notifiers   []RunNotifier
	recorder    RunRecorder
	concurrent  bool
	logger      *zap.Logger

	// runs are serialized so two batches never upsert the same key at once.
	mu sync.Mutex
}

type SyncOption func(*SyncUseCase)

// WithConcurrentPhases runs the two phases in parallel. They share no mutable
// state and write to different tables.
func WithConcurrentPhases(enabled bool) SyncOption {
	return func(uc *SyncUseCase) { uc.concurrent = enabled }
}

func WithNotifiers(notifiers ...RunNotifier) SyncOption {
	return func(uc *SyncUseCase) { uc.notifiers = append(uc.notifiers, notifiers...) }
}

func WithRecorder(recorder RunRecorder) SyncOption {
	return func(uc *SyncUseCase) { uc.recorder = recorder }
}

func NewSyncUseCase(
	source Source,
	transformer *Transformer,
	loader *Loader,
	logger *zap.Logger,
	opts ...SyncOption,
) *SyncUseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	uc := &SyncUseCase{
		source:      source,
		transformer: transformer,
		loader:      loader,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

type phase struct {
	entity entity.EntityType
	run    func(ctx context.Context, res *PhaseResult) error
}

func (uc *SyncUseCase) Run(ctx context.Context) RunSummary {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	summary := RunSummary{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
	log := uc.logger.With(zap.String("run_id", summary.RunID))
	log.Info("sync: run started", zap.Bool("concurrent", uc.concurrent))

	phases := []phase{
		{entity: entity.EntityLeads, run: uc.syncLeads},
		{entity: entity.EntityDeals, run: uc.syncDeals},
	}
	results := make([]PhaseResult, len(phases))

	if uc.concurrent {
		var g errgroup.Group
		for i, p := range phases {
			i, p := i, p
			g.Go(func() error {
				results[i] = uc.runPhase(ctx, log, p)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i, p := range phases {
			results[i] = uc.runPhase(ctx, log, p)
		}
	}

	summary.Phases = results
	summary.FinishedAt = time.Now().UTC()

	if uc.recorder != nil {
		for _, res := range results {
			uc.recorder.ObservePhase(res)
		}
	}

	log.Info("sync: run finished",
		zap.Bool("succeeded", summary.Succeeded()),
		zap.Int("failed_phases", len(summary.FailedPhases())),
		zap.Duration("duration", summary.FinishedAt.Sub(summary.StartedAt)),
	)

	uc.notify(ctx, log, summary)
	return summary
}

func (uc *SyncUseCase) runPhase(ctx context.Context, log *zap.Logger, p phase) PhaseResult {
	res := PhaseResult{Entity: p.entity, Status: PhaseOK}
	log = log.With(zap.String("phase", string(p.entity)))
	log.Info("sync: phase started")

	start := time.Now()
	err := recoverPhase(func() error { return p.run(ctx, &res) })
	res.Duration = time.Since(start)

	if err != nil {
		res.Status = PhaseFailed
		res.Err = err
		res.Error = err.Error()
		log.Error("sync: phase failed",
			zap.String("step", string(res.Step)),
			zap.Duration("duration", res.Duration),
			zap.Error(err),
		)
		return res
	}

	log.Info("sync: phase complete",
		zap.Int("extracted", res.Extracted),
		zap.Int("unique", res.Unique),
		zap.Int64("loaded", res.Loaded),
		zap.Duration("duration", res.Duration),
	)
	return res
}

func (uc *SyncUseCase) syncLeads(ctx context.Context, res *PhaseResult) error {
	res.Step = StepExtract
	raws, err := uc.source.FetchLeads(ctx)
	if err != nil {
		return err
	}
	res.Extracted = len(raws)

	res.Step = StepDedupe
	unique := Dedupe(raws, rawLeadKey)
	res.Unique = len(unique)

	res.Step = StepTransform
	leads := uc.transformer.TransformLeads(unique)

	res.Step = StepLoad
	loaded, err := uc.loader.LoadLeads(ctx, leads)
	if err != nil {
		return err
	}
	res.Loaded = loaded
	return nil
}

func (uc *SyncUseCase) syncDeals(ctx context.Context, res *PhaseResult) error {
	res.Step = StepExtract
	raws, err := uc.source.FetchDeals(ctx)
	if err != nil {
		return err
	}
	res.Extracted = len(raws)

	res.Step = StepDedupe
	unique := Dedupe(raws, rawDealKey)
	res.Unique = len(unique)

	res.Step = StepTransform
	deals := uc.transformer.TransformDeals(unique)

	res.Step = StepLoad
	loaded, err := uc.loader.LoadDeals(ctx, deals)
	if err != nil {
		return err
	}
	res.Loaded = loaded
	return nil
}

func (uc *SyncUseCase) notify(ctx context.Context, log *zap.Logger, summary RunSummary) {
	for _, n := range uc.notifiers {
		if err := n.NotifyRunCompleted(ctx, summary); err != nil {
			log.Warn("sync: notifier failed", zap.Error(err))
		}
	}
}

// recoverPhase turns a panic inside a phase into that phase's error.
func recoverPhase(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
