package usecase

import (
	"context"

	"go.uber.org/zap"

	"github.com/xavierca1/crm-dwh-sync/internal/entity"
)

// Loader writes transformed batches through the repository's upsert.
type Loader struct {
	repo      entity.Repository
	threshold entity.Cents
	logger    *zap.Logger
}

func NewLoader(repo entity.Repository, threshold entity.Cents, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{repo: repo, threshold: threshold, logger: logger}
}

func (l *Loader) LoadLeads(ctx context.Context, leads []entity.Lead) (int64, error) {
	rows := make([]entity.Row, 0, len(leads))
	for _, lead := range leads {
		rows = append(rows, lead.Row())
	}
	return l.load(ctx, entity.EntityLeads, entity.LeadsTable, rows)
}

// LoadDeals re-derives IsHighValue from the amount before writing so the
// stored flag always agrees with the stored amount.
func (l *Loader) LoadDeals(ctx context.Context, deals []entity.Deal) (int64, error) {
	rows := make([]entity.Row, 0, len(deals))
	for _, deal := range deals {
		deal.IsHighValue = entity.IsHighValue(deal.AmountUSD, l.threshold)
		rows = append(rows, deal.Row())
	}
	return l.load(ctx, entity.EntityDeals, entity.DealsTable, rows)
}

func (l *Loader) load(ctx context.Context, kind entity.EntityType, table entity.Table, rows []entity.Row) (int64, error) {
	log := l.logger.With(zap.String("entity", string(kind)), zap.String("table", table.Name))
	if len(rows) == 0 {
		log.Warn("load: nothing to load")
		return 0, nil
	}

	affected, err := l.repo.Upsert(ctx, table, rows)
	if err != nil {
		return 0, &entity.LoadError{Entity: kind, Cause: err}
	}

	log.Info("load: upsert complete",
		zap.Int("rows", len(rows)),
		zap.Int64("affected", affected),
	)
	return affected, nil
}
