package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/xavierca1/crm-dwh-sync/internal/entity"
	"github.com/xavierca1/crm-dwh-sync/internal/infra/memstore"
)

func seededStore(t *testing.T) *memstore.Store {
	t.Helper()
	ctx := context.Background()
	store := memstore.New()
	tr := newTestTransformer()
	loader := NewLoader(store, tr.HighValueThreshold, nil)

	_, err := loader.LoadLeads(ctx, tr.TransformLeads(Dedupe(sampleRawLeads(), rawLeadKey)))
	require.NoError(t, err)
	_, err = loader.LoadLeads(ctx, tr.TransformLeads([]entity.RawLead{{ID: "L1003", LifecycleStage: "lead"}}))
	require.NoError(t, err)
	_, err = loader.LoadDeals(ctx, tr.TransformDeals(sampleRawDeals()))
	require.NoError(t, err)
	return store
}

func TestConversionRate(t *testing.T) {
	uc := NewReportUseCase(seededStore(t), entity.DefaultHighValueThreshold, nil)

	report, err := uc.ConversionRate(context.Background())

	require.NoError(t, err)
	assert.EqualValues(t, 3, report.TotalLeads)
	assert.EqualValues(t, 2, report.TotalCustomers)
	assert.Equal(t, 66.67, report.ConversionRatePercentage)
}

func TestConversionRateEmpty(t *testing.T) {
	uc := NewReportUseCase(memstore.New(), entity.DefaultHighValueThreshold, nil)

	report, err := uc.ConversionRate(context.Background())

	require.NoError(t, err)
	assert.Zero(t, report.TotalLeads)
	assert.Zero(t, report.ConversionRatePercentage)
}

func TestDealPerformance(t *testing.T) {
	uc := NewReportUseCase(seededStore(t), entity.DefaultHighValueThreshold, nil)

	report, err := uc.DealPerformance(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []StageSummary{
		{Stage: "closedwon", Count: 2, TotalAmount: "65000.00"},
		{Stage: "negotiation", Count: 1, TotalAmount: "5000.00"},
	}, report.StageSummary)
	assert.Equal(t, "65000.00", report.HighValueAnalysis.TotalAmountHighValueDeals)
	assert.Equal(t, 10000.0, report.HighValueAnalysis.ThresholdUSD)
}

func TestReportPropagatesStorageError(t *testing.T) {
	repo := new(MockRepository)
	repo.On("Count", mock.Anything, entity.LeadsTable.Name, mock.Anything).Return(int64(0), assert.AnError)
	repo.On("Aggregate", mock.Anything, entity.DealsTable.Name, "stage", "amount_usd", mock.Anything).Return(nil, assert.AnError)
	uc := NewReportUseCase(repo, entity.DefaultHighValueThreshold, nil)

	_, err := uc.ConversionRate(context.Background())
	assert.ErrorIs(t, err, assert.AnError)

	_, err = uc.DealPerformance(context.Background())
	assert.ErrorIs(t, err, assert.AnError)
}
