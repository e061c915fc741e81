package usecase

import (
	"context"
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/xavierca1/crm-dwh-sync/internal/entity"
)

// ReportUseCase aggregates stored leads and deals. It only reads through
// Count and Aggregate.
type ReportUseCase struct {
	repo      entity.Repository
	threshold entity.Cents
	logger    *zap.Logger
}

func NewReportUseCase(repo entity.Repository, threshold entity.Cents, logger *zap.Logger) *ReportUseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportUseCase{repo: repo, threshold: threshold, logger: logger}
}

func (uc *ReportUseCase) ConversionRate(ctx context.Context) (*ConversionReport, error) {
	uc.logger.Debug("report: conversion rate")

	total, err := uc.repo.Count(ctx, entity.LeadsTable.Name, nil)
	if err != nil {
		return nil, eris.Wrap(err, "count leads")
	}
	customers, err := uc.repo.Count(ctx, entity.LeadsTable.Name, entity.Filter{
		"lifecycle_stage": entity.LifecycleStageCustomer,
	})
	if err != nil {
		return nil, eris.Wrap(err, "count customers")
	}

	rate := 0.0
	if total > 0 {
		rate = math.Round(float64(customers)/float64(total)*100*100) / 100
	}

	return &ConversionReport{
		TotalLeads:               total,
		TotalCustomers:           customers,
		ConversionRatePercentage: rate,
		Details:                  "Computed over all leads stored in the warehouse.",
	}, nil
}

func (uc *ReportUseCase) DealPerformance(ctx context.Context) (*DealPerformanceReport, error) {
	uc.logger.Debug("report: deal performance")

	groups, err := uc.repo.Aggregate(ctx, entity.DealsTable.Name, "stage", "amount_usd", nil)
	if err != nil {
		return nil, eris.Wrap(err, "aggregate deals by stage")
	}
	highValue, err := uc.repo.Aggregate(ctx, entity.DealsTable.Name, "", "amount_usd", entity.Filter{
		"is_high_value": true,
	})
	if err != nil {
		return nil, eris.Wrap(err, "aggregate high value deals")
	}

	stages := make([]StageSummary, 0, len(groups))
	for _, g := range groups {
		stages = append(stages, StageSummary{
			Stage:       g.Group,
			Count:       g.Count,
			TotalAmount: g.Sum.String(),
		})
	}

	var highValueTotal entity.Cents
	if len(highValue) > 0 {
		highValueTotal = highValue[0].Sum
	}

	return &DealPerformanceReport{
		StageSummary: stages,
		HighValueAnalysis: HighValueAnalysis{
			TotalAmountHighValueDeals: highValueTotal.String(),
			ThresholdUSD:              uc.threshold.Float64(),
		},
		Details: "Deal amounts aggregated from the warehouse.",
	}, nil
}
