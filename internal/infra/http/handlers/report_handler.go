package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/xavierca1/crm-dwh-sync/internal/usecase"
)

type ReportService interface {
	ConversionRate(ctx context.Context) (*usecase.ConversionReport, error)
	DealPerformance(ctx context.Context) (*usecase.DealPerformanceReport, error)
}

type ReportHandler struct {
	reports ReportService
	logger  *zap.Logger
}

func NewReportHandler(reports ReportService, logger *zap.Logger) *ReportHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportHandler{reports: reports, logger: logger}
}

func (h *ReportHandler) Conversion(w http.ResponseWriter, r *http.Request) {
	report, err := h.reports.ConversionRate(r.Context())
	if err != nil {
		h.logger.Error("report: conversion failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Envelope{Message: "failed to build conversion report"})
		return
	}
	writeJSON(w, http.StatusOK, Envelope{Message: "Lead conversion report", Data: report})
}

func (h *ReportHandler) DealsPerformance(w http.ResponseWriter, r *http.Request) {
	report, err := h.reports.DealPerformance(r.Context())
	if err != nil {
		h.logger.Error("report: deal performance failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Envelope{Message: "failed to build deal performance report"})
		return
	}
	writeJSON(w, http.StatusOK, Envelope{Message: "Deal performance report", Data: report})
}
