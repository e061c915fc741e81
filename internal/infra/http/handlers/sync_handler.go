package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/xavierca1/crm-dwh-sync/internal/usecase"
)

// SyncHandler runs a sync on demand and returns its summary.
type SyncHandler struct {
	runner      usecase.Runner
	rateLimiter *RateLimiter
	logger      *zap.Logger
}

func NewSyncHandler(runner usecase.Runner, limiter *RateLimiter, logger *zap.Logger) *SyncHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncHandler{runner: runner, rateLimiter: limiter, logger: logger}
}

func (h *SyncHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	if h.rateLimiter != nil && !h.rateLimiter.Allow(getClientIP(r)) {
		writeJSON(w, http.StatusTooManyRequests, Envelope{Message: "Too many sync requests. Please try again later."})
		return
	}

	summary := h.runner.Run(r.Context())

	if !summary.Succeeded() {
		h.logger.Warn("sync: on-demand run had failed phases",
			zap.String("run_id", summary.RunID),
			zap.Int("failed", len(summary.FailedPhases())),
		)
		writeJSON(w, http.StatusOK, Envelope{Message: "sync completed with failures", Data: summary})
		return
	}
	writeJSON(w, http.StatusOK, Envelope{Message: "sync completed", Data: summary})
}
