package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/xavierca1/crm-dwh-sync/internal/entity"
	"github.com/xavierca1/crm-dwh-sync/internal/usecase"
)

func TestRecorder_ObservePhase(t *testing.T) {
	rec := New(prometheus.NewRegistry())

	rec.ObservePhase(usecase.PhaseResult{
		Entity:    entity.EntityLeads,
		Status:    usecase.PhaseOK,
		Extracted: 4,
		Unique:    3,
		Loaded:    3,
		Duration:  120 * time.Millisecond,
	})
	rec.ObservePhase(usecase.PhaseResult{
		Entity: entity.EntityDeals,
		Status: usecase.PhaseFailed,
		Step:   usecase.StepExtract,
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(rec.phaseRuns.WithLabelValues("leads", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.phaseRuns.WithLabelValues("deals", "failed")))
	assert.Equal(t, 4.0, testutil.ToFloat64(rec.records.WithLabelValues("leads", "extracted")))
	assert.Equal(t, 3.0, testutil.ToFloat64(rec.records.WithLabelValues("leads", "loaded")))
	assert.Greater(t, testutil.ToFloat64(rec.lastSuccess.WithLabelValues("leads")), 0.0)
	assert.Equal(t, 0.0, testutil.ToFloat64(rec.lastSuccess.WithLabelValues("deals")))
}

func TestRecorder_ObserveSourceRequest(t *testing.T) {
	rec := New(prometheus.NewRegistry())

	rec.ObserveSourceRequest("contacts", 200, time.Millisecond)
	rec.ObserveSourceRequest("contacts", 503, time.Millisecond)
	rec.ObserveSourceRequest("contacts", 502, time.Millisecond)
	rec.ObserveSourceRequest("deals", 0, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(rec.sourceRequests.WithLabelValues("contacts", "2xx")))
	assert.Equal(t, 2.0, testutil.ToFloat64(rec.sourceRequests.WithLabelValues("contacts", "5xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.sourceRequests.WithLabelValues("deals", "error")))
}
