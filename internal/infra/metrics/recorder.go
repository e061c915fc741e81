// Package metrics exposes sync outcomes as Prometheus collectors.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/xavierca1/crm-dwh-sync/internal/usecase"
)

var _ usecase.RunRecorder = (*Recorder)(nil)

type Recorder struct {
	phaseRuns      *prometheus.CounterVec
	phaseDuration  *prometheus.HistogramVec
	records        *prometheus.CounterVec
	lastSuccess    *prometheus.GaugeVec
	sourceRequests *prometheus.CounterVec
	sourceLatency  *prometheus.HistogramVec
}

// New registers the sync collectors with reg. Pass prometheus.DefaultRegisterer
// in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		phaseRuns: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crmsync_phase_runs_total",
				Help: "Sync phases finished, by entity and status",
			},
			[]string{"entity", "status"},
		),
		phaseDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crmsync_phase_duration_seconds",
				Help:    "Duration of sync phases in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"entity"},
		),
		records: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crmsync_records_total",
				Help: "Records seen per entity and step (extracted, unique, loaded)",
			},
			[]string{"entity", "step"},
		),
		lastSuccess: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "crmsync_last_success_timestamp_seconds",
				Help: "Unix time of the last successful phase per entity",
			},
			[]string{"entity"},
		),
		sourceRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crmsync_source_requests_total",
				Help: "Upstream API requests by object type and status class",
			},
			[]string{"object_type", "status"},
		),
		sourceLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crmsync_source_request_duration_seconds",
				Help:    "Upstream API request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"object_type"},
		),
	}
}

func (r *Recorder) ObservePhase(res usecase.PhaseResult) {
	kind := string(res.Entity)
	r.phaseRuns.WithLabelValues(kind, string(res.Status)).Inc()
	r.phaseDuration.WithLabelValues(kind).Observe(res.Duration.Seconds())
	r.records.WithLabelValues(kind, "extracted").Add(float64(res.Extracted))
	r.records.WithLabelValues(kind, "unique").Add(float64(res.Unique))
	r.records.WithLabelValues(kind, "loaded").Add(float64(res.Loaded))
	if !res.Failed() {
		r.lastSuccess.WithLabelValues(kind).Set(float64(time.Now().Unix()))
	}
}

// ObserveSourceRequest records one upstream attempt; status 0 means no
// response was received.
func (r *Recorder) ObserveSourceRequest(objectType string, status int, elapsed time.Duration) {
	r.sourceRequests.WithLabelValues(objectType, statusClass(status)).Inc()
	r.sourceLatency.WithLabelValues(objectType).Observe(elapsed.Seconds())
}

func statusClass(status int) string {
	if status <= 0 {
		return "error"
	}
	return fmt.Sprintf("%dxx", status/100)
}
