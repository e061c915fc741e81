package usecase

import (
	"time"

	"github.com/xavierca1/crm-dwh-sync/internal/entity"
)

type PhaseStatus string

const (
	PhaseOK     PhaseStatus = "ok"
	PhaseFailed PhaseStatus = "failed"
)

// Step is a stage inside one phase.
type Step string

const (
	StepExtract   Step = "extract"
	StepDedupe    Step = "dedupe"
	StepTransform Step = "transform"
	StepLoad      Step = "load"
)

// PhaseResult is the outcome of syncing one entity type. Step is the last step
// entered, so on failure it names the step that failed.
type PhaseResult struct {
	Entity    entity.EntityType `json:"entity"`
	Status    PhaseStatus       `json:"status"`
	Step      Step              `json:"step"`
	Extracted int               `json:"extracted"`
	Unique    int               `json:"unique"`
	Loaded    int64             `json:"loaded"`
	Duration  time.Duration     `json:"duration_ns"`
	Error     string            `json:"error,omitempty"`
	Err       error             `json:"-"`
}

func (r PhaseResult) Failed() bool { return r.Status == PhaseFailed }

type RunSummary struct {
	RunID      string        `json:"run_id"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Phases     []PhaseResult `json:"phases"`
}

// Succeeded reports whether every phase finished without error.
func (s RunSummary) Succeeded() bool {
	return len(s.FailedPhases()) == 0
}

func (s RunSummary) FailedPhases() []PhaseResult {
	var failed []PhaseResult
	for _, p := range s.Phases {
		if p.Failed() {
			failed = append(failed, p)
		}
	}
	return failed
}

func (s RunSummary) Phase(kind entity.EntityType) (PhaseResult, bool) {
	for _, p := range s.Phases {
		if p.Entity == kind {
			return p, true
		}
	}
	return PhaseResult{}, false
}

// ConversionReport is the lead-to-customer conversion summary.
type ConversionReport struct {
	TotalLeads               int64   `json:"total_leads"`
	TotalCustomers           int64   `json:"total_customers"`
	ConversionRatePercentage float64 `json:"conversion_rate_percentage"`
	Details                  string  `json:"details"`
}

type StageSummary struct {
	Stage       string `json:"stage"`
	Count       int64  `json:"count"`
	TotalAmount string `json:"total_amount"`
}

type HighValueAnalysis struct {
	TotalAmountHighValueDeals string  `json:"total_amount_high_value_deals"`
	ThresholdUSD              float64 `json:"threshold_usd"`
}

// DealPerformanceReport aggregates deal amounts per stage.
type DealPerformanceReport struct {
	StageSummary      []StageSummary    `json:"stage_summary"`
	HighValueAnalysis HighValueAnalysis `json:"high_value_analysis"`
	Details           string            `json:"details"`
}
