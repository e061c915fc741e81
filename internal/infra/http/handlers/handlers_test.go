package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/xavierca1/crm-dwh-sync/internal/entity"
	"github.com/xavierca1/crm-dwh-sync/internal/usecase"
)

type MockReportService struct {
	mock.Mock
}

func (m *MockReportService) ConversionRate(ctx context.Context) (*usecase.ConversionReport, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.ConversionReport), args.Error(1)
}

func (m *MockReportService) DealPerformance(ctx context.Context) (*usecase.DealPerformanceReport, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.DealPerformanceReport), args.Error(1)
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

type fakeBroker struct{ closed bool }

func (f fakeBroker) IsClosed() bool { return f.closed }

type fakeRunner struct {
	summary usecase.RunSummary
	calls   int
}

func (f *fakeRunner) Run(context.Context) usecase.RunSummary {
	f.calls++
	return f.summary
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestReportHandler_Conversion(t *testing.T) {
	svc := new(MockReportService)
	svc.On("ConversionRate", mock.Anything).Return(&usecase.ConversionReport{
		TotalLeads:               3,
		TotalCustomers:           2,
		ConversionRatePercentage: 66.67,
	}, nil)

	rec := httptest.NewRecorder()
	NewReportHandler(svc, nil).Conversion(rec, httptest.NewRequest(http.MethodGet, "/analytics/conversion", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	body := decode(t, rec)
	assert.Equal(t, "Lead conversion report", body["message"])
	data := body["data"].(map[string]any)
	assert.Equal(t, 3.0, data["total_leads"])
	assert.Equal(t, 66.67, data["conversion_rate_percentage"])
	svc.AssertExpectations(t)
}

func TestReportHandler_DealsPerformance(t *testing.T) {
	svc := new(MockReportService)
	svc.On("DealPerformance", mock.Anything).Return(&usecase.DealPerformanceReport{
		StageSummary: []usecase.StageSummary{{Stage: "closedwon", Count: 2, TotalAmount: "65000.00"}},
		HighValueAnalysis: usecase.HighValueAnalysis{
			TotalAmountHighValueDeals: "65000.00",
			ThresholdUSD:              10000,
		},
	}, nil)

	rec := httptest.NewRecorder()
	NewReportHandler(svc, nil).DealsPerformance(rec, httptest.NewRequest(http.MethodGet, "/analytics/deals-performance", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	data := decode(t, rec)["data"].(map[string]any)
	stages := data["stage_summary"].([]any)
	require.Len(t, stages, 1)
	assert.Equal(t, "65000.00", stages[0].(map[string]any)["total_amount"])
	assert.Equal(t, 10000.0, data["high_value_analysis"].(map[string]any)["threshold_usd"])
}

func TestReportHandler_Failure(t *testing.T) {
	svc := new(MockReportService)
	svc.On("ConversionRate", mock.Anything).Return(nil, errors.New("db down"))
	svc.On("DealPerformance", mock.Anything).Return(nil, errors.New("db down"))
	h := NewReportHandler(svc, nil)

	rec := httptest.NewRecorder()
	h.Conversion(rec, httptest.NewRequest(http.MethodGet, "/analytics/conversion", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "failed to build conversion report", decode(t, rec)["message"])
	assert.NotContains(t, rec.Body.String(), "db down")

	rec = httptest.NewRecorder()
	h.DealsPerformance(rec, httptest.NewRequest(http.MethodGet, "/analytics/deals-performance", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name     string
		store    Pinger
		broker   BrokerState
		wantCode int
		wantDeps map[string]any
	}{
		{
			name:     "all healthy",
			store:    fakePinger{},
			broker:   fakeBroker{},
			wantCode: http.StatusOK,
			wantDeps: map[string]any{"database": "healthy", "rabbitmq": "healthy", "source": "fixture"},
		},
		{
			name:     "broker disabled",
			store:    fakePinger{},
			wantCode: http.StatusOK,
			wantDeps: map[string]any{"database": "healthy", "rabbitmq": "not configured", "source": "fixture"},
		},
		{
			name:     "database down",
			store:    fakePinger{err: errors.New("refused")},
			wantCode: http.StatusServiceUnavailable,
			wantDeps: map[string]any{"database": "unhealthy: refused", "rabbitmq": "not configured", "source": "fixture"},
		},
		{
			name:     "broker closed",
			store:    fakePinger{},
			broker:   fakeBroker{closed: true},
			wantCode: http.StatusServiceUnavailable,
			wantDeps: map[string]any{"database": "healthy", "rabbitmq": "unhealthy: connection closed", "source": "fixture"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(tt.store, tt.broker, "fixture", "test")
			rec := httptest.NewRecorder()

			h.Handle(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.wantCode, rec.Code)
			body := decode(t, rec)
			assert.Equal(t, tt.wantDeps, body["dependencies"])
		})
	}
}

func TestSyncHandler_Trigger(t *testing.T) {
	runner := &fakeRunner{summary: usecase.RunSummary{
		RunID: "run-1",
		Phases: []usecase.PhaseResult{
			{Entity: entity.EntityLeads, Status: usecase.PhaseOK, Loaded: 3},
			{Entity: entity.EntityDeals, Status: usecase.PhaseFailed, Step: usecase.StepExtract, Error: "boom"},
		},
	}}
	h := NewSyncHandler(runner, nil, nil)

	rec := httptest.NewRecorder()
	h.Trigger(rec, httptest.NewRequest(http.MethodPost, "/sync", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "sync completed with failures", body["message"])
	assert.Equal(t, "run-1", body["data"].(map[string]any)["run_id"])
	assert.Equal(t, 1, runner.calls)
}

func TestSyncHandler_RateLimited(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runner := &fakeRunner{}
	h := NewSyncHandler(runner, NewRateLimiter(ctx, 1, time.Minute), nil)

	first := httptest.NewRecorder()
	h.Trigger(first, httptest.NewRequest(http.MethodPost, "/sync", nil))
	second := httptest.NewRecorder()
	h.Trigger(second, httptest.NewRequest(http.MethodPost, "/sync", nil))

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, 1, runner.calls)
}

func TestRateLimiter_WindowResets(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(ctx, 2, time.Minute)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"))

	now = now.Add(2 * time.Minute)
	assert.True(t, rl.Allow("a"))
}

func TestGetClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:5555"
	assert.Equal(t, "10.0.0.1", getClientIP(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	r.Header.Set("X-Real-IP", "203.0.113.10")
	assert.Equal(t, "10.0.0.1", getClientIP(r))
}

func TestSyncHandler_RateLimitIgnoresForwardedHeaders(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runner := &fakeRunner{}
	h := NewSyncHandler(runner, NewRateLimiter(ctx, 1, time.Minute), nil)

	codes := make([]int, 0, 3)
	for _, xff := range []string{"198.51.100.1", "198.51.100.2", "198.51.100.3"} {
		r := httptest.NewRequest(http.MethodPost, "/sync", nil)
		r.RemoteAddr = "192.0.2.7:40000"
		r.Header.Set("X-Forwarded-For", xff)
		rec := httptest.NewRecorder()
		h.Trigger(rec, r)
		codes = append(codes, rec.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests, http.StatusTooManyRequests}, codes)
	assert.Equal(t, 1, runner.calls)
}
