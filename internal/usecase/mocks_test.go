package usecase

import (
	"context"
	"sync/atomic"

	"github.com/stretchr/testify/mock"

	"github.com/xavierca1/crm-dwh-sync/internal/entity"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Upsert(ctx context.Context, table entity.Table, rows []entity.Row) (int64, error) {
	args := m.Called(ctx, table, rows)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRepository) Count(ctx context.Context, table string, filter entity.Filter) (int64, error) {
	args := m.Called(ctx, table, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRepository) Aggregate(ctx context.Context, table, groupBy, sumColumn string, filter entity.Filter) ([]entity.AggregateRow, error) {
	args := m.Called(ctx, table, groupBy, sumColumn, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.AggregateRow), args.Error(1)
}

type MockSource struct {
	mock.Mock
}

func (m *MockSource) FetchLeads(ctx context.Context) ([]entity.RawLead, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.RawLead), args.Error(1)
}

func (m *MockSource) FetchDeals(ctx context.Context) ([]entity.RawDeal, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.RawDeal), args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) NotifyRunCompleted(ctx context.Context, summary RunSummary) error {
	args := m.Called(ctx, summary)
	return args.Error(0)
}

// gatedSource blocks the first FetchLeads call until release is closed and
// reports every FetchLeads entry on entered.
type gatedSource struct {
	calls   atomic.Int32
	entered chan int32
	release chan struct{}
}

func newGatedSource() *gatedSource {
	return &gatedSource{entered: make(chan int32, 4), release: make(chan struct{})}
}

func (g *gatedSource) FetchLeads(ctx context.Context) ([]entity.RawLead, error) {
	n := g.calls.Add(1)
	g.entered <- n
	if n == 1 {
		<-g.release
	}
	return sampleRawLeads(), nil
}

func (g *gatedSource) FetchDeals(context.Context) ([]entity.RawDeal, error) {
	return sampleRawDeals(), nil
}

type recordingRecorder struct {
	phases []PhaseResult
}

func (r *recordingRecorder) ObservePhase(result PhaseResult) {
	r.phases = append(r.phases, result)
}
