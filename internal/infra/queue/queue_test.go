package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xavierca1/crm-dwh-sync/internal/entity"
	"github.com/xavierca1/crm-dwh-sync/internal/usecase"
)

type published struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type fakePublisher struct {
	sent []published
	err  error
}

func (f *fakePublisher) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, published{exchange: exchange, key: key, msg: msg})
	return nil
}

type fakeAck struct {
	acks, nacks int
	requeued    bool
}

func (f *fakeAck) Ack(uint64, bool) error { f.acks++; return nil }
func (f *fakeAck) Nack(_ uint64, _ bool, requeue bool) error {
	f.nacks++
	f.requeued = requeue
	return nil
}
func (f *fakeAck) Reject(uint64, bool) error { return nil }

type signalAck struct{ acked chan struct{} }

func (s signalAck) Ack(uint64, bool) error { s.acked <- struct{}{}; return nil }
func (s signalAck) Nack(uint64, bool, bool) error { return nil }
func (s signalAck) Reject(uint64, bool) error { return nil }

type countingRunner struct{ runs int }

func (r *countingRunner) Run(context.Context) usecase.RunSummary {
	r.runs++
	return usecase.RunSummary{RunID: "run-x"}
}

type fakeConsumer struct {
	deliveries chan amqp.Delivery
	err        error
}

func (f *fakeConsumer) Consume(string, string, bool, bool, bool, bool, amqp.Table) (<-chan amqp.Delivery, error) {
	return f.deliveries, f.err
}

type recordingTopology struct {
	exchanges []string
	queues    map[string]amqp.Table
	bindings  []string
}

func (r *recordingTopology) ExchangeDeclare(name, _ string, _, _, _, _ bool, _ amqp.Table) error {
	r.exchanges = append(r.exchanges, name)
	return nil
}

func (r *recordingTopology) QueueDeclare(name string, _, _, _, _ bool, args amqp.Table) (amqp.Queue, error) {
	if r.queues == nil {
		r.queues = map[string]amqp.Table{}
	}
	r.queues[name] = args
	return amqp.Queue{Name: name}, nil
}

func (r *recordingTopology) QueueBind(name, key, exchange string, _ bool, _ amqp.Table) error {
	r.bindings = append(r.bindings, exchange+"/"+key+"->"+name)
	return nil
}

func TestSetupTopology(t *testing.T) {
	topo := &recordingTopology{}

	require.NoError(t, setupTopology(topo))

	assert.ElementsMatch(t, []string{DLXName, ExchangeName}, topo.exchanges)
	assert.Equal(t, DLXName, topo.queues[RequestQueue]["x-dead-letter-exchange"])
	assert.Contains(t, topo.queues, RequestDLQ)
	assert.Contains(t, topo.bindings, "ex.crm-sync/k.sync.request->q.crm-sync.requests")
	assert.Contains(t, topo.bindings, "ex.crm-sync.dlx/k.sync.request->q.crm-sync.requests.dlq")
}

func TestProducer_NotifyRunCompleted(t *testing.T) {
	pub := &fakePublisher{}
	started := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	summary := usecase.RunSummary{
		RunID:      "run-1",
		StartedAt:  started,
		FinishedAt: started.Add(2 * time.Second),
		Phases: []usecase.PhaseResult{
			{Entity: entity.EntityLeads, Status: usecase.PhaseOK, Step: usecase.StepLoad, Extracted: 4, Unique: 3, Loaded: 3, Duration: 1500 * time.Millisecond},
			{Entity: entity.EntityDeals, Status: usecase.PhaseFailed, Step: usecase.StepExtract, Error: "source unavailable"},
		},
	}

	require.NoError(t, NewProducer(pub).NotifyRunCompleted(context.Background(), summary))

	require.Len(t, pub.sent, 1)
	assert.Equal(t, ExchangeName, pub.sent[0].exchange)
	assert.Equal(t, CompletedRoutingKey, pub.sent[0].key)
	assert.Equal(t, "run-1", pub.sent[0].msg.MessageId)
	assert.Equal(t, amqp.Persistent, pub.sent[0].msg.DeliveryMode)

	var ev RunCompletedEvent
	require.NoError(t, json.Unmarshal(pub.sent[0].msg.Body, &ev))
	assert.False(t, ev.Succeeded)
	require.Len(t, ev.Phases, 2)
	assert.Equal(t, int64(1500), ev.Phases[0].DurationMs)
	assert.Equal(t, "extract", ev.Phases[1].Step)
}

func TestProducer_PublishError(t *testing.T) {
	pub := &fakePublisher{err: errors.New("channel closed")}

	err := NewProducer(pub).NotifyRunCompleted(context.Background(), usecase.RunSummary{RunID: "r"})

	assert.ErrorContains(t, err, "channel closed")
}

func TestProducer_PublishSyncRequest(t *testing.T) {
	pub := &fakePublisher{}

	id, err := NewProducer(pub).PublishSyncRequest(context.Background(), "cli")

	require.NoError(t, err)
	require.Len(t, pub.sent, 1)
	assert.Equal(t, RequestRoutingKey, pub.sent[0].key)
	var req SyncRequest
	require.NoError(t, json.Unmarshal(pub.sent[0].msg.Body, &req))
	assert.Equal(t, id, req.RequestID)
	assert.Equal(t, "cli", req.RequestedBy)
}

func TestWorker_Handle(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantRuns  int
		wantAcks  int
		wantNacks int
	}{
		{"valid request", `{"request_id":"abc","requested_by":"cron"}`, 1, 1, 0},
		{"empty body", ``, 1, 1, 0},
		{"malformed", `{not json`, 0, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &countingRunner{}
			ack := &fakeAck{}
			w := NewWorker(nil, runner, nil)

			w.handle(context.Background(), amqp.Delivery{Acknowledger: ack, Body: []byte(tt.body)})

			assert.Equal(t, tt.wantRuns, runner.runs)
			assert.Equal(t, tt.wantAcks, ack.acks)
			assert.Equal(t, tt.wantNacks, ack.nacks)
			assert.False(t, ack.requeued)
		})
	}
}

func TestWorker_StartStopsOnContext(t *testing.T) {
	deliveries := make(chan amqp.Delivery, 1)
	runner := &countingRunner{}
	ack := signalAck{acked: make(chan struct{}, 1)}
	deliveries <- amqp.Delivery{Acknowledger: ack, Body: []byte(`{}`)}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewWorker(&fakeConsumer{deliveries: deliveries}, runner, nil).Start(ctx, RequestQueue) }()

	select {
	case <-ack.acked:
	case <-time.After(time.Second):
		t.Fatal("delivery not acked")
	}
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
	assert.Equal(t, 1, runner.runs)
}

func TestWorker_StartConsumeError(t *testing.T) {
	err := NewWorker(&fakeConsumer{err: errors.New("no channel")}, &countingRunner{}, nil).Start(context.Background(), RequestQueue)

	assert.ErrorContains(t, err, "no channel")
}
