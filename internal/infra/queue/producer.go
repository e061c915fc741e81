package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rotisserie/eris"

	"github.com/xavierca1/crm-dwh-sync/internal/usecase"
)

// Publisher is satisfied by *amqp.Channel.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type PhaseEvent struct {
	Entity     string `json:"entity"`
	Status     string `json:"status"`
	Step       string `json:"step"`
	Extracted  int    `json:"extracted"`
	Unique     int    `json:"unique"`
	Loaded     int64  `json:"loaded"`
	DurationMs int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// RunCompletedEvent is published once per finished run.
type RunCompletedEvent struct {
	RunID      string       `json:"run_id"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Succeeded  bool         `json:"succeeded"`
	Phases     []PhaseEvent `json:"phases"`
}

// SyncRequest asks a worker to run one sync.
type SyncRequest struct {
	RequestID   string    `json:"request_id"`
	RequestedBy string    `json:"requested_by,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

var _ usecase.RunNotifier = (*RabbitMQProducer)(nil)

type RabbitMQProducer struct {
	Ch Publisher
}

func NewProducer(ch Publisher) *RabbitMQProducer {
	return &RabbitMQProducer{Ch: ch}
}

func NewRunCompletedEvent(summary usecase.RunSummary) RunCompletedEvent {
	ev := RunCompletedEvent{
		RunID:      summary.RunID,
		StartedAt:  summary.StartedAt,
		FinishedAt: summary.FinishedAt,
		Succeeded:  summary.Succeeded(),
		Phases:     make([]PhaseEvent, 0, len(summary.Phases)),
	}
	for _, p := range summary.Phases {
		ev.Phases = append(ev.Phases, PhaseEvent{
			Entity:     string(p.Entity),
			Status:     string(p.Status),
			Step:       string(p.Step),
			Extracted:  p.Extracted,
			Unique:     p.Unique,
			Loaded:     p.Loaded,
			DurationMs: p.Duration.Milliseconds(),
			Error:      p.Error,
		})
	}
	return ev
}

func (p *RabbitMQProducer) NotifyRunCompleted(ctx context.Context, summary usecase.RunSummary) error {
	return p.publish(ctx, CompletedRoutingKey, summary.RunID, NewRunCompletedEvent(summary))
}

// PublishSyncRequest enqueues a request and returns its id.
func (p *RabbitMQProducer) PublishSyncRequest(ctx context.Context, requestedBy string) (string, error) {
	req := SyncRequest{
		RequestID:   uuid.NewString(),
		RequestedBy: requestedBy,
		RequestedAt: time.Now().UTC(),
	}
	if err := p.publish(ctx, RequestRoutingKey, req.RequestID, req); err != nil {
		return "", err
	}
	return req.RequestID, nil
}

func (p *RabbitMQProducer) publish(ctx context.Context, key, messageID string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return eris.Wrap(err, "encode message")
	}

	err = p.Ch.PublishWithContext(ctx,
		ExchangeName,
		key,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			MessageId:    messageID,
			Timestamp:    time.Now().UTC(),
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return eris.Wrapf(err, "publish %s", key)
	}
	return nil
}
