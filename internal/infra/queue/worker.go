package queue

import (
	"context"
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/xavierca1/crm-dwh-sync/internal/usecase"
)

// Consumer is satisfied by *amqp.Channel.
type Consumer interface {
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
}

// Worker turns sync requests from the queue into runs, one at a time.
type Worker struct {
	Channel Consumer
	Runner  usecase.Runner
	logger  *zap.Logger
}

func NewWorker(ch Consumer, runner usecase.Runner, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{Channel: ch, Runner: runner, logger: logger}
}

// Start consumes queueName until ctx ends or the delivery channel closes.
func (w *Worker) Start(ctx context.Context, queueName string) error {
	msgs, err := w.Channel.Consume(
		queueName,
		"crmsync-worker",
		false, // manual ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return eris.Wrapf(err, "consume %s", queueName)
	}

	w.logger.Info("worker: waiting for sync requests", zap.String("queue", queueName))
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return eris.New("worker: delivery channel closed")
			}
			w.handle(ctx, d)
		}
	}
}

func (w *Worker) handle(ctx context.Context, d amqp.Delivery) {
	var req SyncRequest
	if len(d.Body) > 0 {
		if err := json.Unmarshal(d.Body, &req); err != nil {
			w.logger.Warn("worker: malformed sync request, dead-lettering",
				zap.String("message_id", d.MessageId),
				zap.Error(err),
			)
			_ = d.Nack(false, false)
			return
		}
	}

	log := w.logger.With(zap.String("request_id", req.RequestID), zap.String("requested_by", req.RequestedBy))
	log.Info("worker: sync request received")

	summary := w.Runner.Run(ctx)

	// A run with failed phases is still a processed request.
	if err := d.Ack(false); err != nil {
		log.Error("worker: ack failed", zap.Error(err))
	}
	log.Info("worker: sync request done",
		zap.String("run_id", summary.RunID),
		zap.Bool("succeeded", summary.Succeeded()),
	)
}
