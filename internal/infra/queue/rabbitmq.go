package queue

import (
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rotisserie/eris"
)

const (
	ExchangeName        = "ex.crm-sync"
	RequestQueue        = "q.crm-sync.requests"
	RequestDLQ          = "q.crm-sync.requests.dlq"
	DLXName             = "ex.crm-sync.dlx"
	RequestRoutingKey   = "k.sync.request"
	CompletedRoutingKey = "k.sync.completed"
)

// topologyChannel is the subset of *amqp.Channel used to declare topology.
type topologyChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
}

type RabbitMQ struct {
	Conn *amqp.Connection
	Ch   *amqp.Channel
}

func NewRabbitMQ(url string) (*RabbitMQ, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, eris.Wrap(err, "rabbitmq: dial")
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, eris.Wrap(err, "rabbitmq: open channel")
	}

	if err := setupTopology(ch); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	return &RabbitMQ{Conn: conn, Ch: ch}, nil
}

func (r *RabbitMQ) Close() error {
	if r.Ch != nil {
		_ = r.Ch.Close()
	}
	if r.Conn != nil {
		return r.Conn.Close()
	}
	return nil
}

// setupTopology declares the sync exchange, the request queue and its
// dead-letter pair. Rejected requests land in RequestDLQ.
func setupTopology(ch topologyChannel) error {
	if err := ch.ExchangeDeclare(DLXName, "direct", true, false, false, false, nil); err != nil {
		return eris.Wrapf(err, "declare exchange %s", DLXName)
	}
	if _, err := ch.QueueDeclare(RequestDLQ, true, false, false, false, nil); err != nil {
		return eris.Wrapf(err, "declare queue %s", RequestDLQ)
	}
	if err := ch.QueueBind(RequestDLQ, RequestRoutingKey, DLXName, false, nil); err != nil {
		return eris.Wrapf(err, "bind %s", RequestDLQ)
	}

	if err := ch.ExchangeDeclare(ExchangeName, "direct", true, false, false, false, nil); err != nil {
		return eris.Wrapf(err, "declare exchange %s", ExchangeName)
	}

	args := amqp.Table{
		"x-dead-letter-exchange":    DLXName,
		"x-dead-letter-routing-key": RequestRoutingKey,
	}
	if _, err := ch.QueueDeclare(RequestQueue, true, false, false, false, args); err != nil {
		return eris.Wrapf(err, "declare queue %s", RequestQueue)
	}
	if err := ch.QueueBind(RequestQueue, RequestRoutingKey, ExchangeName, false, nil); err != nil {
		return eris.Wrapf(err, "bind %s", RequestQueue)
	}
	return nil
}
