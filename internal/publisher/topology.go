package publisher

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Broker topology shared by the API publisher and the worker consumer. Both
// sides declare it so either can start first.
const (
	ExchangeName = "motegao.direct"
	RoutingKey   = "recon"
	QueueName    = "recon_tasks"

	deadLetterExchange = "motegao.dlx"
	deadLetterQueue    = "recon_tasks.dlq"
)

// DeclareTopology declares the exchange, the work queue and its dead letter
// queue. Declarations are idempotent.
func DeclareTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(ExchangeName, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq: declare exchange: %w", err)
	}
	if err := ch.ExchangeDeclare(deadLetterExchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq: declare DLX: %w", err)
	}
	if _, err := ch.QueueDeclare(deadLetterQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq: declare DLQ: %w", err)
	}
	if err := ch.QueueBind(deadLetterQueue, "", deadLetterExchange, false, nil); err != nil {
		return fmt.Errorf("rabbitmq: bind DLQ: %w", err)
	}

	args := amqp.Table{
		"x-dead-letter-exchange": deadLetterExchange,
		"x-queue-type":           "quorum",
	}
	if _, err := ch.QueueDeclare(QueueName, true, false, false, false, args); err != nil {
		return fmt.Errorf("rabbitmq: declare queue: %w", err)
	}
	if err := ch.QueueBind(QueueName, RoutingKey, ExchangeName, false, nil); err != nil {
		return fmt.Errorf("rabbitmq: bind queue: %w", err)
	}
	return nil
}
