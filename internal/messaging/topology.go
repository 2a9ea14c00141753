package messaging

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"speech-assessment-platform/backend/internal/config"
)

// Declarer is the subset of *amqp.Channel used to declare topology.
type Declarer interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
}

// DeclareTopology declares the topic exchange, the task and result queues
// and their bindings. Declarations are idempotent, so every process calls
// this on startup. The dead-letter exchange, when configured, is declared as
// a fanout and attached to the task queue.
func DeclareTopology(d Declarer, cfg config.AMQPConfig) error {
	if err := d.ExchangeDeclare(cfg.Exchange, amqp.ExchangeTopic, cfg.ExchangeDurable, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %q: %w", cfg.Exchange, err)
	}

	var taskArgs amqp.Table
	if cfg.DeadLetterExchange != "" {
		if err := d.ExchangeDeclare(cfg.DeadLetterExchange, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare dead-letter exchange %q: %w", cfg.DeadLetterExchange, err)
		}
		taskArgs = amqp.Table{"x-dead-letter-exchange": cfg.DeadLetterExchange}
	}

	queues := []struct {
		name, binding string
		args          amqp.Table
	}{
		{cfg.TaskQueue, cfg.TaskBinding, taskArgs},
		{cfg.ResultQueue, cfg.ResultBinding, nil},
	}
	for _, q := range queues {
		if _, err := d.QueueDeclare(q.name, cfg.ExchangeDurable, false, false, false, q.args); err != nil {
			return fmt.Errorf("declare queue %q: %w", q.name, err)
		}
		if err := d.QueueBind(q.name, q.binding, cfg.Exchange, false, nil); err != nil {
			return fmt.Errorf("bind queue %q to %q: %w", q.name, q.binding, err)
		}
	}
	return nil
}
