package messaging

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"speech-assessment-platform/backend/internal/config"
)

// ConsumeChannel is the subset of *amqp.Channel used to consume.
type ConsumeChannel interface {
	Qos(prefetchCount, prefetchSize int, global bool) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
}

// Consume starts a consumer on queue. With manualAck the prefetch limit from
// cfg is applied first; otherwise the broker acknowledges on delivery and
// prefetch has no effect.
func Consume(ch ConsumeChannel, cfg config.AMQPConfig, queue, consumerTag string, manualAck bool) (<-chan amqp.Delivery, error) {
	if manualAck && cfg.Prefetch > 0 {
		if err := ch.Qos(cfg.Prefetch, 0, false); err != nil {
			return nil, fmt.Errorf("set prefetch %d: %w", cfg.Prefetch, err)
		}
	}
	deliveries, err := ch.Consume(queue, consumerTag, !manualAck, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume %q: %w", queue, err)
	}
	return deliveries, nil
}
