package messaging

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"speech-assessment-platform/backend/internal/config"
	"speech-assessment-platform/backend/internal/contracts"
	"speech-assessment-platform/backend/internal/messaging/codec"
)

// PublishChannel is the subset of *amqp.Channel used to publish.
type PublishChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Publisher sends tasks and results to the exchange. An AMQP channel is not
// safe for concurrent publishing, so all publishes go through one mutex.
type Publisher struct {
	mu        sync.Mutex
	ch        PublishChannel
	codec     codec.Codec
	exchange  string
	taskKey   string
	resultKey string
	now       func() time.Time
}

// NewPublisher builds a publisher encoding with the codec for
// cfg.ContentType.
func NewPublisher(ch PublishChannel, cfg config.AMQPConfig, codecs *codec.Registry) (*Publisher, error) {
	c, err := codecs.Lookup(cfg.ContentType)
	if err != nil {
		return nil, fmt.Errorf("amqp.content_type: %w", err)
	}
	return &Publisher{
		ch:        ch,
		codec:     c,
		exchange:  cfg.Exchange,
		taskKey:   cfg.TaskRoutingKey,
		resultKey: cfg.ResultRoutingKey,
		now:       time.Now,
	}, nil
}

// PublishResult sends r with the fixed result routing key.
func (p *Publisher) PublishResult(ctx context.Context, r contracts.AssessmentResult) error {
	body, err := contracts.EncodeAssessmentResult(r, p.codec)
	if err != nil {
		return err
	}
	return p.publish(ctx, p.resultKey, "AssessmentResult", r.ExerciseID, body)
}

// PublishTask sends t with the task routing key.
func (p *Publisher) PublishTask(ctx context.Context, t contracts.AudioTask) error {
	body, err := contracts.EncodeAudioTask(t, p.codec)
	if err != nil {
		return err
	}
	return p.publish(ctx, p.taskKey, "AudioTask", t.ExerciseID, body)
}

func (p *Publisher) publish(ctx context.Context, key, msgType, exerciseID string, body []byte) error {
	msg := amqp.Publishing{
		ContentType:   p.codec.ContentType(),
		DeliveryMode:  amqp.Persistent,
		MessageId:     uuid.NewString(),
		CorrelationId: exerciseID,
		Timestamp:     p.now().UTC(),
		Type:          msgType,
		Body:          body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ch.PublishWithContext(ctx, p.exchange, key, false, false, msg); err != nil {
		return fmt.Errorf("publish %s to %s/%s: %w", msgType, p.exchange, key, err)
	}
	return nil
}
