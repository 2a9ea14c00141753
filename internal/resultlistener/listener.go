// Package resultlistener consumes assessment results and logs them.
package resultlistener

import (
	"context"
	"errors"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"speech-assessment-platform/backend/internal/contracts"
	"speech-assessment-platform/backend/internal/messaging/codec"
	"speech-assessment-platform/backend/internal/metrics"
)

// ErrDeliveriesClosed is returned when the broker closes the consumer.
var ErrDeliveriesClosed = errors.New("delivery channel closed")

// Listener logs every result it receives. Deliveries are auto-acked.
type Listener struct {
	codecs *codec.Registry
	logger *zap.Logger
}

func NewListener(codecs *codec.Registry, logger *zap.Logger) *Listener {
	return &Listener{codecs: codecs, logger: logger}
}

// Run handles deliveries one at a time until ctx is done or the channel
// closes.
func (l *Listener) Run(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return ErrDeliveriesClosed
			}
			if _, err := l.Handle(d); err != nil {
				l.logger.Warn("discarding unreadable result", zap.String("message_id", d.MessageId), zap.Error(err))
			}
		}
	}
}

// Handle decodes and logs one result.
func (l *Listener) Handle(d amqp.Delivery) (contracts.AssessmentResult, error) {
	c, err := l.codecs.Lookup(d.ContentType)
	if err != nil {
		return contracts.AssessmentResult{}, err
	}
	r, err := contracts.DecodeAssessmentResult(d.Body, c)
	if err != nil {
		return contracts.AssessmentResult{}, err
	}
	metrics.ResultReceived()
	l.logger.Info("assessment result received",
		zap.String("exercise_id", r.ExerciseID),
		zap.String("recognized_text", r.RecognizedText),
		zap.String("reference_text", r.ReferenceText),
		zap.Float64("accuracy", r.Accuracy),
		zap.Float64("fluency", r.Fluency),
		zap.Float64("completeness", r.Completeness),
		zap.Float64("overall", r.OverallScore),
		zap.String("feedback", r.Feedback),
		zap.Time("produced_at", r.ProducedAt))
	return r, nil
}
