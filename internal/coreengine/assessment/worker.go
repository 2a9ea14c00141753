// Package assessment runs the worker pipeline: decode a task, recognize its
// audio, score it against the reference and publish the result.
package assessment

import (
	"context"
	"errors"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"speech-assessment-platform/backend/internal/config"
	"speech-assessment-platform/backend/internal/contracts"
	"speech-assessment-platform/backend/internal/coreengine/recognition"
	"speech-assessment-platform/backend/internal/coreengine/scoring"
	"speech-assessment-platform/backend/internal/messaging/codec"
	"speech-assessment-platform/backend/internal/metrics"
)

// ErrDeliveriesClosed is returned by Run when the broker closes the delivery
// channel while the worker is still meant to be running.
var ErrDeliveriesClosed = errors.New("delivery channel closed")

// ResultPublisher is satisfied by *messaging.Publisher.
type ResultPublisher interface {
	PublishResult(ctx context.Context, r contracts.AssessmentResult) error
}

// Worker consumes audio tasks with a bounded number of concurrent
// assessments.
type Worker struct {
	recognizer   recognition.Recognizer
	publisher    ResultPublisher
	codecs       *codec.Registry
	logger       *zap.Logger
	concurrency  int
	manualAck    bool
	languageHint string
	now          func() time.Time
}

// NewWorker wires a worker. cfg.Concurrency below one is treated as one.
func NewWorker(rec recognition.Recognizer, pub ResultPublisher, codecs *codec.Registry, cfg config.WorkerConfig, logger *zap.Logger) *Worker {
	n := cfg.Concurrency
	if n < 1 {
		n = 1
	}
	return &Worker{
		recognizer:   rec,
		publisher:    pub,
		codecs:       codecs,
		logger:       logger,
		concurrency:  n,
		manualAck:    cfg.AckMode == config.AckAfterPublish,
		languageHint: cfg.LanguageHint,
		now:          time.Now,
	}
}

// ManualAck reports whether deliveries must be consumed without auto-ack.
func (w *Worker) ManualAck() bool { return w.manualAck }

// Run reads deliveries until ctx is cancelled or the channel closes. Each
// delivery is handled in its own goroutine; when all slots are busy the loop
// stops reading. Run waits for in-flight tasks before returning.
func (w *Worker) Run(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	var g errgroup.Group
	g.SetLimit(w.concurrency)

	w.logger.Info("worker started",
		zap.Int("concurrency", w.concurrency),
		zap.Bool("manual_ack", w.manualAck),
		zap.String("provider", w.recognizer.Name()))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("shutdown requested, waiting for in-flight tasks")
			_ = g.Wait()
			return nil
		case d, ok := <-deliveries:
			if !ok {
				_ = g.Wait()
				if ctx.Err() != nil {
					return nil
				}
				return ErrDeliveriesClosed
			}
			g.Go(func() error {
				w.Handle(ctx, d)
				return nil
			})
		}
	}
}

// Handle processes one delivery to completion and settles it according to
// the ack mode. A panic while processing is recovered and counted as a
// provider error. It returns the recorded outcome.
func (w *Worker) Handle(ctx context.Context, d amqp.Delivery) (outcome string) {
	metrics.TaskStart()
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("recovered panic while handling task",
				zap.String("message_id", d.MessageId),
				zap.Any("panic", r),
				zap.Stack("stack"))
			outcome = metrics.OutcomeProviderError
		}
		metrics.TaskEnd(outcome)
		if w.manualAck {
			w.settle(d, outcome)
		}
	}()

	return w.process(ctx, d)
}

// settle acks everything the worker decided about, and rejects without
// requeue what should reach the dead-letter exchange.
func (w *Worker) settle(d amqp.Delivery, outcome string) {
	var err error
	switch outcome {
	case metrics.OutcomeProviderError, metrics.OutcomePublishError:
		err = d.Nack(false, false)
	default:
		err = d.Ack(false)
	}
	if err != nil {
		w.logger.Warn("failed to settle delivery",
			zap.Uint64("delivery_tag", d.DeliveryTag),
			zap.String("outcome", outcome),
			zap.Error(err))
	}
}

func (w *Worker) process(ctx context.Context, d amqp.Delivery) string {
	c, err := w.codecs.Lookup(d.ContentType)
	if err != nil {
		w.logger.Warn("dropping task with unsupported content type",
			zap.String("message_id", d.MessageId), zap.Error(err))
		return metrics.OutcomeDecodeError
	}
	task, err := contracts.DecodeAudioTask(d.Body, c)
	if err != nil {
		w.logger.Warn("dropping malformed task",
			zap.String("message_id", d.MessageId), zap.Error(err))
		return metrics.OutcomeDecodeError
	}

	log := w.logger.With(zap.String("exercise_id", task.ExerciseID))
	log.Info("task received", zap.String("user_id", task.UserID), zap.String("audio_url", task.AudioURL))

	start := time.Now()
	raw, err := w.recognizer.Assess(ctx, task.AudioURL, task.ReferenceText, w.languageHint)
	metrics.ObserveRecognition(w.recognizer.Name(), err == nil, time.Since(start))
	if err != nil {
		var rf *recognition.RecognitionFailure
		if errors.As(err, &rf) {
			log.Warn("speech not recognized, no result published", zap.String("reason", rf.Reason))
			return metrics.OutcomeRecognitionFailed
		}
		log.Error("recognition provider failed", zap.Error(err))
		return metrics.OutcomeProviderError
	}
	if raw == nil {
		log.Error("recognition provider returned no assessment")
		return metrics.OutcomeProviderError
	}

	b := scoring.Score(task.ReferenceText, raw.LexicalText, scoring.RawScores{
		Accuracy:      raw.AccuracyScore,
		Fluency:       raw.FluencyScore,
		Completeness:  raw.CompletenessScore,
		Pronunciation: raw.PronunciationScore,
	})
	log.Debug("assessment scored",
		zap.String("lexical", raw.LexicalText),
		zap.Float64("similarity", b.Similarity),
		zap.Float64("recall", b.Recall),
		zap.Float64("raw_accuracy", raw.AccuracyScore),
		zap.Float64("adjusted_accuracy", b.AdjustedAccuracy),
		zap.Float64("adjusted_overall", b.AdjustedOverall))

	result := contracts.AssessmentResult{
		ExerciseID:     task.ExerciseID,
		RecognizedText: raw.LexicalText,
		ReferenceText:  task.ReferenceText,
		Accuracy:       b.PublishedAccuracy,
		Fluency:        b.PublishedFluency,
		Completeness:   b.PublishedCompleteness,
		OverallScore:   b.PublishedOverall,
		Feedback:       b.Feedback,
		ProducedAt:     w.now().UTC(),
	}
	if err := w.publisher.PublishResult(ctx, result); err != nil {
		log.Error("failed to publish result", zap.Error(err))
		return metrics.OutcomePublishError
	}

	metrics.ObserveScores(result.Accuracy, result.Fluency, result.Completeness, result.OverallScore)
	log.Info("result published",
		zap.Float64("accuracy", result.Accuracy),
		zap.Float64("overall", result.OverallScore))
	return metrics.OutcomePublished
}
