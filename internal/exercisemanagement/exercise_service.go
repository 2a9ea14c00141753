// Package exercisemanagement accepts exercise submissions and turns them
// into audio tasks for the assessment worker.
package exercisemanagement

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"speech-assessment-platform/backend/internal/contracts"
	"speech-assessment-platform/backend/internal/metrics"
)

var (
	// ErrInvalidExercise wraps every validation failure.
	ErrInvalidExercise = errors.New("invalid exercise")
	// ErrUploadsDisabled is returned when no object store is configured.
	ErrUploadsDisabled = errors.New("audio uploads are not configured")
)

// TaskPublisher is satisfied by *messaging.Publisher.
type TaskPublisher interface {
	PublishTask(ctx context.Context, t contracts.AudioTask) error
}

// AudioStore is satisfied by *objectstore.MinioClient.
type AudioStore interface {
	UploadFile(ctx context.Context, originalFilename string, reader io.Reader, size int64, contentType string) (string, error)
	DeleteFile(ctx context.Context, objectName string) error
	ObjectURL(objectName string) string
}

// Submission is one exercise attempt. ExerciseID is generated when empty.
type Submission struct {
	ExerciseID    string
	UserID        string
	AudioURL      string
	ReferenceText string
}

// ExerciseService publishes tasks; it never waits for their results.
type ExerciseService struct {
	publisher TaskPublisher
	store     AudioStore
	logger    *zap.Logger
	now       func() time.Time
}

// NewExerciseService creates the service. store may be nil, which disables
// uploads.
func NewExerciseService(publisher TaskPublisher, store AudioStore, logger *zap.Logger) *ExerciseService {
	return &ExerciseService{publisher: publisher, store: store, logger: logger, now: time.Now}
}

// Start publishes a task for audio that is already reachable by the worker.
func (s *ExerciseService) Start(ctx context.Context, sub Submission) (contracts.AudioTask, error) {
	if strings.TrimSpace(sub.AudioURL) == "" {
		return contracts.AudioTask{}, fmt.Errorf("%w: audio URL is required", ErrInvalidExercise)
	}
	task, err := s.buildTask(sub)
	if err != nil {
		return contracts.AudioTask{}, err
	}
	if err := s.publisher.PublishTask(ctx, task); err != nil {
		return contracts.AudioTask{}, fmt.Errorf("failed to queue exercise %s: %w", task.ExerciseID, err)
	}
	metrics.TaskSubmitted("url")
	s.logger.Info("exercise queued", zap.String("exercise_id", task.ExerciseID), zap.String("user_id", task.UserID))
	return task, nil
}

// SubmitUpload stores the recording and publishes a task referencing it.
// The object is removed again if the task cannot be published.
func (s *ExerciseService) SubmitUpload(ctx context.Context, sub Submission, filename string, audio io.Reader, size int64, contentType string) (contracts.AudioTask, error) {
	if s.store == nil {
		return contracts.AudioTask{}, ErrUploadsDisabled
	}
	task, err := s.buildTask(sub)
	if err != nil {
		return contracts.AudioTask{}, err
	}

	objectName, err := s.store.UploadFile(ctx, filename, audio, size, contentType)
	if err != nil {
		return contracts.AudioTask{}, fmt.Errorf("failed to store audio for exercise %s: %w", task.ExerciseID, err)
	}
	task.AudioURL = s.store.ObjectURL(objectName)

	if err := s.publisher.PublishTask(ctx, task); err != nil {
		if delErr := s.store.DeleteFile(context.WithoutCancel(ctx), objectName); delErr != nil {
			s.logger.Warn("failed to remove orphaned upload", zap.String("object", objectName), zap.Error(delErr))
		}
		return contracts.AudioTask{}, fmt.Errorf("failed to queue exercise %s: %w", task.ExerciseID, err)
	}
	metrics.TaskSubmitted("upload")
	s.logger.Info("exercise uploaded and queued",
		zap.String("exercise_id", task.ExerciseID),
		zap.String("user_id", task.UserID),
		zap.String("object", objectName),
		zap.Int64("size", size))
	return task, nil
}

func (s *ExerciseService) buildTask(sub Submission) (contracts.AudioTask, error) {
	if strings.TrimSpace(sub.ReferenceText) == "" {
		return contracts.AudioTask{}, fmt.Errorf("%w: reference text is required", ErrInvalidExercise)
	}
	if strings.TrimSpace(sub.UserID) == "" {
		return contracts.AudioTask{}, fmt.Errorf("%w: user ID is required", ErrInvalidExercise)
	}
	id := strings.TrimSpace(sub.ExerciseID)
	if id == "" {
		id = uuid.NewString()
	}
	return contracts.AudioTask{
		ExerciseID:    id,
		UserID:        sub.UserID,
		AudioURL:      sub.AudioURL,
		ReferenceText: sub.ReferenceText,
		SubmittedAt:   s.now().UTC(),
	}, nil
}
