package exercisemanagement

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"speech-assessment-platform/backend/internal/contracts"
)

// StartExerciseRequest is the body of POST /api/exercise/start.
type StartExerciseRequest struct {
	ExerciseID    string `json:"exerciseId"`
	UserID        string `json:"userId" binding:"required"`
	AudioURL      string `json:"audioUrl" binding:"required"`
	ReferenceText string `json:"referenceText" binding:"required"`
}

// ExerciseAccepted is returned with 202 once the task is on the exchange.
type ExerciseAccepted struct {
	ExerciseID  string    `json:"exerciseId"`
	AudioURL    string    `json:"audioUrl"`
	SubmittedAt time.Time `json:"submittedAt"`
	Status      string    `json:"status"`
}

// Handlers exposes ExerciseService over gin.
type Handlers struct {
	service        *ExerciseService
	maxUploadBytes int64
}

// NewHandlers limits multipart uploads to maxUploadBytes.
func NewHandlers(service *ExerciseService, maxUploadBytes int64) *Handlers {
	return &Handlers{service: service, maxUploadBytes: maxUploadBytes}
}

// StartExerciseHandler queues an exercise whose audio the worker can fetch.
func (h *Handlers) StartExerciseHandler(c *gin.Context) {
	var req StartExerciseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload: " + err.Error()})
		return
	}

	task, err := h.service.Start(c.Request.Context(), Submission{
		ExerciseID:    req.ExerciseID,
		UserID:        req.UserID,
		AudioURL:      req.AudioURL,
		ReferenceText: req.ReferenceText,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, accepted(task))
}

// UploadExerciseHandler stores the "audio" form file and queues it. The
// remaining form fields mirror StartExerciseRequest.
func (h *Handlers) UploadExerciseHandler(c *gin.Context) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}

	fileHeader, err := c.FormFile("audio")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Audio file too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Audio file is required in form field 'audio'"})
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read uploaded audio: " + err.Error()})
		return
	}
	defer file.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	task, err := h.service.SubmitUpload(c.Request.Context(), Submission{
		ExerciseID:    c.PostForm("exerciseId"),
		UserID:        c.PostForm("userId"),
		ReferenceText: c.PostForm("referenceText"),
	}, fileHeader.Filename, file, fileHeader.Size, contentType)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, accepted(task))
}

func (h *Handlers) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalidExercise):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, ErrUploadsDisabled):
		c.JSON(http.StatusNotImplemented, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to queue exercise: " + err.Error()})
	}
}

func accepted(t contracts.AudioTask) ExerciseAccepted {
	return ExerciseAccepted{
		ExerciseID:  t.ExerciseID,
		AudioURL:    t.AudioURL,
		SubmittedAt: t.SubmittedAt,
		Status:      "queued",
	}
}
