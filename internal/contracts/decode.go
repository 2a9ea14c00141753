package contracts

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"speech-assessment-platform/backend/internal/messaging/codec"
)

// DecodeError reports an inbound body that cannot become an AudioTask.
type DecodeError struct {
	Field  string
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	msg := "decode audio task"
	if e.Field != "" {
		msg += ": field " + e.Field
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() error { return e.Err }

// wireAudioTask uses pointers so a missing field can be told apart from an
// empty one. Timestamp is the name older publishers used for SubmittedAt.
type wireAudioTask struct {
	ExerciseID    *string    `json:"ExerciseId"`
	UserID        *string    `json:"UserId"`
	AudioURL      *string    `json:"AudioUrl"`
	ReferenceText *string    `json:"ReferenceText"`
	SubmittedAt   *time.Time `json:"SubmittedAt"`
	Timestamp     *time.Time `json:"Timestamp"`
}

// DecodeAudioTask parses body with c and validates it. A nil codec means JSON.
// Key matching follows the codec: JSON (and CBOR via the json tags) match
// field names case-insensitively, so "exerciseId" is accepted alongside the
// PascalCase "ExerciseId" that publishers emit.
func DecodeAudioTask(body []byte, c codec.Codec) (AudioTask, error) {
	if c == nil {
		c = codec.JSON()
	}
	var w wireAudioTask
	if err := c.Unmarshal(body, &w); err != nil {
		de := &DecodeError{Reason: "malformed " + c.ContentType() + " payload", Err: err}
		var ute *json.UnmarshalTypeError
		if errors.As(err, &ute) {
			de.Field = ute.Field
			de.Reason = fmt.Sprintf("expected %s", ute.Type)
		}
		return AudioTask{}, de
	}

	switch {
	case w.ExerciseID == nil:
		return AudioTask{}, &DecodeError{Field: "ExerciseId", Reason: "missing"}
	case w.UserID == nil:
		return AudioTask{}, &DecodeError{Field: "UserId", Reason: "missing"}
	case w.AudioURL == nil:
		return AudioTask{}, &DecodeError{Field: "AudioUrl", Reason: "missing"}
	case w.ReferenceText == nil:
		return AudioTask{}, &DecodeError{Field: "ReferenceText", Reason: "missing"}
	}
	submitted := w.SubmittedAt
	if submitted == nil {
		submitted = w.Timestamp
	}
	if submitted == nil {
		return AudioTask{}, &DecodeError{Field: "SubmittedAt", Reason: "missing"}
	}

	if strings.TrimSpace(*w.ExerciseID) == "" {
		return AudioTask{}, &DecodeError{Field: "ExerciseId", Reason: "blank"}
	}
	if strings.TrimSpace(*w.ReferenceText) == "" {
		return AudioTask{}, &DecodeError{Field: "ReferenceText", Reason: "blank"}
	}

	return AudioTask{
		ExerciseID:    *w.ExerciseID,
		UserID:        *w.UserID,
		AudioURL:      *w.AudioURL,
		ReferenceText: *w.ReferenceText,
		SubmittedAt:   *submitted,
	}, nil
}

// EncodeAudioTask is used by publishers of tasks.
func EncodeAudioTask(t AudioTask, c codec.Codec) ([]byte, error) {
	if c == nil {
		c = codec.JSON()
	}
	b, err := c.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("encode audio task %s: %w", t.ExerciseID, err)
	}
	return b, nil
}

// EncodeAssessmentResult serializes a result for publishing.
func EncodeAssessmentResult(r AssessmentResult, c codec.Codec) ([]byte, error) {
	if c == nil {
		c = codec.JSON()
	}
	b, err := c.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode assessment result %s: %w", r.ExerciseID, err)
	}
	return b, nil
}

// DecodeAssessmentResult is the consumer-side counterpart of
// EncodeAssessmentResult.
func DecodeAssessmentResult(body []byte, c codec.Codec) (AssessmentResult, error) {
	if c == nil {
		c = codec.JSON()
	}
	var r AssessmentResult
	if err := c.Unmarshal(body, &r); err != nil {
		return AssessmentResult{}, fmt.Errorf("decode assessment result: %w", err)
	}
	return r, nil
}
