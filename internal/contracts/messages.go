// Package contracts defines the messages exchanged over the speech exchange
// and the rules for turning raw bodies into them. Field names on the wire are
// PascalCase to stay compatible with the existing publisher and consumer.
package contracts

import "time"

// AudioTask asks the worker to assess one recording against a reference
// phrase. AudioURL is a reference the worker resolves itself; no audio is
// carried in the message.
type AudioTask struct {
	ExerciseID    string    `json:"ExerciseId"`
	UserID        string    `json:"UserId"`
	AudioURL      string    `json:"AudioUrl"`
	ReferenceText string    `json:"ReferenceText"`
	SubmittedAt   time.Time `json:"SubmittedAt"`
}

// AssessmentResult is published once per successfully recognized task.
// Score fields are in [0,1].
type AssessmentResult struct {
	ExerciseID     string    `json:"ExerciseId"`
	RecognizedText string    `json:"RecognizedText"`
	ReferenceText  string    `json:"ReferenceText"`
	Accuracy       float64   `json:"Accuracy"`
	Fluency        float64   `json:"Fluency"`
	Completeness   float64   `json:"Completeness"`
	OverallScore   float64   `json:"OverallScore"`
	Feedback       string    `json:"Feedback"`
	ProducedAt     time.Time `json:"ProducedAt"`
}
