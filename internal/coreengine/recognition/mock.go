package recognition

import (
	"context"
	"errors"
	"strings"

	"speech-assessment-platform/backend/internal/config"
)

// MockRecognizer echoes the reference text back with fixed scores. Audio
// references containing "no-match" or "provider-error" simulate the two
// failure kinds, which is handy when exercising the pipeline end to end.
type MockRecognizer struct {
	Scores config.MockConfig
}

// NewMockRecognizer returns a mock with the given scores.
func NewMockRecognizer(scores config.MockConfig) *MockRecognizer {
	return &MockRecognizer{Scores: scores}
}

func (m *MockRecognizer) Name() string { return "mock" }

// Assess never touches the audio.
func (m *MockRecognizer) Assess(ctx context.Context, audioURL, referenceText, languageHint string) (*RawAssessment, error) {
	if err := ctx.Err(); err != nil {
		return nil, &ProviderError{Provider: m.Name(), Err: err}
	}
	switch {
	case strings.Contains(audioURL, "no-match"):
		return nil, &RecognitionFailure{Reason: "no-match"}
	case strings.Contains(audioURL, "provider-error"):
		return nil, &ProviderError{Provider: m.Name(), Err: errors.New("simulated provider error")}
	}
	return &RawAssessment{
		LexicalText:        strings.ToLower(referenceText),
		NormalizedText:     referenceText,
		AccuracyScore:      m.Scores.Accuracy,
		FluencyScore:       m.Scores.Fluency,
		CompletenessScore:  m.Scores.Completeness,
		PronunciationScore: m.Scores.Pronunciation,
	}, nil
}
