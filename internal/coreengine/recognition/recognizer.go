// Package recognition wraps speech recognition providers behind a single
// pronunciation assessment interface.
package recognition

import (
	"context"
	"fmt"
	"io"
)

// RawAssessment is one recognition attempt's transcript and scores, on the
// provider's 0-100 scale.
type RawAssessment struct {
	// LexicalText is the unnormalized transcript; it equals NormalizedText
	// when the provider gave nothing richer.
	LexicalText        string
	NormalizedText     string
	AccuracyScore      float64
	FluencyScore       float64
	CompletenessScore  float64
	PronunciationScore float64
}

// Recognizer assesses a recording against the phrase the speaker was asked
// to read. Implementations make a single attempt and never retry.
//
// A provider that heard no usable speech returns *RecognitionFailure.
// Transport, credential, quota and audio fetching problems come back as
// *ProviderError.
type Recognizer interface {
	Name() string
	Assess(ctx context.Context, audioURL, referenceText, languageHint string) (*RawAssessment, error)
}

// AudioSource resolves task audio references. objectstore.AudioResolver is
// the production implementation.
type AudioSource interface {
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
	ReadAll(ctx context.Context, ref string, limit int64) ([]byte, error)
}

// RecognitionFailure means the provider answered but did not recognize
// speech, e.g. silence or unintelligible audio.
type RecognitionFailure struct {
	Reason string
}

func (e *RecognitionFailure) Error() string {
	return "speech not recognized: " + e.Reason
}

// ProviderError is a fault at or below the provider boundary.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s provider: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }
