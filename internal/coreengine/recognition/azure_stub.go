//go:build !azurespeech

package recognition

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"speech-assessment-platform/backend/internal/config"
)

var errAzureUnavailable = errors.New("azure provider not compiled in: rebuild with -tags azurespeech and the Speech SDK native libraries")

// AzureRecognizer is unavailable in builds without the azurespeech tag.
type AzureRecognizer struct{}

// NewAzureRecognizer always fails in this build.
func NewAzureRecognizer(cfg config.AzureConfig, audio AudioSource, logger *zap.Logger) (*AzureRecognizer, error) {
	return nil, errAzureUnavailable
}

func (a *AzureRecognizer) Name() string { return "azure" }

func (a *AzureRecognizer) Assess(ctx context.Context, audioURL, referenceText, languageHint string) (*RawAssessment, error) {
	return nil, &ProviderError{Provider: a.Name(), Err: errAzureUnavailable}
}
