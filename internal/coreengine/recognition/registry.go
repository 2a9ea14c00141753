package recognition

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"speech-assessment-platform/backend/internal/config"
)

// New builds the recognizer named by cfg.Provider.
func New(ctx context.Context, cfg config.RecognitionConfig, audio AudioSource, logger *zap.Logger) (Recognizer, error) {
	logger = logger.With(zap.String("provider", cfg.Provider))

	switch cfg.Provider {
	case "azure":
		r, err := NewAzureRecognizer(cfg.Azure, audio, logger)
		if err != nil {
			return nil, err
		}
		return r, nil
	case "google":
		r, err := NewGoogleRecognizer(ctx, cfg.Google, audio, logger)
		if err != nil {
			return nil, err
		}
		return r, nil
	case "mock":
		logger.Warn("using mock recognizer; scores are fixed")
		return NewMockRecognizer(cfg.Mock), nil
	default:
		return nil, fmt.Errorf("no recognizer available for provider %q", cfg.Provider)
	}
}
