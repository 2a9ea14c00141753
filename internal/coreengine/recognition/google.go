package recognition

import (
	"context"
	"fmt"
	"strings"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"speech-assessment-platform/backend/internal/config"
)

// maxInlineAudioBytes is the synchronous Recognize limit for inline content.
const maxInlineAudioBytes = 10 * 1024 * 1024

// GoogleRecognizer uses Cloud Speech-to-Text v1. The API has no
// pronunciation assessment, so scores are derived from word confidences:
// accuracy and pronunciation are the mean word confidence, fluency is the
// alternative's confidence and completeness is the share of reference words
// that were heard at all. Encoding is left unspecified so WAV and FLAC
// headers are read by the service.
type GoogleRecognizer struct {
	client *speech.Client
	audio  AudioSource
	logger *zap.Logger
}

// NewGoogleRecognizer creates the Speech client once; it is safe for
// concurrent use. An empty credentials file means application default
// credentials.
func NewGoogleRecognizer(ctx context.Context, cfg config.GoogleConfig, audio AudioSource, logger *zap.Logger) (*GoogleRecognizer, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Google Speech client: %w", err)
	}
	return &GoogleRecognizer{client: client, audio: audio, logger: logger}, nil
}

func (g *GoogleRecognizer) Name() string { return "google" }

// Close releases the underlying gRPC connection.
func (g *GoogleRecognizer) Close() error { return g.client.Close() }

// Assess sends the whole recording inline in one Recognize call.
func (g *GoogleRecognizer) Assess(ctx context.Context, audioURL, referenceText, languageHint string) (*RawAssessment, error) {
	content, err := g.audio.ReadAll(ctx, audioURL, maxInlineAudioBytes)
	if err != nil {
		return nil, &ProviderError{Provider: g.Name(), Err: err}
	}

	req := &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			LanguageCode:         languageHint,
			MaxAlternatives:      1,
			EnableWordConfidence: true,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: content},
		},
	}

	start := time.Now()
	resp, err := g.client.Recognize(ctx, req)
	g.logger.Debug("google recognize finished", zap.Duration("latency", time.Since(start)), zap.Error(err))
	if err != nil {
		return nil, &ProviderError{Provider: g.Name(), Err: err}
	}
	return assessmentFromGoogle(resp, referenceText)
}

// assessmentFromGoogle maps a Recognize response onto RawAssessment.
func assessmentFromGoogle(resp *speechpb.RecognizeResponse, referenceText string) (*RawAssessment, error) {
	var (
		parts       []string
		altConf     float64
		altCount    int
		wordConfSum float64
		wordCount   int
	)
	for _, result := range resp.GetResults() {
		alts := result.GetAlternatives()
		if len(alts) == 0 {
			continue
		}
		alt := alts[0]
		t := strings.TrimSpace(alt.GetTranscript())
		if t == "" {
			continue
		}
		parts = append(parts, t)
		altConf += float64(alt.GetConfidence())
		altCount++
		for _, w := range alt.GetWords() {
			wordConfSum += float64(w.GetConfidence())
			wordCount++
		}
	}

	transcript := strings.Join(parts, " ")
	if transcript == "" {
		return nil, &RecognitionFailure{Reason: "no-match"}
	}

	fluency := altConf / float64(altCount)
	accuracy := fluency
	if wordCount > 0 {
		accuracy = wordConfSum / float64(wordCount)
	}

	completeness := 1.0
	if refWords := len(strings.Fields(referenceText)); refWords > 0 {
		completeness = float64(len(strings.Fields(transcript))) / float64(refWords)
		if completeness > 1 {
			completeness = 1
		}
	}

	return &RawAssessment{
		LexicalText:        transcript,
		NormalizedText:     transcript,
		AccuracyScore:      accuracy * 100,
		FluencyScore:       fluency * 100,
		CompletenessScore:  completeness * 100,
		PronunciationScore: accuracy * 100,
	}, nil
}
