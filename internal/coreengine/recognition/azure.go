//go:build azurespeech

package recognition

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Microsoft/cognitive-services-speech-sdk-go/audio"
	"github.com/Microsoft/cognitive-services-speech-sdk-go/common"
	"github.com/Microsoft/cognitive-services-speech-sdk-go/speech"
	"go.uber.org/zap"

	"speech-assessment-platform/backend/internal/config"
)

// AzureRecognizer runs Azure Speech pronunciation assessment, configured
// through the PronunciationAssessment_Params property and read back from the
// detailed JSON result. The Speech SDK is cgo-backed, hence the build tag.
type AzureRecognizer struct {
	key    string
	region string
	audio  AudioSource
	logger *zap.Logger
}

// NewAzureRecognizer validates the credentials; the SDK objects themselves
// are created per call.
func NewAzureRecognizer(cfg config.AzureConfig, audio AudioSource, logger *zap.Logger) (*AzureRecognizer, error) {
	if cfg.Key == "" {
		return nil, errors.New("Azure Speech key is missing (recognition.azure.key or AZURE_SPEECH_KEY)")
	}
	if cfg.Region == "" {
		return nil, errors.New("Azure Speech region is missing (recognition.azure.region or AZURE_SPEECH_REGION)")
	}
	return &AzureRecognizer{key: cfg.Key, region: cfg.Region, audio: audio, logger: logger}, nil
}

func (a *AzureRecognizer) Name() string { return "azure" }

// Assess performs one RecognizeOnce with pronunciation assessment enabled.
// A cancelled ctx returns at once; the native call is left to finish in the
// background and its handles are released afterwards.
func (a *AzureRecognizer) Assess(ctx context.Context, audioURL, referenceText, languageHint string) (*RawAssessment, error) {
	params, err := azureAssessmentParams(referenceText)
	if err != nil {
		return nil, a.providerErr(fmt.Errorf("encode assessment params: %w", err))
	}

	wavPath, cleanup, err := a.stageAudio(ctx, audioURL)
	if err != nil {
		return nil, a.providerErr(err)
	}
	closers := []func(){cleanup}
	release := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	speechConfig, err := speech.NewSpeechConfigFromSubscription(a.key, a.region)
	if err != nil {
		release()
		return nil, a.providerErr(fmt.Errorf("create speech config: %w", err))
	}
	closers = append(closers, speechConfig.Close)

	for _, p := range []struct{ name, value string }{
		{"SpeechServiceConnection_RecoLanguage", languageHint},
		{"SpeechServiceResponse_OutputFormatOption", "detailed"},
		{"PronunciationAssessment_Params", params},
	} {
		if err := speechConfig.SetPropertyByString(p.name, p.value); err != nil {
			release()
			return nil, a.providerErr(fmt.Errorf("set %s: %w", p.name, err))
		}
	}

	audioConfig, err := audio.NewAudioConfigFromWavFileInput(wavPath)
	if err != nil {
		release()
		return nil, a.providerErr(fmt.Errorf("create audio config: %w", err))
	}
	closers = append(closers, audioConfig.Close)

	recognizer, err := speech.NewSpeechRecognizerFromConfig(speechConfig, audioConfig)
	if err != nil {
		release()
		return nil, a.providerErr(fmt.Errorf("create recognizer: %w", err))
	}
	closers = append(closers, recognizer.Close)

	start := time.Now()
	task := recognizer.RecognizeOnceAsync()
	var outcome speech.SpeechRecognitionOutcome
	select {
	case outcome = <-task:
	case <-ctx.Done():
		go func() {
			o := <-task
			o.Close()
			release()
		}()
		return nil, a.providerErr(ctx.Err())
	}
	defer release()
	defer outcome.Close()
	a.logger.Debug("azure recognize finished", zap.Duration("latency", time.Since(start)))

	if outcome.Error != nil {
		return nil, a.providerErr(outcome.Error)
	}
	result := outcome.Result

	return assessmentFromAzure(
		reasonFromSDK(result.Reason),
		result.Properties.GetProperty(common.SpeechServiceResponseJSONResult, ""),
		result.Text,
		result.Properties.GetPropertyByString("SpeechServiceResponse_JsonErrorDetails", ""),
		a.logger,
	)
}

func reasonFromSDK(r common.ResultReason) azureReason {
	switch r {
	case common.RecognizedSpeech:
		return azureRecognized
	case common.NoMatch:
		return azureNoMatch
	case common.Canceled:
		return azureCanceled
	default:
		return azureOther
	}
}

func (a *AzureRecognizer) providerErr(err error) error {
	return &ProviderError{Provider: a.Name(), Err: err}
}

// stageAudio copies the referenced audio into a temporary WAV file, which is
// what the SDK's file input expects.
func (a *AzureRecognizer) stageAudio(ctx context.Context, ref string) (string, func(), error) {
	src, err := a.audio.Open(ctx, ref)
	if err != nil {
		return "", nil, err
	}
	defer src.Close()

	f, err := os.CreateTemp("", "speechai-*.wav")
	if err != nil {
		return "", nil, fmt.Errorf("create temp audio file: %w", err)
	}
	cleanup := func() { os.Remove(f.Name()) }

	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		cleanup()
		return "", nil, fmt.Errorf("stage audio %q: %w", ref, err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("stage audio %q: %w", ref, err)
	}
	return f.Name(), cleanup, nil
}
