package recognition

import (
	"encoding/json"
	"errors"
	"strings"

	"go.uber.org/zap"
)

// azureReason is the subset of Speech SDK result reasons the adapter acts on.
type azureReason int

const (
	azureRecognized azureReason = iota
	azureNoMatch
	azureCanceled
	azureOther
)

// pronunciationParams is the PronunciationAssessment_Params property value.
type pronunciationParams struct {
	ReferenceText           string `json:"ReferenceText"`
	GradingSystem           string `json:"GradingSystem"`
	Granularity             string `json:"Granularity"`
	Dimension               string `json:"Dimension"`
	EnableMiscue            bool   `json:"EnableMiscue"`
	PhonemeAlphabet         string `json:"PhonemeAlphabet"`
	EnableProsodyAssessment bool   `json:"EnableProsodyAssessment"`
}

// azureAssessmentParams asks for hundred-mark grading at phoneme granularity
// with miscue detection, IPA phonemes and prosody.
func azureAssessmentParams(referenceText string) (string, error) {
	b, err := json.Marshal(pronunciationParams{
		ReferenceText:           referenceText,
		GradingSystem:           "HundredMark",
		Granularity:             "Phoneme",
		Dimension:               "Comprehensive",
		EnableMiscue:            true,
		PhonemeAlphabet:         "IPA",
		EnableProsodyAssessment: true,
	})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// detailedResult is the part of a detailed-format recognition payload the
// adapter reads. Pointers tell absent fields from empty ones.
type detailedResult struct {
	DisplayText string `json:"DisplayText"`
	NBest       []struct {
		Lexical                 *string `json:"Lexical"`
		Display                 string  `json:"Display"`
		PronunciationAssessment *struct {
			AccuracyScore     float64 `json:"AccuracyScore"`
			FluencyScore      float64 `json:"FluencyScore"`
			CompletenessScore float64 `json:"CompletenessScore"`
			PronScore         float64 `json:"PronScore"`
		} `json:"PronunciationAssessment"`
	} `json:"NBest"`
}

func parseDetailedResult(raw string) (detailedResult, bool) {
	var d detailedResult
	if strings.TrimSpace(raw) == "" {
		return d, false
	}
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return detailedResult{}, false
	}
	return d, true
}

// LexicalFromDetailedJSON extracts NBest[0].Lexical from a detailed
// recognition payload. ok is false when the payload is empty, malformed, or
// has no lexical form.
func LexicalFromDetailedJSON(raw string) (lexical string, ok bool) {
	d, ok := parseDetailedResult(raw)
	if !ok || len(d.NBest) == 0 || d.NBest[0].Lexical == nil {
		return "", false
	}
	return *d.NBest[0].Lexical, true
}

// assessmentFromAzure maps one RecognizeOnce result onto RawAssessment.
// detailedJSON is the SpeechServiceResponse_JsonResult property and
// errorDetails the SpeechServiceResponse_JsonErrorDetails property.
func assessmentFromAzure(reason azureReason, detailedJSON, displayText, errorDetails string, logger *zap.Logger) (*RawAssessment, error) {
	switch reason {
	case azureRecognized:
	case azureNoMatch:
		return nil, &RecognitionFailure{Reason: "no-match"}
	case azureCanceled:
		if strings.TrimSpace(errorDetails) != "" {
			return nil, &ProviderError{Provider: "azure", Err: errors.New("canceled: " + errorDetails)}
		}
		return nil, &RecognitionFailure{Reason: "canceled"}
	default:
		return nil, &RecognitionFailure{Reason: "unrecognized status"}
	}

	d, _ := parseDetailedResult(detailedJSON)
	if displayText == "" {
		displayText = d.DisplayText
	}
	if len(d.NBest) == 0 || d.NBest[0].PronunciationAssessment == nil {
		return nil, &ProviderError{Provider: "azure", Err: errors.New("recognized speech without pronunciation assessment")}
	}
	best := d.NBest[0]

	lexical := displayText
	if best.Lexical != nil {
		lexical = *best.Lexical
	} else {
		logger.Debug("detailed result has no lexical form, using display text")
	}

	pa := best.PronunciationAssessment
	return &RawAssessment{
		LexicalText:        lexical,
		NormalizedText:     displayText,
		AccuracyScore:      pa.AccuracyScore,
		FluencyScore:       pa.FluencyScore,
		CompletenessScore:  pa.CompletenessScore,
		PronunciationScore: pa.PronScore,
	}, nil
}
