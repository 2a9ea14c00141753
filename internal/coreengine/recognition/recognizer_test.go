package recognition

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"speech-assessment-platform/backend/internal/config"
)

func TestLexicalFromDetailedJSON(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
		ok   bool
	}{
		{"present", `{"DisplayText":"Привіт.","NBest":[{"Lexical":"привіт","Display":"Привіт."}]}`, "привіт", true},
		{"empty lexical", `{"NBest":[{"Lexical":""}]}`, "", true},
		{"missing field", `{"NBest":[{"Display":"Привіт."}]}`, "", false},
		{"no nbest", `{"DisplayText":"x"}`, "", false},
		{"empty nbest", `{"NBest":[]}`, "", false},
		{"malformed", `{"NBest":`, "", false},
		{"blank", "  ", "", false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, ok := LexicalFromDetailedJSON(c.raw)
			if got != c.want || ok != c.ok {
				t.Fatalf("got (%q, %v), want (%q, %v)", got, ok, c.want, c.ok)
			}
		})
	}
}

func TestMockRecognizer(t *testing.T) {
	m := NewMockRecognizer(config.MockConfig{Accuracy: 80, Fluency: 70, Completeness: 100, Pronunciation: 75})
	ctx := context.Background()

	res, err := m.Assess(ctx, "file:///tmp/a.wav", "Привіт Як Справи", "uk-UA")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.LexicalText != "привіт як справи" || res.NormalizedText != "Привіт Як Справи" {
		t.Fatalf("unexpected transcript %+v", res)
	}
	if res.AccuracyScore != 80 || res.FluencyScore != 70 || res.CompletenessScore != 100 || res.PronunciationScore != 75 {
		t.Fatalf("unexpected scores %+v", res)
	}

	_, err = m.Assess(ctx, "s3://audio/no-match.wav", "x", "uk-UA")
	var rf *RecognitionFailure
	if !errors.As(err, &rf) || rf.Reason != "no-match" {
		t.Fatalf("expected RecognitionFailure, got %v", err)
	}

	_, err = m.Assess(ctx, "s3://audio/provider-error.wav", "x", "uk-UA")
	var pe *ProviderError
	if !errors.As(err, &pe) || pe.Provider != "mock" {
		t.Fatalf("expected ProviderError, got %v", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = m.Assess(cancelled, "a.wav", "x", "uk-UA")
	if !errors.As(err, &pe) || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected wrapped context.Canceled, got %v", err)
	}
}

func TestNewSelectsProvider(t *testing.T) {
	r, err := New(context.Background(), config.RecognitionConfig{Provider: "mock"}, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Name() != "mock" {
		t.Fatalf("got provider %q", r.Name())
	}

	if _, err := New(context.Background(), config.RecognitionConfig{Provider: "whisper"}, nil, zap.NewNop()); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestNewAzureRequiresCredentials(t *testing.T) {
	r, err := New(context.Background(), config.RecognitionConfig{Provider: "azure"}, nil, zap.NewNop())
	if err == nil {
		t.Fatal("expected error without key and region")
	}
	if r != nil {
		t.Fatalf("expected nil recognizer, got %T", r)
	}
}

func googleAlt(transcript string, conf float32, words ...float32) *speechpb.SpeechRecognitionResult {
	alt := &speechpb.SpeechRecognitionAlternative{Transcript: transcript, Confidence: conf}
	for _, w := range words {
		alt.Words = append(alt.Words, &speechpb.WordInfo{Confidence: w})
	}
	return &speechpb.SpeechRecognitionResult{Alternatives: []*speechpb.SpeechRecognitionAlternative{alt}}
}

func TestAssessmentFromGoogle(t *testing.T) {
	resp := &speechpb.RecognizeResponse{Results: []*speechpb.SpeechRecognitionResult{
		googleAlt("привіт", 0.9, 0.8),
		googleAlt(" як ", 0.7, 0.6),
	}}

	res, err := assessmentFromGoogle(resp, "привіт як справи")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.LexicalText != "привіт як" {
		t.Fatalf("unexpected transcript %q", res.LexicalText)
	}
	if !near(res.AccuracyScore, 70) || !near(res.PronunciationScore, 70) {
		t.Fatalf("accuracy should be mean word confidence, got %+v", res)
	}
	if !near(res.FluencyScore, 80) {
		t.Fatalf("fluency should be mean alternative confidence, got %v", res.FluencyScore)
	}
	if !near(res.CompletenessScore, 200.0/3.0) {
		t.Fatalf("unexpected completeness %v", res.CompletenessScore)
	}
}

func TestAssessmentFromGoogleWithoutWordConfidence(t *testing.T) {
	resp := &speechpb.RecognizeResponse{Results: []*speechpb.SpeechRecognitionResult{
		googleAlt("one two three four", 0.5),
	}}
	res, err := assessmentFromGoogle(resp, "one two")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !near(res.AccuracyScore, 50) || !near(res.CompletenessScore, 100) {
		t.Fatalf("unexpected scores %+v", res)
	}
}

func TestAssessmentFromGoogleNoMatch(t *testing.T) {
	for _, resp := range []*speechpb.RecognizeResponse{
		{},
		{Results: []*speechpb.SpeechRecognitionResult{googleAlt("  ", 0.1)}},
		{Results: []*speechpb.SpeechRecognitionResult{{}}},
	} {
		_, err := assessmentFromGoogle(resp, "привіт")
		var rf *RecognitionFailure
		if !errors.As(err, &rf) {
			t.Fatalf("expected RecognitionFailure, got %v", err)
		}
	}
}

func near(a, b float64) bool {
	d := a - b
	return d < 1e-4 && d > -1e-4
}

func TestAssessmentFromGoogleIgnoresBlankAlternatives(t *testing.T) {
	resp := &speechpb.RecognizeResponse{Results: []*speechpb.SpeechRecognitionResult{
		googleAlt("привіт", 0.8),
		googleAlt("   ", 0.1),
	}}
	res, err := assessmentFromGoogle(resp, "привіт")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !near(res.FluencyScore, 80) {
		t.Fatalf("blank alternative should not lower fluency, got %v", res.FluencyScore)
	}
}

const azureDetailed = `{"RecognitionStatus":"Success","DisplayText":"Привіт, як справи?","NBest":[{"Confidence":0.93,"Lexical":"привіт як справи","Display":"Привіт, як справи?","PronunciationAssessment":{"AccuracyScore":88,"FluencyScore":92,"CompletenessScore":100,"PronScore":90.4,"ProsodyScore":81}}]}`

func TestAssessmentParamsJSON(t *testing.T) {
	raw, err := azureAssessmentParams("привіт")
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]any
	if err := json.Unmarshal([]byte(raw), &got); err != nil {
		t.Fatal(err)
	}
	want := map[string]any{
		"ReferenceText":           "привіт",
		"GradingSystem":           "HundredMark",
		"Granularity":             "Phoneme",
		"EnableMiscue":            true,
		"PhonemeAlphabet":         "IPA",
		"EnableProsodyAssessment": true,
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("%s = %v, want %v", k, got[k], v)
		}
	}
}

func TestAssessmentFromAzureRecognized(t *testing.T) {
	res, err := assessmentFromAzure(azureRecognized, azureDetailed, "Привіт, як справи?", "", zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.LexicalText != "привіт як справи" || res.NormalizedText != "Привіт, як справи?" {
		t.Fatalf("unexpected transcript %+v", res)
	}
	if res.AccuracyScore != 88 || res.FluencyScore != 92 || res.CompletenessScore != 100 || res.PronunciationScore != 90.4 {
		t.Fatalf("unexpected scores %+v", res)
	}
}

func TestAssessmentFromAzureLexicalFallback(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	raw := `{"DisplayText":"Привіт.","NBest":[{"Display":"Привіт.","PronunciationAssessment":{"AccuracyScore":70,"FluencyScore":60,"CompletenessScore":100,"PronScore":72}}]}`

	res, err := assessmentFromAzure(azureRecognized, raw, "", "", zap.New(core))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.LexicalText != "Привіт." || res.NormalizedText != "Привіт." {
		t.Fatalf("expected display text fallback, got %+v", res)
	}
	if logs.FilterLevelExact(zapcore.DebugLevel).Len() != 1 {
		t.Fatal("expected a debug note about the missing lexical form")
	}
}

func TestAssessmentFromAzureFailures(t *testing.T) {
	noAssessment := `{"DisplayText":"Привіт.","NBest":[{"Lexical":"привіт","Display":"Привіт."}]}`
	cases := []struct {
		name       string
		reason     azureReason
		raw        string
		details    string
		failure    string
		isProvider bool
	}{
		{"no match", azureNoMatch, "", "", "no-match", false},
		{"canceled by user", azureCanceled, "", "", "canceled", false},
		{"canceled with error", azureCanceled, "", "Connection failed (no connection to the remote host)", "", true},
		{"no pronunciation block", azureRecognized, noAssessment, "", "", true},
		{"malformed payload", azureRecognized, `{"NBest":`, "", "", true},
		{"other status", azureOther, azureDetailed, "", "unrecognized status", false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			res, err := assessmentFromAzure(c.reason, c.raw, "", c.details, zap.NewNop())
			if res != nil {
				t.Fatalf("expected no assessment, got %+v", res)
			}
			var pe *ProviderError
			var rf *RecognitionFailure
			switch {
			case c.isProvider:
				if !errors.As(err, &pe) || pe.Provider != "azure" {
					t.Fatalf("expected ProviderError, got %v", err)
				}
			default:
				if !errors.As(err, &rf) || rf.Reason != c.failure {
					t.Fatalf("expected RecognitionFailure %q, got %v", c.failure, err)
				}
			}
		})
	}
}
