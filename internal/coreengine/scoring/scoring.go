// Package scoring fuses provider pronunciation scores with transcript-level
// text similarity signals. Everything here is pure and safe for concurrent use.
package scoring

import (
	"fmt"
	"math"
	"strings"

	"github.com/texttheater/golang-levenshtein/levenshtein"
)

// editOptions gives insertion, deletion and substitution the same unit cost.
// The library default charges 2 for a substitution.
var editOptions = levenshtein.Options{
	InsCost: 1,
	DelCost: 1,
	SubCost: 1,
	Matches: levenshtein.IdenticalRunes,
}

// RawScores are the provider scores for one utterance on the 0-100 scale.
type RawScores struct {
	Accuracy      float64
	Fluency       float64
	Completeness  float64
	Pronunciation float64
}

// Breakdown is the outcome of fusing raw scores with the text signals.
// Adjusted* and the raw fluency/completeness stay on the 0-100 scale;
// the Published* fields are mapped into [0,1].
type Breakdown struct {
	Similarity float64
	Recall     float64
	Agreement  float64

	AdjustedAccuracy float64
	AdjustedOverall  float64
	Fluency          float64
	Completeness     float64

	PublishedAccuracy     float64
	PublishedFluency      float64
	PublishedCompleteness float64
	PublishedOverall      float64

	Feedback string
}

// normalize case-folds and trims a transcript before comparison.
func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// EditDistance returns the unit-cost Levenshtein distance between the
// normalized forms of a and b, counted in runes.
func EditDistance(a, b string) int {
	return levenshtein.DistanceForStrings([]rune(normalize(a)), []rune(normalize(b)), editOptions)
}

// Similarity returns 1 - distance/max(len(a), len(b)) over the normalized
// strings. Two empty strings are identical (1.0); a single empty string
// shares nothing with the other (0.0).
func Similarity(a, b string) float64 {
	ra := []rune(normalize(a))
	rb := []rune(normalize(b))

	if len(ra) == 0 && len(rb) == 0 {
		return 1.0
	}
	if len(ra) == 0 || len(rb) == 0 {
		return 0.0
	}

	distance := levenshtein.DistanceForStrings(ra, rb, editOptions)
	maxLen := len(ra)
	if len(rb) > maxLen {
		maxLen = len(rb)
	}
	return 1.0 - float64(distance)/float64(maxLen)
}

// tokenSet splits on whitespace and case-folds. Punctuation is kept, so
// "справи" and "справи?" are different tokens.
func tokenSet(s string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(s))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// WordRecall is the fraction of distinct reference words that also appear in
// the recognized transcript.
func WordRecall(reference, recognized string) float64 {
	ref := tokenSet(reference)
	rec := tokenSet(recognized)

	matched := 0
	for tok := range rec {
		if _, ok := ref[tok]; ok {
			matched++
		}
	}
	denom := len(ref)
	if denom < 1 {
		denom = 1
	}
	return float64(matched) / float64(denom)
}

// Agreement is the smaller of the two text signals.
func Agreement(similarity, recall float64) float64 {
	return math.Min(similarity, recall)
}

// clamp100 keeps a provider score inside the 0-100 scale.
func clamp100(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// FormatFeedback renders the human-readable summary sent with a result.
func FormatFeedback(accuracy, fluency, completeness float64) string {
	return fmt.Sprintf("Accuracy %.1f%%, fluency %.1f%%, completeness %.1f%%", accuracy, fluency, completeness)
}

// Score compares the recognized transcript against the reference text and
// discounts the provider's accuracy and pronunciation terms by how much the
// two disagree. Fluency and completeness pass through unscaled.
func Score(reference, recognized string, raw RawScores) Breakdown {
	accuracy := clamp100(raw.Accuracy)
	fluency := clamp100(raw.Fluency)
	completeness := clamp100(raw.Completeness)
	pronunciation := clamp100(raw.Pronunciation)

	b := Breakdown{
		Similarity:   Similarity(recognized, reference),
		Recall:       WordRecall(reference, recognized),
		Fluency:      fluency,
		Completeness: completeness,
	}
	b.Agreement = Agreement(b.Similarity, b.Recall)

	b.AdjustedAccuracy = accuracy * b.Agreement
	b.AdjustedOverall = (pronunciation*b.Agreement + fluency + completeness) / 3

	b.PublishedAccuracy = b.AdjustedAccuracy / 100
	b.PublishedFluency = fluency / 100
	b.PublishedCompleteness = completeness / 100
	b.PublishedOverall = b.AdjustedOverall / 100

	b.Feedback = FormatFeedback(b.AdjustedAccuracy, fluency, completeness)
	return b
}
