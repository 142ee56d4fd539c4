package speechrouter

import (
	"strings"
	"unicode"
)

// defaultCharsPerSecond approximates conversational speaking rate across
// voices (~180 words/min at ~5 chars/word).
const defaultCharsPerSecond = 15.0

// EstimateCost returns the exact per-character cost for synthesizing text.
func EstimateCost(text string, costPerChar float64) float64 {
	return float64(len(text)) * costPerChar
}

// EstimateAudioSeconds estimates the audio duration for text at the given
// speaking rate. A zero rate falls back to the package default.
func EstimateAudioSeconds(text string, charsPerSecond float64) float64 {
	if charsPerSecond <= 0 {
		charsPerSecond = defaultCharsPerSecond
	}
	return float64(len(text)) / charsPerSecond
}

// primarySubtag extracts the primary language subtag from a BCP 47 tag,
// e.g. "en" from "en-US". Comparison is case-insensitive.
func primarySubtag(tag string) string {
	tag = strings.TrimSpace(tag)
	if i := strings.IndexAny(tag, "-_"); i >= 0 {
		tag = tag[:i]
	}
	return strings.ToLower(tag)
}

// supportsLanguage reports whether any configured language matches the
// request's primary subtag. An empty language list means unrestricted.
func supportsLanguage(languages []string, tag string) bool {
	if len(languages) == 0 {
		return true
	}
	want := primarySubtag(tag)
	if want == "" {
		return true
	}
	for _, l := range languages {
		if primarySubtag(l) == want {
			return true
		}
	}
	return false
}

// nonLatinScripts are the ranges the script heuristic checks when no language
// is specified. Presence of any such rune marks the text as non-English.
var nonLatinScripts = []*unicode.RangeTable{
	unicode.Han,
	unicode.Hiragana,
	unicode.Katakana,
	unicode.Hangul,
	unicode.Cyrillic,
	unicode.Arabic,
	unicode.Devanagari,
	unicode.Thai,
}

// containsNonLatinScript reports whether text contains runes from a non-Latin
// writing system.
func containsNonLatinScript(text string) bool {
	for _, r := range text {
		if unicode.In(r, nonLatinScripts...) {
			return true
		}
	}
	return false
}
