package audio

import (
	"strings"
	"unicode"
)

// minOverlapSearchWords keeps the merger useful when the configured
// overlap fraction rounds a search window down to nothing.
const minOverlapSearchWords = 3

// MergeTranscripts stitches ordered per-chunk transcripts into one
// transcript, removing text duplicated by the audio overlap between
// adjacent chunks.
//
// For each adjacent pair it searches for the longest word run where the
// suffix of the accumulated transcript equals the prefix of the next
// chunk's transcript. Matching is case-insensitive and ignores leading or
// trailing punctuation on each word; the search window is sized from the
// overlap fraction (overlapSeconds / chunkSeconds). When a run is found
// the duplicated prefix is dropped from the next transcript; otherwise
// the transcripts are joined with a single space.
func MergeTranscripts(transcripts []string, overlapFraction float64) string {
	var mergedWords []string

	for _, t := range transcripts {
		words := strings.Fields(t)
		if len(words) == 0 {
			continue
		}

		if len(mergedWords) == 0 {
			mergedWords = append(mergedWords, words...)
			continue
		}

		drop := overlapRun(mergedWords, words, overlapFraction)
		mergedWords = append(mergedWords, words[drop:]...)
	}

	return strings.Join(mergedWords, " ")
}

// overlapRun returns the length of the longest word run where the suffix
// of prev equals the prefix of next, bounded by the overlap search
// window. Zero means no overlap was found.
func overlapRun(prev, next []string, overlapFraction float64) int {
	window := int(overlapFraction*float64(len(next)) + 0.5)
	if window < minOverlapSearchWords {
		window = minOverlapSearchWords
	}
	if window > len(prev) {
		window = len(prev)
	}
	if window > len(next) {
		window = len(next)
	}

	for run := window; run >= 1; run-- {
		if wordRunsEqual(prev[len(prev)-run:], next[:run]) {
			return run
		}
	}

	return 0
}

// wordRunsEqual compares two word runs case-insensitively, tolerating
// punctuation around each word.
func wordRunsEqual(a, b []string) bool {
	for i := range a {
		if normalizeWord(a[i]) != normalizeWord(b[i]) {
			return false
		}
	}
	return true
}

// normalizeWord lowercases a word and strips surrounding punctuation.
func normalizeWord(w string) string {
	w = strings.TrimFunc(w, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSymbol(r)
	})
	return strings.ToLower(w)
}
