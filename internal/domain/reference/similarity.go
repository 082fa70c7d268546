package reference

import (
	"unicode/utf8"

	"github.com/antzucaro/matchr"
)

// DefaultMinScore is the fuzzy acceptance threshold.
const DefaultMinScore = 70

// Similarity scores two normalized terms on a 0–100 scale:
// round(100 × (1 − lev(a,b) / max(|a|,|b|))), lengths in runes.
// Two empty strings score 100.
func Similarity(a, b string) (score, distance int) {
	maxLen := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > maxLen {
		maxLen = n
	}
	distance = matchr.Levenshtein(a, b)
	return scoreFor(distance, maxLen), distance
}

// scoreFor rounds half up using integers only, so 7/10 is exactly 70.
func scoreFor(distance, maxLen int) int {
	if maxLen == 0 {
		return 100
	}
	if distance > maxLen {
		distance = maxLen
	}
	return (200*(maxLen-distance) + maxLen) / (2 * maxLen)
}

// bestPossible is the score two strings of these lengths could reach at best;
// the edit distance is at least the length difference.
func bestPossible(la, lb int) int {
	maxLen, diff := la, la-lb
	if lb > la {
		maxLen, diff = lb, lb-la
	}
	return scoreFor(diff, maxLen)
}
