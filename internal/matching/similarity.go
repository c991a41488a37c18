package matching

import (
	"github.com/pmezard/go-difflib/difflib"
)

// StringSimilarity scores two comparison names in [0,1]. Implementations
// must be deterministic and symmetric.
type StringSimilarity interface {
	Similarity(a, b string) float64
}

// SimilarityFunc adapts a plain function to StringSimilarity
type SimilarityFunc func(a, b string) float64

// Similarity calls f(a, b)
func (f SimilarityFunc) Similarity(a, b string) float64 {
	return f(a, b)
}

// SequenceRatio is the matching-blocks ratio 2*M/T over the runes of both
// strings. Equal strings score 1, even when both are empty. Block search
// tie-breaks depend on argument order, so the pair is put in a fixed order
// first.
var SequenceRatio = SimilarityFunc(func(a, b string) float64 {
	if a == b {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}
	if a > b {
		a, b = b, a
	}
	return difflib.NewMatcher(splitRunes(a), splitRunes(b)).Ratio()
})

// EditDistanceRatio is 1 - levenshtein(a, b) / max(len(a), len(b))
var EditDistanceRatio = SimilarityFunc(func(a, b string) float64 {
	if a == b {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}
	ra, rb := []rune(a), []rune(b)
	longest := max(len(ra), len(rb))
	return 1 - float64(levenshtein(ra, rb))/float64(longest)
})

func splitRunes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

func levenshtein(a, b []rune) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
