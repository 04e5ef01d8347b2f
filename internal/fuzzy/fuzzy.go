// Package fuzzy provides the string-similarity primitive shared by message
// deduplication and song-catalog lookups.
package fuzzy

import (
	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
)

// Matcher scores string pairs on a 0.0-1.0 scale using case-insensitive
// Jaro-Winkler similarity. Edit-distance ratios score a single-rune
// substitution in a three-rune CJK title below 0.7, which is too strict for
// song-name lookups; Jaro-Winkler keeps such near-misses above the cutoff.
// A Matcher is stateless and safe for concurrent use.
type Matcher struct {
	metric *metrics.JaroWinkler
}

func New() *Matcher {
	m := metrics.NewJaroWinkler()
	m.CaseSensitive = false
	return &Matcher{metric: m}
}

// Similarity returns 1.0 for identical strings and 0.0 for strings with no
// characters in common.
func (m *Matcher) Similarity(a, b string) float64 {
	return strutil.Similarity(a, b, m.metric)
}

// BestMatch returns the index and score of the candidate most similar to
// query. Ties break to the lexicographically smaller candidate so repeated
// runs over the same snapshot pick the same entry. Returns (-1, 0) when
// candidates is empty.
func (m *Matcher) BestMatch(query string, candidates []string) (int, float64) {
	best := -1
	bestScore := -1.0
	for i, c := range candidates {
		score := m.Similarity(query, c)
		switch {
		case score > bestScore:
			best, bestScore = i, score
		case score == bestScore && c < candidates[best]:
			best = i
		}
	}
	if best == -1 {
		return -1, 0
	}
	return best, bestScore
}
