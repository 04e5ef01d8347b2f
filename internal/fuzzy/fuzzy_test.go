package fuzzy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimilarity(t *testing.T) {
	m := New()

	t.Run("identical strings score 1", func(t *testing.T) {
		assert.Equal(t, 1.0, m.Similarity("千本桜", "千本桜"))
		assert.Equal(t, 1.0, m.Similarity("Butterfly", "Butterfly"))
	})

	t.Run("case is ignored", func(t *testing.T) {
		assert.Equal(t, 1.0, m.Similarity("MIKA", "mika"))
	})

	t.Run("single CJK substitution stays above 0.7", func(t *testing.T) {
		sim := m.Similarity("千本樱", "千本桜")
		assert.GreaterOrEqual(t, sim, 0.7)
		assert.Less(t, sim, 1.0)
	})

	t.Run("appended punctuation stays above 0.85", func(t *testing.T) {
		sim := m.Similarity("Mika, hello!", "Mika, hello!!")
		assert.GreaterOrEqual(t, sim, 0.85)
	})

	t.Run("disjoint strings score 0", func(t *testing.T) {
		assert.Equal(t, 0.0, m.Similarity("completely unrelated text", "千本桜"))
	})
}

func TestBestMatch(t *testing.T) {
	m := New()

	t.Run("picks the closest candidate", func(t *testing.T) {
		idx, score := m.BestMatch("千本樱", []string{"紅蓮華", "千本桜", "Butterfly"})
		assert.Equal(t, 1, idx)
		assert.GreaterOrEqual(t, score, 0.7)
	})

	t.Run("exact match wins outright", func(t *testing.T) {
		idx, score := m.BestMatch("紅蓮華", []string{"紅蓮華", "千本桜"})
		assert.Equal(t, 0, idx)
		assert.Equal(t, 1.0, score)
	})

	t.Run("ties break to the lexicographically smaller name", func(t *testing.T) {
		// Both candidates differ from the query by the same final rune.
		idx, _ := m.BestMatch("abc", []string{"abe", "abd"})
		assert.Equal(t, 1, idx)
	})

	t.Run("empty candidate list", func(t *testing.T) {
		idx, score := m.BestMatch("anything", nil)
		assert.Equal(t, -1, idx)
		assert.Equal(t, 0.0, score)
	})
}
