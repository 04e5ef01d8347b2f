package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func normalizeOne(t *testing.T, record string) Entry {
	t.Helper()
	entries, skipped, err := Normalize([]byte("[" + record + "]"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Zero(t, skipped)
	return entries[0]
}

func TestNormalizeNames(t *testing.T) {
	t.Run("title preferred over name and song_name", func(t *testing.T) {
		e := normalizeOne(t, `{"title":"千本桜","name":"ignored","song_name":"ignored too"}`)
		assert.Equal(t, "千本桜", e.Name)
	})

	t.Run("name used when title missing", func(t *testing.T) {
		e := normalizeOne(t, `{"name":"紅蓮華"}`)
		assert.Equal(t, "紅蓮華", e.Name)
	})

	t.Run("song_name used last", func(t *testing.T) {
		e := normalizeOne(t, `{"song_name":"Butterfly"}`)
		assert.Equal(t, "Butterfly", e.Name)
	})

	t.Run("nameless record dropped", func(t *testing.T) {
		entries, skipped, err := Normalize([]byte(`[{"bpm":200},{"title":"  "},{"title":"kept"}]`))
		require.NoError(t, err)
		assert.Len(t, entries, 1)
		assert.Equal(t, "kept", entries[0].Name)
		assert.Equal(t, 2, skipped)
	})

	t.Run("first occurrence wins", func(t *testing.T) {
		entries, skipped, err := Normalize([]byte(`[{"title":"Dup","bpm":100},{"title":"Dup","bpm":200}]`))
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, 100, entries[0].Tempo)
		assert.Equal(t, 1, skipped)
	})
}

func TestNormalizeTempo(t *testing.T) {
	cases := []struct {
		name   string
		record string
		want   int
	}{
		{"scalar", `{"title":"s","bpm":200}`, 200},
		{"float scalar", `{"title":"s","bpm":162.5}`, 162},
		{"numeric string", `{"title":"s","bpm":"150"}`, 150},
		{"range prefers max", `{"title":"s","bpm":{"min":120,"max":180}}`, 180},
		{"range min only", `{"title":"s","bpm":{"min":120}}`, 120},
		{"range zero max falls to min", `{"title":"s","bpm":{"min":90,"max":0}}`, 90},
		{"missing", `{"title":"s"}`, 0},
		{"garbage", `{"title":"s","bpm":"fast"}`, 0},
		{"null", `{"title":"s","bpm":null}`, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, normalizeOne(t, tc.record).Tempo)
		})
	}
}

func TestNormalizeDifficulty(t *testing.T) {
	cases := []struct {
		name   string
		record string
		want   int
	}{
		{"oni course level", `{"title":"s","courses":{"oni":{"level":9}}}`, 9},
		{"ura outranks oni", `{"title":"s","courses":{"oni":{"level":9},"ura":{"level":10}}}`, 10},
		{"null ura falls to oni", `{"title":"s","courses":{"oni":{"level":9},"ura":null}}`, 9},
		{"scalar course value", `{"title":"s","courses":{"oni":8}}`, 8},
		{"courses outrank generic fields", `{"title":"s","courses":{"hard":{"level":7}},"difficulty":3}`, 7},
		{"difficulty_stars", `{"title":"s","difficulty_stars":7}`, 7},
		{"difficulty", `{"title":"s","difficulty":6}`, 6},
		{"stars", `{"title":"s","stars":5}`, 5},
		{"difficulty_stars preferred over stars", `{"title":"s","difficulty_stars":7,"stars":5}`, 7},
		{"nothing usable", `{"title":"s"}`, 0},
		{"empty courses object", `{"title":"s","courses":{}}`, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, normalizeOne(t, tc.record).Difficulty)
		})
	}
}

func TestNormalizeMetadata(t *testing.T) {
	t.Run("genre string", func(t *testing.T) {
		assert.Equal(t, "pop", normalizeOne(t, `{"title":"s","genre":"pop"}`).Genre)
	})

	t.Run("genre list joined", func(t *testing.T) {
		assert.Equal(t, "pop/anime", normalizeOne(t, `{"title":"s","genre":["pop","anime"]}`).Genre)
	})

	t.Run("single artist", func(t *testing.T) {
		assert.Equal(t, []string{"黒うさP"}, normalizeOne(t, `{"title":"s","artist":"黒うさP"}`).Artists)
	})

	t.Run("artist list", func(t *testing.T) {
		assert.Equal(t, []string{"a", "b"}, normalizeOne(t, `{"title":"s","artists":["a","b"]}`).Artists)
	})

	t.Run("passthrough fields", func(t *testing.T) {
		e := normalizeOne(t, `{"title":"s","songNo":42,"romaji":"senbonzakura","titleEn":"Senbonzakura","titleKo":"센본자쿠라"}`)
		assert.Equal(t, "42", e.SongNo)
		assert.Equal(t, "senbonzakura", e.Romaji)
		assert.Equal(t, "Senbonzakura", e.TitleEn)
		assert.Equal(t, "센본자쿠라", e.TitleKo)
	})

	t.Run("string songNo preserved", func(t *testing.T) {
		assert.Equal(t, "0042", normalizeOne(t, `{"title":"s","songNo":"0042"}`).SongNo)
	})
}

func TestNormalizePayloads(t *testing.T) {
	t.Run("not an array is an error", func(t *testing.T) {
		_, _, err := Normalize([]byte(`{"title":"s"}`))
		assert.Error(t, err)
	})

	t.Run("malformed element skipped", func(t *testing.T) {
		entries, skipped, err := Normalize([]byte(`["garbage",{"title":"kept"}]`))
		require.NoError(t, err)
		assert.Len(t, entries, 1)
		assert.Equal(t, 1, skipped)
	})

	t.Run("empty array", func(t *testing.T) {
		entries, skipped, err := Normalize([]byte(`[]`))
		require.NoError(t, err)
		assert.Empty(t, entries)
		assert.Zero(t, skipped)
	})

	t.Run("source order preserved", func(t *testing.T) {
		entries, _, err := Normalize([]byte(`[{"title":"b"},{"title":"a"},{"title":"c"}]`))
		require.NoError(t, err)
		require.Len(t, entries, 3)
		assert.Equal(t, "b", entries[0].Name)
		assert.Equal(t, "a", entries[1].Name)
		assert.Equal(t, "c", entries[2].Name)
	})
}
