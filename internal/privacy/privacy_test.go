package privacy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashUserID(t *testing.T) {
	t.Run("known digest", func(t *testing.T) {
		assert.Equal(t,
			"15e2b0d3c33891ebb0f1ef609ec419420c20e320ce94c65fbc8c3312448eb225",
			HashUserID("123456789"))
	})

	t.Run("stable across calls", func(t *testing.T) {
		assert.Equal(t, HashUserID("user-a"), HashUserID("user-a"))
	})

	t.Run("distinct inputs diverge", func(t *testing.T) {
		assert.NotEqual(t, HashUserID("user-a"), HashUserID("user-b"))
	})

	t.Run("output validates", func(t *testing.T) {
		assert.True(t, ValidHash(HashUserID("anything")))
	})
}

func TestValidHash(t *testing.T) {
	valid := HashUserID("123456789")

	cases := []struct {
		name string
		in   string
		want bool
	}{
		{"valid digest", valid, true},
		{"empty", "", false},
		{"too short", valid[:63], false},
		{"too long", valid + "a", false},
		{"uppercase hex", "15E2B0D3C33891EBB0F1EF609EC419420C20E320CE94C65FBC8C3312448EB225", false},
		{"non-hex character", valid[:63] + "g", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ValidHash(tc.in))
		})
	}
}

func TestAbbrev(t *testing.T) {
	assert.Equal(t, "15e2b0d3...", Abbrev(HashUserID("123456789")))
	assert.Equal(t, "short", Abbrev("short"))
}
