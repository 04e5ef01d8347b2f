package contentfilter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChineseKeywords(t *testing.T) {
	f := New(true)

	tests := []struct {
		name    string
		text    string
		harmful bool
		reason  string
	}{
		{"hatred", "我讨厌民族仇恨的言论", true, ReasonHatred},
		{"politics", "我们聊聊政治吧", true, ReasonPolitics},
		{"religion", "你信什么宗教", true, ReasonReligion},
		{"game talk passes", "米卡，千本桜的鬼难度是多少星？", false, ""},
		{"empty", "   ", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			harmful, reason := f.Check(tt.text, "zh")
			assert.Equal(t, tt.harmful, harmful)
			assert.Equal(t, tt.reason, reason)
		})
	}
}

func TestEnglishKeywords(t *testing.T) {
	f := New(true)

	tests := []struct {
		name    string
		text    string
		harmful bool
		reason  string
	}{
		{"hatred", "this is about ethnic hatred", true, ReasonHatred},
		{"politics case-insensitive", "Let's discuss POLITICS today", true, ReasonPolitics},
		{"religion", "what is your religion?", true, ReasonReligion},
		{"game talk passes", "Mika, what's the BPM of Senbonzakura?", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			harmful, reason := f.Check(tt.text, "en")
			assert.Equal(t, tt.harmful, harmful)
			assert.Equal(t, tt.reason, reason)
		})
	}
}

func TestHatredCheckedBeforePolitics(t *testing.T) {
	f := New(true)

	harmful, reason := f.Check("ethnic hatred in politics", "en")
	assert.True(t, harmful)
	assert.Equal(t, ReasonHatred, reason)
}

func TestScriptSelectionWithoutLanguage(t *testing.T) {
	f := New(true)

	// Mostly Chinese text uses the Chinese lists
	harmful, reason := f.Check("不要在这里讨论政治话题", "")
	assert.True(t, harmful)
	assert.Equal(t, ReasonPolitics, reason)

	// A stray Han rune does not flip a mostly-English message;
	// "政治" alone is not an English keyword hit
	harmful, _ = f.Check("this is a perfectly normal english sentence about 政治", "")
	assert.False(t, harmful)
}

func TestDisabledFilterAdmitsEverything(t *testing.T) {
	f := New(false)

	harmful, reason := f.Check("ethnic hatred", "en")
	assert.False(t, harmful)
	assert.Empty(t, reason)
	assert.False(t, f.Enabled())
}
