// Package contentfilter screens inbound messages with keyword lists before
// any tokens are spent on them. Normal game talk passes; divisive or
// inflammatory content is dropped with a reason the caller can log.
package contentfilter

import (
	"strings"
	"unicode"

	"github.com/kenchan6666/mikabot/internal/language"
)

// Rejection reasons, surfaced in logs and skip responses.
const (
	ReasonHatred   = "contains hatred keywords"
	ReasonPolitics = "contains political keywords"
	ReasonReligion = "contains religious keywords"
)

type category struct {
	reason   string
	keywords []string
}

// Keyword lists are checked in order, hatred first. Keywords are stored
// lowercase so the message only needs lowering once.
var chineseCategories = []category{
	{ReasonHatred, []string{"民族仇恨", "种族歧视"}},
	{ReasonPolitics, []string{"政治", "政府", "政党"}},
	{ReasonReligion, []string{"宗教", "信仰"}},
}

var englishCategories = []category{
	{ReasonHatred, []string{"ethnic hatred", "racial discrimination"}},
	{ReasonPolitics, []string{"politics", "government", "political party"}},
	{ReasonReligion, []string{"religion", "faith"}},
}

// Filter checks messages against per-language keyword lists.
type Filter struct {
	enabled bool
}

func New(enabled bool) *Filter {
	return &Filter{enabled: enabled}
}

func (f *Filter) Enabled() bool {
	return f.enabled
}

// Check reports whether text should be dropped and why. lang selects the
// keyword lists ("zh" or "en"); when empty the dominant script decides.
// A disabled filter admits everything.
func (f *Filter) Check(text, lang string) (bool, string) {
	if !f.enabled {
		return false, ""
	}
	if strings.TrimSpace(text) == "" {
		return false, ""
	}

	lowered := strings.ToLower(text)

	categories := englishCategories
	if lang == language.Chinese || (lang == "" && chineseDominant(text)) {
		categories = chineseCategories
	}

	for _, c := range categories {
		for _, kw := range c.keywords {
			if strings.Contains(lowered, kw) {
				return true, c.reason
			}
		}
	}
	return false, ""
}

// chineseDominant is a stricter bar than language detection: a mostly-English
// message with a stray Han rune should still be screened as English.
func chineseDominant(text string) bool {
	total, han := 0, 0
	for _, r := range text {
		total++
		if unicode.Is(unicode.Han, r) {
			han++
		}
	}
	return total > 0 && float64(han) > float64(total)*0.3
}
