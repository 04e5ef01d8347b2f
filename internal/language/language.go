// Package language classifies message text so replies come back in the
// sender's language.
package language

import "unicode"

const (
	Chinese = "zh"
	English = "en"
)

// Detect returns Chinese when the text contains any Han rune, English
// otherwise. Mixed-script messages count as Chinese since QQ group chatter
// sprinkles English song titles into Chinese sentences.
func Detect(text string) string {
	for _, r := range text {
		if unicode.Is(unicode.Han, r) {
			return Chinese
		}
	}
	return English
}

// Resolve picks the reply language: a stored user preference wins, then the
// detected language, then the configured default.
func Resolve(preferred, detected, fallback string) string {
	if preferred != "" {
		return preferred
	}
	if detected != "" {
		return detected
	}
	return fallback
}
