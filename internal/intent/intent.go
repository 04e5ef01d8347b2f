// Package intent classifies messages into coarse categories that drive
// prompt selection, and extracts song names from query phrasings.
package intent

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Intent is a coarse message category.
type Intent string

const (
	SongRecommendation Intent = "song_recommendation"
	SongQuery          Intent = "song_query"
	DifficultyAdvice   Intent = "difficulty_advice"
	GameTips           Intent = "game_tips"
	Greeting           Intent = "greeting"
	Help               Intent = "help"
	Goodbye            Intent = "goodbye"
	Chat               Intent = "chat"
)

type rule struct {
	intent   Intent
	patterns []*regexp.Regexp
}

// Rules are checked in order and the first match wins. Recommendation
// outranks query because recommendation phrasings routinely contain the
// BPM/难度 property words that mark queries. Latin keywords carry \b so
// "hi" does not fire inside "this".
var rules = []rule{
	{SongRecommendation, []*regexp.Regexp{
		regexp.MustCompile(`(?:推荐|介绍|recommend|suggest).*?(?:歌曲|song|歌)`),
		regexp.MustCompile(`(?:有什么.*?歌|哪些.*?歌|what.*?song)`),
	}},
	{SongQuery, []*regexp.Regexp{
		regexp.MustCompile(`《[^》]+》`),
		regexp.MustCompile(`(?:bpm|难度|difficulty|节奏|tempo|星级).*?(?:的|of|is|是多少|what)`),
		regexp.MustCompile(`(?:歌曲|song).*?(?:的|of).*?(?:bpm|难度|difficulty)`),
		regexp.MustCompile(`(?:what.*?is.*?bpm|what.*?is.*?difficulty|bpm.*?of|difficulty.*?of)`),
		regexp.MustCompile(`(?:查询|查一下|查查|搜索)`),
	}},
	{DifficultyAdvice, []*regexp.Regexp{
		regexp.MustCompile(`(?:建议|advice|怎么.*?练|how.*?practice|如何.*?提高).*?(?:难度|difficulty)`),
		regexp.MustCompile(`(?:新手|beginner|入门|advanced|高级).*?(?:建议|advice)`),
		regexp.MustCompile(`(?:新手|beginner).*?(?:怎么|how).*?(?:开始|start|练习|practice)`),
	}},
	{GameTips, []*regexp.Regexp{
		regexp.MustCompile(`(?:技巧|\btips\b|\btricks\b|怎么.*?打|how.*?play|游戏.*?技巧)`),
		regexp.MustCompile(`(?:提高|提升|improve|better).*?(?:技巧|\btips\b|\bskills?\b)`),
		regexp.MustCompile(`(?:how.*?to.*?improve|怎么.*?提高|如何.*?提升)`),
	}},
	{Greeting, []*regexp.Regexp{
		regexp.MustCompile(`(?:你好|早上好|下午好|晚上好|こんにちは)`),
		regexp.MustCompile(`\b(?:hello|hi|hey)\b`),
	}},
	{Help, []*regexp.Regexp{
		regexp.MustCompile(`(?:帮助|你能做什么|功能)`),
		regexp.MustCompile(`\bhelp\b`),
		regexp.MustCompile(`what.*?can.*?you.*?do`),
	}},
	{Goodbye, []*regexp.Regexp{
		regexp.MustCompile(`(?:再见|拜拜|さようなら)`),
		regexp.MustCompile(`\b(?:bye|goodbye)\b|see\s+you`),
	}},
}

// Detect classifies text, falling back to Chat when nothing matches.
func Detect(text string) Intent {
	lowered := strings.ToLower(text)
	for _, r := range rules {
		for _, p := range r.patterns {
			if p.MatchString(lowered) {
				return r.intent
			}
		}
	}
	return Chat
}

// Song extraction patterns, strongest signal first. Capture groups run
// against the original text so latin titles keep their case.
var songQueryPatterns = []*regexp.Regexp{
	regexp.MustCompile(`《([^》]+)》`),
	regexp.MustCompile(`(?i)(?:bpm|速度|节奏|难度|星级|difficulty)\s*[:：]\s*([^?？。！!,，]+)`),
	regexp.MustCompile(`(?i)(?:查询|查一下|查查|搜索)\s*([^?？。！!,，]+)`),
	regexp.MustCompile(`(?i)([^?？。！!,，《》]+?)(?:的|の)\s*(?:bpm|难度|星级|速度|节奏|谱面)`),
	regexp.MustCompile(`(?i)(?:bpm|difficulty|tempo)\s+(?:of|for)\s+([^?？。！!,，]+)`),
	regexp.MustCompile(`(?i)(?:关于|about|tell me about)\s*([^?？。！!,，]+)`),
}

var leadingFillers = []string{"请问", "那个", "关于"}

var trailingTails = []string{"是多少", "是什么", "多少", "什么", "吗", "呢", "啊", "?", "？", "!", "！", "。"}

// Words that disqualify a short message from being treated as a bare song
// name.
var questionWords = []string{"what", "how", "tell", "about", "的", "关于", "什么"}

// ExtractSongQuery pulls a song name out of query phrasings. Short messages
// without question words are treated as bare song names; the catalog's match
// threshold filters out the junk that slips through.
func ExtractSongQuery(text string) (string, bool) {
	if strings.TrimSpace(text) == "" {
		return "", false
	}

	for _, p := range songQueryPatterns {
		m := p.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if name := cleanSongName(m[1]); name != "" {
			return name, true
		}
	}

	cleaned := strings.TrimSpace(text)
	if utf8.RuneCountInString(cleaned) >= 50 {
		return "", false
	}
	lowered := strings.ToLower(cleaned)
	for _, w := range questionWords {
		if strings.Contains(lowered, w) {
			return "", false
		}
	}
	return cleaned, true
}

func cleanSongName(s string) string {
	s = strings.TrimSpace(s)
	for changed := true; changed; {
		changed = false
		for _, f := range leadingFillers {
			if strings.HasPrefix(s, f) {
				s = strings.TrimSpace(strings.TrimPrefix(s, f))
				changed = true
			}
		}
		for _, t := range trailingTails {
			if strings.HasSuffix(s, t) {
				s = strings.TrimSpace(strings.TrimSuffix(s, t))
				changed = true
			}
		}
	}
	return s
}
