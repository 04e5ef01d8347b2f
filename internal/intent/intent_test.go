package intent

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Intent
	}{
		{"bpm query zh", "千本桜的BPM是多少？", SongQuery},
		{"bpm query en", "What's the BPM of Senbonzakura?", SongQuery},
		{"quoted title", "《夜に駆ける》是什么样的歌", SongQuery},
		{"lookup verb", "帮我查一下紅蓮華", SongQuery},
		{"recommendation zh", "推荐几首好听的歌吧", SongRecommendation},
		{"recommendation en", "can you recommend a song for me", SongRecommendation},
		{"recommendation with bpm words", "推荐一些高BPM的歌", SongRecommendation},
		{"difficulty advice", "新手有什么建议吗", DifficultyAdvice},
		{"practice advice", "新手怎么开始练习比较好", DifficultyAdvice},
		{"game tips", "怎么才能打得更准", GameTips},
		{"game tips en", "any tips for my accuracy", GameTips},
		{"greeting zh", "米卡你好！", Greeting},
		{"greeting en", "hello Mika!", Greeting},
		{"hi needs word boundary", "this is something", Chat},
		{"help", "你能做什么呀", Help},
		{"help en", "what can you do", Help},
		{"goodbye zh", "拜拜米卡", Goodbye},
		{"goodbye en", "ok bye, see you tomorrow", Goodbye},
		{"plain chat", "今天天气真不错", Chat},
		{"bare song name is chat", "千本桜", Chat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Detect(tt.text), "text: %s", tt.text)
		})
	}
}

func TestExtractSongQuery(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
		ok   bool
	}{
		{"quoted", "《千本桜》的谱面怎么样", "千本桜", true},
		{"possessive bpm", "千本桜的BPM是多少", "千本桜", true},
		{"possessive difficulty", "紅蓮華的难度", "紅蓮華", true},
		{"japanese no", "千本桜のBPM", "千本桜", true},
		{"english of", "What's the BPM of Senbonzakura?", "Senbonzakura", true},
		{"colon form", "BPM: Senbonzakura", "Senbonzakura", true},
		{"fullwidth colon", "难度：千本桜", "千本桜", true},
		{"lookup verb", "查一下 紅蓮華", "紅蓮華", true},
		{"about form", "tell me about Butterfly", "Butterfly", true},
		{"leading filler stripped", "请问千本桜的难度", "千本桜", true},
		{"bare name", "千本桜", "千本桜", true},
		{"question word blocks bare name", "what is this game", "", false},
		{"empty", "   ", "", false},
		{"long text rejected", strings.Repeat("哒", 60), "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractSongQuery(tt.text)
			assert.Equal(t, tt.ok, ok, "text: %s", tt.text)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCleanSongName(t *testing.T) {
	assert.Equal(t, "千本桜", cleanSongName(" 关于千本桜是多少？ "))
	assert.Equal(t, "", cleanSongName("什么"))
	assert.Equal(t, "DON'T CUT", cleanSongName("DON'T CUT"))
}
