package respond

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/kenchan6666/mikabot/internal/catalog"
	"github.com/kenchan6666/mikabot/internal/db"
	"github.com/kenchan6666/mikabot/internal/intent"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockLLM struct {
	mock.Mock
}

func (m *MockLLM) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	ret := m.Called(ctx, systemPrompt, userPrompt)
	return ret.String(0), ret.Error(1)
}

func newTestResponder(client *MockLLM) *Responder {
	return New(slog.New(slog.DiscardHandler), client, "米卡", "openrouter")
}

func TestReplyBuildsSongPrompt(t *testing.T) {
	llmMock := &MockLLM{}
	llmMock.On("Complete", mock.Anything, mock.Anything, mock.Anything).
		Return("  Don! 千本桜 is 200 BPM, oni 8 stars! 🥁  ", nil)

	r := newTestResponder(llmMock)
	reply := r.Reply(context.Background(), Request{
		Message:  "千本桜的BPM是多少？",
		Language: "zh",
		Intent:   intent.SongQuery,
		Song: &catalog.Entry{
			Name:           "千本桜",
			Tempo:          200,
			Difficulty:     8,
			Genre:          "vocaloid",
			RealDifficulty: 11.5,
			Category:       "超级难",
		},
	})

	assert.Equal(t, "Don! 千本桜 is 200 BPM, oni 8 stars! 🥁", reply, "reply should be trimmed")

	require.Len(t, llmMock.Calls, 1)
	system := llmMock.Calls[0].Arguments.String(1)
	user := llmMock.Calls[0].Arguments.String(2)

	assert.Contains(t, system, "米卡")
	assert.Contains(t, system, "Taiko no Tatsujin drum spirit")
	assert.Contains(t, system, "中文")

	assert.Contains(t, user, "- Name: 千本桜")
	assert.Contains(t, user, "- BPM: 200")
	assert.Contains(t, user, "- Difficulty: 8 stars")
	assert.Contains(t, user, "- Community rating: 11.5 (超级难)")
	assert.Contains(t, user, "User message: 千本桜的BPM是多少？")
	assert.NotContains(t, user, "缓存", "no fallback notice unless fallback data was used")
}

func TestReplyIncludesMemoryAndHistory(t *testing.T) {
	llmMock := &MockLLM{}
	llmMock.On("Complete", mock.Anything, mock.Anything, mock.Anything).
		Return("Don!", nil)

	r := newTestResponder(llmMock)
	r.Reply(context.Background(), Request{
		Message:          "还记得我吗",
		Language:         "zh",
		Intent:           intent.Chat,
		Impression:       "likes high BPM songs",
		InteractionCount: 7,
		History: []db.Conversation{
			{UserMessage: "second question", BotResponse: "second answer"},
			{UserMessage: "first question", BotResponse: "first answer"},
		},
	})

	require.Len(t, llmMock.Calls, 1)
	user := llmMock.Calls[0].Arguments.String(2)

	assert.Contains(t, user, "likes high BPM songs")
	assert.Contains(t, user, "Total interactions so far: 7")
	assert.Less(t, strings.Index(user, "first question"), strings.Index(user, "second question"),
		"history should read oldest to newest")
}

func TestReplyFallbackNotice(t *testing.T) {
	llmMock := &MockLLM{}
	llmMock.On("Complete", mock.Anything, mock.Anything, mock.Anything).
		Return("Don!", nil)

	r := newTestResponder(llmMock)
	r.Reply(context.Background(), Request{
		Message:      "千本桜",
		Language:     "zh",
		Intent:       intent.SongQuery,
		Song:         &catalog.Entry{Name: "千本桜", Tempo: 200},
		UsedFallback: true,
	})

	user := llmMock.Calls[0].Arguments.String(2)
	assert.Contains(t, user, "使用缓存数据")
}

func TestReplyDegradesOnLLMError(t *testing.T) {
	llmMock := &MockLLM{}
	llmMock.On("Complete", mock.Anything, mock.Anything, mock.Anything).
		Return("", errors.New("provider down"))

	r := newTestResponder(llmMock)

	reply := r.Reply(context.Background(), Request{Message: "你好", Language: "zh", Intent: intent.Greeting})
	assert.Equal(t, FallbackLine("米卡", "zh"), reply)
	assert.Contains(t, reply, "暂时无法回应")

	reply = r.Reply(context.Background(), Request{Message: "hello", Language: "en", Intent: intent.Greeting})
	assert.Equal(t, FallbackLine("米卡", "en"), reply)
	assert.Contains(t, reply, "temporarily unavailable")
}

func TestReplyDegradesOnBlankResponse(t *testing.T) {
	llmMock := &MockLLM{}
	llmMock.On("Complete", mock.Anything, mock.Anything, mock.Anything).
		Return("   \n ", nil)

	r := newTestResponder(llmMock)
	reply := r.Reply(context.Background(), Request{Message: "hello", Language: "en", Intent: intent.Chat})
	assert.Equal(t, FallbackLine("米卡", "en"), reply)
}

func TestScenarioHints(t *testing.T) {
	assert.Contains(t, scenarioHint(intent.SongRecommendation), "recommendations")
	assert.Contains(t, scenarioHint(intent.Greeting), "Greet")
	assert.Empty(t, scenarioHint(intent.Chat))
}
