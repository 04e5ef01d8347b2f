package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kenchan6666/mikabot/internal/admission"
	"github.com/kenchan6666/mikabot/internal/bot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockPipeline struct {
	mock.Mock
}

func (m *MockPipeline) HandleMessage(ctx context.Context, in bot.Inbound) (bot.Outcome, error) {
	ret := m.Called(ctx, in)
	return ret.Get(0).(bot.Outcome), ret.Error(1)
}

func newWebhookTest() (*WebhookHandler, *MockPipeline) {
	pipeline := new(MockPipeline)
	return NewWebhookHandler(pipeline, slog.New(slog.DiscardHandler)), pipeline
}

func postWebhook(h *WebhookHandler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook/langbot", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.Receive(w, req)
	return w
}

func TestReceiveEventForm(t *testing.T) {
	h, pipeline := newWebhookTest()

	pipeline.On("HandleMessage", mock.Anything, mock.MatchedBy(func(in bot.Inbound) bool {
		return in.MessageID == "evt-1" &&
			in.SenderID == "10001" &&
			in.GroupID == "20002" &&
			in.Text == "mika 查一下《千本桜》" &&
			in.BotUUID == "bot-uuid-1"
	})).Return(bot.Outcome{Reply: "Don! 千本桜的BPM是154哦！"}, nil)

	body := `{
		"uuid": "evt-1",
		"event_type": "bot.group_message",
		"data": {
			"bot_uuid": "bot-uuid-1",
			"adapter_name": "AiocqhttpAdapter",
			"sender": {"id": 10001, "name": "player"},
			"message": [
				{"type": "Source", "id": 99},
				{"type": "Plain", "text": "mika "},
				{"type": "Plain", "text": "查一下《千本桜》"},
				{"type": "Image", "url": "https://example.com/x.png"}
			],
			"group_id": 20002,
			"timestamp": 1756100000.0
		}
	}`

	w := postWebhook(h, body)
	require.Equal(t, http.StatusOK, w.Code)

	var resp webhookResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.SkipPipeline, "a generated reply should skip the gateway's own pipeline")
	require.Len(t, resp.Message, 1)
	assert.Equal(t, partPlain, resp.Message[0].Type)
	assert.Equal(t, "Don! 千本桜的BPM是154哦！", resp.Message[0].Text)
	assert.Equal(t, "Don! 千本桜的BPM是154哦！", resp.Response)
	assert.True(t, resp.Success)
	pipeline.AssertExpectations(t)
}

func TestReceiveEventGroupShapes(t *testing.T) {
	cases := []struct {
		name    string
		group   string
		groupID string
	}{
		{"group object", `"group": {"id": 777}`, "777"},
		{"bare group string", `"group": "888"`, "888"},
		{"group_id wins over group object", `"group_id": "111", "group": {"id": 777}`, "111"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h, pipeline := newWebhookTest()
			pipeline.On("HandleMessage", mock.Anything, mock.MatchedBy(func(in bot.Inbound) bool {
				return in.GroupID == tc.groupID
			})).Return(bot.Outcome{Reply: "ok"}, nil)

			body := fmt.Sprintf(`{
				"uuid": "evt-2",
				"event_type": "bot.group_message",
				"data": {
					"sender": {"id": "10001"},
					"message": [{"type": "Plain", "text": "mika hi"}],
					%s
				}
			}`, tc.group)

			w := postWebhook(h, body)
			require.Equal(t, http.StatusOK, w.Code)
			pipeline.AssertExpectations(t)
		})
	}
}

func TestReceivePersonMessage(t *testing.T) {
	h, pipeline := newWebhookTest()

	pipeline.On("HandleMessage", mock.Anything, mock.MatchedBy(func(in bot.Inbound) bool {
		return in.SenderID == "123" && in.GroupID == ""
	})).Return(bot.Outcome{Reply: "hello"}, nil)

	// A person message never carries a group, even if the adapter leaks one.
	body := `{
		"uuid": "evt-3",
		"event_type": "bot.person_message",
		"data": {
			"sender": {"id": "123"},
			"message": [{"type": "Plain", "text": "mika hello"}],
			"group_id": "999"
		}
	}`

	w := postWebhook(h, body)
	require.Equal(t, http.StatusOK, w.Code)
	pipeline.AssertExpectations(t)
}

func TestReceiveSimplifiedForm(t *testing.T) {
	h, pipeline := newWebhookTest()

	pipeline.On("HandleMessage", mock.Anything, mock.MatchedBy(func(in bot.Inbound) bool {
		return in.SenderID == "777" &&
			in.GroupID == "555" &&
			in.Text == "mika 你好" &&
			in.BotUUID == ""
	})).Return(bot.Outcome{Reply: "你好！"}, nil)

	w := postWebhook(h, `{"group_id": "555", "user_id": "777", "message": "mika 你好"}`)
	require.Equal(t, http.StatusOK, w.Code)
	pipeline.AssertExpectations(t)
}

func TestReceiveSkip(t *testing.T) {
	h, pipeline := newWebhookTest()

	pipeline.On("HandleMessage", mock.Anything, mock.Anything).
		Return(bot.Outcome{Skipped: true, SkipReason: "no mention"}, nil)

	w := postWebhook(h, `{"group_id": "1", "user_id": "2", "message": "just chatting"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t,
		`{"status":"ok","skip_pipeline":false,"message":null,"response":"","success":false}`,
		w.Body.String(),
		"skipped messages must leave the gateway pipeline in control")
}

func TestReceiveRateLimited(t *testing.T) {
	h, pipeline := newWebhookTest()

	pipeline.On("HandleMessage", mock.Anything, mock.Anything).
		Return(bot.Outcome{}, &admission.LimitError{Scope: admission.ScopeSender, Reason: admission.ReasonSenderLimit})

	w := postWebhook(h, `{"group_id": "1", "user_id": "2", "message": "mika hi"}`)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.JSONEq(t, `{"error":"rate limit exceeded: sender limit exceeded"}`, w.Body.String())
}

func TestReceivePipelineError(t *testing.T) {
	h, pipeline := newWebhookTest()

	pipeline.On("HandleMessage", mock.Anything, mock.Anything).
		Return(bot.Outcome{}, errors.New("boom"))

	w := postWebhook(h, `{"group_id": "1", "user_id": "2", "message": "mika hi"}`)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal error"}`, w.Body.String())
}

func TestReceiveBadPayload(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"not json", `{`},
		{"missing user_id", `{"group_id": "1", "message": "hi"}`},
		{"event missing sender", `{"uuid": "x", "event_type": "bot.group_message", "data": {"message": []}}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h, pipeline := newWebhookTest()
			w := postWebhook(h, tc.body)
			require.Equal(t, http.StatusBadRequest, w.Code)
			pipeline.AssertNotCalled(t, "HandleMessage", mock.Anything, mock.Anything)
		})
	}
}

func TestReceiveLegacyPath(t *testing.T) {
	h, pipeline := newWebhookTest()

	pipeline.On("HandleMessage", mock.Anything, mock.Anything).
		Return(bot.Outcome{Reply: "ok"}, nil)

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{"group_id": "1", "user_id": "2", "message": "mika hi"}`))
	w := httptest.NewRecorder()
	h.ReceiveLegacy(w, req)

	require.Equal(t, http.StatusOK, w.Code, "the deprecated path must keep serving replies")
	pipeline.AssertExpectations(t)
}
