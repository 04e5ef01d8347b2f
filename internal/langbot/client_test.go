package langbot

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendMessage(t *testing.T) {
	var gotPath, gotKey string
	var gotBody sendRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("X-API-Key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key")
	require.True(t, client.Enabled())

	err := client.SendMessage(context.Background(), "bot-uuid-1", TargetGroup, "group-42", "Don! 🥁")
	require.NoError(t, err)

	assert.Equal(t, "/api/v1/platform/bots/bot-uuid-1/send_message", gotPath)
	assert.Equal(t, "test-key", gotKey)
	assert.Equal(t, TargetGroup, gotBody.TargetType)
	assert.Equal(t, "group-42", gotBody.TargetID)
	require.Len(t, gotBody.MessageChain, 1)
	assert.Equal(t, "Plain", gotBody.MessageChain[0].Type)
	assert.Equal(t, "Don! 🥁", gotBody.MessageChain[0].Text)
}

func TestSendMessageStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid bot uuid", http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key")
	err := client.SendMessage(context.Background(), "nope", TargetPerson, "user-1", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
	assert.Contains(t, err.Error(), "invalid bot uuid")
}

func TestSendMessageNotConfigured(t *testing.T) {
	client := NewClient("", "")
	assert.False(t, client.Enabled())

	err := client.SendMessage(context.Background(), "bot-uuid-1", TargetPerson, "user-1", "hi")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestSendMessageRequiresBotUUID(t *testing.T) {
	client := NewClient("http://localhost:9", "key")
	err := client.SendMessage(context.Background(), "", TargetPerson, "user-1", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bot uuid")
}
