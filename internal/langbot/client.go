// Package langbot talks to the LangBot platform API, the outbound half of
// the webhook gateway the bot lives behind.
package langbot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Target types accepted by the send endpoint.
const (
	TargetPerson = "person"
	TargetGroup  = "group"
)

// ErrNotConfigured is returned when no API URL or key was provided. Replies
// are still delivered inline in the webhook response, so this is not fatal.
var ErrNotConfigured = errors.New("langbot api not configured")

// Client sends messages through the LangBot platform API.
type Client struct {
	apiURL     string
	apiKey     string
	httpClient *http.Client
}

func NewClient(apiURL, apiKey string) *Client {
	return &Client{
		apiURL: strings.TrimRight(apiURL, "/"),
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Enabled reports whether the client has enough configuration to send.
func (c *Client) Enabled() bool {
	return c.apiURL != "" && c.apiKey != ""
}

type sendRequest struct {
	TargetType   string        `json:"target_type"`
	TargetID     string        `json:"target_id"`
	MessageChain []messagePart `json:"message_chain"`
}

type messagePart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// SendMessage posts a plain-text message to a person or group through the
// bot identified by botUUID.
func (c *Client) SendMessage(ctx context.Context, botUUID, targetType, targetID, text string) error {
	if !c.Enabled() {
		return ErrNotConfigured
	}
	if botUUID == "" {
		return errors.New("bot uuid is required")
	}

	body, err := json.Marshal(sendRequest{
		TargetType: targetType,
		TargetID:   targetID,
		MessageChain: []messagePart{
			{Type: "Plain", Text: text},
		},
	})
	if err != nil {
		return fmt.Errorf("marshaling send request: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/platform/bots/%s/send_message", c.apiURL, botUUID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("langbot send failed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	return nil
}
