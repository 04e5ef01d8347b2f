package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/kenchan6666/mikabot/internal/admission"
	"github.com/kenchan6666/mikabot/internal/bot"
)

// Event types the LangBot gateway posts to the webhook.
const (
	eventPersonMessage = "bot.person_message"
	eventGroupMessage  = "bot.group_message"
)

const partPlain = "Plain"

// MessagePipeline is the slice of the bot the webhook needs.
type MessagePipeline interface {
	HandleMessage(ctx context.Context, in bot.Inbound) (bot.Outcome, error)
}

type WebhookHandler struct {
	pipeline MessagePipeline
	log      *slog.Logger
}

func NewWebhookHandler(pipeline MessagePipeline, log *slog.Logger) *WebhookHandler {
	return &WebhookHandler{pipeline: pipeline, log: log}
}

// webhookEnvelope accepts both payload shapes the gateway sends: the event
// form (uuid, event_type, and a nested data object) and the simplified form
// with group_id, user_id, and message at the top level. event_type decides
// which set of fields is read.
type webhookEnvelope struct {
	UUID      string          `json:"uuid"`
	EventType string          `json:"event_type"`
	Data      json.RawMessage `json:"data"`

	GroupID flexID `json:"group_id"`
	UserID  flexID `json:"user_id"`
	Message string `json:"message"`
}

type eventData struct {
	BotUUID string `json:"bot_uuid"`
	Sender  struct {
		ID flexID `json:"id"`
	} `json:"sender"`
	Message []messagePart   `json:"message"`
	GroupID flexID          `json:"group_id"`
	Group   json.RawMessage `json:"group"`
}

// messagePart is one element of the gateway's message chain. Only Plain
// parts carry reply text; Source, At, and Face parts are ignored.
type messagePart struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
	URL  string `json:"url,omitempty"`
	Data string `json:"data,omitempty"`
}

type webhookResponse struct {
	Status       string        `json:"status"`
	SkipPipeline bool          `json:"skip_pipeline"`
	Message      []messagePart `json:"message"`
	Response     string        `json:"response"`
	Success      bool          `json:"success"`
}

// flexID tolerates both JSON strings and numbers, since QQ adapters are
// inconsistent about how they encode user and group IDs.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	in, err := parseInbound(r.Body)
	if err != nil {
		h.log.WarnContext(r.Context(), "rejecting webhook payload", "error", err)
		writeError(w, http.StatusBadRequest, "invalid webhook payload")
		return
	}

	outcome, err := h.pipeline.HandleMessage(r.Context(), in)
	if err != nil {
		var limitErr *admission.LimitError
		if errors.As(err, &limitErr) {
			writeError(w, http.StatusTooManyRequests, limitErr.Error())
			return
		}
		h.log.ErrorContext(r.Context(), "handling message", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if outcome.Skipped {
		// skip_pipeline stays false so the gateway's own pipeline can
		// still act on messages we ignore.
		writeJSON(w, http.StatusOK, webhookResponse{
			Status:       "ok",
			SkipPipeline: false,
		})
		return
	}

	writeJSON(w, http.StatusOK, webhookResponse{
		Status:       "ok",
		SkipPipeline: true,
		Message:      []messagePart{{Type: partPlain, Text: outcome.Reply}},
		Response:     outcome.Reply,
		Success:      true,
	})
}

// ReceiveLegacy serves the deprecated bare /webhook path, which older
// gateway configs still post to.
func (h *WebhookHandler) ReceiveLegacy(w http.ResponseWriter, r *http.Request) {
	h.log.WarnContext(r.Context(), "deprecated webhook path, configure the gateway to use /webhook/langbot")
	h.Receive(w, r)
}

func parseInbound(body io.Reader) (bot.Inbound, error) {
	var env webhookEnvelope
	if err := json.NewDecoder(body).Decode(&env); err != nil {
		return bot.Inbound{}, fmt.Errorf("decoding payload: %w", err)
	}

	if env.EventType != "" && len(env.Data) > 0 {
		return inboundFromEvent(env)
	}

	if env.UserID == "" {
		return bot.Inbound{}, errors.New("missing user_id")
	}
	return bot.Inbound{
		MessageID: env.UUID,
		SenderID:  string(env.UserID),
		GroupID:   string(env.GroupID),
		Text:      env.Message,
	}, nil
}

func inboundFromEvent(env webhookEnvelope) (bot.Inbound, error) {
	var data eventData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return bot.Inbound{}, fmt.Errorf("decoding event data: %w", err)
	}
	if data.Sender.ID == "" {
		return bot.Inbound{}, errors.New("missing sender.id in event data")
	}

	in := bot.Inbound{
		MessageID: env.UUID,
		SenderID:  string(data.Sender.ID),
		Text:      joinPlainText(data.Message),
		BotUUID:   data.BotUUID,
	}
	switch env.EventType {
	case eventGroupMessage:
		in.GroupID = eventGroupID(data)
	case eventPersonMessage:
	default:
		// Unknown event types are handled as direct messages.
	}
	return in, nil
}

func joinPlainText(parts []messagePart) string {
	var b strings.Builder
	for _, p := range parts {
		if p.Type == partPlain {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

// eventGroupID digs the group ID out of whichever field the adapter used:
// a top-level group_id, a group object with an id, or a bare group value.
func eventGroupID(data eventData) string {
	if data.GroupID != "" {
		return string(data.GroupID)
	}
	if len(data.Group) == 0 {
		return ""
	}
	var obj struct {
		ID flexID `json:"id"`
	}
	if err := json.Unmarshal(data.Group, &obj); err == nil && obj.ID != "" {
		return string(obj.ID)
	}
	var id flexID
	if err := json.Unmarshal(data.Group, &id); err == nil {
		return string(id)
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
