package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/kenchan6666/mikabot/internal/privacy"
)

// LimiterAdmin clears admission windows for operators.
type LimiterAdmin interface {
	ResetSender(senderID string)
	ResetGroup(groupID string)
}

type AdminHandler struct {
	limiter LimiterAdmin
	log     *slog.Logger
}

func NewAdminHandler(limiter LimiterAdmin, log *slog.Logger) *AdminHandler {
	return &AdminHandler{limiter: limiter, log: log}
}

type resetRateLimitRequest struct {
	Scope string `json:"scope"`
	ID    string `json:"id"`
}

// ResetRateLimit clears one sender's or group's window. The body carries the
// raw QQ ID; sender windows are keyed by hash, so the handler hashes before
// resetting.
func (h *AdminHandler) ResetRateLimit(w http.ResponseWriter, r *http.Request) {
	var req resetRateLimitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	switch req.Scope {
	case "sender":
		h.limiter.ResetSender(privacy.HashUserID(req.ID))
	case "group":
		h.limiter.ResetGroup(req.ID)
	default:
		writeError(w, http.StatusBadRequest, `scope must be "sender" or "group"`)
		return
	}

	h.log.InfoContext(r.Context(), "rate limit window reset", "scope", req.Scope)
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}
