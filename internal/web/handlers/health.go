package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Pinger is the one repository method the health check needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StaleChecker reports whether the catalog snapshot needs a refresh.
type StaleChecker interface {
	Stale() bool
}

type HealthHandler struct {
	repo        Pinger
	catalog     StaleChecker
	llmProvider string
	log         *slog.Logger
}

func NewHealthHandler(repo Pinger, catalog StaleChecker, llmProvider string, log *slog.Logger) *HealthHandler {
	return &HealthHandler{repo: repo, catalog: catalog, llmProvider: llmProvider, log: log}
}

type healthResponse struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services"`
}

// Check reports overall status plus per-service detail. Only the database
// gates healthy vs degraded: a stale catalog still serves its last snapshot
// and the reply pipeline has canned fallbacks when the LLM is unreachable.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	database := "connected"
	if err := h.repo.Ping(ctx); err != nil {
		h.log.WarnContext(r.Context(), "health ping failed", "error", err)
		database = "disconnected"
	}

	catalogStatus := "fresh"
	if h.catalog.Stale() {
		catalogStatus = "stale"
	}

	llm := "available"
	if h.llmProvider == "" {
		llm = "unavailable"
	}

	status := "healthy"
	if database != "connected" {
		status = "degraded"
	}

	writeJSON(w, http.StatusOK, healthResponse{
		Status: status,
		Services: map[string]string{
			"database": database,
			"catalog":  catalogStatus,
			"llm":      llm,
		},
	})
}
