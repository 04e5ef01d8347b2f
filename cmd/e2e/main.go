// e2e drives the full webhook stack against a real LLM provider: temp
// database, seeded catalog fixtures, in-process HTTP server, then one pass
// through the happy path, duplicate suppression, rate limiting, and the
// admin reset. Needs LLM credentials in the environment or .env.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kenchan6666/mikabot/internal/admission"
	"github.com/kenchan6666/mikabot/internal/anthropic"
	"github.com/kenchan6666/mikabot/internal/bot"
	"github.com/kenchan6666/mikabot/internal/catalog"
	"github.com/kenchan6666/mikabot/internal/contentfilter"
	"github.com/kenchan6666/mikabot/internal/db"
	"github.com/kenchan6666/mikabot/internal/db/sqlite"
	"github.com/kenchan6666/mikabot/internal/google"
	"github.com/kenchan6666/mikabot/internal/langbot"
	"github.com/kenchan6666/mikabot/internal/llm"
	"github.com/kenchan6666/mikabot/internal/logger"
	"github.com/kenchan6666/mikabot/internal/openrouter"
	"github.com/kenchan6666/mikabot/internal/privacy"
	"github.com/kenchan6666/mikabot/internal/respond"
	"github.com/kenchan6666/mikabot/internal/taikowiki"
	"github.com/kenchan6666/mikabot/internal/web"
)

const adminAPIKey = "e2e-admin-key"

const fallbackFixture = `[
  {"title": "千本桜", "songNo": "4", "bpm": 154, "courses": {"oni": {"level": 8}}, "genre": ["ボーカロイド曲"], "romaji": "Senbonzakura"},
  {"title": "夜に駆ける", "songNo": "5", "bpm": 130, "courses": {"oni": {"level": 8}}, "genre": ["ポップス"], "romaji": "Yoru ni Kakeru"},
  {"title": "幽玄ノ乱", "songNo": "9", "bpm": 300, "courses": {"oni": {"level": 10}}, "genre": ["ナムコオリジナル"], "romaji": "Yuugen no Ran"}
]`

const overlayFixture = `{
  "total_songs": 1,
  "songs": [
    {"name": "幽玄ノ乱", "stars": 10, "real_difficulty": 11.21, "difficulty_category": "很难", "bpm": 300, "genre": "ナムコオリジナル", "url": "https://taiko.wiki/song/幽玄ノ乱"}
  ]
}`

type webhookReply struct {
	Status       string `json:"status"`
	SkipPipeline bool   `json:"skip_pipeline"`
	Response     string `json:"response"`
	Success      bool   `json:"success"`
}

func main() {
	if err := run(); err != nil {
		slog.Error("E2E FAILED", "error", err)
		os.Exit(1)
	}
	slog.Info("E2E PASSED")
}

func run() error {
	_ = godotenv.Load()

	llmProvider := requireEnv("LLM_PROVIDER")
	llmModel := requireEnv("LLM_MODEL")

	log := logger.New(os.Stderr)
	ctx := context.Background()

	// Phase 1: Temp database and catalog fixtures
	log.Info("Phase 1: Seeding temp database and catalog fixtures...")
	dbPath := fmt.Sprintf("/tmp/mikabot-e2e-%d.db", time.Now().UnixNano())
	defer os.Remove(dbPath)

	dataDir, err := os.MkdirTemp("", "mikabot-e2e-")
	if err != nil {
		return fmt.Errorf("creating temp data dir: %w", err)
	}
	defer os.RemoveAll(dataDir)

	fallbackPath := filepath.Join(dataDir, "database.json")
	if err := os.WriteFile(fallbackPath, []byte(fallbackFixture), 0o644); err != nil {
		return fmt.Errorf("writing fallback fixture: %w", err)
	}
	overlayPath := filepath.Join(dataDir, "song_difficulty_database.json")
	if err := os.WriteFile(overlayPath, []byte(overlayFixture), 0o644); err != nil {
		return fmt.Errorf("writing overlay fixture: %w", err)
	}

	repo, err := sqlite.New(ctx, dbPath)
	if err != nil {
		return fmt.Errorf("creating temp SQLite: %w", err)
	}
	defer repo.Close()

	// Phase 2: Build the bot stack
	log.Info("Phase 2: Building the bot stack...", "provider", llmProvider, "model", llmModel)

	var llmClient llm.Client
	switch llmProvider {
	case "openrouter":
		apiKey := requireEnv("OPENROUTER_API_KEY")
		llmClient = openrouter.NewClient(apiKey, llmModel)
	case "anthropic":
		apiKey := requireEnv("ANTHROPIC_API_KEY")
		llmClient = anthropic.NewClient(apiKey, anthropic.Model(llmModel))
	case "google":
		apiKey := requireEnv("GOOGLE_API_KEY")
		llmClient, err = google.NewClient(ctx, apiKey, google.Model(llmModel))
		if err != nil {
			return fmt.Errorf("creating Google client: %w", err)
		}
	default:
		return fmt.Errorf("unsupported LLM_PROVIDER: %s", llmProvider)
	}

	// Three sends per minute keeps the rate limit phase cheap: the happy
	// path and the suppressed duplicate each consume a sender slot before
	// the fourth send trips the limit.
	limiter, err := admission.NewRateLimiter(admission.RateLimiterConfig{
		SenderLimit: 3,
		GroupLimit:  50,
		Window:      time.Minute,
	})
	if err != nil {
		return fmt.Errorf("building rate limiter: %w", err)
	}

	// A wide window so the duplicate still lands inside it after a slow
	// LLM round trip.
	dedup, err := admission.NewDeduplicator(admission.DedupConfig{
		Enabled:   true,
		Threshold: 0.85,
		Window:    time.Minute,
	})
	if err != nil {
		return fmt.Errorf("building deduplicator: %w", err)
	}

	store, err := catalog.NewStore(log, taikowiki.NewClient(""), catalog.StoreConfig{
		FallbackPath: fallbackPath,
	})
	if err != nil {
		return fmt.Errorf("building catalog store: %w", err)
	}
	overlay := catalog.NewOverlay(log, overlayPath)
	queries, err := catalog.NewQueryService(log, store, overlay, catalog.QueryConfig{})
	if err != nil {
		return fmt.Errorf("building query service: %w", err)
	}

	if usedFallback, err := store.EnsureFresh(ctx); err != nil {
		return fmt.Errorf("initial catalog load: %w", err)
	} else if usedFallback {
		log.Info("catalog loaded from local fixture")
	}

	responder := respond.New(log, llmClient, "Mika", llmProvider)
	mikaBot, err := bot.New(log, repo, limiter, dedup, store, queries, responder,
		contentfilter.New(true), langbot.NewClient("", ""), bot.Config{})
	if err != nil {
		return fmt.Errorf("building bot: %w", err)
	}

	// Phase 3: In-process server
	log.Info("Phase 3: Starting in-process server...")
	router := web.NewRouter(repo, log, mikaBot, queries, limiter, store, web.Config{
		AdminAPIKey: adminAPIKey,
		LLMProvider: llmProvider,
	})
	srv := httptest.NewServer(router.Handler())
	defer srv.Close()
	client := srv.Client()

	// Phase 4: Health and song search
	log.Info("Phase 4: Checking health and song search...")
	status, body, err := get(client, srv.URL+"/health")
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	var health struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &health); err != nil {
		return fmt.Errorf("decoding health response: %w", err)
	}
	if status != http.StatusOK || health.Status != "healthy" {
		return fmt.Errorf("unexpected health: status=%d body=%s", status, body)
	}

	status, body, err = get(client, srv.URL+"/api/v1/songs/search?q=千本桜")
	if err != nil {
		return fmt.Errorf("song search: %w", err)
	}
	var song struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(body, &song); err != nil {
		return fmt.Errorf("decoding song response: %w", err)
	}
	if status != http.StatusOK || song.Name != "千本桜" {
		return fmt.Errorf("unexpected search result: status=%d body=%s", status, body)
	}
	log.Info("song search verified", "name", song.Name)

	// Phase 5: Webhook happy path
	log.Info("Phase 5: Webhook happy path...")
	status, body, err = postEvent(client, srv.URL, "9001", "mika 千本桜的难度是多少？")
	if err != nil {
		return fmt.Errorf("happy path: %w", err)
	}
	reply, err := decodeReply(status, body)
	if err != nil {
		return fmt.Errorf("happy path: %w", err)
	}
	if !reply.Success || reply.Response == "" {
		return fmt.Errorf("expected a reply, got: %s", body)
	}
	log.Info("got reply", "response", reply.Response)

	// Phase 6: Duplicate suppression
	log.Info("Phase 6: Duplicate suppression...")
	status, body, err = postEvent(client, srv.URL, "9001", "mika 千本桜的难度是多少？")
	if err != nil {
		return fmt.Errorf("duplicate send: %w", err)
	}
	reply, err = decodeReply(status, body)
	if err != nil {
		return fmt.Errorf("duplicate send: %w", err)
	}
	if reply.Success || reply.SkipPipeline {
		return fmt.Errorf("duplicate was not suppressed: %s", body)
	}

	// Phase 7: Rate limit
	log.Info("Phase 7: Rate limit...")
	status, body, err = postEvent(client, srv.URL, "9001", "mika 你好呀")
	if err != nil {
		return fmt.Errorf("third send: %w", err)
	}
	if _, err := decodeReply(status, body); err != nil {
		return fmt.Errorf("third send: %w", err)
	}

	status, body, err = postEvent(client, srv.URL, "9001", "mika 再见啦")
	if err != nil {
		return fmt.Errorf("fourth send: %w", err)
	}
	if status != http.StatusTooManyRequests {
		return fmt.Errorf("expected 429, got %d: %s", status, body)
	}
	var limited struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &limited); err != nil {
		return fmt.Errorf("decoding 429 body: %w", err)
	}
	if limited.Error != "rate limit exceeded: sender limit exceeded" {
		return fmt.Errorf("unexpected 429 reason: %q", limited.Error)
	}
	log.Info("rate limit verified", "error", limited.Error)

	// Phase 8: Admin reset
	log.Info("Phase 8: Admin reset...")
	resetBody := bytes.NewReader([]byte(`{"scope": "sender", "id": "9001"}`))
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/admin/rate-limits/reset", resetBody)
	if err != nil {
		return fmt.Errorf("building reset request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", adminAPIKey)
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("admin reset: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("admin reset returned %d", resp.StatusCode)
	}

	status, body, err = postEvent(client, srv.URL, "9001", "mika 再见啦")
	if err != nil {
		return fmt.Errorf("send after reset: %w", err)
	}
	reply, err = decodeReply(status, body)
	if err != nil {
		return fmt.Errorf("send after reset: %w", err)
	}
	if !reply.Success {
		return fmt.Errorf("send after reset was not answered: %s", body)
	}

	// Phase 9: Verify persistence
	log.Info("Phase 9: Verifying persistence...")
	hashed := privacy.HashUserID("9001")
	history, err := repo.ListRecentConversations(ctx, db.ListRecentConversationsParams{
		HashedUserID: hashed,
		Limit:        10,
	})
	if err != nil {
		return fmt.Errorf("listing conversations: %w", err)
	}
	if len(history) != 3 {
		return fmt.Errorf("expected 3 stored conversations, got %d", len(history))
	}

	impression, err := repo.GetImpression(ctx, hashed)
	if err != nil {
		return fmt.Errorf("loading impression: %w", err)
	}
	if impression.InteractionCount != 3 {
		return fmt.Errorf("expected interaction count 3, got %d", impression.InteractionCount)
	}

	log.Info("all verifications passed",
		"conversations", len(history),
		"interaction_count", impression.InteractionCount,
		"relationship", impression.Content,
	)

	return nil
}

func requireEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		slog.Error("required environment variable not set", "key", key)
		os.Exit(1)
	}
	return val
}

func get(client *http.Client, url string) (int, []byte, error) {
	resp, err := client.Get(url)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	return resp.StatusCode, body, err
}

func postEvent(client *http.Client, baseURL, senderID, text string) (int, []byte, error) {
	payload := map[string]any{
		"uuid":       fmt.Sprintf("e2e-%d", time.Now().UnixNano()),
		"event_type": "bot.person_message",
		"data": map[string]any{
			"sender":  map[string]any{"id": senderID},
			"message": []map[string]any{{"type": "Plain", "text": text}},
		},
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, err
	}

	resp, err := client.Post(baseURL+"/webhook/langbot", "application/json", bytes.NewReader(raw))
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	return resp.StatusCode, body, err
}

func decodeReply(status int, body []byte) (webhookReply, error) {
	var reply webhookReply
	if status != http.StatusOK {
		return reply, fmt.Errorf("unexpected status %d: %s", status, body)
	}
	if err := json.Unmarshal(body, &reply); err != nil {
		return reply, fmt.Errorf("decoding webhook reply: %w", err)
	}
	if reply.Status != "ok" {
		return reply, fmt.Errorf("unexpected reply status: %s", body)
	}
	return reply, nil
}
