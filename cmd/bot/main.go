package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/kenchan6666/mikabot/internal/admission"
	"github.com/kenchan6666/mikabot/internal/anthropic"
	"github.com/kenchan6666/mikabot/internal/bot"
	"github.com/kenchan6666/mikabot/internal/catalog"
	"github.com/kenchan6666/mikabot/internal/contentfilter"
	"github.com/kenchan6666/mikabot/internal/db"
	"github.com/kenchan6666/mikabot/internal/db/postgres"
	"github.com/kenchan6666/mikabot/internal/db/sqlite"
	"github.com/kenchan6666/mikabot/internal/envsetup"
	"github.com/kenchan6666/mikabot/internal/google"
	"github.com/kenchan6666/mikabot/internal/langbot"
	"github.com/kenchan6666/mikabot/internal/llm"
	"github.com/kenchan6666/mikabot/internal/logger"
	"github.com/kenchan6666/mikabot/internal/openrouter"
	"github.com/kenchan6666/mikabot/internal/respond"
	"github.com/kenchan6666/mikabot/internal/taikowiki"
	"github.com/kenchan6666/mikabot/internal/web"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := mainE(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
	slog.Info("exiting without error")
}

func mainE() error {
	// First run on a terminal: walk through credential setup before parsing.
	if envsetup.NeedsSetup() && envsetup.Interactive() {
		done, err := envsetup.Run()
		if err != nil {
			return fmt.Errorf("running setup wizard: %w", err)
		}
		if !done {
			return errors.New("setup cancelled")
		}
	}

	_ = godotenv.Load()

	fs_ := ff.NewFlagSet("mikabot")

	var (
		port             = fs_.Int64Long("port", 8000, "HTTP server port")
		databaseURL      = fs_.StringLong("database-url", "sqlite://data/mika.db", "database URL (sqlite://path or postgres://...)")
		llmProvider      = fs_.StringEnumLong("llm-provider", "LLM provider for persona replies", "openrouter", "anthropic", "google")
		llmModel         = fs_.StringLong("llm-model", "", "LLM model name (defaults per provider)")
		openrouterAPIKey = fs_.StringLong("openrouter-api-key", "", "OpenRouter API key")
		anthropicAPIKey  = fs_.StringLong("anthropic-api-key", "", "Anthropic API key")
		googleAPIKey     = fs_.StringLong("google-api-key", "", "Google API key")
		botName          = fs_.StringLong("bot-name", "Mika", "persona name used in prompts")
		defaultLanguage  = fs_.StringEnumLong("default-language", "reply language when detection is ambiguous", "zh", "en")
		allowedGroups    = fs_.StringLong("allowed-groups", "", "comma-separated QQ group allow-list (empty allows all)")
		historyLimit     = fs_.Int64Long("history-limit", 10, "conversation turns fed back into prompts")
		catalogURL       = fs_.StringLong("catalog-url", taikowiki.DefaultSongListURL, "song list API URL")
		catalogFallback  = fs_.StringLong("catalog-fallback", "data/database.json", "local fallback copy of the song list")
		difficultyDB     = fs_.StringLong("difficulty-db", "data/song_difficulty_database.json", "community difficulty overlay file")
		senderLimit      = fs_.Int64Long("sender-limit", 20, "messages admitted per sender per window")
		groupLimit       = fs_.Int64Long("group-limit", 50, "messages admitted per group per window")
		rateWindow       = fs_.DurationLong("rate-window", time.Minute, "rate limit window")
		dedupThreshold   = fs_.Float64Long("dedup-threshold", 0.85, "similarity at which a message counts as a repeat")
		dedupWindow      = fs_.DurationLong("dedup-window", 5*time.Second, "window for duplicate suppression")
		langbotAPIURL    = fs_.StringLong("langbot-api-url", "http://localhost:5300", "LangBot platform API base URL")
		langbotAPIKey    = fs_.StringLong("langbot-api-key", "", "LangBot platform API key (empty disables push delivery)")
		adminAPIKey      = fs_.StringLong("admin-api-key", "", "X-API-Key for the admin endpoints")
	)

	if err := ff.Parse(fs_, os.Args[1:], ff.WithEnvVars()); err != nil {
		fmt.Printf("%s\n", ffhelp.Flags(fs_))
		return fmt.Errorf("parsing flags: %w", err)
	}

	if *llmModel == "" {
		*llmModel = defaultModel(*llmProvider)
	}

	log := logger.New(os.Stderr)

	var llmClient llm.Client
	switch *llmProvider {
	case "openrouter":
		if *openrouterAPIKey == "" {
			return errors.New("openrouter-api-key is required when using openrouter provider")
		}
		llmClient = openrouter.NewClient(*openrouterAPIKey, *llmModel)
	case "anthropic":
		if *anthropicAPIKey == "" {
			return errors.New("anthropic-api-key is required when using anthropic provider")
		}
		llmClient = anthropic.NewClient(*anthropicAPIKey, anthropic.Model(*llmModel))
	case "google":
		if *googleAPIKey == "" {
			return errors.New("google-api-key is required when using google provider")
		}
		var err error
		llmClient, err = google.NewClient(context.Background(), *googleAPIKey, google.Model(*llmModel))
		if err != nil {
			return fmt.Errorf("creating Google client: %w", err)
		}
	}

	ctx, cancel := context.WithCancelCause(context.Background())
	defer cancel(nil)

	repo, err := openRepository(ctx, *databaseURL)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer repo.Close()
	log.InfoContext(ctx, "connected to database", "url", *databaseURL)

	limiter, err := admission.NewRateLimiter(admission.RateLimiterConfig{
		SenderLimit: int(*senderLimit),
		GroupLimit:  int(*groupLimit),
		Window:      *rateWindow,
	})
	if err != nil {
		return fmt.Errorf("configuring rate limiter: %w", err)
	}

	dedup, err := admission.NewDeduplicator(admission.DedupConfig{
		Enabled:   true,
		Threshold: *dedupThreshold,
		Window:    *dedupWindow,
	})
	if err != nil {
		return fmt.Errorf("configuring deduplicator: %w", err)
	}

	store, err := catalog.NewStore(log, taikowiki.NewClient(*catalogURL), catalog.StoreConfig{
		FallbackPath: *catalogFallback,
	})
	if err != nil {
		return fmt.Errorf("configuring catalog store: %w", err)
	}
	overlay := catalog.NewOverlay(log, *difficultyDB)
	queries, err := catalog.NewQueryService(log, store, overlay, catalog.QueryConfig{})
	if err != nil {
		return fmt.Errorf("configuring query service: %w", err)
	}

	// Warm the snapshot so the first message doesn't pay for the fetch.
	// A failure here is not fatal: EnsureFresh retries per message.
	if usedFallback, err := store.EnsureFresh(ctx); err != nil {
		log.WarnContext(ctx, "initial catalog load failed", "error", err)
	} else if usedFallback {
		log.InfoContext(ctx, "catalog loaded from local fallback")
	}

	responder := respond.New(log, llmClient, *botName, *llmProvider)
	filter := contentfilter.New(true)
	sender := langbot.NewClient(*langbotAPIURL, *langbotAPIKey)

	mikaBot, err := bot.New(log, repo, limiter, dedup, store, queries, responder, filter, sender, bot.Config{
		AllowedGroups:   splitList(*allowedGroups),
		DefaultLanguage: *defaultLanguage,
		HistoryLimit:    int32(*historyLimit),
	})
	if err != nil {
		return fmt.Errorf("configuring bot: %w", err)
	}

	router := web.NewRouter(repo, log, mikaBot, queries, limiter, store, web.Config{
		AdminAPIKey: *adminAPIKey,
		LLMProvider: *llmProvider,
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", router.Handler())

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", *port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.InfoContext(ctx, "received signal, shutting down gracefully", "signal", sig)
		cancel(errors.New("signal received"))

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.ErrorContext(ctx, "server shutdown error", "error", err)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.InfoContext(gctx, "starting webhook server", "port", *port, "provider", *llmProvider, "model", *llmModel)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		mikaBot.Run(gctx)
		return nil
	})

	return g.Wait()
}

func defaultModel(provider string) string {
	switch provider {
	case "anthropic":
		return "claude-sonnet-4-5-20250929"
	case "google":
		return "gemini-2.0-flash"
	default:
		return "openai/gpt-4o"
	}
}

// openRepository picks the backend from the URL scheme. A bare path counts
// as sqlite so `--database-url data/mika.db` works.
func openRepository(ctx context.Context, databaseURL string) (db.Repository, error) {
	switch {
	case strings.HasPrefix(databaseURL, "sqlite://"):
		return sqlite.New(ctx, strings.TrimPrefix(databaseURL, "sqlite://"))
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return postgres.New(ctx, databaseURL)
	default:
		return sqlite.New(ctx, databaseURL)
	}
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
